// Package store owns the in-memory reading tables: the working set collected
// for the current day and the archived daily history. Every mutation takes the
// exclusive lock; reads share it.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/repository"
)

type Store struct {
	repo repository.Repository
	log  zerolog.Logger

	mu    sync.RWMutex
	day   domain.Day
	today domain.TodaySnapshot
	daily domain.DailyHistory
	// dirty is set by Record and cleared by a successful Archive.
	dirty bool

	now func() time.Time
}

func New(repo repository.Repository, log zerolog.Logger) *Store {
	return &Store{
		repo:  repo,
		log:   log.With().Str("component", "store").Logger(),
		today: domain.TodaySnapshot{},
		daily: domain.DailyHistory{},
		now:   time.Now,
	}
}

// WithClock replaces the time source used to decide which day is today.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// current reports whether the working set belongs to today. Callers hold mu.
func (s *Store) current() bool {
	return s.day == domain.DayOf(s.now())
}

// Restore replaces the in-memory tables with what the repository holds.
// A restored working set counts as unarchived.
func (s *Store) Restore(ctx context.Context) error {
	daily, err := s.repo.LoadDaily(ctx)
	if err != nil {
		return fmt.Errorf("restore daily history: %w", err)
	}
	day, today, err := s.repo.LoadToday(ctx)
	if err != nil {
		return fmt.Errorf("restore working set: %w", err)
	}
	for id, pts := range today {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Slot < pts[j].Slot })
		today[id] = pts
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = daily
	s.today = today
	s.day = day
	s.dirty = len(today) > 0
	s.log.Info().Str("day", string(day)).Int("meters_today", len(today)).Int("meters_archived", len(daily)).Msg("store restored")
	return nil
}

// Record appends a reading for meterID at the slot of at.
func (s *Store) Record(meterID string, at time.Time, value float64) error {
	if meterID == "" {
		return fmt.Errorf("%w: empty meter id", domain.ErrInvalidReading)
	}
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: meter %s value %v", domain.ErrInvalidReading, meterID, value)
	}
	day, slot := domain.DayOf(at), domain.SlotOf(at)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.day == "" || (day > s.day && len(s.today) == 0):
		s.day = day
	case day < s.day:
		return fmt.Errorf("%w: meter %s day %s before working day %s", domain.ErrOutOfOrder, meterID, day, s.day)
	case day > s.day:
		return fmt.Errorf("%w: working day %s, reading for %s", domain.ErrStaleWorkingSet, s.day, day)
	}

	pts := s.today[meterID]
	if n := len(pts); n > 0 && pts[n-1].Slot >= slot {
		return fmt.Errorf("%w: meter %s slot %s not after %s", domain.ErrOutOfOrder, meterID, slot, pts[n-1].Slot)
	}
	s.today[meterID] = append(pts, domain.Point{Slot: slot, Value: value})
	s.dirty = true
	return nil
}

// Checkpoint writes the working set to the repository.
func (s *Store) Checkpoint(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.SaveToday(ctx, s.day, s.today); err != nil {
		return fmt.Errorf("%w: checkpoint working set: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// Latest returns the most recent point recorded today for meterID. A working
// set left over from an earlier day has no data for today.
func (s *Store) Latest(meterID string) (domain.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pts := s.today[meterID]
	if len(pts) == 0 || !s.current() {
		return domain.Point{}, fmt.Errorf("%w: meter %s today", domain.ErrNoData, meterID)
	}
	return pts[len(pts)-1], nil
}

// Points returns a copy of meterID's points today, oldest first.
func (s *Store) Points(meterID string) []domain.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current() {
		return nil
	}
	return append([]domain.Point(nil), s.today[meterID]...)
}

// Snapshot returns the archived reading of meterID for day.
func (s *Store) Snapshot(meterID string, day domain.Day) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.daily[meterID][day]
	if !ok {
		return 0, fmt.Errorf("%w: meter %s on %s", domain.ErrNoData, meterID, day)
	}
	return v, nil
}

// History returns a copy of the archived daily history.
func (s *Store) History() domain.DailyHistory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(domain.DailyHistory, len(s.daily))
	for id, days := range s.daily {
		for d, v := range days {
			out.Put(id, d, v)
		}
	}
	return out
}

// Day returns the calendar day the working set belongs to, or "" when the
// working set is empty.
func (s *Store) Day() domain.Day {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// Archive stores each meter's latest reading under the working day. The
// repository write happens before the in-memory history is touched.
func (s *Store) Archive(ctx context.Context) (domain.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.archiveLocked(ctx)
}

// ClearToday empties the working set. It refuses while readings recorded
// since the last successful Archive would be lost.
func (s *Store) ClearToday(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(ctx)
}

// ArchiveAndClear runs Archive then ClearToday under one lock, so no reader
// sees an empty working set before the archive is durable.
func (s *Store) ArchiveAndClear(ctx context.Context) (domain.Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, err := s.archiveLocked(ctx)
	if err != nil {
		return day, err
	}
	return day, s.clearLocked(ctx)
}

func (s *Store) archiveLocked(ctx context.Context) (domain.Day, error) {
	if len(s.today) == 0 {
		s.dirty = false
		return s.day, nil
	}
	last := make(map[string]float64, len(s.today))
	for id, pts := range s.today {
		if len(pts) > 0 {
			last[id] = pts[len(pts)-1].Value
		}
	}
	if err := s.repo.SaveDaily(ctx, s.day, last); err != nil {
		s.log.Error().Err(err).Str("day", string(s.day)).Msg("archive write failed, working set kept")
		return s.day, fmt.Errorf("%w: archive %s: %v", domain.ErrPersistenceFailure, s.day, err)
	}
	for id, v := range last {
		s.daily.Put(id, s.day, v)
	}
	s.dirty = false
	s.log.Info().Str("day", string(s.day)).Int("meters", len(last)).Msg("day archived")
	return s.day, nil
}

func (s *Store) clearLocked(ctx context.Context) error {
	if s.dirty {
		return fmt.Errorf("%w: day %s", domain.ErrNotArchived, s.day)
	}
	if err := s.repo.SaveToday(ctx, s.day, domain.TodaySnapshot{}); err != nil {
		return fmt.Errorf("%w: clear working set: %v", domain.ErrPersistenceFailure, err)
	}
	s.today = domain.TodaySnapshot{}
	s.day = ""
	return nil
}
