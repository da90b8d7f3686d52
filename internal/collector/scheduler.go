package collector

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// JobFunc is a unit of work executed on the scheduler's queue.
type JobFunc func(ctx context.Context) error

// SweepFunc collects the readings for one slot.
type SweepFunc func(ctx context.Context, at time.Time) error

// ErrStopped is returned by Submit once the scheduler has shut down.
var ErrStopped = errors.New("scheduler stopped")

type job struct {
	name string
	fn   JobFunc
	done chan error
}

// Scheduler fires at fixed wall-clock boundaries and runs all work on one
// serial queue, so a sweep never overlaps the archive batch.
type Scheduler struct {
	every   time.Duration
	sweep   SweepFunc
	archive SweepFunc

	queue   chan job
	stopped chan struct{}
	now     func() time.Time
	log     zerolog.Logger
}

// NewScheduler polls every interval. When a boundary falls on the hour the
// archive job is queued ahead of that boundary's sweep. A nil archive
// disables it.
func NewScheduler(every time.Duration, sweep, archive SweepFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		every:   every,
		sweep:   sweep,
		archive: archive,
		queue:   make(chan job, 16),
		stopped: make(chan struct{}),
		now:     time.Now,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// NextBoundary returns the first multiple of every after local midnight that
// lies strictly after now. Boundaries restart at each midnight.
func NextBoundary(now time.Time, every time.Duration) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	if every <= 0 {
		return tomorrow
	}
	n := now.Sub(midnight)/every + 1
	next := midnight.Add(n * every)
	if next.After(tomorrow) {
		return tomorrow
	}
	return next
}

// Run drives the timer and the job queue until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.stopped)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		s.work(ctx)
	}()

	for {
		next := NextBoundary(s.now(), s.every)
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			<-workerDone
			return ctx.Err()
		case <-timer.C:
		}
		for _, j := range s.jobsFor(next) {
			select {
			case s.queue <- j:
			default:
				s.log.Warn().Str("job", j.name).Time("boundary", next).Msg("job queue full, boundary skipped")
			}
		}
	}
}

// Submit runs fn on the job queue and waits for it to finish.
func (s *Scheduler) Submit(ctx context.Context, name string, fn JobFunc) error {
	select {
	case <-s.stopped:
		return ErrStopped
	default:
	}
	j := job{name: name, fn: fn, done: make(chan error, 1)}
	select {
	case s.queue <- j:
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) jobsFor(at time.Time) []job {
	var jobs []job
	if s.archive != nil && at.Minute() == 0 && at.Second() == 0 {
		jobs = append(jobs, job{name: "archive", fn: func(ctx context.Context) error { return s.archive(ctx, at) }})
	}
	if s.sweep != nil {
		jobs = append(jobs, job{name: "sweep", fn: func(ctx context.Context) error { return s.sweep(ctx, at) }})
	}
	return jobs
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			start := time.Now()
			err := j.fn(ctx)
			ev := s.log.Debug()
			if err != nil {
				ev = s.log.Error().Err(err)
			}
			ev.Str("job", j.name).Dur("took", time.Since(start)).Msg("job finished")
			if j.done != nil {
				j.done <- err
			}
		}
	}
}
