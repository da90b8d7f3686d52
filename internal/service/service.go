package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/collector"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/repository"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/store"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/usage"
)

// Gate is the serving state: accepting queries, or draining while the
// day is archived.
type Gate struct {
	draining atomic.Bool
}

func (g *Gate) Accepting() bool { return !g.draining.Load() }

// Drain switches to draining. It reports false if a drain is already running.
func (g *Gate) Drain() bool { return g.draining.CompareAndSwap(false, true) }

func (g *Gate) Resume() { g.draining.Store(false) }

// Runner executes jobs one at a time, in submission order.
type Runner interface {
	Submit(ctx context.Context, name string, fn collector.JobFunc) error
}

type Alerter interface {
	ArchiveFailed(ctx context.Context, day domain.Day, cause error) error
}

type Mirror interface {
	UploadDaily(ctx context.Context, day domain.Day, data []byte) error
}

type Options struct {
	// Hold keeps the gate draining this long after a successful archive.
	Hold    time.Duration
	Alerter Alerter
	Mirror  Mirror
}

type Services struct {
	Store *store.Store
	Usage *usage.Calculator
	Gate  *Gate

	runner Runner
	opts   Options
	log    zerolog.Logger
}

func New(st *store.Store, calc *usage.Calculator, runner Runner, opts Options, log zerolog.Logger) *Services {
	return &Services{
		Store:  st,
		Usage:  calc,
		Gate:   &Gate{},
		runner: runner,
		opts:   opts,
		log:    log.With().Str("component", "service").Logger(),
	}
}

// BatchArchive drains the gate, archives and clears the working set, then
// resumes serving. On failure the working set is kept and an alert is sent.
func (s *Services) BatchArchive(ctx context.Context) (domain.Day, error) {
	if !s.Gate.Drain() {
		return "", domain.ErrBusy
	}
	defer s.Gate.Resume()

	day, err := s.Store.ArchiveAndClear(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("day", string(day)).Msg("batch archive failed")
		if s.opts.Alerter != nil {
			if aerr := s.opts.Alerter.ArchiveFailed(ctx, day, err); aerr != nil {
				s.log.Warn().Err(aerr).Msg("archive alert not sent")
			}
		}
		return day, err
	}
	s.mirror(ctx, day)

	if s.opts.Hold > 0 {
		select {
		case <-time.After(s.opts.Hold):
		case <-ctx.Done():
		}
	}
	s.log.Info().Str("day", string(day)).Msg("batch archive done")
	return day, nil
}

func (s *Services) mirror(ctx context.Context, day domain.Day) {
	if s.opts.Mirror == nil || day == "" {
		return
	}
	data, err := repository.EncodeDaily(s.Store.History())
	if err == nil {
		err = s.opts.Mirror.UploadDaily(ctx, day, data)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("day", string(day)).Msg("archive mirror failed")
	}
}

// Pause runs BatchArchive on the job queue and waits for it. A second pause
// while one is running is rejected with ErrBusy.
func (s *Services) Pause(ctx context.Context) (domain.Day, error) {
	if !s.Gate.Accepting() {
		return "", domain.ErrBusy
	}
	archived := make(chan domain.Day, 1)
	err := s.runner.Submit(ctx, "pause", func(ctx context.Context) error {
		day, err := s.BatchArchive(ctx)
		archived <- day
		return err
	})
	select {
	case day := <-archived:
		return day, err
	default:
		return "", err
	}
}

// CatchUp archives a working set left over from a day before now. The
// scheduler runs it on every hour and the api runs it once at startup, so a
// set restored after downtime is archived before it is served. A working set
// for the current day is left alone.
func (s *Services) CatchUp(ctx context.Context, now time.Time) error {
	day := s.Store.Day()
	if day == "" || day >= domain.DayOf(now) {
		return nil
	}
	s.log.Warn().Str("day", string(day)).Msg("working set is from an earlier day, archiving now")
	_, err := s.BatchArchive(ctx)
	return err
}
