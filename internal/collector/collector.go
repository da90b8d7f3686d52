// Package collector polls the reading source on a fixed schedule and feeds
// the reading store.
package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/upstream"
)

type Source interface {
	Reading(ctx context.Context, meterID string) (float64, error)
}

type Recorder interface {
	Record(meterID string, at time.Time, value float64) error
	Checkpoint(ctx context.Context) error
}

// Publisher receives every reading the store accepted.
type Publisher interface {
	Publish(ctx context.Context, r domain.Reading) error
}

type Collector struct {
	registry upstream.Registry
	source   Source
	store    Recorder
	sinks    []Publisher
	limit    int
	log      zerolog.Logger
}

func New(registry upstream.Registry, source Source, store Recorder, concurrency int, log zerolog.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		registry: registry,
		source:   source,
		store:    store,
		limit:    concurrency,
		log:      log.With().Str("component", "collector").Logger(),
	}
}

// AddSink registers a publisher for accepted readings.
func (c *Collector) AddSink(p Publisher) { c.sinks = append(c.sinks, p) }

// Result summarises one sweep.
type Result struct {
	Recorded int
	Failed   int
}

// Sweep reads every registered meter once and records the values at slot at.
// Meters that fail are skipped; their errors are joined into the returned
// error while the rest of the sweep still lands in the store.
func (c *Collector) Sweep(ctx context.Context, at time.Time) (Result, error) {
	ids, err := c.registry.MeterIDs(ctx)
	if err != nil {
		return Result{}, err
	}

	values := make([]float64, len(ids))
	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, id := range ids {
		g.Go(func() error {
			values[i], errs[i] = c.source.Reading(ctx, id)
			return nil
		})
	}
	g.Wait()

	var (
		res      Result
		failures []error
		accepted []domain.Reading
	)
	for i, id := range ids {
		if errs[i] == nil {
			errs[i] = c.store.Record(id, at, values[i])
		}
		if errs[i] != nil {
			res.Failed++
			failures = append(failures, errs[i])
			c.log.Warn().Err(errs[i]).Str("meter_id", id).Msg("reading skipped")
			continue
		}
		res.Recorded++
		accepted = append(accepted, domain.Reading{MeterID: id, Timestamp: at, Value: values[i]})
	}

	if res.Recorded > 0 {
		if err := c.store.Checkpoint(ctx); err != nil {
			failures = append(failures, err)
			c.log.Error().Err(err).Msg("checkpoint failed")
		}
	}
	c.publish(ctx, accepted)

	c.log.Info().Time("slot", at).Int("recorded", res.Recorded).Int("failed", res.Failed).Msg("sweep done")
	if len(failures) > 0 {
		return res, fmt.Errorf("sweep %s: %w", at.Format(time.RFC3339), errors.Join(failures...))
	}
	return res, nil
}

func (c *Collector) publish(ctx context.Context, readings []domain.Reading) {
	for _, s := range c.sinks {
		for _, r := range readings {
			if err := s.Publish(ctx, r); err != nil {
				c.log.Warn().Err(err).Str("meter_id", r.MeterID).Msg("sink publish failed")
				break
			}
		}
	}
}
