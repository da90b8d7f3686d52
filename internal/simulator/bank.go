// Package simulator is a stand-in for real smart meters: a bank of
// cumulative counters that grow by a small random amount every step.
package simulator

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"
)

const (
	minStep   = 0.1 / 1e6
	maxStep   = 1.0 / 1e6
	precision = 1e8
)

type Bank struct {
	mu     sync.Mutex
	totals map[string]float64
	rng    *rand.Rand
}

// NewBank starts every id in ids at zero.
func NewBank(ids []string, rng *rand.Rand) *Bank {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	b := &Bank{totals: make(map[string]float64, len(ids)), rng: rng}
	for _, id := range ids {
		b.totals[id] = 0
	}
	return b
}

// Step advances every meter once.
func (b *Bank) Step() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, v := range b.totals {
		inc := minStep + b.rng.Float64()*(maxStep-minStep)
		b.totals[id] = round(v + round(inc))
	}
}

// Reading returns the counter of id. An unknown meter is added at zero.
func (b *Bank) Reading(id string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.totals[id]
	if !ok {
		b.totals[id] = 0
	}
	return v
}

// Meters lists the known meter ids in order.
func (b *Bank) Meters() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.totals))
	for id := range b.totals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run steps the bank every interval until ctx is done.
func (b *Bank) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.Step()
		}
	}
}

func round(v float64) float64 { return math.Round(v*precision) / precision }
