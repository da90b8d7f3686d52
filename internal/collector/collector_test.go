package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/collector"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/repository"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/store"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/upstream"
)

type fakeSource map[string]float64

func (f fakeSource) Reading(_ context.Context, id string) (float64, error) {
	v, ok := f[id]
	if !ok {
		return 0, domain.ErrUpstreamUnavailable
	}
	return v, nil
}

type capture struct {
	mu  sync.Mutex
	got []domain.Reading
}

func (c *capture) Publish(_ context.Context, r domain.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, r)
	return nil
}

type failingRegistry struct{}

func (failingRegistry) MeterIDs(context.Context) ([]string, error) {
	return nil, domain.ErrUpstreamUnavailable
}

func TestSweepRecordsAndSkipsFailures(t *testing.T) {
	fs := afero.NewMemMapFs()
	repo := repository.NewCSV(fs, "/data")
	at := time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)
	s := store.New(repo, zerolog.Nop()).WithClock(func() time.Time { return at })
	src := fakeSource{"100000001": 12.5, "100000003": 7}
	reg := upstream.StaticRegistry{"100000001", "100000002", "100000003"}

	c := collector.New(reg, src, s, 2, zerolog.Nop())
	sink := &capture{}
	c.AddSink(sink)

	res, err := c.Sweep(context.Background(), at)
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("want joined ErrUpstreamUnavailable, got %v", err)
	}
	if res.Recorded != 2 || res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}

	p, err := s.Latest("100000001")
	if err != nil || p.Value != 12.5 || p.Slot != "10:30" {
		t.Fatalf("latest = %+v, %v", p, err)
	}
	if _, err := s.Latest("100000002"); !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("failed meter should have no data, got %v", err)
	}

	// the sweep checkpoints the working set
	day, snap, err := repo.LoadToday(context.Background())
	if err != nil || day != "20250312" || len(snap) != 2 {
		t.Fatalf("checkpoint = %q %v %v", day, snap, err)
	}

	if len(sink.got) != 2 {
		t.Fatalf("sink got %+v", sink.got)
	}
	for _, r := range sink.got {
		if !r.Timestamp.Equal(at) {
			t.Errorf("published timestamp %s, want %s", r.Timestamp, at)
		}
	}
}

func TestSweepRegistryDown(t *testing.T) {
	s := store.New(repository.NewCSV(afero.NewMemMapFs(), "/data"), zerolog.Nop())
	c := collector.New(failingRegistry{}, fakeSource{}, s, 4, zerolog.Nop())
	res, err := c.Sweep(context.Background(), time.Now())
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("want ErrUpstreamUnavailable, got %v", err)
	}
	if res.Recorded != 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSweepReportsRejectedReadings(t *testing.T) {
	s := store.New(repository.NewCSV(afero.NewMemMapFs(), "/data"), zerolog.Nop())
	c := collector.New(upstream.StaticRegistry{"m"}, fakeSource{"m": 1}, s, 1, zerolog.Nop())
	at := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	if _, err := c.Sweep(context.Background(), at); err != nil {
		t.Fatal(err)
	}
	// same slot again
	res, err := c.Sweep(context.Background(), at)
	if !errors.Is(err, domain.ErrOutOfOrder) {
		t.Fatalf("want ErrOutOfOrder, got %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("result = %+v", res)
	}
}
