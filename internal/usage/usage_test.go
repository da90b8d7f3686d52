package usage_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/repository"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/store"
	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/usage"
)

// fakeReader serves fixed points and archived values.
type fakeReader struct {
	points []domain.Point
	daily  map[domain.Day]float64
}

func (f fakeReader) Latest(string) (domain.Point, error) {
	if len(f.points) == 0 {
		return domain.Point{}, domain.ErrNoData
	}
	return f.points[len(f.points)-1], nil
}

func (f fakeReader) Points(string) []domain.Point { return f.points }

func (f fakeReader) Snapshot(_ string, d domain.Day) (float64, error) {
	v, ok := f.daily[d]
	if !ok {
		return 0, domain.ErrNoData
	}
	return v, nil
}

func wednesday() time.Time { return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) }

func TestReferenceDays(t *testing.T) {
	cases := []struct {
		now                                  time.Time
		yesterday, sunday, prevEnd, beforeEnd domain.Day
	}{
		{wednesday(), "20250311", "20250309", "20250228", "20250131"},
		{time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), "20250309", "20250309", "20250228", "20250131"},
		{time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC), "20250308", "20250302", "20250228", "20250131"},
		{time.Date(2025, 1, 1, 0, 30, 0, 0, time.UTC), "20241231", "20241229", "20241231", "20241130"},
		{time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC), "20240330", "20240324", "20240229", "20240131"},
	}
	for _, tc := range cases {
		if got := usage.Yesterday(tc.now); got != tc.yesterday {
			t.Errorf("Yesterday(%s) = %s, want %s", tc.now, got, tc.yesterday)
		}
		if got := usage.LastSunday(tc.now); got != tc.sunday {
			t.Errorf("LastSunday(%s) = %s, want %s", tc.now, got, tc.sunday)
		}
		if got := usage.PrevMonthEnd(tc.now); got != tc.prevEnd {
			t.Errorf("PrevMonthEnd(%s) = %s, want %s", tc.now, got, tc.prevEnd)
		}
		if got := usage.MonthBeforeEnd(tc.now); got != tc.beforeEnd {
			t.Errorf("MonthBeforeEnd(%s) = %s, want %s", tc.now, got, tc.beforeEnd)
		}
	}
}

func TestScenarioTodayOnlyWithYesterdayArchived(t *testing.T) {
	ctx := context.Background()
	s := store.New(repository.NewCSV(afero.NewMemMapFs(), "/data"), zerolog.Nop()).WithClock(wednesday)
	if err := s.Record("100000001", time.Date(2025, 3, 11, 23, 30, 0, 0, time.UTC), 10.0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ArchiveAndClear(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Record("100000001", time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC), 15.0); err != nil {
		t.Fatal(err)
	}

	calc := usage.NewCalculator(s, usage.DefaultPrecision).WithClock(wednesday)
	u, err := calc.Usage("100000001")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if !u.Today.Available || u.Today.Value != 5.0 {
		t.Errorf("today = %+v, want 5.0", u.Today)
	}
	if u.Week.Available {
		t.Errorf("week should be unavailable, got %+v", u.Week)
	}
	if u.Month.Available {
		t.Errorf("month should be unavailable, got %+v", u.Month)
	}
	if u.LastMonth.Available {
		t.Errorf("last month should be unavailable, got %+v", u.LastMonth)
	}
	if u.RecentHalfHour.Available {
		t.Errorf("recent half hour needs two points, got %+v", u.RecentHalfHour)
	}
}

func TestSmallDeltaIsRounded(t *testing.T) {
	r := fakeReader{points: []domain.Point{{Slot: "10:00", Value: 12.000000}, {Slot: "10:30", Value: 12.000010}}}
	u, err := usage.NewCalculator(r, usage.DefaultPrecision).WithClock(wednesday).Usage("m")
	if err != nil {
		t.Fatal(err)
	}
	if !u.RecentHalfHour.Available || u.RecentHalfHour.Value != 0.00001 {
		t.Fatalf("recent = %+v, want 0.00001", u.RecentHalfHour)
	}
}

func TestNegativeDeltasClampToZero(t *testing.T) {
	r := fakeReader{
		points: []domain.Point{{Slot: "09:00", Value: 3}, {Slot: "09:30", Value: 1}},
		daily:  map[domain.Day]float64{"20250311": 50, "20250309": 2},
	}
	u, err := usage.NewCalculator(r, usage.DefaultPrecision).WithClock(wednesday).Usage("m")
	if err != nil {
		t.Fatal(err)
	}
	if u.RecentHalfHour != usage.Of(0) {
		t.Errorf("recent = %+v, want 0", u.RecentHalfHour)
	}
	if u.Today != usage.Of(0) {
		t.Errorf("today = %+v, want 0", u.Today)
	}
	if u.Week != usage.Of(0) {
		t.Errorf("week = %+v, want 0 (1 - 2 clamped)", u.Week)
	}
}

func TestAllMetrics(t *testing.T) {
	r := fakeReader{
		points: []domain.Point{{Slot: "09:30", Value: 119.5}, {Slot: "10:00", Value: 120}},
		daily: map[domain.Day]float64{
			"20250311": 118,
			"20250309": 110,
			"20250228": 90,
			"20250131": 60.25,
		},
	}
	u, err := usage.NewCalculator(r, usage.DefaultPrecision).WithClock(wednesday).Usage("m")
	if err != nil {
		t.Fatal(err)
	}
	want := usage.Usage{
		MeterID:        "m",
		RecentHalfHour: usage.Of(0.5),
		Today:          usage.Of(2),
		Week:           usage.Of(10),
		Month:          usage.Of(30),
		LastMonth:      usage.Of(29.75),
	}
	if u != want {
		t.Fatalf("usage = %+v\nwant %+v", u, want)
	}
}

func TestUsageWithoutReadings(t *testing.T) {
	_, err := usage.NewCalculator(fakeReader{}, usage.DefaultPrecision).Usage("m")
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}
}

func TestMetricJSON(t *testing.T) {
	u := usage.Usage{MeterID: "m", Today: usage.Of(5), Week: usage.Of(0.00001)}
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"meter_id":"m","recent_half_hour_usage":null,"today_usage":5,"week_usage":0.00001,"month_usage":null,"last_month_usage":null}`
	if string(out) != want {
		t.Fatalf("json = %s\nwant %s", out, want)
	}
}

func TestRound(t *testing.T) {
	if got := usage.Round(1.123456789, 8); got != 1.12345679 {
		t.Errorf("Round = %v", got)
	}
	if got := usage.Round(2.5, 0); got != 3 {
		t.Errorf("Round(2.5, 0) = %v", got)
	}
}

func TestOversizedPrecisionIsCapped(t *testing.T) {
	r := fakeReader{points: []domain.Point{{Slot: "10:00", Value: 12.25}, {Slot: "10:30", Value: 12.75}}}
	u, err := usage.NewCalculator(r, 400).WithClock(wednesday).Usage("m")
	if err != nil {
		t.Fatal(err)
	}
	if !u.RecentHalfHour.Available || u.RecentHalfHour.Value != 0.5 {
		t.Fatalf("recent = %+v, want 0.5", u.RecentHalfHour)
	}
	raw, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("body %s: %v", raw, err)
	}
}
