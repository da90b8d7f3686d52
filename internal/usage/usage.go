// Package usage derives consumption figures by differencing cumulative
// readings against archived reference days.
package usage

import (
	"math"
	"strconv"
	"time"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

const (
	DefaultPrecision = 8
	// MaxPrecision is the most decimals a float64 reading can carry.
	MaxPrecision = 15
)

// Reader is the read side of the reading store.
type Reader interface {
	Latest(meterID string) (domain.Point, error)
	Points(meterID string) []domain.Point
	Snapshot(meterID string, day domain.Day) (float64, error)
}

// Metric is a usage figure that may be missing a reference reading.
// An unavailable metric encodes as JSON null.
type Metric struct {
	Value     float64
	Available bool
}

func Of(v float64) Metric { return Metric{Value: v, Available: true} }

func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Available {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, m.Value, 'f', -1, 64), nil
}

type Usage struct {
	MeterID        string `json:"meter_id"`
	RecentHalfHour Metric `json:"recent_half_hour_usage"`
	Today          Metric `json:"today_usage"`
	Week           Metric `json:"week_usage"`
	Month          Metric `json:"month_usage"`
	LastMonth      Metric `json:"last_month_usage"`
}

type Calculator struct {
	store     Reader
	precision int
	now       func() time.Time
}

// NewCalculator rounds results to precision decimals. A negative precision
// means DefaultPrecision; anything above MaxPrecision is capped.
func NewCalculator(store Reader, precision int) *Calculator {
	switch {
	case precision < 0:
		precision = DefaultPrecision
	case precision > MaxPrecision:
		precision = MaxPrecision
	}
	return &Calculator{store: store, precision: precision, now: time.Now}
}

// WithClock replaces the calculator's time source.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// Usage computes all five metrics for meterID. A meter without any reading
// today yields ErrNoData; missing references only mark single metrics
// unavailable.
func (c *Calculator) Usage(meterID string) (Usage, error) {
	latest, err := c.store.Latest(meterID)
	if err != nil {
		return Usage{}, err
	}
	now := c.now()
	cur := latest.Value

	u := Usage{MeterID: meterID}
	u.RecentHalfHour = c.recent(meterID)
	u.Today = c.since(meterID, cur, Yesterday(now))
	u.Week = c.since(meterID, cur, LastSunday(now))
	u.Month = c.since(meterID, cur, PrevMonthEnd(now))

	end, errEnd := c.store.Snapshot(meterID, PrevMonthEnd(now))
	start, errStart := c.store.Snapshot(meterID, MonthBeforeEnd(now))
	if errEnd == nil && errStart == nil {
		u.LastMonth = Of(c.delta(end, start))
	}
	return u, nil
}

func (c *Calculator) recent(meterID string) Metric {
	pts := c.store.Points(meterID)
	if len(pts) < 2 {
		return Metric{}
	}
	return Of(c.delta(pts[len(pts)-1].Value, pts[len(pts)-2].Value))
}

func (c *Calculator) since(meterID string, cur float64, day domain.Day) Metric {
	ref, err := c.store.Snapshot(meterID, day)
	if err != nil {
		return Metric{}
	}
	return Of(c.delta(cur, ref))
}

// delta clamps at zero so a meter reset never reports negative usage.
func (c *Calculator) delta(cur, ref float64) float64 {
	return Round(math.Max(0, cur-ref), c.precision)
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Yesterday is the reference day for today's usage.
func Yesterday(now time.Time) domain.Day {
	return domain.DayOf(now.AddDate(0, 0, -1))
}

// LastSunday is the most recent Sunday strictly before now's day.
func LastSunday(now time.Time) domain.Day {
	back := (int(now.Weekday())+6)%7 + 1
	return domain.DayOf(now.AddDate(0, 0, -back))
}

// PrevMonthEnd is the last day of the month before now's month.
func PrevMonthEnd(now time.Time) domain.Day {
	first := time.Date(now.Year(), now.Month(), 1, 12, 0, 0, 0, now.Location())
	return domain.DayOf(first.AddDate(0, 0, -1))
}

// MonthBeforeEnd is the last day of the month two months before now's month.
func MonthBeforeEnd(now time.Time) domain.Day {
	first := time.Date(now.Year(), now.Month()-1, 1, 12, 0, 0, 0, now.Location())
	return domain.DayOf(first.AddDate(0, 0, -1))
}
