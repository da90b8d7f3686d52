package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	dayLayout  = "20060102"
	slotLayout = "15:04"
)

// Day is a calendar date in YYYYMMDD form. Lexical order is chronological order.
type Day string

// DayOf returns the calendar day of t in t's location.
func DayOf(t time.Time) Day { return Day(t.Format(dayLayout)) }

// ParseDay accepts YYYYMMDD or YYYY-MM-DD.
func ParseDay(s string) (Day, error) {
	s = strings.TrimSpace(s)
	layout := dayLayout
	if strings.Contains(s, "-") {
		layout = "2006-01-02"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%w: date %q must be YYYYMMDD", ErrMalformedQuery, s)
	}
	return DayOf(t), nil
}

// Time returns midnight of d in loc.
func (d Day) Time(loc *time.Location) time.Time {
	t, _ := time.ParseInLocation(dayLayout, string(d), loc)
	return t
}

func (d Day) String() string { return string(d) }

// Slot is a wall-clock HH:MM position inside a day.
type Slot string

func SlotOf(t time.Time) Slot { return Slot(t.Format(slotLayout)) }

// Point is one reading inside the working set.
type Point struct {
	Slot  Slot    `json:"timestamp" db:"slot"`
	Value float64 `json:"reading" db:"reading"`
}

// TodaySnapshot holds the readings collected so far for the working day,
// ordered by slot per meter.
type TodaySnapshot map[string][]Point

// Clone returns a deep copy.
func (s TodaySnapshot) Clone() TodaySnapshot {
	out := make(TodaySnapshot, len(s))
	for id, pts := range s {
		out[id] = append([]Point(nil), pts...)
	}
	return out
}

// DailyHistory maps meter id to the last archived reading per day.
type DailyHistory map[string]map[Day]float64

// Put upserts a single archived value.
func (h DailyHistory) Put(meterID string, day Day, value float64) {
	days, ok := h[meterID]
	if !ok {
		days = make(map[Day]float64)
		h[meterID] = days
	}
	days[day] = value
}

// Reading is a collected reading as forwarded to sinks.
type Reading struct {
	MeterID   string    `json:"meter_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"reading"`
}
