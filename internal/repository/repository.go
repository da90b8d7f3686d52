package repository

import (
	"context"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

// Repository persists the two reading tables: daily history (date x meter)
// and the working set (timestamp x meter).
type Repository interface {
	LoadDaily(ctx context.Context) (domain.DailyHistory, error)
	// SaveDaily upserts one reading per meter under day.
	SaveDaily(ctx context.Context, day domain.Day, readings map[string]float64) error
	LoadToday(ctx context.Context) (domain.Day, domain.TodaySnapshot, error)
	// SaveToday replaces the stored working set. An empty snapshot clears it.
	SaveToday(ctx context.Context, day domain.Day, snap domain.TodaySnapshot) error
}
