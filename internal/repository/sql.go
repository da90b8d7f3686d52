package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ANIKETSHETTY47/smart-meter-usage-service/internal/domain"
)

// SQL keeps both tables in a relational database through sqlx.
type SQL struct {
	db *sqlx.DB
}

func NewSQL(db *sqlx.DB) *SQL { return &SQL{db: db} }

type dailyRow struct {
	Day     string  `db:"day"`
	MeterID string  `db:"meter_id"`
	Reading float64 `db:"reading"`
}

type todayRow struct {
	Day     string  `db:"day"`
	Slot    string  `db:"slot"`
	MeterID string  `db:"meter_id"`
	Reading float64 `db:"reading"`
}

func (r *SQL) LoadDaily(ctx context.Context) (domain.DailyHistory, error) {
	var rows []dailyRow
	err := r.db.SelectContext(ctx, &rows, `SELECT day, meter_id, reading FROM daily_readings ORDER BY day, meter_id`)
	if err != nil {
		return nil, fmt.Errorf("load daily history: %w", err)
	}
	history := domain.DailyHistory{}
	for _, row := range rows {
		history.Put(row.MeterID, domain.Day(row.Day), row.Reading)
	}
	return history, nil
}

func (r *SQL) SaveDaily(ctx context.Context, day domain.Day, readings map[string]float64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upsert := tx.Rebind(`INSERT INTO daily_readings (day, meter_id, reading) VALUES (?, ?, ?)
		ON CONFLICT (day, meter_id) DO UPDATE SET reading = excluded.reading`)
	for id, v := range readings {
		if _, err := tx.ExecContext(ctx, upsert, string(day), id, v); err != nil {
			return fmt.Errorf("upsert daily reading %s/%s: %w", day, id, err)
		}
	}
	return tx.Commit()
}

func (r *SQL) LoadToday(ctx context.Context) (domain.Day, domain.TodaySnapshot, error) {
	var rows []todayRow
	err := r.db.SelectContext(ctx, &rows, `SELECT day, slot, meter_id, reading FROM today_readings ORDER BY day, slot`)
	if err != nil {
		return "", nil, fmt.Errorf("load working set: %w", err)
	}
	snap := domain.TodaySnapshot{}
	var day domain.Day
	for _, row := range rows {
		d := domain.Day(row.Day)
		if day == "" {
			day = d
		} else if d != day {
			return "", nil, fmt.Errorf("working set spans days %s and %s", day, d)
		}
		snap[row.MeterID] = append(snap[row.MeterID], domain.Point{Slot: domain.Slot(row.Slot), Value: row.Reading})
	}
	return day, snap, nil
}

func (r *SQL) SaveToday(ctx context.Context, day domain.Day, snap domain.TodaySnapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM today_readings`); err != nil {
		return fmt.Errorf("clear working set: %w", err)
	}
	insert := tx.Rebind(`INSERT INTO today_readings (day, slot, meter_id, reading) VALUES (?, ?, ?, ?)`)
	for id, pts := range snap {
		for _, p := range pts {
			if _, err := tx.ExecContext(ctx, insert, string(day), string(p.Slot), id, p.Value); err != nil {
				return fmt.Errorf("insert working set %s %s: %w", id, p.Slot, err)
			}
		}
	}
	return tx.Commit()
}
