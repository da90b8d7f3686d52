package database

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS daily_readings (
		day      TEXT NOT NULL,
		meter_id TEXT NOT NULL,
		reading  DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (day, meter_id)
	)`,
	`CREATE TABLE IF NOT EXISTS today_readings (
		day      TEXT NOT NULL,
		slot     TEXT NOT NULL,
		meter_id TEXT NOT NULL,
		reading  DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (day, slot, meter_id)
	)`,
}

// Connect opens the reading database and makes sure both tables exist.
// driver is "pgx" for Postgres or "sqlite" for an embedded file.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one connection keeps ":memory:" databases shared and serialises writers
		db.SetMaxOpenConns(1)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
