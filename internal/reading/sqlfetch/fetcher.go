// Package sqlfetch reads the latest hive reading from the hive_readings table.
package sqlfetch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-hive/hivewatch/internal/reading"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const latestQuery = `
SELECT lid_open, temperature, humidity, weight, battery, recorded_at
FROM hive_readings
WHERE hive_id = $1
ORDER BY recorded_at DESC
LIMIT 1`

var _ reading.Fetcher = (*Fetcher)(nil)

type Fetcher struct {
	db *sql.DB
}

// Open connects through the pgx database/sql driver.
func Open(cfg *Config) (*Fetcher, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqlfetch: empty dsn")
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlfetch: open: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	return &Fetcher{db: db}, nil
}

func NewFromDB(db *sql.DB) *Fetcher {
	return &Fetcher{db: db}
}

func (f *Fetcher) Latest(ctx context.Context, entityID string) (*reading.Reading, error) {
	if f == nil || f.db == nil {
		return nil, errors.New("sqlfetch: nil db")
	}

	var (
		out         = reading.Reading{EntityID: entityID}
		temperature sql.NullFloat64
		humidity    sql.NullFloat64
		weight      sql.NullFloat64
		battery     sql.NullFloat64
		recordedAt  time.Time
	)
	row := f.db.QueryRowContext(ctx, latestQuery, entityID)
	if err := row.Scan(&out.LidOpen, &temperature, &humidity, &weight, &battery, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlfetch: latest reading for %s: %w", entityID, err)
	}
	out.Temperature = temperature.Float64
	out.Humidity = humidity.Float64
	out.Weight = weight.Float64
	out.Battery = battery.Float64
	out.Timestamp = recordedAt.UTC()
	return &out, nil
}

func (f *Fetcher) Close() error {
	return f.db.Close()
}
