// Package sqlite keeps the dataset in a local SQLite file for single-host installs.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"building-energy/internal/analytics/domain/statistic"
	timeseries "building-energy/internal/timeseries/domain"
	"github.com/NotCoffee418/dbmigrator"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// DatasetRepository is the SQLite counterpart of the Postgres repository.
type DatasetRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path string) (*DatasetRepository, error) {
	if path == "" {
		return nil, errors.New("sqlite dataset repo: empty path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	dbmigrator.SetDatabaseType(dbmigrator.SQLite)
	<-dbmigrator.MigrateUpCh(db, migrationFS, "migrations")

	return &DatasetRepository{db: db}, nil
}

// DB exposes the handle for health checks.
func (r *DatasetRepository) DB() *sql.DB { return r.db }

// Close closes the database.
func (r *DatasetRepository) Close() error { return r.db.Close() }

// Load reads every stored record.
func (r *DatasetRepository) Load(ctx context.Context) (*timeseries.Dataset, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT series, meter, day, hour, value, verified
FROM energy_values
ORDER BY series, meter, day, hour`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := timeseries.NewDataset()
	for rows.Next() {
		var (
			row      timeseries.Row
			series   string
			day      string
			verified sql.NullBool
		)
		if err := rows.Scan(&series, &row.Meter, &day, &row.Hour, &row.Value, &verified); err != nil {
			return nil, err
		}
		row.Series = timeseries.Series(series)
		row.Date, err = timeseries.ParseDate(day)
		if err != nil {
			return nil, err
		}
		if verified.Valid {
			row.Verified = timeseries.Verified(verified.Bool)
		}
		if err := ds.AppendRow(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	ds.Normalize()
	return ds, nil
}

// Save replaces the changed days in one transaction.
func (r *DatasetRepository) Save(ctx context.Context, ds *timeseries.Dataset) error {
	if ds == nil {
		return errors.New("sqlite dataset repo: nil dataset")
	}
	changes := ds.Changes()
	if len(changes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, change := range changes {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM energy_values WHERE series = ? AND meter = ? AND day = ?`,
			string(change.Series), change.Meter, change.Date.String(),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, row := range ds.Rows(change) {
			var verified sql.NullBool
			if row.Verified != nil {
				verified = sql.NullBool{Bool: *row.Verified, Valid: true}
			}
			timeKey := statistic.HourKey(timeseries.DateHour{Date: row.Date, Hour: row.Hour})
			if row.Series == timeseries.SeriesDailyTemperature {
				timeKey = statistic.DayKey(row.Date)
			}
			if _, err := tx.ExecContext(ctx, `
INSERT INTO energy_values (series, meter, day, hour, time_key, value, verified, updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
				string(row.Series), row.Meter, row.Date.String(), row.Hour, timeKey.String(), row.Value, verified, now,
			); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	ds.ClearChanges()
	return nil
}
