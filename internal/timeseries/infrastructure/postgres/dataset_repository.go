package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"building-energy/internal/analytics/domain/statistic"
	timeseries "building-energy/internal/timeseries/domain"
)

const defaultValuesTable = "energy_values"

// DatasetRepository stores the dataset as one row per record and rewrites only the
// days the dataset marked as changed.
type DatasetRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*DatasetRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *DatasetRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewDatasetRepository creates a repository using the default table name.
func NewDatasetRepository(db *sql.DB, opts ...RepositoryOption) *DatasetRepository {
	repo := &DatasetRepository{db: db, table: defaultValuesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Load reads every stored record.
func (r *DatasetRepository) Load(ctx context.Context) (*timeseries.Dataset, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("dataset repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT series, meter, day, hour, value, verified
FROM %s
ORDER BY series, meter, day, hour`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := timeseries.NewDataset()
	for rows.Next() {
		var (
			row      timeseries.Row
			series   string
			day      time.Time
			verified sql.NullBool
		)
		if err := rows.Scan(&series, &row.Meter, &day, &row.Hour, &row.Value, &verified); err != nil {
			return nil, err
		}
		row.Series = timeseries.Series(series)
		row.Date = timeseries.DateOf(day.UTC())
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
	if r == nil || r.db == nil {
		return errors.New("dataset repo: nil db")
	}
	if ds == nil {
		return errors.New("dataset repo: nil dataset")
	}
	changes := ds.Changes()
	if len(changes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE series = $1 AND meter = $2 AND day = $3`, r.table)
	insertQuery := fmt.Sprintf(`
INSERT INTO %s (series, meter, day, hour, time_key, value, verified, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, r.table)
	now := time.Now().UTC()

	for _, change := range changes {
		day := change.Date.Time(time.UTC)
		if _, err := tx.ExecContext(ctx, deleteQuery, string(change.Series), change.Meter, day); err != nil {
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
			if _, err := tx.ExecContext(ctx, insertQuery,
				string(row.Series), row.Meter, day, row.Hour, timeKey.String(), row.Value, verified, now,
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
