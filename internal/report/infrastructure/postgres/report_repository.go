package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	report "building-energy/internal/report/application"
)

const defaultReportsTable = "energy_reports"

// ReportRepository keeps every generated report as a JSONB row.
type ReportRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures ReportRepository.
type RepositoryOption func(*ReportRepository)

// WithTable overrides the table name.
func WithTable(table string) RepositoryOption {
	return func(r *ReportRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewReportRepository constructs a repository.
func NewReportRepository(db *sql.DB, opts ...RepositoryOption) (*ReportRepository, error) {
	if db == nil {
		return nil, errors.New("report repo: nil db")
	}
	repo := &ReportRepository{db: db, table: defaultReportsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// Save inserts a report row. runID may be empty.
func (r *ReportRepository) Save(ctx context.Context, runID string, rep *report.Report) error {
	if r == nil || r.db == nil {
		return errors.New("report repo: nil db")
	}
	if rep == nil {
		return errors.New("report repo: nil report")
	}
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("report repo: encode: %w", err)
	}
	var run any
	if runID != "" {
		parsed, err := uuid.Parse(runID)
		if err != nil {
			return fmt.Errorf("report repo: run id: %w", err)
		}
		run = parsed
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, run_id, generated_at, body, created_at)
VALUES ($1, $2, $3, $4, $5)`, r.table)
	_, err = r.db.ExecContext(ctx, query, uuid.New(), run, rep.GeneratedAt.UTC(), body, time.Now().UTC())
	return err
}

// Latest returns the most recently generated report.
func (r *ReportRepository) Latest(ctx context.Context) (*report.Report, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("report repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT body
FROM %s
ORDER BY generated_at DESC, created_at DESC
LIMIT 1`, r.table)
	var body []byte
	if err := r.db.QueryRowContext(ctx, query).Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, report.ErrNoReport
		}
		return nil, err
	}
	var out report.Report
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("report repo: decode: %w", err)
	}
	return &out, nil
}

// Prune deletes reports generated before cutoff and returns the number removed.
func (r *ReportRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("report repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE generated_at < $1`, r.table), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
