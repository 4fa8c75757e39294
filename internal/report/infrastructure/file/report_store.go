package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	report "building-energy/internal/report/application"
	datasetfile "building-energy/internal/timeseries/infrastructure/file"
)

// ReportStore writes the latest report to a JSON file read by the dashboard.
type ReportStore struct {
	path string
}

// NewReportStore constructs a store for path.
func NewReportStore(path string) (*ReportStore, error) {
	if path == "" {
		return nil, errors.New("report store: empty path")
	}
	return &ReportStore{path: path}, nil
}

// Save replaces the report file.
func (s *ReportStore) Save(ctx context.Context, runID string, r *report.Report) error {
	if r == nil {
		return errors.New("report store: nil report")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return datasetfile.WriteAtomic(s.path, data)
}

// Latest reads the report file.
func (s *ReportStore) Latest(ctx context.Context) (*report.Report, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, report.ErrNoReport
	}
	if err != nil {
		return nil, err
	}
	var out report.Report
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", s.path, err)
	}
	return &out, nil
}
