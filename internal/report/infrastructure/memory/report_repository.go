package memory

import (
	"context"
	"sync"

	report "building-energy/internal/report/application"
)

// ReportRepository keeps the latest report in memory.
type ReportRepository struct {
	mu     sync.RWMutex
	latest *report.Report
	runID  string
}

// NewReportRepository constructs an empty repository.
func NewReportRepository() *ReportRepository {
	return &ReportRepository{}
}

// Save stores r as the latest report.
func (r *ReportRepository) Save(ctx context.Context, runID string, rep *report.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = rep
	r.runID = runID
	return nil
}

// Latest returns the latest report.
func (r *ReportRepository) Latest(ctx context.Context) (*report.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return nil, report.ErrNoReport
	}
	return r.latest, nil
}

// RunID returns the run that produced the latest report.
func (r *ReportRepository) RunID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runID
}
