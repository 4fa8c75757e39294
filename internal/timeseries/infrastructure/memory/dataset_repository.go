package memory

import (
	"context"
	"sync"

	timeseries "building-energy/internal/timeseries/domain"
)

// DatasetRepository keeps the dataset in memory for demos and tests.
type DatasetRepository struct {
	mu    sync.RWMutex
	data  *timeseries.Dataset
	saves int
}

// NewDatasetRepository constructs a repository, optionally seeded.
func NewDatasetRepository(seed *timeseries.Dataset) *DatasetRepository {
	repo := &DatasetRepository{data: timeseries.NewDataset()}
	if seed != nil {
		repo.data = seed.Clone()
	}
	return repo
}

// Load returns a copy of the stored dataset.
func (r *DatasetRepository) Load(ctx context.Context) (*timeseries.Dataset, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Clone(), nil
}

// Save replaces the stored dataset with a copy of ds.
func (r *DatasetRepository) Save(ctx context.Context, ds *timeseries.Dataset) error {
	_ = ctx
	if ds == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = ds.Clone()
	r.saves++
	ds.ClearChanges()
	return nil
}

// Saves returns how many times Save was called.
func (r *DatasetRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
