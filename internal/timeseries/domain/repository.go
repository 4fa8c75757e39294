package timeseries

import "context"

// DatasetRepository loads and persists the Dataset aggregate.
type DatasetRepository interface {
	Load(ctx context.Context) (*Dataset, error)
	Save(ctx context.Context, ds *Dataset) error
}
