package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	timeseries "building-energy/internal/timeseries/domain"
)

// DatasetStore persists the dataset as one JSON document.
type DatasetStore struct {
	path string
}

// NewDatasetStore constructs a store for path.
func NewDatasetStore(path string) (*DatasetStore, error) {
	if path == "" {
		return nil, errors.New("dataset store: empty path")
	}
	return &DatasetStore{path: path}, nil
}

// Path returns the file location.
func (s *DatasetStore) Path() string { return s.path }

// Load reads the dataset; a missing file is an empty dataset.
func (s *DatasetStore) Load(ctx context.Context) (*timeseries.Dataset, error) {
	_ = ctx
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return timeseries.NewDataset(), nil
	}
	if err != nil {
		return nil, err
	}
	ds := timeseries.NewDataset()
	if err := json.Unmarshal(raw, ds); err != nil {
		return nil, fmt.Errorf("dataset store: decode %s: %w", s.path, err)
	}
	return ds, nil
}

// Save rewrites the whole document atomically.
func (s *DatasetStore) Save(ctx context.Context, ds *timeseries.Dataset) error {
	_ = ctx
	if ds == nil {
		return errors.New("dataset store: nil dataset")
	}
	raw, err := json.Marshal(ds)
	if err != nil {
		return err
	}
	if err := WriteAtomic(s.path, raw); err != nil {
		return err
	}
	ds.ClearChanges()
	return nil
}

// WriteAtomic writes data to a temp file next to path and renames it into place.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
