package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	timeseries "building-energy/internal/timeseries/domain"
)

const (
	processedDir = "processed"
	rejectedDir  = "rejected"
)

// Inbox drains normalized batch files (*.json, the persisted dataset shape) from a
// directory. Files are read in name order so later files override earlier ones.
// Drained files are moved to processed/ on Commit; unreadable or invalid files are
// moved to rejected/ immediately.
type Inbox struct {
	dir    string
	logger *log.Logger

	mu      sync.Mutex
	pending []string
}

// New constructs an inbox over dir, creating it when missing.
func New(dir string, logger *log.Logger) (*Inbox, error) {
	if dir == "" {
		return nil, errors.New("inbox: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Inbox{dir: dir, logger: logger}, nil
}

// Name identifies the feed in logs and metrics.
func (i *Inbox) Name() string { return "inbox" }

// Dir returns the watched directory.
func (i *Inbox) Dir() string { return i.dir }

// Drain decodes every pending file.
func (i *Inbox) Drain(ctx context.Context) ([]timeseries.Batch, error) {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	i.mu.Lock()
	defer i.mu.Unlock()
	var batches []timeseries.Batch
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return batches, err
		}
		batch, err := Decode(filepath.Join(i.dir, name))
		if err != nil {
			i.logger.Printf("inbox reject: file=%s err=%v", name, err)
			if moveErr := i.move(name, rejectedDir); moveErr != nil {
				return batches, moveErr
			}
			continue
		}
		batches = append(batches, batch)
		i.pending = append(i.pending, name)
	}
	return batches, nil
}

// Commit moves drained files to processed/.
func (i *Inbox) Commit(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for len(i.pending) > 0 {
		if err := i.move(i.pending[0], processedDir); err != nil {
			return err
		}
		i.pending = i.pending[1:]
	}
	return nil
}

func (i *Inbox) move(name, sub string) error {
	target := filepath.Join(i.dir, sub)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}
	return os.Rename(filepath.Join(i.dir, name), filepath.Join(target, name))
}

// Decode reads one batch file and validates it against an empty dataset.
func Decode(path string) (timeseries.Batch, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return timeseries.Batch{}, err
	}
	return Parse(raw)
}

// Parse decodes and validates a batch document.
func Parse(raw []byte) (timeseries.Batch, error) {
	var batch timeseries.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return timeseries.Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	if err := timeseries.NewDataset().Apply(batch); err != nil {
		return timeseries.Batch{}, err
	}
	return batch, nil
}
