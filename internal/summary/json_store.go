package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// JSONStore keeps summaries as a JSON list of records in one file.
type JSONStore struct {
	logger logger.Logger
	path   string
	resets int
	mu     sync.Mutex
}

// NewJSONStore creates a store backed by path.
func NewJSONStore(path string, log logger.Logger) *JSONStore {
	return &JSONStore{path: path, logger: log}
}

// Name implements Store.
func (s *JSONStore) Name() string { return "json" }

// Path returns the backing file.
func (s *JSONStore) Path() string { return s.path }

// Resets returns how many loads discarded an unreadable file.
func (s *JSONStore) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// List implements Store. A missing file is an empty list. A file that is not
// a JSON list is treated as empty and logged as a store reset.
func (s *JSONStore) List(_ context.Context) ([]models.FileSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert implements Store.
func (s *JSONStore) Upsert(_ context.Context, summary models.FileSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}

	list, replaced := upsert(list, summary)
	if err := storage.WriteJSONAtomic(s.path, list); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}

	s.logger.Debug("Upserted summary", "store", s.Name(), "file", summary.Filename, "replaced", replaced)
	return nil
}

func (s *JSONStore) load() ([]models.FileSummary, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.reset("file is not a JSON list", err)
		return nil, nil
	}
	if raw == nil {
		s.reset("file holds null instead of a list", nil)
		return nil, nil
	}

	list := make([]models.FileSummary, 0, len(raw))
	for i, msg := range raw {
		var fs models.FileSummary
		if err := json.Unmarshal(msg, &fs); err != nil || fs.Filename == "" {
			s.logger.Warn("Dropping invalid summary entry", "event", "record_dropped", "store", s.Name(), "index", i, "error", err)
			continue
		}
		if fs.SchemaVersion > models.SchemaVersion {
			return nil, fmt.Errorf("%s entry %d: unsupported schema version %d", s.path, i, fs.SchemaVersion)
		}
		list, _ = upsert(list, fs)
	}
	return list, nil
}

func (s *JSONStore) reset(reason string, err error) {
	s.resets++
	s.logger.Warn("Discarding unreadable summary store",
		"event", "store_reset",
		"store", s.Name(),
		"path", s.path,
		"reason", reason,
		"error", err)
}
