package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// SuggestionCache is a key→record store persisted as one JSON file.
// It keeps a secondary check ID→key index so refresh-by-ID is O(1).
type SuggestionCache struct {
	logger  logger.Logger
	records map[string]*models.CacheRecord
	byID    map[models.CheckID]string
	path    string
	stats   Stats
	mu      sync.RWMutex
}

// fileEnvelope is the on-disk layout.
type fileEnvelope struct {
	Records       map[string]models.CacheRecord `json:"records"`
	SchemaVersion int                           `json:"schema_version"`
}

// New creates an empty cache that will be saved to path.
func New(path string, log logger.Logger) *SuggestionCache {
	return &SuggestionCache{
		logger:  log,
		path:    path,
		records: make(map[string]*models.CacheRecord),
		byID:    make(map[models.CheckID]string),
	}
}

// Load reads the cache stored at path. A missing file yields an empty cache.
// A file that is not a JSON object is discarded with a store_reset warning
// instead of failing, so a damaged cache never blocks a batch.
func Load(path string, log logger.Logger) (*SuggestionCache, error) {
	c := New(path, log)

	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug("No cache file found, starting empty", "path", path)
			return c, nil
		}
		return nil, &Error{Op: "load", Key: path, Err: err}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		c.reset("cache file is not a JSON object", err)
		return c, nil
	}

	raw := top
	if isEnvelope(top) {
		var version int
		if err := json.Unmarshal(top["schema_version"], &version); err != nil {
			c.reset("schema_version is not a number", err)
			return c, nil
		}
		if version > models.SchemaVersion {
			return nil, &Error{Op: "load", Key: path, Err: fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)}
		}
		raw = nil
		if err := json.Unmarshal(top["records"], &raw); err != nil || raw == nil {
			c.reset("records is not a JSON object", err)
			return c, nil
		}
	}

	c.loadRecords(raw)
	c.logger.Debug("Loaded suggestion cache", "path", path, "records", len(c.records))
	return c, nil
}

func isEnvelope(top map[string]json.RawMessage) bool {
	_, hasVersion := top["schema_version"]
	_, hasRecords := top["records"]
	return hasVersion && hasRecords
}

// loadRecords validates decoded records in a deterministic order:
// ascending check ID, then key. Later duplicates of an ID are dropped.
func (c *SuggestionCache) loadRecords(raw map[string]json.RawMessage) {
	type candidate struct {
		key    string
		record models.CacheRecord
	}

	candidates := make([]candidate, 0, len(raw))
	for key, msg := range raw {
		var rec models.CacheRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			c.drop(key, "record does not decode", err)
			continue
		}
		if !rec.CheckID.Valid() {
			c.drop(key, "check_id must be positive", nil)
			continue
		}
		if rec.CheckTitle == "" {
			rec.CheckTitle = key
		}
		candidates = append(candidates, candidate{key: key, record: rec})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].record.CheckID != candidates[j].record.CheckID {
			return candidates[i].record.CheckID < candidates[j].record.CheckID
		}
		return candidates[i].key < candidates[j].key
	})

	for _, cand := range candidates {
		if owner, taken := c.byID[cand.record.CheckID]; taken {
			c.drop(cand.key, "check_id already used by "+strconv.Quote(owner), nil)
			continue
		}
		rec := cand.record
		c.records[cand.key] = &rec
		c.byID[rec.CheckID] = cand.key
	}
}

func (c *SuggestionCache) reset(reason string, err error) {
	c.stats.Resets++
	args := []any{"event", "store_reset", "store", "suggestion_cache", "path", c.path, "reason", reason}
	if err != nil {
		args = append(args, "error", err)
	}
	c.logger.Warn("Discarding unreadable suggestion cache", args...)
}

func (c *SuggestionCache) drop(key, reason string, err error) {
	c.stats.Dropped++
	args := []any{"event", "record_dropped", "key", key, "reason", reason}
	if err != nil {
		args = append(args, "error", err)
	}
	c.logger.Warn("Dropping invalid cache record", args...)
}

// Path returns the file the cache is saved to.
func (c *SuggestionCache) Path() string {
	return c.path
}

// Len returns the number of cached records.
func (c *SuggestionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Lookup returns the record cached under key.
func (c *SuggestionCache) Lookup(key string) (models.CacheRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[key]
	if !ok {
		c.stats.TotalMisses++
		return models.CacheRecord{}, false
	}
	c.stats.TotalHits++
	return *rec, true
}

// LookupID returns the record whose check ID is id, and its key.
func (c *SuggestionCache) LookupID(id models.CheckID) (string, models.CacheRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key, ok := c.byID[id]
	if !ok {
		return "", models.CacheRecord{}, false
	}
	return key, *c.records[key], true
}

// NextID returns the ID the next inserted record should receive:
// the record count plus one. If a damaged store left that ID occupied, the
// first free ID above it is returned instead.
func (c *SuggestionCache) NextID() models.CheckID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	next := models.CheckID(len(c.records) + 1)
	for {
		if _, taken := c.byID[next]; !taken {
			return next
		}
		next++
	}
}

// Insert adds a record under key. Existing keys and IDs are never overwritten.
func (c *SuggestionCache) Insert(key string, rec models.CacheRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.records[key]; exists {
		return &Error{Op: "insert", Key: key, Err: ErrDuplicateKey}
	}
	if owner, taken := c.byID[rec.CheckID]; taken {
		return &Error{Op: "insert", Key: key, Err: fmt.Errorf("%w: %d held by %q", ErrDuplicateID, rec.CheckID, owner)}
	}
	if !rec.CheckID.Valid() {
		return &Error{Op: "insert", Key: key, Err: fmt.Errorf("invalid check id %d", rec.CheckID)}
	}

	c.records[key] = &rec
	c.byID[rec.CheckID] = key
	c.stats.Inserts++
	return nil
}

// Refresh overwrites the suggestion of the record whose ID is id. No other
// field changes. It reports false when no record has that ID.
func (c *SuggestionCache) Refresh(id models.CheckID, suggestion string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.byID[id]
	if !ok {
		return false
	}
	c.records[key].Suggestion = suggestion
	c.stats.Refreshes++
	return true
}

// Records returns a copy of all records ordered by check ID.
func (c *SuggestionCache) Records() []models.CacheRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.CacheRecord, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckID < out[j].CheckID })
	return out
}

// IDsByTitle maps each cached key to its check ID.
func (c *SuggestionCache) IDsByTitle() map[string]models.CheckID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.CheckID, len(c.records))
	for key, rec := range c.records {
		out[key] = rec.CheckID
	}
	return out
}

// Save writes the full cache, replacing the previous file atomically.
func (c *SuggestionCache) Save() error {
	c.mu.RLock()
	env := fileEnvelope{
		SchemaVersion: models.SchemaVersion,
		Records:       make(map[string]models.CacheRecord, len(c.records)),
	}
	for key, rec := range c.records {
		env.Records[key] = *rec
	}
	c.mu.RUnlock()

	if err := storage.WriteJSONAtomic(c.path, env); err != nil {
		return &Error{Op: "save", Key: c.path, Err: err}
	}
	return nil
}

// Stats returns cache statistics.
func (c *SuggestionCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.TotalEntries = len(c.records)
	if total := s.TotalHits + s.TotalMisses; total > 0 {
		s.HitRate = float64(s.TotalHits) / float64(total)
	}
	return s
}
