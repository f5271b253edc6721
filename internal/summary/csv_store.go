package summary

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// csvHeader is the column layout of the tabular store. Nested breakdowns
// are stored as JSON cells.
var csvHeader = []string{
	"filename",
	"total_findings",
	"failed_findings",
	"failed_pillar_counts",
	"failed_severity_counts",
	"failed_check_title_counts",
	"timestamp",
	"schema_version",
}

// CSVStore keeps summaries as one CSV row per file.
type CSVStore struct {
	logger logger.Logger
	path   string
	resets int
	mu     sync.Mutex
}

// NewCSVStore creates a store backed by path.
func NewCSVStore(path string, log logger.Logger) *CSVStore {
	return &CSVStore{path: path, logger: log}
}

// Name implements Store.
func (s *CSVStore) Name() string { return "csv" }

// Path returns the backing file.
func (s *CSVStore) Path() string { return s.path }

// Resets returns how many loads discarded an unreadable file.
func (s *CSVStore) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// List implements Store.
func (s *CSVStore) List(_ context.Context) ([]models.FileSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert implements Store.
func (s *CSVStore) Upsert(_ context.Context, summary models.FileSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.load()
	if err != nil {
		return err
	}
	list, replaced := upsert(list, summary)
	if err := s.write(list); err != nil {
		return err
	}

	s.logger.Debug("Upserted summary", "store", s.Name(), "file", summary.Filename, "replaced", replaced)
	return nil
}

// Replace implements Projection.
func (s *CSVStore) Replace(_ context.Context, list []models.FileSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(list); err != nil {
		return err
	}
	s.logger.Debug("Rewrote summary store", "store", s.Name(), "entries", len(list))
	return nil
}

func (s *CSVStore) write(list []models.FileSummary) error {
	rows := make([][]string, 0, len(list))
	for _, fs := range list {
		row, err := encodeRow(fs)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", fs.Filename, err)
		}
		rows = append(rows, row)
	}

	data, err := storage.EncodeCSV(csvHeader, rows, false)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

func (s *CSVStore) load() ([]models.FileSummary, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	r := csv.NewReader(bytes.NewReader(storage.TrimBOM(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		s.reset("file is not valid CSV", err)
		return nil, nil
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !slices.Equal(records[0], csvHeader) {
		s.reset("unexpected header", nil)
		return nil, nil
	}

	list := make([]models.FileSummary, 0, len(records)-1)
	for i, row := range records[1:] {
		fs, err := decodeRow(row)
		if err != nil {
			s.logger.Warn("Dropping invalid summary row", "event", "record_dropped", "store", s.Name(), "row", i+2, "error", err)
			continue
		}
		list, _ = upsert(list, fs)
	}
	return list, nil
}

func (s *CSVStore) reset(reason string, err error) {
	s.resets++
	args := []any{"event", "store_reset", "store", s.Name(), "path", s.path, "reason", reason}
	if err != nil {
		args = append(args, "error", err)
	}
	s.logger.Warn("Discarding unreadable summary store", args...)
}

func encodeRow(fs models.FileSummary) ([]string, error) {
	pillars, err := json.Marshal(fs.FailedPillarCounts)
	if err != nil {
		return nil, err
	}
	severities, err := json.Marshal(fs.FailedSeverityCounts)
	if err != nil {
		return nil, err
	}
	titles, err := json.Marshal(fs.FailedCheckTitleCounts)
	if err != nil {
		return nil, err
	}
	return []string{
		fs.Filename,
		strconv.Itoa(fs.TotalFindings),
		strconv.Itoa(fs.FailedFindings),
		string(pillars),
		string(severities),
		string(titles),
		fs.Timestamp,
		strconv.Itoa(fs.SchemaVersion),
	}, nil
}

func decodeRow(row []string) (models.FileSummary, error) {
	var fs models.FileSummary
	if len(row) != len(csvHeader) {
		return fs, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	if row[0] == "" {
		return fs, errors.New("empty filename")
	}

	var err error
	fs.Filename = row[0]
	if fs.TotalFindings, err = strconv.Atoi(row[1]); err != nil {
		return fs, fmt.Errorf("total_findings: %w", err)
	}
	if fs.FailedFindings, err = strconv.Atoi(row[2]); err != nil {
		return fs, fmt.Errorf("failed_findings: %w", err)
	}
	if err := json.Unmarshal([]byte(row[3]), &fs.FailedPillarCounts); err != nil {
		return fs, fmt.Errorf("failed_pillar_counts: %w", err)
	}
	if err := json.Unmarshal([]byte(row[4]), &fs.FailedSeverityCounts); err != nil {
		return fs, fmt.Errorf("failed_severity_counts: %w", err)
	}
	if err := json.Unmarshal([]byte(row[5]), &fs.FailedCheckTitleCounts); err != nil {
		return fs, fmt.Errorf("failed_check_title_counts: %w", err)
	}
	fs.Timestamp = row[6]
	if fs.SchemaVersion, err = strconv.Atoi(row[7]); err != nil {
		return fs, fmt.Errorf("schema_version: %w", err)
	}
	return fs, nil
}
