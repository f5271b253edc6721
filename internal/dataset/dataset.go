// Package dataset reads review exports and validates their column layout.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
)

// ErrEmpty is returned for a file with no header row after the skipped rows.
var ErrEmpty = errors.New("dataset has no header row")

// MissingColumnsError reports required columns absent from a dataset.
type MissingColumnsError struct {
	File    string
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s is missing required columns: %s", e.File, strings.Join(e.Missing, ", "))
}

// Dataset is one parsed input file. Rows keep the original cell values so
// the enriched export reproduces the input exactly plus one column.
type Dataset struct {
	index    map[string]int
	Name     string
	Path     string
	Header   []string
	Rows     [][]string
	Findings []models.Finding
}

// Read parses the CSV file at path. The first headerSkip rows are ignored and
// the next row is taken as the header.
func Read(path string, headerSkip int) (*Dataset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // input paths come from the configured folder
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	ds, err := Parse(filepath.Base(path), data, headerSkip)
	if err != nil {
		return nil, err
	}
	ds.Path = path
	return ds, nil
}

// Parse builds a Dataset from raw CSV bytes.
func Parse(name string, data []byte, headerSkip int) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(storage.TrimBOM(data)))
	r.FieldsPerRecord = -1

	for i := 0; i < headerSkip; i++ {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
			}
			return nil, fmt.Errorf("%s: skipping row %d: %w", name, i+1, err)
		}
	}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", name, ErrEmpty)
		}
		return nil, fmt.Errorf("%s: reading header: %w", name, err)
	}

	ds := &Dataset{
		Name:   name,
		Header: make([]string, len(header)),
		index:  make(map[string]int, len(header)),
	}
	for i, col := range header {
		col = strings.TrimSpace(col)
		ds.Header[i] = col
		if _, dup := ds.index[col]; !dup {
			ds.index[col] = i
		}
	}

	if missing := ds.missingColumns(); len(missing) > 0 {
		return nil, &MissingColumnsError{File: name, Missing: missing}
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if blank(row) {
			continue
		}
		ds.Rows = append(ds.Rows, pad(row, len(ds.Header)))
		ds.Findings = append(ds.Findings, models.FindingFromRow(ds.index, row))
	}

	return ds, nil
}

func (d *Dataset) missingColumns() []string {
	var missing []string
	for _, col := range models.RequiredColumns() {
		if _, ok := d.index[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// WithSuggestions returns the header and rows extended by one column.
// values must hold one entry per row.
func (d *Dataset) WithSuggestions(column string, values []string) ([]string, [][]string, error) {
	if len(values) != len(d.Rows) {
		return nil, nil, fmt.Errorf("%s: %d suggestions for %d rows", d.Name, len(values), len(d.Rows))
	}

	header := append(append(make([]string, 0, len(d.Header)+1), d.Header...), column)
	rows := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = append(append(make([]string, 0, len(row)+1), row...), values[i])
	}
	return header, rows, nil
}

// List returns the files in dir matching pattern, sorted by name.
// Exports written by this tool are excluded so an output folder shared with
// the input folder is not re-ingested.
func List(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*.csv"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if strings.HasPrefix(filepath.Base(m), storage.ExportPrefix) {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func pad(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}
