package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SchemaVersion is written into every durable record envelope.
const SchemaVersion = 1

// CheckID is the sequential identifier of a cached suggestion.
// It is stored as a JSON string for compatibility with older cache files
// and accepts either a string or a number when decoding.
type CheckID int

// Valid reports whether id can identify a record. IDs start at 1.
func (id CheckID) Valid() bool {
	return id > 0
}

// MarshalJSON implements json.Marshaler.
func (id CheckID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(id)))
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *CheckID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("check_id %q is not numeric", s)
		}
		*id = CheckID(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("check_id: %w", err)
	}
	*id = CheckID(n)
	return nil
}

// CacheRecord is one cached suggestion, keyed by check title.
// Everything except Suggestion is a snapshot taken at first enrichment.
type CacheRecord struct {
	CheckID          CheckID `json:"check_id"`
	Pillar           string  `json:"Pillar"`
	Question         string  `json:"Question"`
	Severity         string  `json:"Severity"`
	CheckTitle       string  `json:"Check Title"`
	CheckDescription string  `json:"Check Description"`
	ResourceType     string  `json:"Resource Type"`
	Suggestion       string  `json:"suggestion"`
}

// NewCacheRecord snapshots the descriptive fields of a finding.
func NewCacheRecord(id CheckID, f Finding, suggestion string) CacheRecord {
	return CacheRecord{
		CheckID:          id,
		Pillar:           f.Pillar,
		Question:         f.Question,
		Severity:         f.Severity,
		CheckTitle:       f.CheckTitle,
		CheckDescription: f.CheckDescription,
		ResourceType:     f.ResourceType,
		Suggestion:       suggestion,
	}
}

// TitleCount is the failed-row count of one check title in one file.
type TitleCount struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// FileSummary holds the statistics of one processed input file.
// At most one summary per Filename exists in any summary store.
type FileSummary struct {
	FailedPillarCounts     map[string]int        `json:"failed_pillar_counts"`
	FailedSeverityCounts   map[string]int        `json:"failed_severity_counts"`
	FailedCheckTitleCounts map[string]TitleCount `json:"failed_check_title_counts"`
	Filename               string                `json:"filename"`
	Timestamp              string                `json:"timestamp"`
	SchemaVersion          int                   `json:"schema_version"`
	TotalFindings          int                   `json:"total_findings"`
	FailedFindings         int                   `json:"failed_findings"`
}

// CombinedReport is the cross-run analytics report. It is recomputed in
// full from all file summaries on every analysis run.
type CombinedReport struct {
	GeneratedAt         time.Time                 `json:"generated_at"`
	PillarCounts        map[string]int            `json:"pillar_counts"`
	SeverityCounts      map[string]int            `json:"severity_counts"`
	CheckTitleCounts    map[string]map[string]int `json:"check_title_counts"`
	CheckIDs            map[string]CheckID        `json:"check_ids,omitempty"`
	SeverityPolicy      string                    `json:"severity_policy"`
	SchemaVersion       int                       `json:"schema_version"`
	FileCount           int                       `json:"file_count"`
	TotalFindings       int                       `json:"total_findings"`
	TotalFailedFindings int                       `json:"total_failed_findings"`
}
