// Package models contains the record types shared by the warlens pipeline.
package models

import (
	"strings"
)

// Column names of the review export. Every input dataset must carry all of them.
const (
	ColumnSerialNumber     = "No."
	ColumnPillar           = "Pillar"
	ColumnQuestion         = "Question"
	ColumnSeverity         = "Severity"
	ColumnStatus           = "Status"
	ColumnResourceID       = "Resource ID"
	ColumnResourceName     = "Resource Name"
	ColumnResourceType     = "Resource Type"
	ColumnCheckTitle       = "Check Title"
	ColumnCheckDescription = "Check Description"
	ColumnAccountID        = "Account ID"
	ColumnAccountName      = "Account Name"
	ColumnRegion           = "Region"
)

// SuggestionColumn is appended to every enriched export.
const SuggestionColumn = "Elastic Engineering Suggestions"

// RequiredColumns returns the column set an input dataset must provide.
func RequiredColumns() []string {
	return []string{
		ColumnSerialNumber,
		ColumnPillar,
		ColumnSeverity,
		ColumnStatus,
		ColumnResourceID,
		ColumnResourceName,
		ColumnResourceType,
		ColumnQuestion,
		ColumnCheckTitle,
		ColumnCheckDescription,
		ColumnAccountID,
		ColumnAccountName,
		ColumnRegion,
	}
}

// Finding is one audited check result row.
type Finding struct {
	SerialNumber     string `json:"serial_number"`
	Pillar           string `json:"pillar"`
	Question         string `json:"question"`
	Severity         string `json:"severity"`
	Status           string `json:"status"`
	ResourceID       string `json:"resource_id"`
	ResourceName     string `json:"resource_name"`
	ResourceType     string `json:"resource_type"`
	CheckTitle       string `json:"check_title"`
	CheckDescription string `json:"check_description"`
	AccountID        string `json:"account_id"`
	AccountName      string `json:"account_name"`
	Region           string `json:"region"`
}

// Key returns the identity used to deduplicate enrichment work.
// Two findings with the same check title share one suggestion.
func (f *Finding) Key() string {
	return f.CheckTitle
}

// Failed reports whether the finding's status marks it as failed.
func (f *Finding) Failed() bool {
	return IsFailedStatus(f.Status)
}

// FindingFromRow maps a CSV row onto a Finding using a column index.
// Missing columns yield empty fields; validation happens before this is called.
func FindingFromRow(index map[string]int, row []string) Finding {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	return Finding{
		SerialNumber:     get(ColumnSerialNumber),
		Pillar:           get(ColumnPillar),
		Question:         get(ColumnQuestion),
		Severity:         get(ColumnSeverity),
		Status:           get(ColumnStatus),
		ResourceID:       get(ColumnResourceID),
		ResourceName:     get(ColumnResourceName),
		ResourceType:     get(ColumnResourceType),
		CheckTitle:       get(ColumnCheckTitle),
		CheckDescription: get(ColumnCheckDescription),
		AccountID:        get(ColumnAccountID),
		AccountName:      get(ColumnAccountName),
		Region:           get(ColumnRegion),
	}
}
