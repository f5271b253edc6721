// Package analysis folds per-file summaries into the combined cross-run report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/internal/summary"
)

// Policy decides which severity a check title is grouped under when files
// disagree about it.
type Policy string

// Severity tie-break policies.
const (
	PolicyFirstSeen Policy = "first-seen"
	PolicyLastSeen  Policy = "last-seen"
	PolicyReject    Policy = "reject"
)

// DefaultPolicy groups a title under the severity of the last file that
// reported it.
const DefaultPolicy = PolicyLastSeen

// ErrNoSummaries is returned when there is nothing to analyze.
var ErrNoSummaries = errors.New("no summaries to analyze")

// ParsePolicy validates a policy name. An empty name selects DefaultPolicy.
func ParsePolicy(name string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyFirstSeen, PolicyLastSeen, PolicyReject:
		return p, nil
	default:
		return "", fmt.Errorf("unknown severity conflict policy %q (want %s, %s or %s)",
			name, PolicyFirstSeen, PolicyLastSeen, PolicyReject)
	}
}

// Conflict is a check title reported with different severities.
type Conflict struct {
	Title      string
	Severities []string
	Files      []string
}

// SeverityConflictError is returned under PolicyReject.
type SeverityConflictError struct {
	Conflicts []Conflict
}

func (e *SeverityConflictError) Error() string {
	titles := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		titles[i] = fmt.Sprintf("%q (%s)", c.Title, strings.Join(c.Severities, "/"))
	}
	return fmt.Sprintf("%d check titles have conflicting severities: %s", len(e.Conflicts), strings.Join(titles, ", "))
}

type titleState struct {
	severities []string
	files      []string
	first      string
	last       string
	count      int
}

// Analyze builds the combined report from summaries, processed in order.
// Totals, pillar counts, severity counts and per-title counts are summed
// across files. checkIDs, usually taken from the suggestion cache, is
// attached to the report when given.
func Analyze(summaries []models.FileSummary, checkIDs map[string]models.CheckID, policy Policy, now time.Time) (*models.CombinedReport, error) {
	if len(summaries) == 0 {
		return nil, ErrNoSummaries
	}
	if policy == "" {
		policy = DefaultPolicy
	}

	report := &models.CombinedReport{
		SchemaVersion:    models.SchemaVersion,
		GeneratedAt:      now,
		SeverityPolicy:   string(policy),
		FileCount:        len(summaries),
		PillarCounts:     make(map[string]int),
		SeverityCounts:   make(map[string]int),
		CheckTitleCounts: make(map[string]map[string]int),
	}

	titles := make(map[string]*titleState)
	for _, s := range summaries {
		report.TotalFindings += s.TotalFindings
		report.TotalFailedFindings += s.FailedFindings

		for pillar, n := range s.FailedPillarCounts {
			report.PillarCounts[models.NormalizeLabel(pillar)] += n
		}
		for severity, n := range s.FailedSeverityCounts {
			report.SeverityCounts[models.NormalizeLabel(severity)] += n
		}
		for title, tc := range s.FailedCheckTitleCounts {
			severity := models.NormalizeLabel(tc.Severity)
			st, ok := titles[title]
			if !ok {
				st = &titleState{first: severity}
				titles[title] = st
			}
			st.last = severity
			st.count += tc.Count
			st.files = append(st.files, s.Filename)
			if !slices.Contains(st.severities, severity) {
				st.severities = append(st.severities, severity)
			}
		}
	}

	var conflicts []Conflict
	for title, st := range titles {
		label := st.last
		switch policy {
		case PolicyFirstSeen:
			label = st.first
		case PolicyReject:
			if len(st.severities) > 1 {
				conflicts = append(conflicts, Conflict{Title: title, Severities: st.severities, Files: st.files})
				continue
			}
		}

		group, ok := report.CheckTitleCounts[label]
		if !ok {
			group = make(map[string]int)
			report.CheckTitleCounts[label] = group
		}
		group[title] = st.count
	}

	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Title < conflicts[j].Title })
		return nil, &SeverityConflictError{Conflicts: conflicts}
	}

	if len(checkIDs) > 0 {
		report.CheckIDs = make(map[string]models.CheckID)
		for title := range titles {
			if id, ok := checkIDs[title]; ok {
				report.CheckIDs[title] = id
			}
		}
	}

	return report, nil
}

// LoadSummaries lists every summary held by store.
func LoadSummaries(ctx context.Context, store summary.Store) ([]models.FileSummary, error) {
	summaries, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading summaries from %s store: %w", store.Name(), err)
	}
	return summaries, nil
}

// WriteReport replaces the report at path.
func WriteReport(path string, report *models.CombinedReport) error {
	if err := storage.WriteJSONAtomic(path, report); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
