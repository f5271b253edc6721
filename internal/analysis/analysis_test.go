package analysis

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/summary"
	"github.com/joshsymonds/warlens/pkg/logger"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fileSummary(name string, total, failed int, severities map[string]int, titles map[string]models.TitleCount) models.FileSummary {
	return models.FileSummary{
		SchemaVersion:          models.SchemaVersion,
		Filename:               name,
		TotalFindings:          total,
		FailedFindings:         failed,
		FailedPillarCounts:     map[string]int{"Security": failed},
		FailedSeverityCounts:   severities,
		FailedCheckTitleCounts: titles,
	}
}

func TestAnalyzeSumsAcrossFiles(t *testing.T) {
	summaries := []models.FileSummary{
		fileSummary("a.csv", 10, 3, map[string]int{"High": 3}, map[string]models.TitleCount{
			"S3 encryption": {Count: 3, Severity: "High"},
		}),
		fileSummary("b.csv", 7, 3, map[string]int{"High": 2, "Low": 1}, map[string]models.TitleCount{
			"S3 encryption": {Count: 2, Severity: "High"},
			"Tagging":       {Count: 1, Severity: "Low"},
		}),
	}

	got, err := Analyze(summaries, map[string]models.CheckID{"S3 encryption": 4, "Unrelated": 9}, PolicyLastSeen, now)
	require.NoError(t, err)

	want := &models.CombinedReport{
		SchemaVersion:       models.SchemaVersion,
		GeneratedAt:         now,
		SeverityPolicy:      "last-seen",
		FileCount:           2,
		TotalFindings:       17,
		TotalFailedFindings: 6,
		PillarCounts:        map[string]int{"Security": 6},
		SeverityCounts:      map[string]int{"High": 5, "Low": 1},
		CheckTitleCounts: map[string]map[string]int{
			"High": {"S3 encryption": 5},
			"Low":  {"Tagging": 1},
		},
		CheckIDs: map[string]models.CheckID{"S3 encryption": 4},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeSeverityPolicies(t *testing.T) {
	summaries := []models.FileSummary{
		fileSummary("a.csv", 2, 2, map[string]int{"High": 2}, map[string]models.TitleCount{
			"MFA":  {Count: 2, Severity: "High"},
			"Logs": {Count: 1, Severity: "Low"},
		}),
		fileSummary("b.csv", 1, 1, map[string]int{"critical": 1}, map[string]models.TitleCount{
			"MFA": {Count: 1, Severity: "critical"},
		}),
	}

	tests := []struct {
		name   string
		policy Policy
		want   map[string]map[string]int
	}{
		{
			name:   "last seen",
			policy: PolicyLastSeen,
			want:   map[string]map[string]int{"Critical": {"MFA": 3}, "Low": {"Logs": 1}},
		},
		{
			name:   "first seen",
			policy: PolicyFirstSeen,
			want:   map[string]map[string]int{"High": {"MFA": 3}, "Low": {"Logs": 1}},
		},
		{
			name:   "empty policy defaults to last seen",
			policy: "",
			want:   map[string]map[string]int{"Critical": {"MFA": 3}, "Low": {"Logs": 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Analyze(summaries, nil, tt.policy, now)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, report.CheckTitleCounts); diff != "" {
				t.Errorf("CheckTitleCounts mismatch (-want +got):\n%s", diff)
			}
			assert.Nil(t, report.CheckIDs)
			assert.Equal(t, map[string]int{"High": 2, "Critical": 1}, report.SeverityCounts)
		})
	}

	t.Run("reject", func(t *testing.T) {
		_, err := Analyze(summaries, nil, PolicyReject, now)
		var conflict *SeverityConflictError
		require.ErrorAs(t, err, &conflict)
		require.Len(t, conflict.Conflicts, 1)
		assert.Equal(t, "MFA", conflict.Conflicts[0].Title)
		assert.Equal(t, []string{"High", "Critical"}, conflict.Conflicts[0].Severities)
		assert.Equal(t, []string{"a.csv", "b.csv"}, conflict.Conflicts[0].Files)
		assert.Contains(t, err.Error(), `"MFA" (High/Critical)`)
	})
}

func TestAnalyzeRejectWithoutConflicts(t *testing.T) {
	summaries := []models.FileSummary{
		fileSummary("a.csv", 1, 1, nil, map[string]models.TitleCount{"MFA": {Count: 1, Severity: "High"}}),
		fileSummary("b.csv", 1, 1, nil, map[string]models.TitleCount{"MFA": {Count: 1, Severity: "HIGH"}}),
	}

	report, err := Analyze(summaries, nil, PolicyReject, now)
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]int{"High": {"MFA": 2}}, report.CheckTitleCounts)
}

func TestAnalyzeNoSummaries(t *testing.T) {
	_, err := Analyze(nil, nil, PolicyLastSeen, now)
	assert.ErrorIs(t, err, ErrNoSummaries)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{in: "", want: PolicyLastSeen},
		{in: "first-seen", want: PolicyFirstSeen},
		{in: " Last-Seen ", want: PolicyLastSeen},
		{in: "reject", want: PolicyReject},
		{in: "random", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteReportIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	store := summary.NewJSONStore(filepath.Join(dir, summary.JSONFileName), logger.NewMockLogger())
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, fileSummary("a.csv", 4, 2, map[string]int{"High": 2},
		map[string]models.TitleCount{"MFA": {Count: 2, Severity: "High"}})))

	reportPath := filepath.Join(dir, "summary-analyze.json")
	require.NoError(t, os.WriteFile(reportPath, []byte("stale content that is much longer than the report"), 0600))

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		summaries, err := LoadSummaries(ctx, store)
		require.NoError(t, err)
		report, err := Analyze(summaries, nil, DefaultPolicy, now)
		require.NoError(t, err)
		require.NoError(t, WriteReport(reportPath, report))

		data, err := os.ReadFile(reportPath)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.Equal(t, outputs[0], outputs[1])

	var decoded models.CombinedReport
	require.NoError(t, json.Unmarshal(outputs[0], &decoded))
	assert.Equal(t, 4, decoded.TotalFindings)
	assert.Equal(t, map[string]int{"High": 2}, decoded.SeverityCounts)
}

func TestWriteReportContentIgnoresRunTime(t *testing.T) {
	dir := t.TempDir()
	store := summary.NewJSONStore(filepath.Join(dir, summary.JSONFileName), logger.NewMockLogger())
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, fileSummary("a.csv", 4, 2, map[string]int{"High": 2},
		map[string]models.TitleCount{"MFA": {Count: 2, Severity: "High"}})))

	reportPath := filepath.Join(dir, "summary-analyze.json")
	var reports []models.CombinedReport
	for _, at := range []time.Time{now, now.Add(time.Hour)} {
		summaries, err := LoadSummaries(ctx, store)
		require.NoError(t, err)
		report, err := Analyze(summaries, nil, DefaultPolicy, at)
		require.NoError(t, err)
		require.NoError(t, WriteReport(reportPath, report))

		data, err := os.ReadFile(reportPath)
		require.NoError(t, err)
		var decoded models.CombinedReport
		require.NoError(t, json.Unmarshal(data, &decoded))
		reports = append(reports, decoded)
	}

	assert.False(t, reports[0].GeneratedAt.Equal(reports[1].GeneratedAt))
	if diff := cmp.Diff(reports[0], reports[1], cmpopts.IgnoreFields(models.CombinedReport{}, "GeneratedAt")); diff != "" {
		t.Errorf("report content changed between runs (-first +second):\n%s", diff)
	}
}
