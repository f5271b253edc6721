package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindingFromRow(t *testing.T) {
	header := RequiredColumns()
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}

	row := []string{
		"1", "Security", "High", " FAILED ", "i-123", "web", "AWS::EC2::Instance",
		"How do you protect compute?", "Enable IMDSv2", "Require IMDSv2 on instances",
		"111122223333", "prod", "us-east-1",
	}

	f := FindingFromRow(index, row)
	assert.Equal(t, "Enable IMDSv2", f.Key())
	assert.Equal(t, "FAILED", f.Status)
	assert.True(t, f.Failed())
	assert.Equal(t, "AWS::EC2::Instance", f.ResourceType)
	assert.Equal(t, "us-east-1", f.Region)
}

func TestFindingFromRowShortRow(t *testing.T) {
	index := map[string]int{ColumnCheckTitle: 0, ColumnRegion: 5}
	f := FindingFromRow(index, []string{"Title only"})
	assert.Equal(t, "Title only", f.CheckTitle)
	assert.Empty(t, f.Region)
}

func TestIsFailedStatus(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"failed", true},
		{"Failed", true},
		{"FAILED", true},
		{" failed\t", true},
		{"passed", false},
		{"fail", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFailedStatus(tt.status))
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"HIGH", "High"},
		{" high ", "High"},
		{"cost optimization", "Cost Optimization"},
		{"COST  OPTIMIZATION", "Cost Optimization"},
		{"INFO", "Info"},
		{"IAM", "IAM"},
		{"IAM access", "IAM Access"},
		{"data protection", "Data Protection"},
		{"A", "A"},
		{"  ", UnknownLabel},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLabel(tt.label))
		})
	}
}

func TestCheckIDJSON(t *testing.T) {
	data, err := json.Marshal(CheckID(7))
	require.NoError(t, err)
	assert.JSONEq(t, `"7"`, string(data))

	var id CheckID
	require.NoError(t, json.Unmarshal([]byte(`"12"`), &id))
	assert.Equal(t, CheckID(12), id)

	require.NoError(t, json.Unmarshal([]byte(`13`), &id))
	assert.Equal(t, CheckID(13), id)

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}

func TestCacheRecordUsesLegacyKeys(t *testing.T) {
	f := Finding{
		Pillar:           "Reliability",
		Question:         "How do you manage failures?",
		Severity:         "High",
		CheckTitle:       "Ensure high availability",
		CheckDescription: "Run across zones.",
		ResourceType:     "EC2",
	}
	rec := NewCacheRecord(1, f, "Use autoscaling.")

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "1", raw["check_id"])
	assert.Equal(t, "Ensure high availability", raw["Check Title"])
	assert.Equal(t, "Use autoscaling.", raw["suggestion"])
}
