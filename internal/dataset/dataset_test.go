package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "No.,Pillar,Question,Severity,Status,Resource ID,Resource Name,Resource Type,Check Title,Check Description,Account ID,Account Name,Region"

func csvFile(rows ...string) string {
	return strings.Join(append([]string{header}, rows...), "\n") + "\n"
}

func TestParse(t *testing.T) {
	content := csvFile(
		`1,Security,How do you protect data?,High,FAILED,arn:1,bucket-a,AwsS3Bucket,S3 encryption,"Checks SSE, KMS",111,prod,us-east-1`,
		`2,Reliability,How do you back up?,Medium,PASSED,arn:2,db-a,AwsRdsDbInstance,RDS backups,Checks backups,111,prod,us-east-1`,
		`,,,,,,,,,,,,`,
	)

	ds, err := Parse("review.csv", []byte(content), 0)
	require.NoError(t, err)

	assert.Equal(t, "review.csv", ds.Name)
	require.Len(t, ds.Rows, 2)
	require.Len(t, ds.Findings, 2)
	assert.Equal(t, "S3 encryption", ds.Findings[0].CheckTitle)
	assert.Equal(t, "Checks SSE, KMS", ds.Findings[0].CheckDescription)
	assert.True(t, ds.Findings[0].Failed())
	assert.False(t, ds.Findings[1].Failed())
}

func TestParseHeaderSkipAndBOM(t *testing.T) {
	content := "\xEF\xBB\xBFWell-Architected Review export\nGenerated 2024-01-01\n" +
		csvFile(`1,Security,Q,Low,Failed,id,name,type,Title,Desc,1,acct,eu-west-1`)

	ds, err := Parse("offset.csv", []byte(content), 2)
	require.NoError(t, err)
	require.Len(t, ds.Findings, 1)
	assert.Equal(t, "Title", ds.Findings[0].CheckTitle)

	_, err = Parse("offset.csv", []byte(content), 0)
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
}

func TestParseMissingColumns(t *testing.T) {
	content := "No.,Pillar,Severity,Status\n1,Security,High,FAILED\n"

	_, err := Parse("broken.csv", []byte(content), 0)
	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "broken.csv", missing.File)
	assert.Contains(t, missing.Missing, "Check Title")
	assert.Contains(t, missing.Missing, "Region")
	assert.NotContains(t, missing.Missing, "Pillar")
	assert.Contains(t, err.Error(), "Check Title")
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("empty.csv", nil, 0)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Parse("short.csv", []byte("one line\n"), 3)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestWithSuggestions(t *testing.T) {
	ds, err := Parse("review.csv", []byte(csvFile(
		`1,Security,Q,High,FAILED,id,name,type,A,Desc,1,acct,us-east-1`,
		`2,Security,Q,High,FAILED,id,name,type,B,Desc,1,acct`,
	)), 0)
	require.NoError(t, err)

	hdr, rows, err := ds.WithSuggestions("Suggestions", []string{"fix a", "fix b"})
	require.NoError(t, err)
	assert.Equal(t, "Suggestions", hdr[len(hdr)-1])
	assert.Len(t, hdr, 14)
	assert.Equal(t, "fix a", rows[0][13])
	assert.Equal(t, "fix b", rows[1][13])
	assert.Len(t, rows[1], 14)
	assert.Len(t, ds.Header, 13)

	_, _, err = ds.WithSuggestions("Suggestions", []string{"only one"})
	assert.Error(t, err)
}

func TestListAndRead(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.csv", "findings_with_suggestions_1234.csv", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(csvFile()), 0600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dir.csv"), 0750))

	files, err := List(dir, "")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.csv", filepath.Base(files[0]))
	assert.Equal(t, "b.csv", filepath.Base(files[1]))

	ds, err := Read(files[0], 0)
	require.NoError(t, err)
	assert.Equal(t, files[0], ds.Path)
	assert.Empty(t, ds.Rows)

	_, err = Read(filepath.Join(dir, "missing.csv"), 0)
	assert.Error(t, err)
}
