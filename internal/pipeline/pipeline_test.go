package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/warlens/internal/analysis"
	"github.com/joshsymonds/warlens/internal/config"
	"github.com/joshsymonds/warlens/internal/enrichment/llm"
	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/summary"
	"github.com/joshsymonds/warlens/pkg/logger"
)

const header = "No.,Pillar,Question,Severity,Status,Resource ID,Resource Name,Resource Type,Check Title,Check Description,Account ID,Account Name,Region"

var fixedNow = time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InputDir = filepath.Join(root, "input")
	cfg.Paths.OutputDir = filepath.Join(root, "output")
	cfg.Paths.SummaryDir = filepath.Join(root, "summary")
	cfg.Paths.CacheFile = filepath.Join(root, "cache.json")
	cfg.Paths.Database = filepath.Join(root, "summary", "warlens.db")
	cfg.Summary.Timezone = "UTC"
	require.NoError(t, os.MkdirAll(cfg.Paths.InputDir, 0750))
	return cfg
}

func writeInput(t *testing.T, cfg *config.Config, name string, rows ...string) {
	t.Helper()
	body := header + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.InputDir, name), []byte(body), 0600))
}

func finding(n int, severity, status, title string) string {
	return fmt.Sprintf("%d,Security,Q,%s,%s,arn:%d,res,AwsS3Bucket,%s,desc,111,prod,us-east-1", n, severity, status, n, title)
}

func echoDriver() *llm.MockDriver {
	d := llm.NewMockDriver("")
	d.GenerateFunc = func(_ context.Context, prompt string) (string, error) {
		for _, line := range strings.Split(prompt, "\n") {
			if title, ok := strings.CutPrefix(line, "Check Title: "); ok {
				return "fix " + title, nil
			}
		}
		return "", errors.New("no title")
	}
	return d
}

func TestProcessThenAnalyze(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	log := logger.NewMockLogger()

	writeInput(t, cfg, "a.csv",
		finding(1, "High", "FAILED", "S3 encryption"),
		finding(2, "High", "FAILED", "S3 encryption"),
		finding(3, "High", "FAILED", "S3 encryption"),
	)
	writeInput(t, cfg, "b.csv",
		finding(1, "High", "FAILED", "S3 encryption"),
		finding(2, "High", "FAILED", "S3 encryption"),
		finding(3, "Low", "Failed ", "Tagging"),
		finding(4, "Low", "PASSED", "Logging"),
	)

	p, err := Open(ctx, cfg, ModeProcess, log, WithDriver(echoDriver()), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	defer func() { assert.NoError(t, p.Close()) }()

	result, err := p.Processor.ProcessFolder(ctx)
	require.NoError(t, err)
	require.Len(t, result.Datasets, 2)
	assert.Equal(t, 3, result.NewSuggestions)

	for _, store := range p.Aggregator.Stores() {
		list, err := store.List(ctx)
		require.NoError(t, err, store.Name())
		require.Len(t, list, 2, store.Name())
		assert.Equal(t, "a.csv", list[0].Filename, store.Name())
		assert.Equal(t, 3, list[1].FailedFindings, store.Name())
	}
	assert.Len(t, p.Aggregator.Stores(), 3)

	report, err := Analyze(ctx, cfg, analysis.DefaultPolicy, fixedNow, log)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FileCount)
	assert.Equal(t, 7, report.TotalFindings)
	assert.Equal(t, 6, report.TotalFailedFindings)
	assert.Equal(t, map[string]int{"High": 5, "Low": 1}, report.SeverityCounts)
	assert.Equal(t, map[string]map[string]int{
		"High": {"S3 encryption": 5},
		"Low":  {"Tagging": 1},
	}, report.CheckTitleCounts)
	assert.Equal(t, models.CheckID(1), report.CheckIDs["S3 encryption"])

	_, err = os.Stat(cfg.ReportPath())
	assert.NoError(t, err)
}

func TestRefreshModeSkipsStores(t *testing.T) {
	cfg := testConfig(t)

	p, err := Open(context.Background(), cfg, ModeRefresh, logger.NewMockLogger(), WithDriver(echoDriver()))
	require.NoError(t, err)
	defer func() { assert.NoError(t, p.Close()) }()

	assert.Nil(t, p.Aggregator)
	assert.Nil(t, p.Sink)
	assert.NotNil(t, p.Processor)

	_, err = os.Stat(cfg.Paths.SummaryDir)
	assert.True(t, os.IsNotExist(err))
}

func TestOpenStoresWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.Database = ""

	stores, db, err := OpenStores(cfg, logger.NewMockLogger())
	require.NoError(t, err)
	assert.Nil(t, db)
	require.Len(t, stores, 2)
	assert.Equal(t, "json", stores[0].Name())
	assert.Equal(t, "csv", stores[1].Name())
}

func TestOpenStoresScopesLogsByPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.Database = ""
	log := logger.NewMockLogger()

	stores, _, err := OpenStores(cfg, log)
	require.NoError(t, err)
	csvPath := filepath.Join(cfg.Paths.SummaryDir, summary.CSVFileName)
	require.NoError(t, os.WriteFile(csvPath, []byte("garbage,header\n"), 0600))

	_, err = stores[1].List(context.Background())
	require.NoError(t, err)
	assert.True(t, log.HasAttr("WARN", "store_path", csvPath))
	assert.True(t, log.HasAttr("WARN", "event", "store_reset"))
}

func TestAnalyzeWithoutSummaries(t *testing.T) {
	cfg := testConfig(t)

	_, err := Analyze(context.Background(), cfg, analysis.DefaultPolicy, fixedNow, logger.NewMockLogger())
	assert.ErrorIs(t, err, analysis.ErrNoSummaries)

	_, statErr := os.Stat(cfg.ReportPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpenUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enrichment.Driver = "nope"

	_, err := Open(context.Background(), cfg, ModeRefresh, logger.NewMockLogger())
	var notFound *llm.DriverNotFoundError
	assert.ErrorAs(t, err, &notFound)
}
