// Package pipeline assembles the processor, stores and sinks described by a
// configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joshsymonds/warlens/internal/analysis"
	"github.com/joshsymonds/warlens/internal/config"
	"github.com/joshsymonds/warlens/internal/database"
	"github.com/joshsymonds/warlens/internal/enrichment/cache"
	"github.com/joshsymonds/warlens/internal/enrichment/core"
	"github.com/joshsymonds/warlens/internal/enrichment/llm"
	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/internal/summary"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// Mode selects which parts of the pipeline are built.
type Mode int

const (
	// ModeProcess builds everything needed to enrich a folder.
	ModeProcess Mode = iota
	// ModeRefresh builds only the driver and the cache.
	ModeRefresh
)

// Pipeline holds the wired components for one run.
type Pipeline struct {
	Config     *config.Config
	Driver     llm.Driver
	Cache      *cache.SuggestionCache
	Aggregator *summary.Aggregator
	Sink       storage.Sink
	Processor  *core.Processor

	db     *database.DB
	logger logger.Logger
}

// Option customizes Open.
type Option func(*options)

type options struct {
	driver llm.Driver
	sink   storage.Sink
	clock  func() time.Time
}

// WithDriver uses d instead of the configured driver.
func WithDriver(d llm.Driver) Option {
	return func(o *options) { o.driver = d }
}

// WithSink uses s instead of the configured sink.
func WithSink(s storage.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithClock sets the clock used for summary timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// Open builds the pipeline for mode. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, mode Mode, log logger.Logger, opts ...Option) (*Pipeline, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{Config: cfg, logger: log}

	p.Driver = o.driver
	if p.Driver == nil {
		d, err := llm.New(cfg.Enrichment)
		if err != nil {
			return nil, fmt.Errorf("creating enrichment driver: %w", err)
		}
		p.Driver = d
	}

	c, err := cache.Load(cfg.Paths.CacheFile, log.With("component", "cache"))
	if err != nil {
		return nil, fmt.Errorf("loading suggestion cache: %w", err)
	}
	p.Cache = c

	if mode == ModeProcess {
		if err := p.openProcessing(ctx, o); err != nil {
			_ = p.Close()
			return nil, err
		}
	}

	p.Processor = core.NewProcessor(p.Driver, p.Cache, p.Aggregator, p.Sink, core.Config{
		InputDir:           cfg.Paths.InputDir,
		Pattern:            cfg.Input.Pattern,
		HeaderSkip:         cfg.Input.HeaderSkip,
		CheckpointInterval: cfg.CheckpointInterval,
	}, log.With("component", "processor"))

	return p, nil
}

func (p *Pipeline) openProcessing(ctx context.Context, o options) error {
	cfg := p.Config

	stores, db, err := OpenStores(cfg, p.logger)
	if err != nil {
		return err
	}
	p.db = db

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("loading timezone: %w", err)
	}
	aggOpts := []summary.Option{summary.WithLocation(loc)}
	if o.clock != nil {
		aggOpts = append(aggOpts, summary.WithClock(o.clock))
	}
	p.Aggregator = summary.NewAggregator(p.logger.With("component", "summary"), stores, aggOpts...)

	p.Sink = o.sink
	if p.Sink == nil {
		if cfg.Sink.Type == "" || cfg.Sink.Type == storage.SinkLocal {
			if err := os.MkdirAll(cfg.Paths.OutputDir, 0750); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}
		}
		sink, err := storage.NewSink(ctx, cfg.Sink, cfg.Paths.OutputDir)
		if err != nil {
			return fmt.Errorf("creating export sink: %w", err)
		}
		p.Sink = sink
	}
	return nil
}

// OpenStores returns the summary stores for cfg: the JSON store, the CSV
// store and, when a database path is configured, the SQLite projection.
// The returned DB is nil when no database is configured.
func OpenStores(cfg *config.Config, log logger.Logger) ([]summary.Store, *database.DB, error) {
	if err := os.MkdirAll(cfg.Paths.SummaryDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating summary directory: %w", err)
	}

	jsonPath := filepath.Join(cfg.Paths.SummaryDir, summary.JSONFileName)
	csvPath := filepath.Join(cfg.Paths.SummaryDir, summary.CSVFileName)
	stores := []summary.Store{
		summary.NewJSONStore(jsonPath, logger.WithStore(log, jsonPath)),
		summary.NewCSVStore(csvPath, logger.WithStore(log, csvPath)),
	}

	if cfg.Paths.Database == "" {
		return stores, nil, nil
	}
	db, err := database.New(cfg.Paths.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening summary database: %w", err)
	}
	return append(stores, summary.NewSQLStore(db)), db, nil
}

// Close releases the database, if any.
func (p *Pipeline) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Analyze builds the combined report from the JSON summary store, attaches
// check IDs from the suggestion cache and overwrites the report file.
func Analyze(ctx context.Context, cfg *config.Config, policy analysis.Policy, now time.Time, log logger.Logger) (*models.CombinedReport, error) {
	jsonPath := filepath.Join(cfg.Paths.SummaryDir, summary.JSONFileName)
	store := summary.NewJSONStore(jsonPath, logger.WithStore(log, jsonPath))
	summaries, err := analysis.LoadSummaries(ctx, store)
	if err != nil {
		return nil, err
	}

	var checkIDs map[string]models.CheckID
	c, err := cache.Load(cfg.Paths.CacheFile, log.With("component", "cache"))
	switch {
	case err == nil:
		checkIDs = c.IDsByTitle()
	case errors.Is(err, cache.ErrUnsupportedSchema):
		return nil, fmt.Errorf("loading suggestion cache: %w", err)
	default:
		log.Warn("Suggestion cache unavailable, report will carry no check IDs", "error", err)
	}

	report, err := analysis.Analyze(summaries, checkIDs, policy, now)
	if err != nil {
		return nil, err
	}

	path := cfg.ReportPath()
	if err := analysis.WriteReport(path, report); err != nil {
		return nil, err
	}
	log.Info("Wrote combined report", "path", path, "files", report.FileCount)
	return report, nil
}
