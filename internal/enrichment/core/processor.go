// Package core runs the enrichment pipeline: it reads review exports,
// enriches each finding through the suggestion cache, and records summaries.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshsymonds/warlens/internal/dataset"
	"github.com/joshsymonds/warlens/internal/enrichment"
	"github.com/joshsymonds/warlens/internal/enrichment/cache"
	"github.com/joshsymonds/warlens/internal/enrichment/llm"
	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/internal/storage"
	"github.com/joshsymonds/warlens/internal/summary"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// DefaultCheckpointInterval is the number of new suggestions between cache flushes.
const DefaultCheckpointInterval = 10

// Config controls a processing run.
type Config struct {
	InputDir           string
	Pattern            string
	HeaderSkip         int
	CheckpointInterval int
}

// DatasetResult describes one successfully processed input file.
type DatasetResult struct {
	SummaryErr     error
	Name           string
	Path           string
	Export         string
	Summary        models.FileSummary
	Rows           int
	NewSuggestions int
	CacheHits      int
	Failures       int
}

// SkippedDataset describes an input file that could not be processed.
type SkippedDataset struct {
	Err     error
	Path    string
	Missing []string
}

// BatchResult is the outcome of processing a set of input files.
type BatchResult struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	Datasets       []DatasetResult
	Skipped        []SkippedDataset
	NewSuggestions int
	CacheHits      int
	Failures       int
	Checkpoints    int
	Interrupted    bool
}

// Processor enriches findings through the suggestion cache.
// It is not safe for concurrent use.
type Processor struct {
	driver     llm.Driver
	cache      *cache.SuggestionCache
	aggregator *summary.Aggregator
	sink       storage.Sink
	logger     logger.Logger
	config     Config
	pending    int
}

// NewProcessor creates a new processor.
func NewProcessor(
	driver llm.Driver,
	cache *cache.SuggestionCache,
	aggregator *summary.Aggregator,
	sink storage.Sink,
	config Config,
	logger logger.Logger,
) *Processor {
	if config.CheckpointInterval < 1 {
		config.CheckpointInterval = DefaultCheckpointInterval
	}
	return &Processor{
		driver:     driver,
		cache:      cache,
		aggregator: aggregator,
		sink:       sink,
		config:     config,
		logger:     logger,
	}
}

// ProcessFolder processes every input file in the configured folder.
func (p *Processor) ProcessFolder(ctx context.Context) (*BatchResult, error) {
	paths, err := dataset.List(p.config.InputDir, p.config.Pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		p.logger.Warn("No input files found", "dir", p.config.InputDir, "pattern", p.config.Pattern)
	}
	return p.ProcessFiles(ctx, paths)
}

// ProcessFiles processes paths in order. A file that cannot be read or lacks
// required columns is skipped; the batch continues. The cache is flushed
// every CheckpointInterval new suggestions and once more at the end, also
// when ctx is cancelled.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string) (*BatchResult, error) {
	result := &BatchResult{StartedAt: time.Now()}

	p.logger.Info("Starting enrichment batch",
		"files", len(paths),
		"cached", p.cache.Len(),
		"next_check_id", int(p.cache.NextID()),
		"checkpoint_interval", p.config.CheckpointInterval,
		"driver", p.driver.GetCapabilities().Driver,
	)

	for _, path := range paths {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		dr, err := p.processDataset(ctx, path, result)
		if err != nil {
			if ctx.Err() != nil {
				result.Interrupted = true
				p.logger.Warn("Batch interrupted", "file", path, "error", err)
				break
			}
			p.skip(result, path, err)
			continue
		}
		result.Datasets = append(result.Datasets, *dr)
	}

	flushErr := p.flush(result, "final")
	result.FinishedAt = time.Now()
	stats := p.cache.Stats()

	p.logger.Info("Enrichment batch finished",
		"processed", len(result.Datasets),
		"skipped", len(result.Skipped),
		"new_suggestions", result.NewSuggestions,
		"cache_hits", result.CacheHits,
		"failures", result.Failures,
		"checkpoints", result.Checkpoints,
		"cached", stats.TotalEntries,
		"cache_hit_rate", stats.HitRate,
		"interrupted", result.Interrupted,
		"duration", result.FinishedAt.Sub(result.StartedAt),
	)

	if flushErr != nil {
		return result, flushErr
	}
	if result.Interrupted {
		return result, fmt.Errorf("batch interrupted: %w", context.Cause(ctx))
	}
	return result, nil
}

func (p *Processor) skip(result *BatchResult, path string, err error) {
	skipped := SkippedDataset{Path: path, Err: err}

	var missing *dataset.MissingColumnsError
	if errors.As(err, &missing) {
		skipped.Missing = missing.Missing
		p.logger.Warn("Skipping dataset with missing columns", "file", path, "missing", missing.Missing)
	} else {
		p.logger.Warn("Skipping dataset", "file", path, "error", err)
	}
	result.Skipped = append(result.Skipped, skipped)
}

func (p *Processor) processDataset(ctx context.Context, path string, result *BatchResult) (*DatasetResult, error) {
	ds, err := dataset.Read(path, p.config.HeaderSkip)
	if err != nil {
		return nil, err
	}

	log := p.logger.With("file", ds.Name)
	log.Info("Processing dataset", "rows", len(ds.Rows))

	dr := &DatasetResult{Name: ds.Name, Path: path, Rows: len(ds.Rows)}
	suggestions := make([]string, len(ds.Findings))

	for i := range ds.Findings {
		text, err := p.suggest(ctx, log, ds.Findings[i], dr, result)
		if err != nil {
			return nil, err
		}
		suggestions[i] = text
	}

	header, rows, err := ds.WithSuggestions(models.SuggestionColumn, suggestions)
	if err != nil {
		return nil, err
	}
	data, err := storage.EncodeCSV(header, rows, true)
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}
	dr.Export, err = p.sink.Put(ctx, storage.ExportName(), data, storage.ContentTypeCSV)
	if err != nil {
		return nil, fmt.Errorf("writing export: %w", err)
	}
	log.Info("Wrote enriched export", "location", dr.Export, "sink", p.sink.Name())

	dr.Summary, dr.SummaryErr = p.aggregator.Record(ctx, ds.Name, ds.Findings)
	if dr.SummaryErr != nil {
		log.Warn("Summary was not stored everywhere", "error", dr.SummaryErr)
	}

	return dr, nil
}

// suggest returns the suggestion for one finding, enriching and caching it on
// a miss. Driver failures become sentinel suggestions; only cancellation of
// ctx is returned as an error.
func (p *Processor) suggest(ctx context.Context, log logger.Logger, f models.Finding, dr *DatasetResult, result *BatchResult) (string, error) {
	key := f.Key()
	if key == "" {
		log.Warn("Finding has no check title, skipping enrichment", "serial", f.SerialNumber)
		return enrichment.Sentinel(enrichment.NoSuggestion("missing check title")), nil
	}

	if rec, ok := p.cache.Lookup(key); ok {
		dr.CacheHits++
		result.CacheHits++
		log.Debug("Using cached suggestion", "check_title", key, "check_id", int(rec.CheckID))
		return rec.Suggestion, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := p.cache.NextID()
	log.Debug("Requesting suggestion", "check_title", key, "check_id", int(id))

	text, err := p.driver.Generate(ctx, BuildPrompt(enrichment.RequestFromFinding(f)))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		text = enrichment.Sentinel(err)
		dr.Failures++
		result.Failures++
		log.Warn("Enrichment failed, storing sentinel",
			"check_title", key,
			"check_id", int(id),
			"class", string(enrichment.ClassOf(err)),
			"error", err)
	}

	if err := p.cache.Insert(key, models.NewCacheRecord(id, f, text)); err != nil {
		return "", err
	}
	dr.NewSuggestions++
	result.NewSuggestions++
	p.pending++

	if p.pending >= p.config.CheckpointInterval {
		if err := p.flush(result, "checkpoint"); err != nil {
			log.Error("Checkpoint flush failed", "error", err)
		}
	}
	return text, nil
}

// flush saves the cache and resets the pending counter on success.
func (p *Processor) flush(result *BatchResult, reason string) error {
	if err := p.cache.Save(); err != nil {
		return fmt.Errorf("saving cache: %w", err)
	}
	if reason == "checkpoint" {
		result.Checkpoints++
	}
	p.logger.Debug("Flushed suggestion cache", "reason", reason, "records", p.cache.Len(), "pending", p.pending)
	p.pending = 0
	return nil
}
