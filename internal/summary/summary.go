// Package summary computes per-file statistics and keeps them in durable
// stores keyed by file name.
package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/joshsymonds/warlens/internal/models"
	"github.com/joshsymonds/warlens/pkg/logger"
)

// TimestampLayout renders summary timestamps, e.g. "2024-05-01 10:00:00 PDT".
const TimestampLayout = "2006-01-02 15:04:05 MST"

// Store file names inside the summary directory.
const (
	JSONFileName = "summary.json"
	CSVFileName  = "summary.csv"
)

// Store persists file summaries. Upsert replaces the summary already stored
// for the same file name, or appends a new one.
type Store interface {
	Name() string
	Upsert(ctx context.Context, s models.FileSummary) error
	List(ctx context.Context) ([]models.FileSummary, error)
}

// Projection is a Store that can be rebuilt wholesale from the primary
// store's list.
type Projection interface {
	Store
	Replace(ctx context.Context, list []models.FileSummary) error
}

// Summarize computes the statistics of one processed file. Only failed rows
// contribute to the breakdowns. A check title keeps the severity of its first
// failed row.
func Summarize(filename string, findings []models.Finding, at time.Time) models.FileSummary {
	s := models.FileSummary{
		SchemaVersion:          models.SchemaVersion,
		Filename:               filename,
		TotalFindings:          len(findings),
		FailedPillarCounts:     make(map[string]int),
		FailedSeverityCounts:   make(map[string]int),
		FailedCheckTitleCounts: make(map[string]models.TitleCount),
		Timestamp:              at.Format(TimestampLayout),
	}

	for i := range findings {
		f := &findings[i]
		if !f.Failed() {
			continue
		}
		s.FailedFindings++

		severity := models.NormalizeLabel(f.Severity)
		s.FailedPillarCounts[models.NormalizeLabel(f.Pillar)]++
		s.FailedSeverityCounts[severity]++

		tc, seen := s.FailedCheckTitleCounts[f.CheckTitle]
		if !seen {
			tc.Severity = severity
		}
		tc.Count++
		s.FailedCheckTitleCounts[f.CheckTitle] = tc
	}

	return s
}

// Aggregator summarizes processed files and upserts the result into every
// configured store. The first store is the primary: after each upsert, any
// Projection whose contents differ from the primary's list is rewritten from
// that list.
type Aggregator struct {
	logger logger.Logger
	clock  func() time.Time
	loc    *time.Location
	stores []Store
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(a *Aggregator) {
		a.clock = clock
	}
}

// WithLocation sets the timezone summary timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// NewAggregator creates an Aggregator writing to stores. stores[0] is the
// primary store.
func NewAggregator(log logger.Logger, stores []Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		logger: log,
		clock:  time.Now,
		loc:    time.Local,
		stores: stores,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Stores returns the configured stores.
func (a *Aggregator) Stores() []Store {
	return a.stores
}

// Record summarizes findings and upserts the summary into every store. A
// failing store does not stop the others; all failures are returned joined.
// When the primary store cannot be read back, projections only get the
// upsert.
func (a *Aggregator) Record(ctx context.Context, filename string, findings []models.Finding) (models.FileSummary, error) {
	s := Summarize(filename, findings, a.clock().In(a.loc))
	if len(a.stores) == 0 {
		return s, nil
	}

	var errs []error
	fail := func(store Store, err error) {
		a.logger.Error("Failed to store summary", "store", store.Name(), "file", filename, "error", err)
		errs = append(errs, fmt.Errorf("%s store: %w", store.Name(), err))
	}

	primary := a.stores[0]
	var source []models.FileSummary
	haveSource := false
	if err := primary.Upsert(ctx, s); err != nil {
		fail(primary, err)
	} else if source, err = primary.List(ctx); err != nil {
		fail(primary, err)
	} else {
		haveSource = true
	}

	for _, store := range a.stores[1:] {
		if err := store.Upsert(ctx, s); err != nil {
			fail(store, err)
			continue
		}
		if !haveSource {
			continue
		}
		if err := a.resync(ctx, store, source); err != nil {
			fail(store, err)
		}
	}

	a.logger.Info("Recorded file summary",
		"file", filename,
		"total", s.TotalFindings,
		"failed", s.FailedFindings,
		"stores", len(a.stores)-len(errs))

	return s, errors.Join(errs...)
}

// resync rewrites store from source when it is a Projection whose contents
// have drifted.
func (a *Aggregator) resync(ctx context.Context, store Store, source []models.FileSummary) error {
	p, ok := store.(Projection)
	if !ok {
		return nil
	}
	current, err := p.List(ctx)
	if err != nil {
		return err
	}
	if cmp.Equal(current, source, cmpopts.EquateEmpty()) {
		return nil
	}

	a.logger.Warn("Rebuilding summary store from primary",
		"event", "store_resync",
		"store", p.Name(),
		"primary", a.stores[0].Name(),
		"entries", len(current),
		"want", len(source))
	return p.Replace(ctx, source)
}

// upsert replaces the entry with s.Filename or appends s. It reports whether
// an existing entry was replaced.
func upsert(list []models.FileSummary, s models.FileSummary) ([]models.FileSummary, bool) {
	for i := range list {
		if list[i].Filename == s.Filename {
			list[i] = s
			return list, true
		}
	}
	return append(list, s), false
}
