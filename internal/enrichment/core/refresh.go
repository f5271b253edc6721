package core

import (
	"context"
	"fmt"

	"github.com/joshsymonds/warlens/internal/enrichment"
	"github.com/joshsymonds/warlens/internal/models"
)

// RefreshFailure is a refresh whose regeneration failed. The previous
// suggestion is kept.
type RefreshFailure struct {
	Err error
	ID  models.CheckID
}

// RefreshResult reports the outcome for every requested check ID.
type RefreshResult struct {
	Updated  []models.CheckID
	NotFound []models.CheckID
	Failed   []RefreshFailure
}

// Refresh regenerates the suggestions of the given check IDs. Only the
// suggestion of each matched record changes. Unknown IDs are reported and
// skipped. The cache is saved once at the end if anything changed.
func (p *Processor) Refresh(ctx context.Context, ids []models.CheckID, additionalInfo string) (*RefreshResult, error) {
	result := &RefreshResult{}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		key, rec, ok := p.cache.LookupID(id)
		if !ok {
			p.logger.Warn("Check ID not found in cache, skipping", "check_id", int(id))
			result.NotFound = append(result.NotFound, id)
			continue
		}

		p.logger.Info("Refreshing suggestion", "check_id", int(id), "check_title", key)
		text, err := p.driver.Generate(ctx, BuildPrompt(enrichment.RequestFromRecord(rec, additionalInfo)))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("Refresh failed, keeping previous suggestion",
				"check_id", int(id),
				"class", string(enrichment.ClassOf(err)),
				"error", err)
			result.Failed = append(result.Failed, RefreshFailure{ID: id, Err: err})
			continue
		}

		p.cache.Refresh(id, text)
		result.Updated = append(result.Updated, id)
	}

	if len(result.Updated) > 0 {
		if err := p.cache.Save(); err != nil {
			return result, fmt.Errorf("saving cache: %w", err)
		}
	}

	p.logger.Info("Refresh finished",
		"updated", len(result.Updated),
		"not_found", len(result.NotFound),
		"failed", len(result.Failed))

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("refresh interrupted: %w", err)
	}
	return result, nil
}
