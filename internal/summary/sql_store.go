package summary

import (
	"context"

	"github.com/joshsymonds/warlens/internal/database"
	"github.com/joshsymonds/warlens/internal/models"
)

// SQLStore projects summaries into the SQLite file_summaries table.
type SQLStore struct {
	db *database.DB
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Name implements Store.
func (s *SQLStore) Name() string { return "sqlite" }

// Upsert implements Store.
func (s *SQLStore) Upsert(ctx context.Context, summary models.FileSummary) error {
	return s.db.UpsertFileSummary(ctx, summary)
}

// Replace implements Projection.
func (s *SQLStore) Replace(ctx context.Context, list []models.FileSummary) error {
	return s.db.ReplaceFileSummaries(ctx, list)
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context) ([]models.FileSummary, error) {
	return s.db.ListFileSummaries(ctx)
}
