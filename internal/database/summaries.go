package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joshsymonds/warlens/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const summaryColumns = `filename, schema_version, total_findings, failed_findings,
	failed_pillar_counts, failed_severity_counts, failed_check_title_counts, generated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// UpsertFileSummary inserts s, or replaces the row already stored for
// s.Filename. The row keeps its id so list order stays first-seen order.
func (db *DB) UpsertFileSummary(ctx context.Context, s models.FileSummary) error {
	return upsertSummary(ctx, db, s)
}

// ReplaceFileSummaries makes the table hold exactly list, in list order.
// The rewrite runs in one transaction so readers never see a partial table.
func (db *DB) ReplaceFileSummaries(ctx context.Context, list []models.FileSummary) error {
	return db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM file_summaries`); err != nil {
			return fmt.Errorf("clearing summaries: %w", err)
		}
		for _, s := range list {
			if err := upsertSummary(ctx, tx, s); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertSummary(ctx context.Context, exec execer, s models.FileSummary) error {
	pillars, err := json.Marshal(nonNil(s.FailedPillarCounts))
	if err != nil {
		return fmt.Errorf("marshaling pillar counts: %w", err)
	}
	severities, err := json.Marshal(nonNil(s.FailedSeverityCounts))
	if err != nil {
		return fmt.Errorf("marshaling severity counts: %w", err)
	}
	titles := s.FailedCheckTitleCounts
	if titles == nil {
		titles = map[string]models.TitleCount{}
	}
	titlesJSON, err := json.Marshal(titles)
	if err != nil {
		return fmt.Errorf("marshaling check title counts: %w", err)
	}

	query := `
		INSERT INTO file_summaries (` + summaryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			schema_version = excluded.schema_version,
			total_findings = excluded.total_findings,
			failed_findings = excluded.failed_findings,
			failed_pillar_counts = excluded.failed_pillar_counts,
			failed_severity_counts = excluded.failed_severity_counts,
			failed_check_title_counts = excluded.failed_check_title_counts,
			generated_at = excluded.generated_at,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = exec.ExecContext(ctx, query,
		s.Filename,
		s.SchemaVersion,
		s.TotalFindings,
		s.FailedFindings,
		string(pillars),
		string(severities),
		string(titlesJSON),
		s.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upserting summary for %s: %w", s.Filename, err)
	}
	return nil
}

// ListFileSummaries returns every stored summary in insertion order.
func (db *DB) ListFileSummaries(ctx context.Context) ([]models.FileSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+summaryColumns+` FROM file_summaries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []models.FileSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating summaries: %w", err)
	}
	return summaries, nil
}

// GetFileSummary returns the summary stored for filename.
func (db *DB) GetFileSummary(ctx context.Context, filename string) (models.FileSummary, error) {
	row := db.QueryRowContext(ctx, `SELECT `+summaryColumns+` FROM file_summaries WHERE filename = ?`, filename)
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FileSummary{}, fmt.Errorf("summary %s: %w", filename, ErrNotFound)
	}
	return s, err
}

// CountFileSummaries returns the number of stored summaries.
func (db *DB) CountFileSummaries(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM file_summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting summaries: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (models.FileSummary, error) {
	var s models.FileSummary
	var pillars, severities, titles string
	err := row.Scan(
		&s.Filename,
		&s.SchemaVersion,
		&s.TotalFindings,
		&s.FailedFindings,
		&pillars,
		&severities,
		&titles,
		&s.Timestamp,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("scanning summary: %w", err)
	}

	if err := json.Unmarshal([]byte(pillars), &s.FailedPillarCounts); err != nil {
		return s, fmt.Errorf("decoding pillar counts of %s: %w", s.Filename, err)
	}
	if err := json.Unmarshal([]byte(severities), &s.FailedSeverityCounts); err != nil {
		return s, fmt.Errorf("decoding severity counts of %s: %w", s.Filename, err)
	}
	if err := json.Unmarshal([]byte(titles), &s.FailedCheckTitleCounts); err != nil {
		return s, fmt.Errorf("decoding check title counts of %s: %w", s.Filename, err)
	}
	return s, nil
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
