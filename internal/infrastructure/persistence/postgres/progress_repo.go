package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/ninja"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/progression"
	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS HISTORY REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository implements ninja.HistoryRepository for PostgreSQL.
type HistoryRepository struct {
	conn *Connection
}

var _ ninja.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository.
func NewHistoryRepository(conn *Connection) *HistoryRepository {
	return &HistoryRepository{conn: conn}
}

const entryColumns = `
	id, ninja_id, kind,
	from_path, from_belt, from_level, from_lesson,
	to_path, to_belt, to_level, to_lesson,
	rollover, bux_delta, note, created_at, corrected_at`

// GetByID returns a history entry.
func (r *HistoryRepository) GetByID(ctx context.Context, id string) (*ninja.ProgressEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrProgressEntryNotFound
	}

	row := r.conn.QueryRow(ctx, `SELECT `+entryColumns+` FROM progress_entries WHERE id = $1`, id)
	return scanEntry(row)
}

// ListByNinja returns a ninja's entries, newest first.
func (r *HistoryRepository) ListByNinja(ctx context.Context, ninjaID string, opts ninja.ListOptions) ([]*ninja.ProgressEntry, error) {
	if _, err := uuid.Parse(ninjaID); err != nil {
		return []*ninja.ProgressEntry{}, nil
	}
	opts = opts.Normalized()

	rows, err := r.conn.Query(ctx, `
		SELECT `+entryColumns+`
		FROM progress_entries
		WHERE ninja_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, ninjaID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress entries: %w", err)
	}
	defer rows.Close()

	out := make([]*ninja.ProgressEntry, 0, opts.Limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// UpdateTarget stores a corrected target position, note and correction time.
func (r *HistoryRepository) UpdateTarget(ctx context.Context, e *ninja.ProgressEntry) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE progress_entries SET
			to_path = $1, to_belt = $2, to_level = $3, to_lesson = $4,
			note = $5, corrected_at = $6
		WHERE id = $7
	`,
		e.To.Path.String(),
		e.To.Belt.String(),
		e.To.Level,
		e.To.Lesson,
		e.Note,
		e.CorrectedAt,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProgressEntryNotFound
	}
	return nil
}

func insertEntry(ctx context.Context, q Querier, e *ninja.ProgressEntry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO progress_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		e.ID,
		e.NinjaID,
		string(e.Kind),
		e.From.Path.String(),
		e.From.Belt.String(),
		e.From.Level,
		e.From.Lesson,
		e.To.Path.String(),
		e.To.Belt.String(),
		e.To.Level,
		e.To.Lesson,
		string(e.Rollover),
		e.BuxDelta,
		e.Note,
		e.CreatedAt,
		e.CorrectedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("progress", "Append", shared.ErrAlreadyExists, "progress entry already exists")
		}
		return fmt.Errorf("failed to insert progress entry: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (*ninja.ProgressEntry, error) {
	var (
		e                  ninja.ProgressEntry
		kind, rollover     string
		fromPath, fromBelt string
		toPath, toBelt     string
	)

	err := row.Scan(
		&e.ID, &e.NinjaID, &kind,
		&fromPath, &fromBelt, &e.From.Level, &e.From.Lesson,
		&toPath, &toBelt, &e.To.Level, &e.To.Lesson,
		&rollover, &e.BuxDelta, &e.Note, &e.CreatedAt, &e.CorrectedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan progress entry: %w", err)
	}

	e.Kind = ninja.EntryKind(kind)
	e.Rollover = progression.Rollover(rollover)

	if e.From, err = parseState(e.From, fromPath, fromBelt); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	if e.To, err = parseState(e.To, toPath, toBelt); err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.ID, err)
	}

	return &e, nil
}

func parseState(s progression.State, path, belt string) (progression.State, error) {
	var err error
	if s.Path, err = progression.ParsePath(path); err != nil {
		return s, err
	}
	if s.Belt, err = progression.ParseBelt(belt); err != nil {
		return s, err
	}
	return s, nil
}
