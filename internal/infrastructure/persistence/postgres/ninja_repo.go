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
// NINJA REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// NinjaRepository implements ninja.Repository for PostgreSQL.
type NinjaRepository struct {
	conn *Connection
}

var _ ninja.Repository = (*NinjaRepository)(nil)

// NewNinjaRepository creates a new NinjaRepository.
func NewNinjaRepository(conn *Connection) *NinjaRepository {
	return &NinjaRepository{conn: conn}
}

const ninjaColumns = `id, first_name, last_name, username, path, belt, level, lesson, bux, created_at, updated_at`

// Create creates a new ninja.
func (r *NinjaRepository) Create(ctx context.Context, n *ninja.Ninja) error {
	query := `
		INSERT INTO ninjas (` + ninjaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		n.ID,
		n.FirstName,
		n.LastName,
		n.Username,
		n.Progression.Path.String(),
		n.Progression.Belt.String(),
		n.Progression.Level,
		n.Progression.Lesson,
		n.Bux,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrNinjaAlreadyExists
		}
		return fmt.Errorf("failed to create ninja: %w", err)
	}

	return nil
}

// GetByID returns a ninja by ID.
func (r *NinjaRepository) GetByID(ctx context.Context, id string) (*ninja.Ninja, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, shared.ErrNinjaNotFound
	}

	row := r.conn.QueryRow(ctx, `SELECT `+ninjaColumns+` FROM ninjas WHERE id = $1`, id)
	return scanNinja(row)
}

// Update updates a ninja's profile, position and balance.
func (r *NinjaRepository) Update(ctx context.Context, n *ninja.Ninja) error {
	return r.update(ctx, r.conn, n)
}

func (r *NinjaRepository) update(ctx context.Context, q Querier, n *ninja.Ninja) error {
	query := `
		UPDATE ninjas SET
			first_name = $1,
			last_name = $2,
			username = $3,
			path = $4,
			belt = $5,
			level = $6,
			lesson = $7,
			bux = $8,
			updated_at = $9
		WHERE id = $10
	`

	tag, err := q.Exec(ctx, query,
		n.FirstName,
		n.LastName,
		n.Username,
		n.Progression.Path.String(),
		n.Progression.Belt.String(),
		n.Progression.Level,
		n.Progression.Lesson,
		n.Bux,
		n.UpdatedAt,
		n.ID,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrNinjaAlreadyExists
		}
		return fmt.Errorf("failed to update ninja: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNinjaNotFound
	}

	return nil
}

// List returns ninjas in creation order.
func (r *NinjaRepository) List(ctx context.Context, opts ninja.ListOptions) ([]*ninja.Ninja, error) {
	opts = opts.Normalized()

	rows, err := r.conn.Query(ctx, `
		SELECT `+ninjaColumns+`
		FROM ninjas
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2
	`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list ninjas: %w", err)
	}
	defer rows.Close()

	out := make([]*ninja.Ninja, 0, opts.Limit)
	for rows.Next() {
		n, err := scanNinja(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	return out, rows.Err()
}

// SaveProgress updates the ninja and appends the history entry in one transaction.
// The update only applies while the stored position equals entry.From.
func (r *NinjaRepository) SaveProgress(ctx context.Context, n *ninja.Ninja, entry *ninja.ProgressEntry) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE ninjas SET
				path = $1, belt = $2, level = $3, lesson = $4, bux = $5, updated_at = $6
			WHERE id = $7
			  AND path = $8 AND belt = $9 AND level = $10 AND lesson = $11
		`,
			n.Progression.Path.String(),
			n.Progression.Belt.String(),
			n.Progression.Level,
			n.Progression.Lesson,
			n.Bux,
			n.UpdatedAt,
			n.ID,
			entry.From.Path.String(),
			entry.From.Belt.String(),
			entry.From.Level,
			entry.From.Lesson,
		)
		if err != nil {
			return fmt.Errorf("failed to update ninja progression: %w", err)
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ninjas WHERE id = $1)`, n.ID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check ninja: %w", err)
			}
			if !exists {
				return shared.ErrNinjaNotFound
			}
			return shared.NewDomainError("ninja", "SaveProgress", shared.ErrConcurrentModification,
				"progression changed since it was read")
		}

		return insertEntry(ctx, tx, entry)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanNinja(row pgx.Row) (*ninja.Ninja, error) {
	var (
		n          ninja.Ninja
		path, belt string
	)

	err := row.Scan(
		&n.ID,
		&n.FirstName,
		&n.LastName,
		&n.Username,
		&path,
		&belt,
		&n.Progression.Level,
		&n.Progression.Lesson,
		&n.Bux,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrNinjaNotFound
		}
		return nil, fmt.Errorf("failed to scan ninja: %w", err)
	}

	if n.Progression.Path, err = progression.ParsePath(path); err != nil {
		return nil, fmt.Errorf("ninja %s: %w", n.ID, err)
	}
	if n.Progression.Belt, err = progression.ParseBelt(belt); err != nil {
		return nil, fmt.Errorf("ninja %s: %w", n.ID, err)
	}

	return &n, nil
}
