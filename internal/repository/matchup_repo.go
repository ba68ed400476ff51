package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

type MatchupRepo struct {
	pool *pgxpool.Pool
}

func NewMatchupRepo(pool *pgxpool.Pool) *MatchupRepo {
	return &MatchupRepo{pool: pool}
}

const matchupColumns = `
	m.id, m.post_a_id, m.post_b_id, m.tool_a_id, m.tool_b_id, m.prompt_id,
	m.position_seed, m.status, m.is_pinned, m.created_at, m.updated_at, p.category`

const matchupFrom = `
	FROM matchups m
	JOIN posts p ON p.id = m.post_a_id`

func scanMatchup(row pgx.Row) (*model.Matchup, error) {
	var m model.Matchup
	err := row.Scan(
		&m.ID, &m.PostA, &m.PostB, &m.ToolA, &m.ToolB, &m.PromptID,
		&m.PositionSeed, &m.Status, &m.Pinned, &m.CreatedAt, &m.UpdatedAt, &m.Category,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMatchup relies on the (post_a_id, post_b_id) unique constraint; a
// losing concurrent insert reads back the winner's row.
func (r *MatchupRepo) InsertMatchup(ctx context.Context, m *model.Matchup) (*model.Matchup, bool, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO matchups (post_a_id, post_b_id, tool_a_id, tool_b_id, prompt_id,
		                      position_seed, status, is_pinned, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (post_a_id, post_b_id) DO NOTHING
		RETURNING id`,
		m.PostA, m.PostB, m.ToolA, m.ToolB, m.PromptID,
		m.PositionSeed, m.Status, m.Pinned, m.CreatedAt).Scan(&id)

	created := true
	if errors.Is(err, pgx.ErrNoRows) {
		created = false
		err = r.pool.QueryRow(ctx, `
			SELECT id FROM matchups WHERE post_a_id = $1 AND post_b_id = $2`,
			m.PostA, m.PostB).Scan(&id)
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert matchup: %w", err)
	}

	stored, err := r.GetMatchup(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *MatchupRepo) GetMatchup(ctx context.Context, id int64) (*model.Matchup, error) {
	m, err := scanMatchup(r.pool.QueryRow(ctx,
		`SELECT `+matchupColumns+matchupFrom+` WHERE m.id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *MatchupRepo) FindMatchupByPosts(ctx context.Context, postA, postB int64) (*model.Matchup, error) {
	m, err := scanMatchup(r.pool.QueryRow(ctx,
		`SELECT `+matchupColumns+matchupFrom+` WHERE m.post_a_id = $1 AND m.post_b_id = $2`, postA, postB))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

func (r *MatchupRepo) ListMatchups(ctx context.Context, f model.MatchupFilter) ([]model.Matchup, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("m.status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("p.category = $%d", len(args)))
	}

	query := `SELECT ` + matchupColumns + matchupFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY m.is_pinned DESC, m.created_at DESC, m.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Matchup
	for rows.Next() {
		m, err := scanMatchup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MatchupRepo) SetMatchupStatus(ctx context.Context, id int64, status string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE matchups SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *MatchupRepo) SetMatchupPinned(ctx context.Context, id int64, pinned bool, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE matchups SET is_pinned = $2, updated_at = $3 WHERE id = $1`, id, pinned, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
