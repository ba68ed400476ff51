package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type VoteRepo struct {
	pool *pgxpool.Pool
}

func NewVoteRepo(pool *pgxpool.Pool) *VoteRepo {
	return &VoteRepo{pool: pool}
}

const voteColumns = `
	id, user_id, matchup_id, category, winner_tool_id, position_a_was_left,
	is_locked, created_at, updated_at`

func scanVote(row pgx.Row, v *model.Vote, extra ...any) error {
	dest := []any{
		&v.ID, &v.UserID, &v.MatchupID, &v.Category, &v.WinnerTool, &v.PositionAWasLeft,
		&v.Locked, &v.CreatedAt, &v.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func collectVotes(rows pgx.Rows) ([]model.Vote, error) {
	defer rows.Close()
	var votes []model.Vote
	for rows.Next() {
		var v model.Vote
		if err := scanVote(rows, &v); err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// InUserTx serializes on a transaction-scoped advisory lock keyed by user,
// which holds across every process sharing the database.
func (r *VoteRepo) InUserTx(ctx context.Context, userID int64, fn func(tx store.VoteTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('votes:user:' || $1::text, 0))`, userID)
	if err != nil {
		return fmt.Errorf("acquire user lock: %w", err)
	}

	if err := fn(&voteTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *VoteRepo) AppendEvent(ctx context.Context, e *model.VoteEvent) error {
	return appendEvent(ctx, r.pool, e)
}

func (r *VoteRepo) ListEvents(ctx context.Context, userID int64, limit int) ([]model.VoteEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, matchup_id, event_type, categories, error_code, metadata, created_at
		FROM vote_events
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.VoteEvent
	for rows.Next() {
		var (
			e    model.VoteEvent
			code *string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.MatchupID, &e.EventType, &e.Categories,
			&code, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if code != nil {
			e.ErrorCode = *code
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *VoteRepo) UserVotesForMatchup(ctx context.Context, userID, matchupID int64) ([]model.Vote, error) {
	return userVotesForMatchup(ctx, r.pool, userID, matchupID)
}

func (r *VoteRepo) CountNewMatchupsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	return countNewMatchupsSince(ctx, r.pool, userID, since)
}

// ListVotes runs a read-committed scan; rows committed mid-scan may be missed.
func (r *VoteRepo) ListVotes(ctx context.Context, f store.VoteFilter) ([]model.Vote, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != 0 {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(f.MatchupIDs) > 0 {
		args = append(args, f.MatchupIDs)
		where = append(where, fmt.Sprintf("matchup_id = ANY($%d)", len(args)))
	}
	if !f.CreatedBefore.IsZero() {
		args = append(args, f.CreatedBefore)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	query := `SELECT ` + voteColumns + ` FROM votes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectVotes(rows)
}

type voteTx struct {
	q querier
}

func (t *voteTx) UserVotesForMatchup(ctx context.Context, userID, matchupID int64) ([]model.Vote, error) {
	return userVotesForMatchup(ctx, t.q, userID, matchupID)
}

func (t *voteTx) CountNewMatchupsSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	return countNewMatchupsSince(ctx, t.q, userID, since)
}

// UpsertVote is a single conditional write keyed on (user, matchup, category).
// The DO UPDATE only fires inside the lock window; when it does not, no row
// is returned and the vote is reported locked.
func (t *voteTx) UpsertVote(ctx context.Context, v *model.Vote, lockWindow time.Duration) (*model.Vote, store.UpsertOutcome, error) {
	var (
		out      model.Vote
		inserted bool
	)
	err := scanVote(t.q.QueryRow(ctx, `
		INSERT INTO votes (user_id, matchup_id, category, winner_tool_id, position_a_was_left,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, matchup_id, category) DO UPDATE
		SET winner_tool_id = EXCLUDED.winner_tool_id,
		    updated_at = EXCLUDED.updated_at
		WHERE NOT votes.is_locked
		  AND EXCLUDED.updated_at <= votes.created_at + make_interval(secs => $8)
		RETURNING `+voteColumns+`, (xmax = 0) AS inserted`,
		v.UserID, v.MatchupID, v.Category, v.WinnerTool, v.PositionAWasLeft,
		v.CreatedAt, v.UpdatedAt, lockWindow.Seconds()), &out, &inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.UpsertLocked, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return nil, 0, fmt.Errorf("upsert vote: %w", store.ErrConflict)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("upsert vote: %w", err)
	}
	if inserted {
		return &out, store.UpsertInserted, nil
	}
	return &out, store.UpsertUpdated, nil
}

func (t *voteTx) MarkLocked(ctx context.Context, voteIDs []int64) error {
	if len(voteIDs) == 0 {
		return nil
	}
	_, err := t.q.Exec(ctx, `UPDATE votes SET is_locked = TRUE WHERE id = ANY($1) AND NOT is_locked`, voteIDs)
	return err
}

func (t *voteTx) AppendEvent(ctx context.Context, e *model.VoteEvent) error {
	return appendEvent(ctx, t.q, e)
}

func userVotesForMatchup(ctx context.Context, q querier, userID, matchupID int64) ([]model.Vote, error) {
	rows, err := q.Query(ctx, `
		SELECT `+voteColumns+` FROM votes
		WHERE user_id = $1 AND matchup_id = $2
		ORDER BY id`, userID, matchupID)
	if err != nil {
		return nil, err
	}
	return collectVotes(rows)
}

func countNewMatchupsSince(ctx context.Context, q querier, userID int64, since time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT matchup_id FROM votes
			WHERE user_id = $1
			GROUP BY matchup_id
			HAVING MIN(created_at) >= $2
		) first_votes`, userID, since).Scan(&n)
	return n, err
}

func appendEvent(ctx context.Context, q querier, e *model.VoteEvent) error {
	var code *string
	if e.ErrorCode != "" {
		code = &e.ErrorCode
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	categories := e.Categories
	if categories == nil {
		categories = []string{}
	}
	return q.QueryRow(ctx, `
		INSERT INTO vote_events (user_id, matchup_id, event_type, categories, error_code, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.UserID, e.MatchupID, e.EventType, categories, code, metadata, e.CreatedAt).Scan(&e.ID)
}
