// Package store declares the persistence contracts of the voting core. The
// Postgres implementation lives in internal/repository, the in-process one in
// internal/store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/harberts01/Ai-Blog/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned when a write lost a uniqueness race it could not resolve.
var ErrConflict = errors.New("store: conflict")

// Registry is the read-only view of the external content registry.
type Registry interface {
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	ListPostsByCategory(ctx context.Context, category string) ([]model.Post, error)
	ListPostCategories(ctx context.Context) ([]string, error)
	GetTool(ctx context.Context, id int64) (*model.Tool, error)
	GetToolBySlug(ctx context.Context, slug string) (*model.Tool, error)
	ListTools(ctx context.Context) ([]model.Tool, error)
}

// Users exposes the subscription flag written by billing.
type Users interface {
	IsPremium(ctx context.Context, userID int64) (bool, error)
}

// Matchups persists matchups. Category on returned matchups is derived from PostA.
type Matchups interface {
	// InsertMatchup stores m unless (PostA, PostB) already exists, in which
	// case the existing row is returned with created == false.
	InsertMatchup(ctx context.Context, m *model.Matchup) (stored *model.Matchup, created bool, err error)
	GetMatchup(ctx context.Context, id int64) (*model.Matchup, error)
	// FindMatchupByPosts looks up the matchup for a canonical (PostA, PostB)
	// pair, returning ErrNotFound when there is none.
	FindMatchupByPosts(ctx context.Context, postA, postB int64) (*model.Matchup, error)
	ListMatchups(ctx context.Context, f model.MatchupFilter) ([]model.Matchup, error)
	SetMatchupStatus(ctx context.Context, id int64, status string, at time.Time) error
	SetMatchupPinned(ctx context.Context, id int64, pinned bool, at time.Time) error
}

// UpsertOutcome reports how a conditional vote write resolved.
type UpsertOutcome int

const (
	UpsertInserted UpsertOutcome = iota
	UpsertUpdated
	UpsertLocked
)

// VoteFilter narrows vote scans. Zero values mean no constraint.
type VoteFilter struct {
	UserID        int64
	MatchupIDs    []int64
	CreatedBefore time.Time
}

// VoteTx is the view of the ledger inside a per-user serialized transaction.
type VoteTx interface {
	UserVotesForMatchup(ctx context.Context, userID, matchupID int64) ([]model.Vote, error)
	// CountNewMatchupsSince counts distinct matchups whose first vote by
	// userID was created at or after since.
	CountNewMatchupsSince(ctx context.Context, userID int64, since time.Time) (int, error)
	// UpsertVote inserts v or, when (user, matchup, category) exists, updates
	// its winner only while v.UpdatedAt is within lockWindow of the stored
	// creation time and the row is not flagged locked.
	UpsertVote(ctx context.Context, v *model.Vote, lockWindow time.Duration) (*model.Vote, UpsertOutcome, error)
	MarkLocked(ctx context.Context, voteIDs []int64) error
	AppendEvent(ctx context.Context, e *model.VoteEvent) error
}

// Votes is the vote ledger and its audit trail.
type Votes interface {
	// InUserTx runs fn in a transaction serialized against every other
	// InUserTx for the same user, across processes. fn's writes are discarded
	// if it returns an error.
	InUserTx(ctx context.Context, userID int64, fn func(tx VoteTx) error) error
	AppendEvent(ctx context.Context, e *model.VoteEvent) error
	ListEvents(ctx context.Context, userID int64, limit int) ([]model.VoteEvent, error)
	UserVotesForMatchup(ctx context.Context, userID, matchupID int64) ([]model.Vote, error)
	CountNewMatchupsSince(ctx context.Context, userID int64, since time.Time) (int, error)
	ListVotes(ctx context.Context, f VoteFilter) ([]model.Vote, error)
}

// Store bundles every contract the services depend on.
type Store interface {
	Registry
	Users
	Matchups
	Votes
}
