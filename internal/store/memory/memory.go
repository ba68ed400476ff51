// Package memory is an in-process implementation of store.Store. It backs
// STORE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

type voteKey struct {
	userID    int64
	matchupID int64
	category  string
}

type pairKey struct {
	postA int64
	postB int64
}

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	mu sync.Mutex

	tools    map[int64]*model.Tool
	posts    map[int64]*model.Post
	premium  map[int64]bool
	matchups map[int64]*model.Matchup
	pairs    map[pairKey]int64
	votes    map[voteKey]*model.Vote
	events   []model.VoteEvent

	nextMatchupID int64
	nextVoteID    int64
	nextEventID   int64
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		tools:    make(map[int64]*model.Tool),
		posts:    make(map[int64]*model.Post),
		premium:  make(map[int64]bool),
		matchups: make(map[int64]*model.Matchup),
		pairs:    make(map[pairKey]int64),
		votes:    make(map[voteKey]*model.Vote),
	}
}

// AddTool registers a tool in the registry.
func (s *Store) AddTool(t model.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.ID] = &t
}

// AddPost registers a post in the registry.
func (s *Store) AddPost(p model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = &p
}

// SetPostCategory rewrites a post's category, as a later registry edit would.
func (s *Store) SetPostCategory(postID int64, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[postID]; ok {
		p.Category = category
	}
}

// SetPremium sets the subscription flag for a user.
func (s *Store) SetPremium(userID int64, premium bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premium[userID] = premium
}

// Events returns a copy of the audit trail.
func (s *Store) Events() []model.VoteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.VoteEvent(nil), s.events...)
}

// --- Registry ---

func (s *Store) GetPost(_ context.Context, id int64) (*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) ListPostsByCategory(_ context.Context, category string) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Post
	for _, p := range s.posts {
		if p.Category == category {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListPostCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, p := range s.posts {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) GetTool(_ context.Context, id int64) (*model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tools[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) GetToolBySlug(_ context.Context, slug string) (*model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tools {
		if t.Slug == slug {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListTools(_ context.Context) ([]model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- Users ---

func (s *Store) IsPremium(_ context.Context, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.premium[userID], nil
}

// --- Matchups ---

func (s *Store) InsertMatchup(_ context.Context, m *model.Matchup) (*model.Matchup, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{postA: m.PostA, postB: m.PostB}
	if id, ok := s.pairs[key]; ok {
		return s.matchupLocked(id), false, nil
	}

	s.nextMatchupID++
	cp := *m
	cp.ID = s.nextMatchupID
	if cp.Status == "" {
		cp.Status = model.MatchupActive
	}
	s.matchups[cp.ID] = &cp
	s.pairs[key] = cp.ID
	return s.matchupLocked(cp.ID), true, nil
}

func (s *Store) FindMatchupByPosts(_ context.Context, postA, postB int64) (*model.Matchup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pairs[pairKey{postA: postA, postB: postB}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.matchupLocked(id), nil
}

func (s *Store) GetMatchup(_ context.Context, id int64) (*model.Matchup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matchups[id]; !ok {
		return nil, store.ErrNotFound
	}
	return s.matchupLocked(id), nil
}

func (s *Store) ListMatchups(_ context.Context, f model.MatchupFilter) ([]model.Matchup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Matchup
	for id := range s.matchups {
		m := s.matchupLocked(id)
		if f.Status != "" && m.Status != f.Status {
			continue
		}
		if f.Category != "" && m.Category != f.Category {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) SetMatchupStatus(_ context.Context, id int64, status string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matchups[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = at
	return nil
}

func (s *Store) SetMatchupPinned(_ context.Context, id int64, pinned bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matchups[id]
	if !ok {
		return store.ErrNotFound
	}
	m.Pinned = pinned
	m.UpdatedAt = at
	return nil
}

func (s *Store) matchupLocked(id int64) *model.Matchup {
	cp := *s.matchups[id]
	if p, ok := s.posts[cp.PostA]; ok {
		cp.Category = p.Category
	}
	return &cp
}

// --- Votes ---

// InUserTx holds the store mutex for the whole of fn, which serializes all
// writers, and restores the vote and event tables if fn fails.
func (s *Store) InUserTx(_ context.Context, _ int64, fn func(tx store.VoteTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	votes := make(map[voteKey]*model.Vote, len(s.votes))
	for k, v := range s.votes {
		cp := *v
		votes[k] = &cp
	}
	events := len(s.events)
	nextVote, nextEvent := s.nextVoteID, s.nextEventID

	if err := fn(&tx{s: s}); err != nil {
		s.votes = votes
		s.events = s.events[:events]
		s.nextVoteID, s.nextEventID = nextVote, nextEvent
		return err
	}
	return nil
}

func (s *Store) AppendEvent(_ context.Context, e *model.VoteEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendEventLocked(e)
	return nil
}

func (s *Store) ListEvents(_ context.Context, userID int64, limit int) ([]model.VoteEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.VoteEvent
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].UserID != userID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) UserVotesForMatchup(_ context.Context, userID, matchupID int64) ([]model.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userVotesLocked(userID, matchupID), nil
}

func (s *Store) CountNewMatchupsSince(_ context.Context, userID int64, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countNewLocked(userID, since), nil
}

func (s *Store) ListVotes(_ context.Context, f store.VoteFilter) ([]model.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matchups map[int64]bool
	if len(f.MatchupIDs) > 0 {
		matchups = make(map[int64]bool, len(f.MatchupIDs))
		for _, id := range f.MatchupIDs {
			matchups[id] = true
		}
	}

	var out []model.Vote
	for _, v := range s.votes {
		if f.UserID != 0 && v.UserID != f.UserID {
			continue
		}
		if matchups != nil && !matchups[v.MatchupID] {
			continue
		}
		if !f.CreatedBefore.IsZero() && v.CreatedAt.After(f.CreatedBefore) {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) userVotesLocked(userID, matchupID int64) []model.Vote {
	var out []model.Vote
	for _, v := range s.votes {
		if v.UserID == userID && v.MatchupID == matchupID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) countNewLocked(userID int64, since time.Time) int {
	first := make(map[int64]time.Time)
	for _, v := range s.votes {
		if v.UserID != userID {
			continue
		}
		if t, ok := first[v.MatchupID]; !ok || v.CreatedAt.Before(t) {
			first[v.MatchupID] = v.CreatedAt
		}
	}
	n := 0
	for _, t := range first {
		if !t.Before(since) {
			n++
		}
	}
	return n
}

func (s *Store) appendEventLocked(e *model.VoteEvent) {
	s.nextEventID++
	e.ID = s.nextEventID
	cp := *e
	cp.Categories = append([]string(nil), e.Categories...)
	s.events = append(s.events, cp)
}

type tx struct {
	s *Store
}

func (t *tx) UserVotesForMatchup(_ context.Context, userID, matchupID int64) ([]model.Vote, error) {
	return t.s.userVotesLocked(userID, matchupID), nil
}

func (t *tx) CountNewMatchupsSince(_ context.Context, userID int64, since time.Time) (int, error) {
	return t.s.countNewLocked(userID, since), nil
}

func (t *tx) UpsertVote(_ context.Context, v *model.Vote, lockWindow time.Duration) (*model.Vote, store.UpsertOutcome, error) {
	key := voteKey{userID: v.UserID, matchupID: v.MatchupID, category: v.Category}
	existing, ok := t.s.votes[key]
	if !ok {
		t.s.nextVoteID++
		cp := *v
		cp.ID = t.s.nextVoteID
		t.s.votes[key] = &cp
		out := cp
		return &out, store.UpsertInserted, nil
	}

	if existing.Locked || v.UpdatedAt.After(existing.CreatedAt.Add(lockWindow)) {
		return nil, store.UpsertLocked, nil
	}
	existing.WinnerTool = v.WinnerTool
	existing.UpdatedAt = v.UpdatedAt
	out := *existing
	return &out, store.UpsertUpdated, nil
}

func (t *tx) MarkLocked(_ context.Context, voteIDs []int64) error {
	ids := make(map[int64]bool, len(voteIDs))
	for _, id := range voteIDs {
		ids[id] = true
	}
	for _, v := range t.s.votes {
		if ids[v.ID] {
			v.Locked = true
		}
	}
	return nil
}

func (t *tx) AppendEvent(_ context.Context, e *model.VoteEvent) error {
	t.s.appendEventLocked(e)
	return nil
}
