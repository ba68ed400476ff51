package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/metrics"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

// MatchupsPerPage is the compare-page listing size.
const MatchupsPerPage = 12

// Matchup creation sources, used as a metrics label.
const (
	sourceManual = "manual"
	sourceSeed   = "seed"
)

// MatchupService builds, renders and administers matchups.
type MatchupService struct {
	store      store.Store
	clock      clockwork.Clock
	lockWindow time.Duration
	seed       func() int
	log        *zerolog.Logger
}

func NewMatchupService(st store.Store, clock clockwork.Clock, lockWindow time.Duration) *MatchupService {
	return &MatchupService{
		store:      st,
		clock:      clock,
		lockWindow: lockWindow,
		seed:       func() int { return rand.IntN(2) },
		log:        logging.Component("matchups"),
	}
}

// ResolvePlacement decides which post a user sees on the left. The result is
// stable per (matchup, user) and splits users evenly across both layouts.
func ResolvePlacement(m *model.Matchup, userID int64) model.Placement {
	parity := (int64(m.PositionSeed) + userID) % 2
	if parity < 0 {
		parity += 2
	}
	if parity == 0 {
		return model.Placement{AIsLeft: true, Left: m.PostA, Right: m.PostB}
	}
	return model.Placement{AIsLeft: false, Left: m.PostB, Right: m.PostA}
}

// SideOf maps a tool to the side it was shown on for the given placement.
func SideOf(m *model.Matchup, p model.Placement, toolID int64) string {
	if (toolID == m.ToolA) == p.AIsLeft {
		return model.SideLeft
	}
	return model.SideRight
}

// ToolOnSide maps a blind side back to the tool displayed there.
func ToolOnSide(m *model.Matchup, p model.Placement, side string) (int64, bool) {
	switch side {
	case model.SideLeft:
		if p.AIsLeft {
			return m.ToolA, true
		}
		return m.ToolB, true
	case model.SideRight:
		if p.AIsLeft {
			return m.ToolB, true
		}
		return m.ToolA, true
	}
	return 0, false
}

// Create pairs two posts. Argument order does not matter: the pair is stored
// with the lower tool id first. When the pair already exists the stored
// matchup is returned together with ErrDuplicateMatchup.
func (s *MatchupService) Create(ctx context.Context, postA, postB int64, promptID *int64) (*model.Matchup, error) {
	return s.create(ctx, postA, postB, promptID, sourceManual)
}

func (s *MatchupService) create(ctx context.Context, postA, postB int64, promptID *int64, source string) (*model.Matchup, error) {
	if postA == postB {
		return nil, ErrSamePost
	}

	pa, err := s.getPost(ctx, postA)
	if err != nil {
		return nil, err
	}
	pb, err := s.getPost(ctx, postB)
	if err != nil {
		return nil, err
	}
	if pa.ToolID == pb.ToolID {
		return nil, ErrSameTool
	}
	if pa.ToolID > pb.ToolID {
		pa, pb = pb, pa
	}

	// An existing pair is returned as a duplicate even if a tool has since
	// been retired or a post recategorized, so batch retries stay idempotent.
	existing, err := s.store.FindMatchupByPosts(ctx, pa.ID, pb.ID)
	if err == nil {
		return existing, ErrDuplicateMatchup.With(map[string]any{"matchupId": existing.ID})
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	for _, toolID := range []int64{pa.ToolID, pb.ToolID} {
		t, err := s.store.GetTool(ctx, toolID)
		if err != nil {
			return nil, fmt.Errorf("get tool %d: %w", toolID, err)
		}
		if !t.IsActive() {
			return nil, ErrToolInactive.Withf("Tool %q is %s.", t.Slug, t.Status)
		}
	}
	if pa.Category != pb.Category {
		return nil, ErrCategoryMismatch
	}

	now := s.clock.Now()
	m, created, err := s.store.InsertMatchup(ctx, &model.Matchup{
		PostA:        pa.ID,
		PostB:        pb.ID,
		ToolA:        pa.ToolID,
		ToolB:        pb.ToolID,
		PromptID:     promptID,
		PositionSeed: s.seed(),
		Status:       model.MatchupActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}
	if !created {
		return m, ErrDuplicateMatchup.With(map[string]any{"matchupId": m.ID})
	}

	metrics.MatchupsCreated.WithLabelValues(source).Inc()
	s.log.Info().Int64("matchup_id", m.ID).Int64("tool_a", m.ToolA).Int64("tool_b", m.ToolB).
		Str("source", source).Msg("matchup created")
	return m, nil
}

func (s *MatchupService) getPost(ctx context.Context, id int64) (*model.Post, error) {
	p, err := s.store.GetPost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPostNotFound.With(map[string]any{"postId": id})
	}
	return p, err
}

// Get returns a matchup or ErrMatchupNotFound.
func (s *MatchupService) Get(ctx context.Context, id int64) (*model.Matchup, error) {
	m, err := s.store.GetMatchup(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrMatchupNotFound
	}
	return m, err
}

// View renders a matchup blind for one user. Tool identity is included only
// after the user has voted or when reveal is requested.
func (s *MatchupService) View(ctx context.Context, matchupID int64, ident model.Identity, reveal bool) (*model.MatchupView, error) {
	m, err := s.Get(ctx, matchupID)
	if err != nil {
		return nil, err
	}

	var votes []model.Vote
	if !ident.Anonymous() {
		votes, err = s.store.UserVotesForMatchup(ctx, ident.UserID, m.ID)
		if err != nil {
			return nil, err
		}
	}
	hasVoted := len(votes) > 0
	if !m.IsActive() && !hasVoted {
		return nil, ErrMatchupInactive
	}

	placement := ResolvePlacement(m, ident.UserID)
	left, err := s.postView(ctx, placement.Left, model.SideLeft)
	if err != nil {
		return nil, err
	}
	right, err := s.postView(ctx, placement.Right, model.SideRight)
	if err != nil {
		return nil, err
	}

	view := &model.MatchupView{
		MatchupID: m.ID,
		Status:    m.Status,
		HasVoted:  hasVoted,
		Revealed:  hasVoted || reveal,
	}
	if !view.Revealed {
		left.Tool, right.Tool = nil, nil
	}
	view.Left, view.Right = *left, *right

	if hasVoted {
		now := s.clock.Now()
		view.UserVotes = make(map[string]string, len(votes))
		for _, v := range votes {
			view.UserVotes[v.Category] = SideOf(m, placement, v.WinnerTool)
			if v.IsLockedAt(now, s.lockWindow) {
				view.Locked = true
				continue
			}
			deadline := v.LockDeadline(s.lockWindow)
			if view.EditWindowExpiresAt == nil || deadline.Before(*view.EditWindowExpiresAt) {
				view.EditWindowExpiresAt = &deadline
			}
		}
		if view.Locked {
			view.EditWindowExpiresAt = nil
		}
	}
	return view, nil
}

func (s *MatchupService) postView(ctx context.Context, postID int64, side string) (*model.PostView, error) {
	p, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post %d: %w", postID, err)
	}
	t, err := s.store.GetTool(ctx, p.ToolID)
	if err != nil {
		return nil, fmt.Errorf("get tool %d: %w", p.ToolID, err)
	}
	ref := t.Ref()
	return &model.PostView{
		Side:     side,
		PostID:   p.ID,
		Title:    p.Title,
		Content:  p.Content,
		Category: p.Category,
		Tool:     &ref,
	}, nil
}

// List returns a page of active matchups, pinned first.
func (s *MatchupService) List(ctx context.Context, ident model.Identity, page int) ([]model.MatchupSummary, error) {
	if page < 1 {
		page = 1
	}
	matchups, err := s.store.ListMatchups(ctx, model.MatchupFilter{
		Status: model.MatchupActive,
		Limit:  MatchupsPerPage,
		Offset: (page - 1) * MatchupsPerPage,
	})
	if err != nil {
		return nil, err
	}

	voted := make(map[int64]bool)
	if !ident.Anonymous() && len(matchups) > 0 {
		ids := make([]int64, len(matchups))
		for i, m := range matchups {
			ids[i] = m.ID
		}
		votes, err := s.store.ListVotes(ctx, store.VoteFilter{UserID: ident.UserID, MatchupIDs: ids})
		if err != nil {
			return nil, err
		}
		for _, v := range votes {
			voted[v.MatchupID] = true
		}
	}

	out := make([]model.MatchupSummary, len(matchups))
	for i, m := range matchups {
		out[i] = model.MatchupSummary{
			ID:        m.ID,
			Category:  m.Category,
			Pinned:    m.Pinned,
			CreatedAt: m.CreatedAt,
			HasVoted:  voted[m.ID],
		}
	}
	return out, nil
}

// Results returns live per-category tallies. Only users who voted may see them.
func (s *MatchupService) Results(ctx context.Context, matchupID int64, ident model.Identity) (*model.MatchupResults, error) {
	if ident.Anonymous() {
		return nil, ErrAuthRequired
	}
	m, err := s.Get(ctx, matchupID)
	if err != nil {
		return nil, err
	}
	mine, err := s.store.UserVotesForMatchup(ctx, ident.UserID, m.ID)
	if err != nil {
		return nil, err
	}
	if len(mine) == 0 {
		return nil, ErrNotVoted
	}

	votes, err := s.store.ListVotes(ctx, store.VoteFilter{MatchupIDs: []int64{m.ID}})
	if err != nil {
		return nil, err
	}
	toolA, err := s.store.GetTool(ctx, m.ToolA)
	if err != nil {
		return nil, err
	}
	toolB, err := s.store.GetTool(ctx, m.ToolB)
	if err != nil {
		return nil, err
	}

	return &model.MatchupResults{
		MatchupID:  m.ID,
		ToolA:      toolA.Ref(),
		ToolB:      toolB.Ref(),
		Categories: TallyMatchup(m, votes),
	}, nil
}

// CloseIfIncomparable closes an active matchup whose posts no longer share a
// category. Votes are kept.
func (s *MatchupService) CloseIfIncomparable(ctx context.Context, matchupID int64) (bool, error) {
	m, err := s.Get(ctx, matchupID)
	if err != nil {
		return false, err
	}
	if !m.IsActive() {
		return false, nil
	}

	pa, err := s.store.GetPost(ctx, m.PostA)
	if err != nil {
		return false, fmt.Errorf("get post %d: %w", m.PostA, err)
	}
	pb, err := s.store.GetPost(ctx, m.PostB)
	if err != nil {
		return false, fmt.Errorf("get post %d: %w", m.PostB, err)
	}
	if pa.Category == pb.Category {
		return false, nil
	}

	if err := s.store.SetMatchupStatus(ctx, m.ID, model.MatchupClosed, s.clock.Now()); err != nil {
		return false, err
	}
	s.log.Info().Int64("matchup_id", m.ID).Str("category_a", pa.Category).Str("category_b", pb.Category).
		Msg("matchup closed: categories diverged")
	return true, nil
}

// Close marks a matchup closed. Votes are kept.
func (s *MatchupService) Close(ctx context.Context, matchupID int64) error {
	err := s.store.SetMatchupStatus(ctx, matchupID, model.MatchupClosed, s.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrMatchupNotFound
	}
	return err
}

// Pin sets or clears the featured flag.
func (s *MatchupService) Pin(ctx context.Context, matchupID int64, pinned bool) error {
	err := s.store.SetMatchupPinned(ctx, matchupID, pinned, s.clock.Now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrMatchupNotFound
	}
	return err
}

// SeedFromCategory pairs every two posts of the category written by
// different active tools. Existing pairs are skipped, so reruns are safe.
func (s *MatchupService) SeedFromCategory(ctx context.Context, category string) (*model.SeedReport, error) {
	report := &model.SeedReport{Category: category}

	posts, err := s.store.ListPostsByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	tools, err := s.store.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	active := make(map[int64]bool, len(tools))
	for _, t := range tools {
		active[t.ID] = t.IsActive()
	}

	eligible := posts[:0:0]
	for _, p := range posts {
		if active[p.ToolID] {
			eligible = append(eligible, p)
		}
	}

	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			if eligible[i].ToolID == eligible[j].ToolID {
				continue
			}
			report.Considered++

			_, err := s.create(ctx, eligible[i].ID, eligible[j].ID, nil, sourceSeed)
			if err == nil {
				report.Created++
				continue
			}
			if _, ok := AsError(err); ok {
				report.Skipped++
				continue
			}
			return report, err
		}
	}

	s.log.Info().Str("category", category).Int("considered", report.Considered).
		Int("created", report.Created).Int("skipped", report.Skipped).Msg("seeded matchups")
	return report, nil
}

// SeedAll runs SeedFromCategory for every post category.
func (s *MatchupService) SeedAll(ctx context.Context) ([]model.SeedReport, error) {
	categories, err := s.store.ListPostCategories(ctx)
	if err != nil {
		return nil, err
	}
	reports := make([]model.SeedReport, 0, len(categories))
	for _, c := range categories {
		r, err := s.SeedFromCategory(ctx, c)
		if err != nil {
			return reports, fmt.Errorf("seed %s: %w", c, err)
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

// SweepIncomparable runs CloseIfIncomparable over every active matchup.
func (s *MatchupService) SweepIncomparable(ctx context.Context) (int, error) {
	matchups, err := s.store.ListMatchups(ctx, model.MatchupFilter{Status: model.MatchupActive})
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, m := range matchups {
		ok, err := s.CloseIfIncomparable(ctx, m.ID)
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}
