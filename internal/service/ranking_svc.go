package service

import (
	"context"
	"errors"
	"time"

	"github.com/gosimple/slug"
	"github.com/jonboulle/clockwork"

	"github.com/harberts01/Ai-Blog/internal/cache"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

// Default history page sizes.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 50
)

// cacheWindow is the time-window component of every cache key. Trend windows
// are computed inside an entry, so one window covers all current endpoints.
const cacheWindow = "all_time"

// RankingOptions configures the read side.
type RankingOptions struct {
	LockWindow     time.Duration
	MinVotes       int
	TeaserSize     int
	HistoryPageMax int
}

// RankingService serves leaderboards, matrices and vote histories. Aggregates
// go through the result cache and only count votes whose edit window has
// closed, so replaying the ledger reproduces them.
type RankingService struct {
	store store.Store
	cache *cache.Cache
	guard *Eligibility
	clock clockwork.Clock
	opts  RankingOptions
}

func NewRankingService(st store.Store, c *cache.Cache, guard *Eligibility, clock clockwork.Clock, opts RankingOptions) *RankingService {
	if opts.LockWindow <= 0 {
		opts.LockWindow = DefaultLockWindow
	}
	if opts.TeaserSize <= 0 {
		opts.TeaserSize = 2
	}
	if opts.HistoryPageMax <= 0 || opts.HistoryPageMax > MaxHistoryLimit {
		opts.HistoryPageMax = MaxHistoryLimit
	}
	return &RankingService{store: st, cache: c, guard: guard, clock: clock, opts: opts}
}

// NormalizeCategory maps "" to the rollup and rejects unknown categories.
func NormalizeCategory(category string) (string, error) {
	if category == "" || category == model.CategoryAll {
		return model.CategoryAll, nil
	}
	if !model.IsVoteCategory(category) {
		return "", ErrInvalidCategory.With(map[string]any{"category": category, "allowed": model.VoteCategories})
	}
	return category, nil
}

// Snapshot loads settled votes on active matchups, with those matchups and
// every tool. Closed matchups keep their rows but drop out of rankings.
func (s *RankingService) Snapshot(ctx context.Context) (Snapshot, error) {
	now := s.clock.Now()
	tools, err := s.store.ListTools(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	matchups, err := s.store.ListMatchups(ctx, model.MatchupFilter{Status: model.MatchupActive})
	if err != nil {
		return Snapshot{}, err
	}
	settled, err := s.store.ListVotes(ctx, store.VoteFilter{CreatedBefore: now.Add(-s.opts.LockWindow)})
	if err != nil {
		return Snapshot{}, err
	}

	active := make(map[int64]bool, len(matchups))
	for _, m := range matchups {
		active[m.ID] = true
	}
	votes := settled[:0]
	for _, v := range settled {
		if active[v.MatchupID] {
			votes = append(votes, v)
		}
	}
	return Snapshot{Tools: tools, Matchups: matchups, Votes: votes, AsOf: now}, nil
}

// Leaderboard returns the full ranking for category.
func (s *RankingService) Leaderboard(ctx context.Context, category string) (cache.Entry[model.Leaderboard], bool, error) {
	category, err := NormalizeCategory(category)
	if err != nil {
		return cache.Entry[model.Leaderboard]{}, false, err
	}
	key := cache.Key{Endpoint: "leaderboard", Category: category, Window: cacheWindow}
	return cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (model.Leaderboard, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return model.Leaderboard{}, err
		}
		return BuildLeaderboard(snap, category, s.opts.MinVotes), nil
	})
}

// Teaser returns the truncated free-tier leaderboard.
func (s *RankingService) Teaser(ctx context.Context, category string) (cache.Entry[model.Teaser], bool, error) {
	category, err := NormalizeCategory(category)
	if err != nil {
		return cache.Entry[model.Teaser]{}, false, err
	}
	key := cache.Key{Endpoint: "teaser", Category: category, Window: cacheWindow}
	return cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (model.Teaser, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return model.Teaser{}, err
		}
		return BuildTeaser(BuildLeaderboard(snap, category, s.opts.MinVotes), s.opts.TeaserSize), nil
	})
}

// Matrix returns the head-to-head grid for category.
func (s *RankingService) Matrix(ctx context.Context, category string) (cache.Entry[model.Matrix], bool, error) {
	category, err := NormalizeCategory(category)
	if err != nil {
		return cache.Entry[model.Matrix]{}, false, err
	}
	key := cache.Key{Endpoint: "matrix", Category: category, Window: cacheWindow}
	return cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (model.Matrix, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return model.Matrix{}, err
		}
		return BuildMatrix(snap, category), nil
	})
}

func (s *RankingService) toolBySlug(ctx context.Context, raw string) (*model.Tool, error) {
	t, err := s.store.GetToolBySlug(ctx, slug.Make(raw))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrToolNotFound.With(map[string]any{"slug": raw})
	}
	return t, err
}

// PairDetail returns the drill-down for two tools, flagging the matchups the
// caller has voted on. The aggregate is cached; the flags are not.
func (s *RankingService) PairDetail(ctx context.Context, slugA, slugB string, ident model.Identity) (cache.Entry[model.PairDetail], bool, error) {
	var zero cache.Entry[model.PairDetail]
	a, err := s.toolBySlug(ctx, slugA)
	if err != nil {
		return zero, false, err
	}
	b, err := s.toolBySlug(ctx, slugB)
	if err != nil {
		return zero, false, err
	}
	if a.ID == b.ID {
		return zero, false, ErrSameTool
	}
	if a.ID > b.ID {
		a, b = b, a
	}

	key := cache.Key{Endpoint: "pair", Category: a.Slug + ":" + b.Slug, Window: cacheWindow}
	entry, cached, err := cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (model.PairDetail, error) {
		snap, err := s.Snapshot(ctx)
		if err != nil {
			return model.PairDetail{}, err
		}
		return BuildPairDetail(snap, a, b), nil
	})
	if err != nil || ident.Anonymous() || len(entry.Data.RecentMatchups) == 0 {
		return entry, cached, err
	}

	ids := make([]int64, len(entry.Data.RecentMatchups))
	for i, m := range entry.Data.RecentMatchups {
		ids[i] = m.MatchupID
	}
	votes, err := s.store.ListVotes(ctx, store.VoteFilter{UserID: ident.UserID, MatchupIDs: ids})
	if err != nil {
		return entry, cached, err
	}
	voted := make(map[int64]bool, len(votes))
	for _, v := range votes {
		voted[v.MatchupID] = true
	}
	recent := make([]model.PairMatchup, len(entry.Data.RecentMatchups))
	for i, m := range entry.Data.RecentMatchups {
		m.UserVoted = voted[m.MatchupID]
		recent[i] = m
	}
	entry.Data.RecentMatchups = recent
	return entry, cached, nil
}

// NormalizeHistoryFilter validates f and applies defaults and the page cap.
func (s *RankingService) NormalizeHistoryFilter(f model.HistoryFilter) (model.HistoryFilter, error) {
	if f.Category != "" && !model.IsVoteCategory(f.Category) {
		return f, ErrInvalidCategory.With(map[string]any{"category": f.Category, "allowed": model.VoteCategories})
	}
	switch f.Alignment {
	case "", model.AlignmentMajority, model.AlignmentMinority:
	default:
		return f, ErrInvalidAlign
	}
	switch f.Sort {
	case "":
		f.Sort = model.SortNewest
	case model.SortNewest, model.SortOldest:
	default:
		return f, ErrInvalidSort
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultHistoryLimit
	}
	f.Limit = min(f.Limit, s.opts.HistoryPageMax)
	return f, nil
}

// History lists a user's own votes. It reads the live ledger, not the cache.
func (s *RankingService) History(ctx context.Context, ident model.Identity, f model.HistoryFilter) (*model.HistoryPage, error) {
	if ident.Anonymous() {
		return nil, ErrAuthRequired
	}
	f, err := s.NormalizeHistoryFilter(f)
	if err != nil {
		return nil, err
	}
	if f.ToolSlug != "" {
		t, err := s.toolBySlug(ctx, f.ToolSlug)
		if err != nil {
			return nil, err
		}
		f.ToolSlug = t.Slug
	}

	in, err := s.historyInput(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	page := BuildHistory(in, f)
	return &page, nil
}

func (s *RankingService) historyInput(ctx context.Context, userID int64) (HistoryInput, error) {
	in := HistoryInput{AsOf: s.clock.Now(), LockWindow: s.opts.LockWindow}

	mine, err := s.store.ListVotes(ctx, store.VoteFilter{UserID: userID})
	if err != nil {
		return in, err
	}
	in.UserVotes = mine
	if len(mine) == 0 {
		return in, nil
	}

	seen := make(map[int64]bool)
	var ids []int64
	for _, v := range mine {
		if !seen[v.MatchupID] {
			seen[v.MatchupID] = true
			ids = append(ids, v.MatchupID)
		}
	}
	if in.PeerVotes, err = s.store.ListVotes(ctx, store.VoteFilter{MatchupIDs: ids}); err != nil {
		return in, err
	}

	in.Matchups = make(map[int64]*model.Matchup, len(ids))
	for _, id := range ids {
		m, err := s.store.GetMatchup(ctx, id)
		if err != nil {
			return in, err
		}
		in.Matchups[id] = m
	}

	tools, err := s.store.ListTools(ctx)
	if err != nil {
		return in, err
	}
	in.Tools = make(map[int64]*model.Tool, len(tools))
	for i := range tools {
		in.Tools[tools[i].ID] = &tools[i]
	}
	return in, nil
}

// UserStats summarizes the caller's voting activity and weekly allowance.
func (s *RankingService) UserStats(ctx context.Context, ident model.Identity) (*model.UserVoteStats, error) {
	if ident.Anonymous() {
		return nil, ErrAuthRequired
	}
	in, err := s.historyInput(ctx, ident.UserID)
	if err != nil {
		return nil, err
	}
	usage, err := s.guard.Usage(ctx, s.store, ident, in.AsOf)
	if err != nil {
		return nil, err
	}

	stats := &model.UserVoteStats{
		TotalVotes:     len(in.UserVotes),
		ByCategory:     make(map[string]int, len(model.VoteCategories)),
		WeeklyUsed:     usage.Used,
		WeeklyLimit:    usage.Limit,
		WeeklyResetsAt: usage.ResetsAt,
	}
	if usage.Unlimited {
		stats.WeeklyLimit = -1
	}

	majority := MajorityWinners(in.PeerVotes)
	matchups := make(map[int64]bool)
	picks := make(map[int64]int)
	decided, agreed := 0, 0
	for _, v := range in.UserVotes {
		matchups[v.MatchupID] = true
		stats.ByCategory[v.Category]++
		picks[v.WinnerTool]++
		if w, ok := majority[ballotKey{v.MatchupID, v.Category}]; ok {
			decided++
			if w == v.WinnerTool {
				agreed++
			}
		}
	}
	stats.MatchupsVoted = len(matchups)
	if decided > 0 {
		r := float64(agreed) / float64(decided)
		stats.MajorityRate = &r
	}

	var fav int64
	best := 0
	for id, n := range picks {
		if n > best || (n == best && id < fav) {
			fav, best = id, n
		}
	}
	if best > 0 {
		ref := toolRef(in.Tools, fav)
		stats.FavoriteTool = &ref
	}
	return stats, nil
}
