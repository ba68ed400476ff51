package service

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/harberts01/Ai-Blog/internal/cache"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store/memory"
)

// t0 is a Wednesday, mid-week.
var t0 = time.Date(2026, time.October, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	st       *memory.Store
	clock    *clockwork.FakeClock
	guard    *Eligibility
	results  *cache.Cache
	matchups *MatchupService
	votes    *VoteService
	ranking  *RankingService
}

// newFixture registers four active tools and one retired tool, all with a
// "tech" post. Tool 1 has a second tech post and tool 2 a "food" post.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	for _, tool := range []model.Tool{
		{ID: 1, Name: "Alpha", Slug: "alpha", Status: model.ToolActive},
		{ID: 2, Name: "Beta", Slug: "beta", Status: model.ToolActive},
		{ID: 3, Name: "Gamma", Slug: "gamma", Status: model.ToolActive},
		{ID: 4, Name: "Delta", Slug: "delta", Status: model.ToolActive},
		{ID: 5, Name: "Omega", Slug: "omega", Status: model.ToolRetired},
	} {
		st.AddTool(tool)
	}
	for _, p := range []model.Post{
		{ID: 10, ToolID: 1, Title: "Alpha on Go", Category: "tech"},
		{ID: 20, ToolID: 2, Title: "Beta on Go", Category: "tech"},
		{ID: 30, ToolID: 3, Title: "Gamma on Go", Category: "tech"},
		{ID: 40, ToolID: 4, Title: "Delta on Go", Category: "tech"},
		{ID: 50, ToolID: 5, Title: "Omega on Go", Category: "tech"},
		{ID: 12, ToolID: 1, Title: "Alpha on Rust", Category: "tech"},
		{ID: 21, ToolID: 2, Title: "Beta on bread", Category: "food"},
	} {
		st.AddPost(p)
	}

	clock := clockwork.NewFakeClockAt(t0)
	guard := NewEligibility(DefaultFreeWeeklyQuota)
	results := cache.New(cache.NewMemoryStore(clock), clock, 10*time.Minute)

	matchups := NewMatchupService(st, clock, DefaultLockWindow)
	matchups.seed = func() int { return 0 }

	return &fixture{
		st:       st,
		clock:    clock,
		guard:    guard,
		results:  results,
		matchups: matchups,
		votes:    NewVoteService(st, guard, clock, DefaultLockWindow),
		ranking: NewRankingService(st, results, guard, clock, RankingOptions{
			LockWindow: DefaultLockWindow,
			MinVotes:   30,
			TeaserSize: 2,
		}),
	}
}

func (f *fixture) matchup(t *testing.T, postA, postB int64) *model.Matchup {
	t.Helper()
	m, err := f.matchups.Create(context.Background(), postA, postB, nil)
	require.NoError(t, err)
	return m
}

func (f *fixture) vote(userID, matchupID int64, category string, winner int64) error {
	_, err := f.votes.SubmitOrEditVote(context.Background(), matchupID, model.Identity{UserID: userID}, category, winner)
	return err
}

func (f *fixture) eventCodes(userID int64) []string {
	var out []string
	for _, e := range f.st.Events() {
		if e.UserID == userID {
			out = append(out, e.ErrorCode)
		}
	}
	return out
}
