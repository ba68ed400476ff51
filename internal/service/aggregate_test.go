package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harberts01/Ai-Blog/internal/model"
)

func testTools() []model.Tool {
	return []model.Tool{
		{ID: 1, Name: "Alpha", Slug: "alpha", Status: model.ToolActive},
		{ID: 2, Name: "Beta", Slug: "beta", Status: model.ToolActive},
		{ID: 3, Name: "Gamma", Slug: "gamma", Status: model.ToolActive},
		{ID: 4, Name: "Omega", Slug: "omega", Status: model.ToolRetired},
		{ID: 5, Name: "Sigma", Slug: "sigma", Status: model.ToolRetired},
	}
}

// votesFor returns n votes on m in category, the first wins of them for
// winner and the rest for the opponent.
func votesFor(m model.Matchup, category string, winner int64, wins, n int, at time.Time) []model.Vote {
	out := make([]model.Vote, 0, n)
	for i := 0; i < n; i++ {
		w := winner
		if i >= wins {
			w = m.Opponent(winner)
		}
		out = append(out, model.Vote{
			UserID:     int64(1000 + i),
			MatchupID:  m.ID,
			Category:   category,
			WinnerTool: w,
			CreatedAt:  at,
		})
	}
	return out
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		votes int
		want  string
	}{
		{0, model.ConfidenceLow},
		{29, model.ConfidenceLow},
		{30, model.ConfidenceMedium},
		{99, model.ConfidenceMedium},
		{100, model.ConfidenceHigh},
		{5000, model.ConfidenceHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Confidence(tt.votes), "Confidence(%d)", tt.votes)
	}
}

func TestBuildLeaderboard_RanksAndFlags(t *testing.T) {
	m12 := model.Matchup{ID: 1, ToolA: 1, ToolB: 2}
	m13 := model.Matchup{ID: 2, ToolA: 1, ToolB: 3}
	m14 := model.Matchup{ID: 3, ToolA: 1, ToolB: 4}
	old := t0.Add(-30 * 24 * time.Hour)

	var votes []model.Vote
	votes = append(votes, votesFor(m12, model.CategoryOverall, 1, 20, 30, old)...)
	votes = append(votes, votesFor(m13, model.CategoryOverall, 3, 10, 20, old)...)
	votes = append(votes, votesFor(m14, model.CategoryAccuracy, 4, 5, 10, old)...)

	assert.Empty(t, BuildLeaderboard(Snapshot{}, "", 30).Rows)

	snap := Snapshot{Tools: testTools(), Matchups: []model.Matchup{m12, m13, m14}, Votes: votes, AsOf: t0}
	lb := BuildLeaderboard(snap, model.CategoryAll, 30)

	assert.Equal(t, model.CategoryAll, lb.Category)
	assert.Equal(t, 60, lb.TotalVotes)
	require.Len(t, lb.Rows, 4, "retired tool without votes is dropped")

	byID := make(map[int64]model.LeaderboardRow)
	for _, r := range lb.Rows {
		byID[r.Tool.ID] = r
	}
	_, hasSigma := byID[5]
	assert.False(t, hasSigma)

	alpha := byID[1]
	// 20/30 over beta, 10/20 over gamma, 5/10 over omega
	assert.Equal(t, 35, alpha.Won)
	assert.Equal(t, 60, alpha.Participated)
	assert.InDelta(t, 35.0/60.0, alpha.WinRate, 1e-9)
	assert.Equal(t, model.ConfidenceMedium, alpha.Confidence)
	assert.False(t, alpha.BelowFloor)
	assert.Equal(t, model.CategoryRecord{Won: 30, Participated: 50, WinRate: 0.6}, alpha.Categories[model.CategoryOverall])
	assert.Equal(t, model.CategoryRecord{Won: 5, Participated: 10, WinRate: 0.5}, alpha.Categories[model.CategoryAccuracy])

	// Gamma and omega both sit at 50%: they share a rank and the next skips.
	gamma, omega := byID[3], byID[4]
	assert.Equal(t, 0.5, gamma.WinRate)
	assert.Equal(t, 0.5, omega.WinRate)
	assert.Equal(t, gamma.Rank, omega.Rank)
	assert.True(t, omega.BelowFloor)
	assert.Equal(t, model.ConfidenceLow, omega.Confidence)

	beta := byID[2]
	assert.InDelta(t, 10.0/30.0, beta.WinRate, 1e-9)
	assert.Equal(t, 4, beta.Rank)
	assert.Equal(t, 1, lb.Rows[0].Rank)
	assert.Equal(t, int64(1), lb.Rows[0].Tool.ID)
}

func TestBuildLeaderboard_CategoryFilter(t *testing.T) {
	m := model.Matchup{ID: 1, ToolA: 1, ToolB: 2}
	old := t0.Add(-30 * 24 * time.Hour)
	votes := append(
		votesFor(m, model.CategoryOverall, 1, 3, 3, old),
		votesFor(m, model.CategoryAccuracy, 2, 4, 4, old)...,
	)
	snap := Snapshot{Tools: testTools()[:2], Matchups: []model.Matchup{m}, Votes: votes, AsOf: t0}

	lb := BuildLeaderboard(snap, model.CategoryAccuracy, 0)
	assert.Equal(t, 4, lb.TotalVotes)
	assert.Equal(t, int64(2), lb.Rows[0].Tool.ID)
	assert.Equal(t, 1.0, lb.Rows[0].WinRate)
	// The per-category breakdown always spans every category.
	assert.Equal(t, 3, lb.Rows[1].Categories[model.CategoryOverall].Won)
}

func TestBuildLeaderboard_Trend(t *testing.T) {
	m := model.Matchup{ID: 1, ToolA: 1, ToolB: 2}
	recent := t0.Add(-2 * 24 * time.Hour)
	previous := t0.Add(-10 * 24 * time.Hour)

	tests := []struct {
		name       string
		votes      []model.Vote
		wantTrend  string
		wantDelta  bool
		wantRecent int
	}{
		{
			name: "improving",
			votes: append(votesFor(m, model.CategoryOverall, 1, 8, 10, recent),
				votesFor(m, model.CategoryOverall, 1, 5, 10, previous)...),
			wantTrend: model.TrendUp, wantDelta: true, wantRecent: 10,
		},
		{
			name: "declining",
			votes: append(votesFor(m, model.CategoryOverall, 1, 2, 10, recent),
				votesFor(m, model.CategoryOverall, 1, 5, 10, previous)...),
			wantTrend: model.TrendDown, wantDelta: true, wantRecent: 10,
		},
		{
			name: "within threshold",
			votes: append(votesFor(m, model.CategoryOverall, 1, 51, 100, recent),
				votesFor(m, model.CategoryOverall, 1, 50, 100, previous)...),
			wantTrend: model.TrendStable, wantDelta: true, wantRecent: 100,
		},
		{
			name: "too few recent votes",
			votes: append(votesFor(m, model.CategoryOverall, 1, 4, 4, recent),
				votesFor(m, model.CategoryOverall, 1, 0, 10, previous)...),
			wantTrend: model.TrendStable, wantDelta: false, wantRecent: 4,
		},
		{
			name:      "no previous window",
			votes:     votesFor(m, model.CategoryOverall, 1, 10, 10, recent),
			wantTrend: model.TrendStable, wantDelta: false, wantRecent: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Snapshot{Tools: testTools()[:2], Matchups: []model.Matchup{m}, Votes: tt.votes, AsOf: t0}
			lb := BuildLeaderboard(snap, "", 0)

			var alpha model.LeaderboardRow
			for _, r := range lb.Rows {
				if r.Tool.ID == 1 {
					alpha = r
				}
			}
			assert.Equal(t, tt.wantTrend, alpha.Trend)
			assert.Equal(t, tt.wantDelta, alpha.TrendDelta != nil)
			assert.Equal(t, tt.wantRecent, alpha.Votes7d)
		})
	}
}

func TestBuildTeaser_RoundsAndTruncates(t *testing.T) {
	lb := model.Leaderboard{
		Category: model.CategoryOverall,
		Rows: []model.LeaderboardRow{
			{Rank: 1, Tool: model.ToolRef{ID: 1}, WinRate: 0.537},
			{Rank: 2, Tool: model.ToolRef{ID: 2}, WinRate: 0.512},
			{Rank: 3, Tool: model.ToolRef{ID: 3}, WinRate: 0.2},
		},
	}

	teaser := BuildTeaser(lb, 2)
	require.Len(t, teaser.Rows, 2)
	assert.Equal(t, model.CategoryOverall, teaser.Category)
	assert.InDelta(t, 0.55, teaser.Rows[0].WinRateRounded, 1e-9)
	assert.InDelta(t, 0.50, teaser.Rows[1].WinRateRounded, 1e-9)

	assert.Len(t, BuildTeaser(lb, 10).Rows, 3)
	assert.Empty(t, BuildTeaser(model.Leaderboard{}, 2).Rows)
}

func TestBuildMatrix_SumInvariant(t *testing.T) {
	m12a := model.Matchup{ID: 1, ToolA: 1, ToolB: 2}
	m12b := model.Matchup{ID: 2, ToolA: 1, ToolB: 2}
	m23 := model.Matchup{ID: 3, ToolA: 2, ToolB: 3}
	m13 := model.Matchup{ID: 4, ToolA: 1, ToolB: 3} // no votes yet

	var votes []model.Vote
	for i, c := range model.VoteCategories {
		votes = append(votes, votesFor(m12a, c, 1, i+1, 6, t0)...)
		votes = append(votes, votesFor(m12b, c, 2, 2, 3, t0)...)
		votes = append(votes, votesFor(m23, c, 3, i, 4, t0)...)
	}
	snap := Snapshot{Tools: testTools(), Matchups: []model.Matchup{m12a, m12b, m23, m13}, Votes: votes, AsOf: t0}

	mx := BuildMatrix(snap, "")
	require.Len(t, mx.Tools, 3)
	require.Len(t, mx.Cells, 3)

	pos := make(map[int64]int)
	for i, tr := range mx.Tools {
		pos[tr.ID] = i
	}
	for _, c := range mx.Cells {
		total := 0
		for _, v := range votes {
			for _, m := range snap.Matchups {
				if v.MatchupID == m.ID && m.ToolA == c.ToolA && m.ToolB == c.ToolB {
					total++
				}
			}
		}
		ij := mx.Grid[pos[c.ToolA]][pos[c.ToolB]]
		ji := mx.Grid[pos[c.ToolB]][pos[c.ToolA]]
		require.NotNil(t, ij)
		require.NotNil(t, ji)
		assert.Equal(t, total, *ij+*ji+c.Ties, "pair %d-%d", c.ToolA, c.ToolB)
		assert.Equal(t, total, c.Total)
		assert.Zero(t, c.Ties)
	}

	for i := range mx.Tools {
		assert.Nil(t, mx.Grid[i][i], "diagonal is undefined")
	}

	var c12 model.MatrixCell
	for _, c := range mx.Cells {
		if c.ToolA == 1 && c.ToolB == 2 {
			c12 = c
		}
	}
	assert.Equal(t, 2, c12.Matchups)
	// m12a: alpha wins 1+2+3+4+5 of 30; m12b: beta wins 2 of 3 per category.
	assert.Equal(t, 15+5, c12.WinsA)
	assert.Equal(t, 15+10, c12.WinsB)
	assert.Equal(t, 45, c12.Total)
	assert.Equal(t, model.ConfidenceMedium, c12.Confidence)

	var c13 model.MatrixCell
	for _, c := range mx.Cells {
		if c.ToolA == 1 && c.ToolB == 3 {
			c13 = c
		}
	}
	assert.Equal(t, 1, c13.Matchups)
	assert.Zero(t, c13.Total)
}

func TestBuildMatrix_CategoryFilter(t *testing.T) {
	m := model.Matchup{ID: 1, ToolA: 1, ToolB: 2}
	votes := append(votesFor(m, model.CategoryOverall, 1, 2, 2, t0), votesFor(m, model.CategoryAccuracy, 2, 3, 3, t0)...)
	snap := Snapshot{Tools: testTools(), Matchups: []model.Matchup{m}, Votes: votes, AsOf: t0}

	mx := BuildMatrix(snap, model.CategoryAccuracy)
	require.Len(t, mx.Cells, 1)
	assert.Equal(t, 0, mx.Cells[0].WinsA)
	assert.Equal(t, 3, mx.Cells[0].WinsB)
}

func TestBuildPairDetail(t *testing.T) {
	var matchups []model.Matchup
	var votes []model.Vote
	for i := int64(1); i <= 12; i++ {
		m := model.Matchup{ID: i, ToolA: 1, ToolB: 2, Status: model.MatchupActive, CreatedAt: t0.Add(time.Duration(i) * time.Hour)}
		matchups = append(matchups, m)
		votes = append(votes, votesFor(m, model.CategoryCreativity, 2, 1, 1, t0)...)
	}
	other := model.Matchup{ID: 99, ToolA: 1, ToolB: 3}
	matchups = append(matchups, other)
	votes = append(votes, votesFor(other, model.CategoryCreativity, 1, 1, 1, t0)...)

	tools := testTools()
	snap := Snapshot{Tools: tools, Matchups: matchups, Votes: votes, AsOf: t0}

	d := BuildPairDetail(snap, &tools[1], &tools[0])
	assert.Equal(t, int64(1), d.ToolA.ID, "canonical order regardless of argument order")
	assert.Equal(t, 12, d.Total)
	assert.Equal(t, 12, d.WinsB)
	assert.Equal(t, 0, d.WinsA)
	require.Len(t, d.Categories, len(model.VoteCategories))
	require.Len(t, d.RecentMatchups, RecentPairMatchups)
	assert.Equal(t, int64(12), d.RecentMatchups[0].MatchupID, "newest first")
}

func TestMajorityWinners_SkipsTies(t *testing.T) {
	votes := []model.Vote{
		{MatchupID: 1, Category: model.CategoryOverall, WinnerTool: 1},
		{MatchupID: 1, Category: model.CategoryOverall, WinnerTool: 1},
		{MatchupID: 1, Category: model.CategoryOverall, WinnerTool: 2},
		{MatchupID: 1, Category: model.CategoryAccuracy, WinnerTool: 1},
		{MatchupID: 1, Category: model.CategoryAccuracy, WinnerTool: 2},
	}
	got := MajorityWinners(votes)
	assert.Equal(t, int64(1), got[ballotKey{1, model.CategoryOverall}])
	_, ok := got[ballotKey{1, model.CategoryAccuracy}]
	assert.False(t, ok)
}

func historyFixture() HistoryInput {
	tools := testTools()
	toolIdx := make(map[int64]*model.Tool)
	for i := range tools {
		toolIdx[tools[i].ID] = &tools[i]
	}
	m1 := &model.Matchup{ID: 1, ToolA: 1, ToolB: 2}
	m2 := &model.Matchup{ID: 2, ToolA: 2, ToolB: 3}

	user := []model.Vote{
		{ID: 1, UserID: 4, MatchupID: 1, Category: model.CategoryOverall, WinnerTool: 1, CreatedAt: t0},
		{ID: 2, UserID: 4, MatchupID: 1, Category: model.CategoryAccuracy, WinnerTool: 2, CreatedAt: t0.Add(time.Minute)},
		{ID: 3, UserID: 4, MatchupID: 2, Category: model.CategoryOverall, WinnerTool: 3, CreatedAt: t0.Add(2 * time.Minute)},
	}
	peers := append([]model.Vote{}, user...)
	peers = append(peers,
		model.Vote{MatchupID: 1, Category: model.CategoryOverall, WinnerTool: 1},
		model.Vote{MatchupID: 1, Category: model.CategoryAccuracy, WinnerTool: 1},
		model.Vote{MatchupID: 1, Category: model.CategoryAccuracy, WinnerTool: 1},
		model.Vote{MatchupID: 2, Category: model.CategoryOverall, WinnerTool: 2},
	)
	return HistoryInput{
		UserVotes:  user,
		PeerVotes:  peers,
		Matchups:   map[int64]*model.Matchup{1: m1, 2: m2},
		Tools:      toolIdx,
		AsOf:       t0.Add(3 * time.Minute),
		LockWindow: DefaultLockWindow,
	}
}

func TestBuildHistory_Filters(t *testing.T) {
	in := historyFixture()

	tests := []struct {
		name    string
		filter  model.HistoryFilter
		wantIDs []int64
	}{
		{"newest first by default", model.HistoryFilter{Sort: model.SortNewest}, []int64{3, 2, 1}},
		{"oldest first", model.HistoryFilter{Sort: model.SortOldest}, []int64{1, 2, 3}},
		{"by tool", model.HistoryFilter{ToolSlug: "gamma", Sort: model.SortNewest}, []int64{3}},
		{"by category", model.HistoryFilter{Category: model.CategoryOverall, Sort: model.SortNewest}, []int64{3, 1}},
		{"with majority", model.HistoryFilter{Alignment: model.AlignmentMajority, Sort: model.SortNewest}, []int64{1}},
		{"against majority", model.HistoryFilter{Alignment: model.AlignmentMinority, Sort: model.SortNewest}, []int64{2}},
		{"unknown tool", model.HistoryFilter{ToolSlug: "nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Limit = 10
			page := BuildHistory(in, tt.filter)
			var ids []int64
			for _, e := range page.Votes {
				ids = append(ids, e.VoteID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), page.Total)
		})
	}
}

func TestBuildHistory_EntryAndPagination(t *testing.T) {
	in := historyFixture()

	page := BuildHistory(in, model.HistoryFilter{Sort: model.SortOldest, Page: 2, Limit: 2})
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Votes, 1)

	e := page.Votes[0]
	assert.Equal(t, int64(3), e.VoteID)
	assert.Equal(t, "gamma", e.Winner.Slug)
	assert.Equal(t, "beta", e.Loser.Slug)
	assert.False(t, e.Locked)
	assert.Nil(t, e.WithMajority, "1-1 split has no majority")

	in.AsOf = t0.Add(time.Hour)
	page = BuildHistory(in, model.HistoryFilter{Sort: model.SortOldest, Page: 1, Limit: 2})
	assert.True(t, page.Votes[0].Locked)

	page = BuildHistory(in, model.HistoryFilter{Page: 5, Limit: 2})
	assert.Empty(t, page.Votes)
	assert.Equal(t, 3, page.Total)
}

func TestWeekStart(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"wednesday", t0, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)},
		{"monday midnight", time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)},
		{"sunday night", time.Date(2026, time.October, 18, 23, 59, 59, 0, time.UTC), time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)},
		{"sunday local is monday utc", time.Date(2026, time.October, 18, 21, 0, 0, 0, est), time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)},
		{"across month", time.Date(2026, time.November, 1, 8, 0, 0, 0, time.UTC), time.Date(2026, time.October, 26, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(WeekStart(tt.in)), "got %s", WeekStart(tt.in))
		})
	}
}
