package service

import (
	"math"
	"sort"
	"time"

	"github.com/harberts01/Ai-Blog/internal/model"
)

// Aggregation thresholds.
const (
	MediumConfidenceVotes = 30
	HighConfidenceVotes   = 100
	MinTrendVotes         = 5
	TrendThreshold        = 0.02
	TrendWindow           = 7 * 24 * time.Hour
	RecentPairMatchups    = 10
)

// Snapshot is the ledger state the aggregator reads. Votes should already be
// limited to the ones that count; the builders never filter by time except
// for trend windows.
type Snapshot struct {
	Tools    []model.Tool
	Matchups []model.Matchup
	Votes    []model.Vote
	AsOf     time.Time
}

func (s Snapshot) matchupIndex() map[int64]*model.Matchup {
	idx := make(map[int64]*model.Matchup, len(s.Matchups))
	for i := range s.Matchups {
		idx[s.Matchups[i].ID] = &s.Matchups[i]
	}
	return idx
}

func (s Snapshot) toolIndex() map[int64]*model.Tool {
	idx := make(map[int64]*model.Tool, len(s.Tools))
	for i := range s.Tools {
		idx[s.Tools[i].ID] = &s.Tools[i]
	}
	return idx
}

// Confidence buckets a participation count.
func Confidence(participated int) string {
	switch {
	case participated >= HighConfidenceVotes:
		return model.ConfidenceHigh
	case participated >= MediumConfidenceVotes:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func inCategory(v *model.Vote, category string) bool {
	return category == "" || category == model.CategoryAll || v.Category == category
}

func rate(won, participated int) float64 {
	if participated == 0 {
		return 0
	}
	return float64(won) / float64(participated)
}

type tally struct {
	won, participated int
}

func (t *tally) add(won bool) {
	t.participated++
	if won {
		t.won++
	}
}

// BuildLeaderboard ranks every active tool, plus retired tools that still
// have votes, by win rate in category. Tools under minVotes stay listed and
// are flagged.
func BuildLeaderboard(snap Snapshot, category string, minVotes int) model.Leaderboard {
	if category == "" {
		category = model.CategoryAll
	}
	matchups := snap.matchupIndex()
	recentFrom := snap.AsOf.Add(-TrendWindow)
	prevFrom := recentFrom.Add(-TrendWindow)

	overall := make(map[int64]*tally)
	recent := make(map[int64]*tally)
	previous := make(map[int64]*tally)
	byCategory := make(map[int64]map[string]*tally)
	get := func(m map[int64]*tally, id int64) *tally {
		t, ok := m[id]
		if !ok {
			t = &tally{}
			m[id] = t
		}
		return t
	}

	total := 0
	for i := range snap.Votes {
		v := &snap.Votes[i]
		m, ok := matchups[v.MatchupID]
		if !ok {
			continue
		}
		for _, toolID := range []int64{m.ToolA, m.ToolB} {
			won := v.WinnerTool == toolID

			cats, ok := byCategory[toolID]
			if !ok {
				cats = make(map[string]*tally)
				byCategory[toolID] = cats
			}
			ct, ok := cats[v.Category]
			if !ok {
				ct = &tally{}
				cats[v.Category] = ct
			}
			ct.add(won)

			if !inCategory(v, category) {
				continue
			}
			get(overall, toolID).add(won)
			switch {
			case v.CreatedAt.After(recentFrom):
				get(recent, toolID).add(won)
			case v.CreatedAt.After(prevFrom):
				get(previous, toolID).add(won)
			}
		}
		if inCategory(v, category) {
			total++
		}
	}

	rows := make([]model.LeaderboardRow, 0, len(snap.Tools))
	for _, t := range snap.Tools {
		o := get(overall, t.ID)
		_, hasHistory := byCategory[t.ID]
		if !t.IsActive() && !hasHistory {
			continue
		}

		row := model.LeaderboardRow{
			Tool:         t.Ref(),
			Won:          o.won,
			Participated: o.participated,
			WinRate:      rate(o.won, o.participated),
			Confidence:   Confidence(o.participated),
			BelowFloor:   o.participated < minVotes,
			Trend:        model.TrendStable,
		}

		r, p := get(recent, t.ID), get(previous, t.ID)
		row.Votes7d = r.participated
		if r.participated > 0 {
			wr := rate(r.won, r.participated)
			row.WinRate7d = &wr
		}
		if p.participated > 0 {
			wr := rate(p.won, p.participated)
			row.WinRatePrev7d = &wr
		}
		if row.WinRate7d != nil && row.WinRatePrev7d != nil && r.participated >= MinTrendVotes {
			delta := *row.WinRate7d - *row.WinRatePrev7d
			row.TrendDelta = &delta
			switch {
			case delta > TrendThreshold:
				row.Trend = model.TrendUp
			case delta < -TrendThreshold:
				row.Trend = model.TrendDown
			}
		}

		if cats := byCategory[t.ID]; len(cats) > 0 {
			row.Categories = make(map[string]model.CategoryRecord, len(cats))
			for c, ct := range cats {
				row.Categories[c] = model.CategoryRecord{
					Won:          ct.won,
					Participated: ct.participated,
					WinRate:      rate(ct.won, ct.participated),
				}
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].WinRate != rows[j].WinRate {
			return rows[i].WinRate > rows[j].WinRate
		}
		if rows[i].Participated != rows[j].Participated {
			return rows[i].Participated > rows[j].Participated
		}
		return rows[i].Tool.ID < rows[j].Tool.ID
	})
	// Competition ranking: equal win rates share a rank, the next rank skips.
	for i := range rows {
		if i > 0 && rows[i].WinRate == rows[i-1].WinRate {
			rows[i].Rank = rows[i-1].Rank
		} else {
			rows[i].Rank = i + 1
		}
	}

	return model.Leaderboard{
		Category:   category,
		Rows:       rows,
		TotalVotes: total,
		AsOf:       snap.AsOf,
	}
}

// BuildTeaser truncates a leaderboard to size rows with win rates rounded to
// the nearest 5%.
func BuildTeaser(lb model.Leaderboard, size int) model.Teaser {
	n := min(size, len(lb.Rows))
	rows := make([]model.TeaserRow, 0, n)
	for _, r := range lb.Rows[:n] {
		rows = append(rows, model.TeaserRow{
			Rank:           r.Rank,
			Tool:           r.Tool,
			WinRateRounded: math.Round(r.WinRate*20) / 20,
		})
	}
	return model.Teaser{Category: lb.Category, Rows: rows}
}

type pairKey struct {
	a, b int64
}

// BuildMatrix tallies every canonical tool pair that has at least one
// matchup. Grid[i][j] holds the wins of Tools[i] over Tools[j].
func BuildMatrix(snap Snapshot, category string) model.Matrix {
	if category == "" {
		category = model.CategoryAll
	}
	tools := snap.toolIndex()
	matchups := snap.matchupIndex()

	cells := make(map[pairKey]*model.MatrixCell)
	for _, m := range snap.Matchups {
		k := pairKey{m.ToolA, m.ToolB}
		c, ok := cells[k]
		if !ok {
			c = &model.MatrixCell{ToolA: m.ToolA, ToolB: m.ToolB}
			cells[k] = c
		}
		c.Matchups++
	}

	for i := range snap.Votes {
		v := &snap.Votes[i]
		if !inCategory(v, category) {
			continue
		}
		m, ok := matchups[v.MatchupID]
		if !ok {
			continue
		}
		c := cells[pairKey{m.ToolA, m.ToolB}]
		c.Total++
		switch v.WinnerTool {
		case m.ToolA:
			c.WinsA++
		case m.ToolB:
			c.WinsB++
		default:
			c.Ties++
		}
	}

	present := make(map[int64]bool)
	keys := make([]pairKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
		present[k.a], present[k.b] = true, true
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	var ids []int64
	for id := range present {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	pos := make(map[int64]int, len(ids))
	refs := make([]model.ToolRef, len(ids))
	for i, id := range ids {
		pos[id] = i
		if t, ok := tools[id]; ok {
			refs[i] = t.Ref()
		} else {
			refs[i] = model.ToolRef{ID: id}
		}
	}

	grid := make([][]*int, len(ids))
	for i := range grid {
		grid[i] = make([]*int, len(ids))
	}
	out := make([]model.MatrixCell, 0, len(keys))
	for _, k := range keys {
		c := cells[k]
		c.Confidence = Confidence(c.Total)
		winsA, winsB := c.WinsA, c.WinsB
		grid[pos[k.a]][pos[k.b]] = &winsA
		grid[pos[k.b]][pos[k.a]] = &winsB
		out = append(out, *c)
	}

	return model.Matrix{
		Category: category,
		Tools:    refs,
		Grid:     grid,
		Cells:    out,
		AsOf:     snap.AsOf,
	}
}

// BuildPairDetail drills into one tool pair. a and b may be given in either
// order; the result is in canonical order.
func BuildPairDetail(snap Snapshot, a, b *model.Tool) model.PairDetail {
	if a.ID > b.ID {
		a, b = b, a
	}
	detail := model.PairDetail{ToolA: a.Ref(), ToolB: b.Ref()}

	var pairMatchups []model.Matchup
	inPair := make(map[int64]bool)
	for _, m := range snap.Matchups {
		if m.ToolA == a.ID && m.ToolB == b.ID {
			pairMatchups = append(pairMatchups, m)
			inPair[m.ID] = true
		}
	}

	perCategory := make(map[string]*model.PairCategory, len(model.VoteCategories))
	for _, c := range model.VoteCategories {
		perCategory[c] = &model.PairCategory{Category: c}
	}
	for i := range snap.Votes {
		v := &snap.Votes[i]
		if !inPair[v.MatchupID] {
			continue
		}
		pc, ok := perCategory[v.Category]
		if !ok {
			continue
		}
		pc.Total++
		detail.Total++
		switch v.WinnerTool {
		case a.ID:
			pc.WinsA++
			detail.WinsA++
		case b.ID:
			pc.WinsB++
			detail.WinsB++
		}
	}
	detail.Confidence = Confidence(detail.Total)
	for _, c := range model.VoteCategories {
		detail.Categories = append(detail.Categories, *perCategory[c])
	}

	sort.Slice(pairMatchups, func(i, j int) bool {
		if !pairMatchups[i].CreatedAt.Equal(pairMatchups[j].CreatedAt) {
			return pairMatchups[i].CreatedAt.After(pairMatchups[j].CreatedAt)
		}
		return pairMatchups[i].ID > pairMatchups[j].ID
	})
	if len(pairMatchups) > RecentPairMatchups {
		pairMatchups = pairMatchups[:RecentPairMatchups]
	}
	detail.RecentMatchups = make([]model.PairMatchup, 0, len(pairMatchups))
	for _, m := range pairMatchups {
		detail.RecentMatchups = append(detail.RecentMatchups, model.PairMatchup{
			MatchupID: m.ID,
			Category:  m.Category,
			Status:    m.Status,
			CreatedAt: m.CreatedAt,
		})
	}
	return detail
}

// TallyMatchup counts votes per category for one matchup.
func TallyMatchup(m *model.Matchup, votes []model.Vote) []model.CategoryResult {
	out := make([]model.CategoryResult, 0, len(model.VoteCategories))
	for _, c := range model.VoteCategories {
		r := model.CategoryResult{Category: c}
		for _, v := range votes {
			if v.MatchupID != m.ID || v.Category != c {
				continue
			}
			switch v.WinnerTool {
			case m.ToolA:
				r.ToolAVotes++
			case m.ToolB:
				r.ToolBVotes++
			}
		}
		r.Total = r.ToolAVotes + r.ToolBVotes
		if r.Total > 0 {
			r.ToolAPct = math.Round(float64(r.ToolAVotes)/float64(r.Total)*1000) / 10
			r.ToolBPct = math.Round(float64(r.ToolBVotes)/float64(r.Total)*1000) / 10
		}
		out = append(out, r)
	}
	return out
}

type ballotKey struct {
	matchupID int64
	category  string
}

// MajorityWinners returns the community's winning tool per (matchup,
// category). Split decisions are absent from the map.
func MajorityWinners(votes []model.Vote) map[ballotKey]int64 {
	counts := make(map[ballotKey]map[int64]int)
	for _, v := range votes {
		k := ballotKey{v.MatchupID, v.Category}
		if counts[k] == nil {
			counts[k] = make(map[int64]int)
		}
		counts[k][v.WinnerTool]++
	}

	out := make(map[ballotKey]int64, len(counts))
	for k, byTool := range counts {
		var best int64
		bestN, tied := -1, false
		for tool, n := range byTool {
			switch {
			case n > bestN:
				best, bestN, tied = tool, n, false
			case n == bestN:
				tied = true
			}
		}
		if !tied {
			out[k] = best
		}
	}
	return out
}

// HistoryInput is everything BuildHistory joins against.
type HistoryInput struct {
	UserVotes  []model.Vote
	PeerVotes  []model.Vote
	Matchups   map[int64]*model.Matchup
	Tools      map[int64]*model.Tool
	AsOf       time.Time
	LockWindow time.Duration
}

// BuildHistory filters, sorts and paginates a user's votes. f.Limit must
// already be clamped by the caller.
func BuildHistory(in HistoryInput, f model.HistoryFilter) model.HistoryPage {
	majority := MajorityWinners(in.PeerVotes)

	var filterTool int64 = -1
	if f.ToolSlug != "" {
		filterTool = 0
		for id, t := range in.Tools {
			if t.Slug == f.ToolSlug {
				filterTool = id
			}
		}
	}

	entries := make([]model.HistoryEntry, 0, len(in.UserVotes))
	for _, v := range in.UserVotes {
		m, ok := in.Matchups[v.MatchupID]
		if !ok {
			continue
		}
		if f.Category != "" && f.Category != model.CategoryAll && v.Category != f.Category {
			continue
		}
		if filterTool >= 0 && !m.HasTool(filterTool) {
			continue
		}

		var aligned *bool
		if w, ok := majority[ballotKey{v.MatchupID, v.Category}]; ok {
			a := w == v.WinnerTool
			aligned = &a
		}
		switch f.Alignment {
		case model.AlignmentMajority:
			if aligned == nil || !*aligned {
				continue
			}
		case model.AlignmentMinority:
			if aligned == nil || *aligned {
				continue
			}
		}

		entries = append(entries, model.HistoryEntry{
			VoteID:       v.ID,
			MatchupID:    v.MatchupID,
			Category:     v.Category,
			Winner:       toolRef(in.Tools, v.WinnerTool),
			Loser:        toolRef(in.Tools, m.Opponent(v.WinnerTool)),
			Locked:       v.IsLockedAt(in.AsOf, in.LockWindow),
			WithMajority: aligned,
			CreatedAt:    v.CreatedAt,
		})
	}

	oldest := f.Sort == model.SortOldest
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt) == oldest
		}
		return (entries[i].VoteID < entries[j].VoteID) == oldest
	})

	limit := max(f.Limit, 1)
	page := max(f.Page, 1)
	total := len(entries)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return model.HistoryPage{
		Votes:      entries[start:end],
		Total:      total,
		Page:       page,
		TotalPages: (total + limit - 1) / limit,
	}
}

func toolRef(tools map[int64]*model.Tool, id int64) model.ToolRef {
	if t, ok := tools[id]; ok {
		return t.Ref()
	}
	return model.ToolRef{ID: id}
}
