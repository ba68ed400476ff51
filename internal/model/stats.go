package model

import "time"

// Confidence labels for leaderboard rows and matrix cells.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Trend labels.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// CategoryRecord is a won/participated tally for one category.
type CategoryRecord struct {
	Won          int     `json:"won"`
	Participated int     `json:"participated"`
	WinRate      float64 `json:"winRate"`
}

// LeaderboardRow is one tool's standing in a category.
type LeaderboardRow struct {
	Rank          int                       `json:"rank"`
	Tool          ToolRef                   `json:"tool"`
	Won           int                       `json:"won"`
	Participated  int                       `json:"participated"`
	WinRate       float64                   `json:"winRate"`
	Confidence    string                    `json:"confidence"`
	BelowFloor    bool                      `json:"belowFloor"`
	WinRate7d     *float64                  `json:"winRate7d"`
	WinRatePrev7d *float64                  `json:"winRatePrev7d"`
	Votes7d       int                       `json:"votes7d"`
	TrendDelta    *float64                  `json:"trendDelta"`
	Trend         string                    `json:"trend"`
	Categories    map[string]CategoryRecord `json:"categories,omitempty"`
}

// Leaderboard is the full premium ranking for one category.
type Leaderboard struct {
	Category   string           `json:"category"`
	Rows       []LeaderboardRow `json:"rows"`
	TotalVotes int              `json:"totalVotes"`
	AsOf       time.Time        `json:"asOf"`
}

// TeaserRow is the reduced row shown to free users.
type TeaserRow struct {
	Rank           int     `json:"rank"`
	Tool           ToolRef `json:"tool"`
	WinRateRounded float64 `json:"winRateRounded"`
}

// Teaser is the truncated leaderboard for free users.
type Teaser struct {
	Category string      `json:"category"`
	Rows     []TeaserRow `json:"rows"`
	Premium  bool        `json:"premium"`
}

// MatrixCell is the head-to-head tally for one canonical tool pair.
type MatrixCell struct {
	ToolA      int64  `json:"toolA"`
	ToolB      int64  `json:"toolB"`
	WinsA      int    `json:"winsA"`
	WinsB      int    `json:"winsB"`
	Ties       int    `json:"ties"`
	Total      int    `json:"total"`
	Matchups   int    `json:"matchups"`
	Confidence string `json:"confidence"`
}

// Matrix is the head-to-head grid. Grid[i][j] is the wins of Tools[i] over
// Tools[j]; nil on the diagonal and for pairs that never met.
type Matrix struct {
	Category string       `json:"category"`
	Tools    []ToolRef    `json:"tools"`
	Grid     [][]*int     `json:"grid"`
	Cells    []MatrixCell `json:"cells"`
	AsOf     time.Time    `json:"asOf"`
}

// PairCategory is the head-to-head tally for a pair in one category.
type PairCategory struct {
	Category string `json:"category"`
	WinsA    int    `json:"winsA"`
	WinsB    int    `json:"winsB"`
	Total    int    `json:"total"`
}

// PairMatchup is a recent matchup between two tools.
type PairMatchup struct {
	MatchupID int64     `json:"matchupId"`
	Category  string    `json:"category"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UserVoted bool      `json:"userVoted"`
}

// PairDetail is the drill-down for a single tool pair.
type PairDetail struct {
	ToolA          ToolRef        `json:"toolA"`
	ToolB          ToolRef        `json:"toolB"`
	WinsA          int            `json:"winsA"`
	WinsB          int            `json:"winsB"`
	Total          int            `json:"total"`
	Confidence     string         `json:"confidence"`
	Categories     []PairCategory `json:"categories"`
	RecentMatchups []PairMatchup  `json:"recentMatchups"`
}

// CategoryResult is the per-category tally shown after voting.
type CategoryResult struct {
	Category   string  `json:"category"`
	ToolAVotes int     `json:"toolAVotes"`
	ToolBVotes int     `json:"toolBVotes"`
	Total      int     `json:"total"`
	ToolAPct   float64 `json:"toolAPct"`
	ToolBPct   float64 `json:"toolBPct"`
}

// MatchupResults is returned only to users who voted on the matchup.
type MatchupResults struct {
	MatchupID  int64            `json:"matchupId"`
	ToolA      ToolRef          `json:"toolA"`
	ToolB      ToolRef          `json:"toolB"`
	Categories []CategoryResult `json:"categories"`
}

// HistoryFilter narrows a personal vote history listing.
type HistoryFilter struct {
	ToolSlug  string
	Category  string
	Alignment string
	Sort      string
	Page      int
	Limit     int
}

// Alignment and sort values.
const (
	AlignmentMajority = "majority"
	AlignmentMinority = "minority"
	SortNewest        = "newest"
	SortOldest        = "oldest"
)

// HistoryEntry is one of the user's votes joined with matchup context.
type HistoryEntry struct {
	VoteID       int64     `json:"voteId"`
	MatchupID    int64     `json:"matchupId"`
	Category     string    `json:"category"`
	Winner       ToolRef   `json:"winner"`
	Loser        ToolRef   `json:"loser"`
	Locked       bool      `json:"locked"`
	WithMajority *bool     `json:"withMajority"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HistoryPage is a paginated personal vote history.
type HistoryPage struct {
	Votes      []HistoryEntry `json:"votes"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
}

// UserVoteStats summarizes a user's voting activity.
type UserVoteStats struct {
	TotalVotes     int            `json:"totalVotes"`
	MatchupsVoted  int            `json:"matchupsVoted"`
	ByCategory     map[string]int `json:"byCategory"`
	MajorityRate   *float64       `json:"majorityRate"`
	FavoriteTool   *ToolRef       `json:"favoriteTool,omitempty"`
	WeeklyUsed     int            `json:"weeklyUsed"`
	WeeklyLimit    int            `json:"weeklyLimit"`
	WeeklyResetsAt time.Time      `json:"weeklyResetsAt"`
}
