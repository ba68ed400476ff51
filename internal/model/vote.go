package model

import "time"

// Voting categories. CategoryAll is the aggregation rollup and never stored on a vote.
const (
	CategoryWritingQuality = "writing_quality"
	CategoryAccuracy       = "accuracy"
	CategoryCreativity     = "creativity"
	CategoryUsefulness     = "usefulness"
	CategoryOverall        = "overall"
	CategoryAll            = "all"
)

// VoteCategories lists the votable categories in display order.
var VoteCategories = []string{
	CategoryWritingQuality,
	CategoryAccuracy,
	CategoryCreativity,
	CategoryUsefulness,
	CategoryOverall,
}

// IsVoteCategory reports whether c is a votable category.
func IsVoteCategory(c string) bool {
	for _, v := range VoteCategories {
		if v == c {
			return true
		}
	}
	return false
}

// Vote is one user's judgment for one matchup in one category.
type Vote struct {
	ID               int64     `json:"id"`
	UserID           int64     `json:"userId"`
	MatchupID        int64     `json:"matchupId"`
	Category         string    `json:"category"`
	WinnerTool       int64     `json:"winnerTool"`
	PositionAWasLeft bool      `json:"positionAWasLeft"`
	Locked           bool      `json:"locked"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// LockDeadline is the instant after which the vote can no longer be edited.
// It is anchored to creation and never moves on edit.
func (v *Vote) LockDeadline(window time.Duration) time.Time {
	return v.CreatedAt.Add(window)
}

// IsLockedAt reports whether the vote is immutable at now.
func (v *Vote) IsLockedAt(now time.Time, window time.Duration) bool {
	return v.Locked || now.After(v.LockDeadline(window))
}

// Vote event types.
const (
	EventVoteCast         = "vote_cast"
	EventVoteEdited       = "vote_edited"
	EventVoteRejected     = "vote_rejected"
	EventVoteEditRejected = "vote_edit_rejected"
)

// VoteEvent is an append-only audit record of a vote attempt.
type VoteEvent struct {
	ID         int64          `json:"id"`
	UserID     int64          `json:"userId"`
	MatchupID  int64          `json:"matchupId"`
	EventType  string         `json:"eventType"`
	Categories []string       `json:"categories"`
	ErrorCode  string         `json:"errorCode,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Ballot is a single category judgment inside a submission.
type Ballot struct {
	Category   string `json:"category"`
	WinnerTool int64  `json:"winnerTool"`
}

// BallotRequest is one entry of the vote request body. Winner is "left" or
// "right" as the voter saw the matchup; WinnerTool may be sent instead.
type BallotRequest struct {
	Category   string `json:"category"`
	Winner     string `json:"winner,omitempty"`
	WinnerTool int64  `json:"winnerTool,omitempty"`
}

// VoteRequest is the API request body for POST and PATCH on a matchup's votes.
type VoteRequest struct {
	Votes           []BallotRequest `json:"votes"`
	ReadTimeSeconds *float64        `json:"readTimeSeconds,omitempty"`
}

// Ballot outcome values reported per category.
const (
	OutcomeCreated   = "created"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
)

// BallotResult reports what happened to one category of a submission.
type BallotResult struct {
	Category   string `json:"category"`
	WinnerTool int64  `json:"winnerTool"`
	Winner     string `json:"winner"`
	Outcome    string `json:"outcome"`
	Vote       *Vote  `json:"-"`
}

// VoteResponse is returned after a successful submission.
type VoteResponse struct {
	Success             bool           `json:"success"`
	MatchupID           int64          `json:"matchupId"`
	Created             bool           `json:"created"`
	Votes               []BallotResult `json:"votes"`
	EditWindowExpiresAt time.Time      `json:"editWindowExpiresAt"`
	PositionAWasLeft    bool           `json:"positionAWasLeft"`
}
