package model

import "time"

// Matchup status values.
const (
	MatchupActive = "active"
	MatchupClosed = "closed"
)

// Matchup pairs two posts from two distinct tools. ToolA < ToolB always holds
// and (PostA, PostB) is unique. Category is read from PostA and not stored.
type Matchup struct {
	ID           int64     `json:"id"`
	PostA        int64     `json:"postA"`
	PostB        int64     `json:"postB"`
	ToolA        int64     `json:"toolA"`
	ToolB        int64     `json:"toolB"`
	PromptID     *int64    `json:"promptId,omitempty"`
	Category     string    `json:"category"`
	PositionSeed int       `json:"-"`
	Status       string    `json:"status"`
	Pinned       bool      `json:"pinned"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsActive reports whether the matchup accepts votes.
func (m *Matchup) IsActive() bool {
	return m.Status == MatchupActive
}

// HasTool reports whether toolID is one of the two paired tools.
func (m *Matchup) HasTool(toolID int64) bool {
	return toolID == m.ToolA || toolID == m.ToolB
}

// Opponent returns the other tool of the pair.
func (m *Matchup) Opponent(toolID int64) int64 {
	if toolID == m.ToolA {
		return m.ToolB
	}
	return m.ToolA
}

// Placement is the per-user left/right assignment of a matchup's posts.
type Placement struct {
	AIsLeft bool  `json:"-"`
	Left    int64 `json:"leftPostId"`
	Right   int64 `json:"rightPostId"`
}

// Side values used by clients that only see the blind layout.
const (
	SideLeft  = "left"
	SideRight = "right"
)

// MatchupFilter narrows matchup listings.
type MatchupFilter struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}

// PostView is one side of a matchup as shown to a voter. Tool is nil until revealed.
type PostView struct {
	Side     string   `json:"side"`
	PostID   int64    `json:"postId"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tool     *ToolRef `json:"tool,omitempty"`
}

// MatchupView is the blind rendering of a matchup for a single user.
type MatchupView struct {
	MatchupID           int64             `json:"matchupId"`
	Status              string            `json:"status"`
	Left                PostView          `json:"left"`
	Right               PostView          `json:"right"`
	HasVoted            bool              `json:"hasVoted"`
	Revealed            bool              `json:"revealed"`
	UserVotes           map[string]string `json:"userVotes,omitempty"`
	Locked              bool              `json:"locked"`
	EditWindowExpiresAt *time.Time        `json:"editWindowExpiresAt,omitempty"`
}

// MatchupSummary is a list entry for the compare page.
type MatchupSummary struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"createdAt"`
	HasVoted  bool      `json:"hasVoted"`
}

// CreateMatchupRequest is the admin request body for pairing two posts.
type CreateMatchupRequest struct {
	PostA    int64  `json:"postA"`
	PostB    int64  `json:"postB"`
	PromptID *int64 `json:"promptId,omitempty"`
}

// SeedReport summarizes one automated pairing batch.
type SeedReport struct {
	Category   string `json:"category"`
	Considered int    `json:"considered"`
	Created    int    `json:"created"`
	Skipped    int    `json:"skipped"`
}
