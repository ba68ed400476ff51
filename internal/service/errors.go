package service

import (
	"errors"
	"fmt"
)

// Error is a per-request outcome with a stable code. Every rejection the
// ledger returns is also written to the vote event log under the same code.
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches on Code so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// With returns a copy of e carrying details.
func (e *Error) With(details map[string]any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	// Matchup builder
	ErrDuplicateMatchup = newError("DUPLICATE_MATCHUP", "A matchup for these two posts already exists.")
	ErrSamePost         = newError("SAME_POST", "A post cannot be paired with itself.")
	ErrSameTool         = newError("SAME_TOOL", "Both posts come from the same tool.")
	ErrPostNotFound     = newError("POST_NOT_FOUND", "Post not found.")
	ErrToolInactive     = newError("TOOL_INACTIVE", "Only active tools can enter new matchups.")
	ErrCategoryMismatch = newError("CATEGORY_MISMATCH", "Both posts must share a category.")
	ErrMatchupNotFound  = newError("MATCHUP_NOT_FOUND", "Matchup not found.")
	ErrMatchupInactive  = newError("MATCHUP_INACTIVE", "This matchup is closed.")
	ErrNotVoted         = newError("NOT_VOTED", "Vote on this matchup to see its results.")

	// Vote ledger
	ErrInvalidPayload    = newError("INVALID_PAYLOAD", "Submit between 1 and 5 category votes.")
	ErrInvalidCategory   = newError("INVALID_CATEGORY", "Unknown voting category.")
	ErrDuplicateCategory = newError("DUPLICATE_CATEGORY", "Each category may appear once per submission.")
	ErrInvalidWinner     = newError("INVALID_WINNER", "The winner must be one of the two paired tools.")
	ErrQuotaExceeded     = newError("QUOTA_EXCEEDED", "Weekly free vote limit reached.")
	ErrVoteLocked        = newError("VOTE_LOCKED", "The edit window for this vote has closed.")
	ErrNewVoteViaEdit    = newError("NEW_VOTE_VIA_EDIT", "Edits can only change existing votes.")
	ErrStorageConflict   = newError("STORAGE_CONFLICT", "The vote could not be recorded, please retry.")

	// Access and queries
	ErrAuthRequired    = newError("AUTH_REQUIRED", "Sign in to continue.")
	ErrPremiumRequired = newError("PREMIUM_REQUIRED", "This feature requires a premium subscription.")
	ErrToolNotFound    = newError("TOOL_NOT_FOUND", "Tool not found.")
	ErrInvalidAlign    = newError("INVALID_ALIGNMENT", `Alignment must be "majority" or "minority".`)
	ErrInvalidSort     = newError("INVALID_SORT", `Sort must be "newest" or "oldest".`)
)

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
