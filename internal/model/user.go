package model

// AnonymousUserID is the user id used for callers without a session.
const AnonymousUserID int64 = 0

// Identity is the caller as supplied by the upstream auth layer.
type Identity struct {
	UserID  int64 `json:"userId"`
	Premium bool  `json:"premium"`
}

// Anonymous reports whether the caller has no session.
func (i Identity) Anonymous() bool {
	return i.UserID == AnonymousUserID
}
