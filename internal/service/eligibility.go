package service

import (
	"context"
	"time"

	"github.com/harberts01/Ai-Blog/internal/model"
)

// DefaultFreeWeeklyQuota is the number of new matchups a free user may vote
// on per UTC week.
const DefaultFreeWeeklyQuota = 3

// WeekStart returns Monday 00:00 UTC of the week containing t, whatever t's
// location.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-daysSinceMonday, 0, 0, 0, 0, time.UTC)
}

// QuotaCounter is the ledger query the guard needs.
type QuotaCounter interface {
	CountNewMatchupsSince(ctx context.Context, userID int64, since time.Time) (int, error)
}

// Eligibility decides whether a user may vote on a matchup they have not
// voted on before.
type Eligibility struct {
	weeklyCap int
}

func NewEligibility(weeklyCap int) *Eligibility {
	return &Eligibility{weeklyCap: weeklyCap}
}

// Usage is a user's standing against the weekly cap.
type Usage struct {
	Used      int
	Limit     int
	Unlimited bool
	ResetsAt  time.Time
}

// Remaining returns how many new matchups the user can still vote on.
func (u Usage) Remaining() int {
	if u.Unlimited {
		return -1
	}
	return max(u.Limit-u.Used, 0)
}

// Usage reports the user's count for the week containing now.
func (g *Eligibility) Usage(ctx context.Context, q QuotaCounter, ident model.Identity, now time.Time) (Usage, error) {
	start := WeekStart(now)
	u := Usage{Limit: g.weeklyCap, Unlimited: ident.Premium, ResetsAt: start.AddDate(0, 0, 7)}
	used, err := q.CountNewMatchupsSince(ctx, ident.UserID, start)
	if err != nil {
		return u, err
	}
	u.Used = used
	return u, nil
}

// CheckNewMatchup approves or rejects a first vote on a matchup. Premium
// users are always approved. Edits and extra categories on a matchup the
// user already voted on never reach this check.
func (g *Eligibility) CheckNewMatchup(ctx context.Context, q QuotaCounter, ident model.Identity, now time.Time) error {
	if ident.Premium {
		return nil
	}
	u, err := g.Usage(ctx, q, ident, now)
	if err != nil {
		return err
	}
	if u.Used >= u.Limit {
		return ErrQuotaExceeded.
			Withf("You have used all %d free votes this week.", u.Limit).
			With(map[string]any{"used": u.Used, "limit": u.Limit, "resetsAt": u.ResetsAt})
	}
	return nil
}
