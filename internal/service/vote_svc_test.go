package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harberts01/Ai-Blog/internal/model"
)

func TestSubmit_LockWindowScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.matchups.Create(ctx, 20, 10, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1), m.ToolA)
	require.True(t, ResolvePlacement(m, 4).AIsLeft)

	v, err := f.votes.SubmitOrEditVote(ctx, m.ID, model.Identity{UserID: 4}, model.CategoryOverall, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.WinnerTool)
	assert.True(t, v.PositionAWasLeft)
	assert.Equal(t, t0, v.CreatedAt)

	f.clock.Advance(2 * time.Minute)
	edited, err := f.votes.SubmitOrEditVote(ctx, m.ID, model.Identity{UserID: 4}, model.CategoryOverall, 2)
	require.NoError(t, err)
	assert.Equal(t, v.ID, edited.ID)
	assert.Equal(t, int64(2), edited.WinnerTool)
	assert.Equal(t, t0, edited.CreatedAt, "edits never move the lock deadline")

	f.clock.Advance(4 * time.Minute)
	_, err = f.votes.SubmitOrEditVote(ctx, m.ID, model.Identity{UserID: 4}, model.CategoryOverall, 1)
	assert.ErrorIs(t, err, ErrVoteLocked)

	votes, err := f.st.UserVotesForMatchup(ctx, 4, m.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, int64(2), votes[0].WinnerTool)
	assert.True(t, votes[0].Locked, "lock flag is persisted when a late edit is rejected")

	events := f.st.Events()
	require.Len(t, events, 3)
	assert.Equal(t, model.EventVoteCast, events[0].EventType)
	assert.Equal(t, model.EventVoteEdited, events[1].EventType)
	assert.Equal(t, model.EventVoteEditRejected, events[2].EventType)
	assert.Equal(t, ErrVoteLocked.Code, events[2].ErrorCode)
}

func TestSubmit_LockedEvenRightAfterEdit(t *testing.T) {
	f := newFixture(t)
	m := f.matchup(t, 10, 20)

	require.NoError(t, f.vote(4, m.ID, model.CategoryOverall, 1))
	f.clock.Advance(4*time.Minute + 59*time.Second)
	require.NoError(t, f.vote(4, m.ID, model.CategoryOverall, 2))
	f.clock.Advance(2 * time.Second)

	assert.ErrorIs(t, f.vote(4, m.ID, model.CategoryOverall, 1), ErrVoteLocked)
}

func TestSubmit_NeverDuplicatesRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.matchup(t, 10, 20)

	for i, winner := range []int64{1, 2, 2, 1} {
		require.NoError(t, f.vote(4, m.ID, model.CategoryCreativity, winner), "submission %d", i)
		f.clock.Advance(30 * time.Second)
	}

	votes, err := f.st.UserVotesForMatchup(ctx, 4, m.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, int64(1), votes[0].WinnerTool)
}

func TestSubmit_UnchangedBallotIsNotAnEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.matchup(t, 10, 20)
	user := model.Identity{UserID: 4}

	resp, err := f.votes.Submit(ctx, SubmitRequest{
		MatchupID: m.ID,
		Identity:  user,
		Ballots:   []model.Ballot{{Category: model.CategoryOverall, WinnerTool: 1}},
	})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, model.OutcomeCreated, resp.Votes[0].Outcome)
	assert.Equal(t, model.SideLeft, resp.Votes[0].Winner)
	assert.Equal(t, t0.Add(DefaultLockWindow), resp.EditWindowExpiresAt)

	resp, err = f.votes.Submit(ctx, SubmitRequest{
		MatchupID: m.ID,
		Identity:  user,
		Ballots: []model.Ballot{
			{Category: model.CategoryOverall, WinnerTool: 1},
			{Category: model.CategoryAccuracy, WinnerTool: 2},
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, model.OutcomeUnchanged, resp.Votes[0].Outcome)
	assert.Equal(t, model.OutcomeCreated, resp.Votes[1].Outcome)
}

func TestSubmit_BatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.matchup(t, 10, 20)
	require.NoError(t, f.vote(4, m.ID, model.CategoryOverall, 1))
	f.clock.Advance(6 * time.Minute)

	_, err := f.votes.Submit(ctx, SubmitRequest{
		MatchupID: m.ID,
		Identity:  model.Identity{UserID: 4},
		Ballots: []model.Ballot{
			{Category: model.CategoryAccuracy, WinnerTool: 2},
			{Category: model.CategoryOverall, WinnerTool: 2},
		},
	})
	require.ErrorIs(t, err, ErrVoteLocked)

	votes, err := f.st.UserVotesForMatchup(ctx, 4, m.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1, "the accuracy ballot must not be written")
	assert.Equal(t, model.CategoryOverall, votes[0].Category)
}

func TestSubmit_EditOnlyRejectsNewCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.matchup(t, 10, 20)
	user := model.Identity{UserID: 4}

	_, err := f.votes.Submit(ctx, SubmitRequest{
		MatchupID: m.ID,
		Identity:  user,
		Mode:      ModeEditOnly,
		Ballots:   []model.Ballot{{Category: model.CategoryOverall, WinnerTool: 1}},
	})
	require.ErrorIs(t, err, ErrNewVoteViaEdit)

	require.NoError(t, f.vote(4, m.ID, model.CategoryOverall, 1))
	resp, err := f.votes.Submit(ctx, SubmitRequest{
		MatchupID: m.ID,
		Identity:  user,
		Mode:      ModeEditOnly,
		Ballots:   []model.Ballot{{Category: model.CategoryOverall, WinnerTool: 2}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Created)
	assert.Equal(t, model.OutcomeUpdated, resp.Votes[0].Outcome)

	events := f.st.Events()
	assert.Equal(t, model.EventVoteEditRejected, events[0].EventType)
	assert.Equal(t, "edit", events[0].Metadata["mode"])
}

func TestSubmit_WeeklyQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ms []*model.Matchup
	for _, p := range [][2]int64{{10, 20}, {10, 30}, {10, 40}, {20, 30}} {
		ms = append(ms, f.matchup(t, p[0], p[1]))
	}

	for _, m := range ms[:3] {
		require.NoError(t, f.vote(4, m.ID, model.CategoryOverall, m.ToolA))
	}

	err := f.vote(4, ms[3].ID, model.CategoryOverall, ms[3].ToolA)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, 3, e.Details["used"])
	resetsAt, ok := e.Details["resetsAt"].(time.Time)
	require.True(t, ok)
	assert.True(t, resetsAt.Equal(time.Date(2026, time.October, 19, 0, 0, 0, 0, time.UTC)))

	// Edits and extra categories on the same three matchups stay allowed.
	require.NoError(t, f.vote(4, ms[0].ID, model.CategoryOverall, ms[0].ToolB))
	require.NoError(t, f.vote(4, ms[1].ID, model.CategoryAccuracy, ms[1].ToolB))

	// Premium users are never capped.
	premium := model.Identity{UserID: 7, Premium: true}
	for _, m := range ms {
		_, err := f.votes.SubmitOrEditVote(ctx, m.ID, premium, model.CategoryOverall, m.ToolA)
		require.NoError(t, err)
	}

	// The cap resets at Monday 00:00 UTC.
	f.clock.Advance(resetsAt.Sub(f.clock.Now()))
	require.NoError(t, f.vote(4, ms[3].ID, model.CategoryOverall, ms[3].ToolA))

	codes := f.eventCodes(4)
	assert.Contains(t, codes, ErrQuotaExceeded.Code)
}

func TestSubmit_Validation(t *testing.T) {
	six := make([]model.Ballot, 0, 6)
	for _, c := range append(append([]string{}, model.VoteCategories...), model.CategoryOverall) {
		six = append(six, model.Ballot{Category: c, WinnerTool: 1})
	}

	tests := []struct {
		name    string
		ballots []model.Ballot
		want    error
	}{
		{"empty batch", nil, ErrInvalidPayload},
		{"too many ballots", six, ErrInvalidPayload},
		{"unknown category", []model.Ballot{{Category: "vibes", WinnerTool: 1}}, ErrInvalidCategory},
		{"rollup is not votable", []model.Ballot{{Category: model.CategoryAll, WinnerTool: 1}}, ErrInvalidCategory},
		{"duplicate category", []model.Ballot{
			{Category: model.CategoryOverall, WinnerTool: 1},
			{Category: model.CategoryOverall, WinnerTool: 2},
		}, ErrDuplicateCategory},
		{"winner outside pair", []model.Ballot{{Category: model.CategoryOverall, WinnerTool: 3}}, ErrInvalidWinner},
		{"unresolved side", []model.Ballot{{Category: model.CategoryOverall, WinnerTool: 0}}, ErrInvalidWinner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.matchup(t, 10, 20)

			_, err := f.votes.Submit(context.Background(), SubmitRequest{
				MatchupID: m.ID,
				Identity:  model.Identity{UserID: 4},
				Ballots:   tt.ballots,
			})
			require.ErrorIs(t, err, tt.want)

			events := f.st.Events()
			require.Len(t, events, 1, "every rejection is logged")
			assert.Equal(t, model.EventVoteRejected, events[0].EventType)
			assert.Equal(t, tt.want.(*Error).Code, events[0].ErrorCode)
		})
	}
}

func TestSubmit_UnknownMatchupAndAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.vote(4, 999, model.CategoryOverall, 1)
	assert.ErrorIs(t, err, ErrMatchupNotFound)
	assert.Equal(t, []string{ErrMatchupNotFound.Code}, f.eventCodes(4))

	m := f.matchup(t, 10, 20)
	_, err = f.votes.SubmitOrEditVote(ctx, m.ID, model.Identity{}, model.CategoryOverall, 1)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestSubmit_EventMetadata(t *testing.T) {
	f := newFixture(t)
	m := f.matchup(t, 10, 20)

	_, err := f.votes.Submit(context.Background(), SubmitRequest{
		MatchupID: m.ID,
		Identity:  model.Identity{UserID: 4},
		Ballots: []model.Ballot{
			{Category: model.CategoryOverall, WinnerTool: 1},
			{Category: model.CategoryUsefulness, WinnerTool: 2},
		},
		Metadata: map[string]any{"request_id": "req-1"},
	})
	require.NoError(t, err)

	events := f.st.Events()
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.EventVoteCast, ev.EventType)
	assert.Equal(t, []string{model.CategoryOverall, model.CategoryUsefulness}, ev.Categories)
	assert.Equal(t, "req-1", ev.Metadata["request_id"])
	assert.Equal(t, 2, ev.Metadata["batch_size"])
	assert.Equal(t, "upsert", ev.Metadata["mode"])
	assert.NotEmpty(t, ev.Metadata["batch_id"])
	assert.Empty(t, ev.ErrorCode)
}

func TestSubmit_ConcurrentFirstVotesMakeOneRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.matchup(t, 10, 20)

	const n = 8
	outcomes := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			winner := m.ToolA
			if i%2 == 1 {
				winner = m.ToolB
			}
			resp, err := f.votes.Submit(ctx, SubmitRequest{
				MatchupID: m.ID,
				Identity:  model.Identity{UserID: 4},
				Ballots:   []model.Ballot{{Category: model.CategoryOverall, WinnerTool: winner}},
				Mode:      ModeUpsert,
			})
			errs[i] = err
			if err == nil {
				outcomes[i] = resp.Votes[0].Outcome
			}
		}()
	}
	wg.Wait()

	created := 0
	for i := range n {
		require.NoError(t, errs[i])
		if outcomes[i] == model.OutcomeCreated {
			created++
		} else {
			assert.Contains(t, []string{model.OutcomeUpdated, model.OutcomeUnchanged}, outcomes[i])
		}
	}
	assert.Equal(t, 1, created)

	votes, err := f.st.UserVotesForMatchup(ctx, 4, m.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)

	counts := map[string]int{}
	for _, e := range f.st.Events() {
		counts[e.EventType]++
	}
	assert.Equal(t, 1, counts[model.EventVoteCast])
	assert.Equal(t, n-1, counts[model.EventVoteEdited])
}

func TestSubmit_ConcurrentVotesAtQuotaEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ms []*model.Matchup
	for _, p := range [][2]int64{{10, 20}, {10, 30}, {10, 40}, {20, 30}} {
		ms = append(ms, f.matchup(t, p[0], p[1]))
	}
	for _, m := range ms[:2] {
		require.NoError(t, f.vote(4, m.ID, model.CategoryOverall, m.ToolA))
	}

	// One allowance left, two new matchups racing for it.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, m := range ms[2:] {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.vote(4, m.ID, model.CategoryOverall, m.ToolA)
		}()
	}
	wg.Wait()

	ok, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	used, err := f.st.CountNewMatchupsSince(ctx, 4, WeekStart(f.clock.Now()))
	require.NoError(t, err)
	assert.Equal(t, DefaultFreeWeeklyQuota, used)
}
