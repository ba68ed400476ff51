package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/metrics"
	"github.com/harberts01/Ai-Blog/internal/model"
	"github.com/harberts01/Ai-Blog/internal/store"
)

// DefaultLockWindow is how long a vote stays editable after creation.
const DefaultLockWindow = 5 * time.Minute

// MaxBallotsPerSubmission is one ballot per voting category.
var MaxBallotsPerSubmission = len(model.VoteCategories)

// SubmitMode selects how ballots for categories without a vote are handled.
type SubmitMode int

const (
	// ModeUpsert creates missing votes and edits existing ones.
	ModeUpsert SubmitMode = iota
	// ModeEditOnly rejects ballots for categories the user never voted.
	ModeEditOnly
)

func (m SubmitMode) String() string {
	if m == ModeEditOnly {
		return "edit"
	}
	return "upsert"
}

// SubmitRequest is a batch of ballots from one user on one matchup.
type SubmitRequest struct {
	MatchupID int64
	Identity  model.Identity
	Ballots   []model.Ballot
	Mode      SubmitMode
	Metadata  map[string]any
}

// VoteService is the vote ledger: it records ballots, enforces the edit
// window, and writes an audit event for every attempt.
type VoteService struct {
	store      store.Store
	guard      *Eligibility
	clock      clockwork.Clock
	lockWindow time.Duration
	log        *zerolog.Logger
}

func NewVoteService(st store.Store, guard *Eligibility, clock clockwork.Clock, lockWindow time.Duration) *VoteService {
	if lockWindow <= 0 {
		lockWindow = DefaultLockWindow
	}
	return &VoteService{
		store:      st,
		guard:      guard,
		clock:      clock,
		lockWindow: lockWindow,
		log:        logging.Component("ledger"),
	}
}

// LockWindow returns the configured edit window.
func (s *VoteService) LockWindow() time.Duration {
	return s.lockWindow
}

// SubmitOrEditVote records a single category. A second call for the same
// category edits the first while the window is open.
func (s *VoteService) SubmitOrEditVote(ctx context.Context, matchupID int64, ident model.Identity, category string, winnerTool int64) (*model.Vote, error) {
	resp, err := s.Submit(ctx, SubmitRequest{
		MatchupID: matchupID,
		Identity:  ident,
		Ballots:   []model.Ballot{{Category: category, WinnerTool: winnerTool}},
		Mode:      ModeUpsert,
	})
	if err != nil {
		return nil, err
	}
	return resp.Votes[0].Vote, nil
}

// Submit applies a batch atomically: either every ballot is written or none
// is. Rejections are returned as *Error and logged to the event trail.
func (s *VoteService) Submit(ctx context.Context, req SubmitRequest) (*model.VoteResponse, error) {
	if req.Identity.Anonymous() {
		return nil, ErrAuthRequired
	}

	categories := ballotCategories(req.Ballots)
	meta := s.eventMetadata(req)

	if err := validateBallots(req.Ballots); err != nil {
		return nil, s.reject(ctx, req, categories, meta, err)
	}

	m, err := s.store.GetMatchup(ctx, req.MatchupID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.reject(ctx, req, categories, meta, ErrMatchupNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !m.IsActive() {
		return nil, s.reject(ctx, req, categories, meta, ErrMatchupInactive)
	}
	for _, b := range req.Ballots {
		if !m.HasTool(b.WinnerTool) {
			return nil, s.reject(ctx, req, categories, meta,
				ErrInvalidWinner.With(map[string]any{"category": b.Category, "winnerTool": b.WinnerTool}))
		}
	}

	var resp *model.VoteResponse
	for attempt := 0; ; attempt++ {
		resp, err = s.apply(ctx, req, m, categories, meta)
		if err == nil || !errors.Is(err, store.ErrConflict) {
			break
		}
		if attempt == 1 {
			return nil, s.reject(ctx, req, categories, meta, ErrStorageConflict)
		}
		// The competing insert won; a second pass sees its row and edits it.
		s.log.Debug().Int64("matchup_id", m.ID).Msg("vote conflict, retrying as edit")
	}
	if err != nil {
		var committed *committedRejection
		if errors.As(err, &committed) {
			return nil, committed.err
		}
		if e, ok := AsError(err); ok {
			return nil, s.reject(ctx, req, categories, meta, e)
		}
		return nil, err
	}
	return resp, nil
}

// committedRejection marks a rejection whose event and lazy lock flag were
// already written inside the transaction.
type committedRejection struct {
	err *Error
}

func (c *committedRejection) Error() string { return c.err.Error() }
func (c *committedRejection) Unwrap() error { return c.err }

func (s *VoteService) apply(ctx context.Context, req SubmitRequest, m *model.Matchup, categories []string, meta map[string]any) (*model.VoteResponse, error) {
	userID := req.Identity.UserID
	placement := ResolvePlacement(m, userID)
	now := s.clock.Now()

	var (
		resp     *model.VoteResponse
		rejected *Error
	)
	err := s.store.InUserTx(ctx, userID, func(tx store.VoteTx) error {
		existing, err := tx.UserVotesForMatchup(ctx, userID, m.ID)
		if err != nil {
			return err
		}
		byCategory := make(map[string]model.Vote, len(existing))
		for _, v := range existing {
			byCategory[v.Category] = v
		}

		// Lock state first, so a locked edit is reported as such even when
		// other ballots in the batch would also fail.
		var lockedIDs []int64
		for _, b := range req.Ballots {
			v, ok := byCategory[b.Category]
			if ok && v.IsLockedAt(now, s.lockWindow) && !v.Locked {
				lockedIDs = append(lockedIDs, v.ID)
			}
			if ok && v.IsLockedAt(now, s.lockWindow) && rejected == nil {
				rejected = ErrVoteLocked.With(map[string]any{
					"category": b.Category,
					"lockedAt": v.LockDeadline(s.lockWindow),
				})
			}
		}
		if rejected == nil && req.Mode == ModeEditOnly {
			for _, b := range req.Ballots {
				if _, ok := byCategory[b.Category]; !ok {
					rejected = ErrNewVoteViaEdit.With(map[string]any{"category": b.Category})
					break
				}
			}
		}
		if rejected == nil && len(existing) == 0 {
			if err := s.guard.CheckNewMatchup(ctx, tx, req.Identity, now); err != nil {
				e, ok := AsError(err)
				if !ok {
					return err
				}
				rejected = e
			}
		}
		if rejected != nil {
			if err := tx.MarkLocked(ctx, lockedIDs); err != nil {
				return err
			}
			return tx.AppendEvent(ctx, s.rejectionEvent(req, categories, meta, rejected, now))
		}

		resp = &model.VoteResponse{
			Success:          true,
			MatchupID:        m.ID,
			PositionAWasLeft: placement.AIsLeft,
			Votes:            make([]model.BallotResult, 0, len(req.Ballots)),
		}
		var created, edited []string
		var earliest time.Time
		for _, b := range req.Ballots {
			result := model.BallotResult{
				Category:   b.Category,
				WinnerTool: b.WinnerTool,
				Winner:     SideOf(m, placement, b.WinnerTool),
			}

			if prev, ok := byCategory[b.Category]; ok && prev.WinnerTool == b.WinnerTool {
				result.Outcome = model.OutcomeUnchanged
				cp := prev
				result.Vote = &cp
			} else {
				v, outcome, err := tx.UpsertVote(ctx, &model.Vote{
					UserID:           userID,
					MatchupID:        m.ID,
					Category:         b.Category,
					WinnerTool:       b.WinnerTool,
					PositionAWasLeft: placement.AIsLeft,
					CreatedAt:        now,
					UpdatedAt:        now,
				}, s.lockWindow)
				if err != nil {
					return err
				}
				switch outcome {
				case store.UpsertInserted:
					result.Outcome = model.OutcomeCreated
					created = append(created, b.Category)
				case store.UpsertUpdated:
					result.Outcome = model.OutcomeUpdated
					edited = append(edited, b.Category)
				case store.UpsertLocked:
					// The row locked between read and write. Roll back the batch.
					return ErrVoteLocked.With(map[string]any{"category": b.Category})
				}
				result.Vote = v
			}

			if deadline := result.Vote.LockDeadline(s.lockWindow); earliest.IsZero() || deadline.Before(earliest) {
				earliest = deadline
			}
			resp.Votes = append(resp.Votes, result)
		}
		resp.Created = len(created) > 0
		resp.EditWindowExpiresAt = earliest

		eventType := model.EventVoteEdited
		if resp.Created {
			eventType = model.EventVoteCast
		}
		evMeta := cloneMeta(meta)
		evMeta["created"] = created
		evMeta["updated"] = edited
		return tx.AppendEvent(ctx, &model.VoteEvent{
			UserID:     userID,
			MatchupID:  m.ID,
			EventType:  eventType,
			Categories: categories,
			Metadata:   evMeta,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		metrics.VoteRejections.WithLabelValues(rejected.Code).Inc()
		return nil, &committedRejection{err: rejected}
	}

	for _, r := range resp.Votes {
		metrics.VotesTotal.WithLabelValues(r.Category, r.Outcome).Inc()
	}
	s.log.Debug().Int64("user_id", userID).Int64("matchup_id", m.ID).Bool("created", resp.Created).
		Int("ballots", len(resp.Votes)).Msg("votes recorded")
	return resp, nil
}

// reject records an event for a rejection found before the transaction.
func (s *VoteService) reject(ctx context.Context, req SubmitRequest, categories []string, meta map[string]any, e *Error) error {
	metrics.VoteRejections.WithLabelValues(e.Code).Inc()
	ev := s.rejectionEvent(req, categories, meta, e, s.clock.Now())
	if err := s.store.AppendEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("code", e.Code).Msg("append rejection event")
	}
	return e
}

func (s *VoteService) rejectionEvent(req SubmitRequest, categories []string, meta map[string]any, e *Error, now time.Time) *model.VoteEvent {
	eventType := model.EventVoteRejected
	if e.Code == ErrVoteLocked.Code || e.Code == ErrNewVoteViaEdit.Code {
		eventType = model.EventVoteEditRejected
	}
	evMeta := cloneMeta(meta)
	for k, v := range e.Details {
		evMeta[k] = v
	}
	return &model.VoteEvent{
		UserID:     req.Identity.UserID,
		MatchupID:  req.MatchupID,
		EventType:  eventType,
		Categories: categories,
		ErrorCode:  e.Code,
		Metadata:   evMeta,
		CreatedAt:  now,
	}
}

func (s *VoteService) eventMetadata(req SubmitRequest) map[string]any {
	meta := cloneMeta(req.Metadata)
	meta["batch_id"] = uuid.NewString()
	meta["batch_size"] = len(req.Ballots)
	meta["mode"] = req.Mode.String()
	meta["premium"] = req.Identity.Premium
	return meta
}

func validateBallots(ballots []model.Ballot) *Error {
	if len(ballots) == 0 || len(ballots) > MaxBallotsPerSubmission {
		return ErrInvalidPayload.With(map[string]any{"count": len(ballots)})
	}
	seen := make(map[string]bool, len(ballots))
	for _, b := range ballots {
		if !model.IsVoteCategory(b.Category) {
			return ErrInvalidCategory.With(map[string]any{"category": b.Category, "allowed": model.VoteCategories})
		}
		if seen[b.Category] {
			return ErrDuplicateCategory.With(map[string]any{"category": b.Category})
		}
		seen[b.Category] = true
	}
	return nil
}

func ballotCategories(ballots []model.Ballot) []string {
	out := make([]string, 0, len(ballots))
	for _, b := range ballots {
		out = append(out, b.Category)
	}
	return out
}

func cloneMeta(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+4)
	for k, v := range in {
		out[k] = v
	}
	return out
}
