package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/harberts01/Ai-Blog/internal/logging"
	"github.com/harberts01/Ai-Blog/internal/metrics"
)

// PairingResult summarizes one pairing batch.
type PairingResult struct {
	Closed  int
	Created int
	Skipped int
}

// PairingWorker periodically closes matchups whose posts drifted apart and
// pairs any new posts. Both steps are idempotent, so overlapping processes
// running the same worker only produce duplicates that the store rejects.
type PairingWorker struct {
	matchups  *MatchupService
	interval  time.Duration
	scheduler gocron.Scheduler
	log       *zerolog.Logger
}

// NewPairingWorker builds the scheduler. Nothing runs until Start.
func NewPairingWorker(matchups *MatchupService, interval time.Duration, clock clockwork.Clock) (*PairingWorker, error) {
	sched, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &PairingWorker{
		matchups:  matchups,
		interval:  interval,
		scheduler: sched,
		log:       logging.Component("pairing-worker"),
	}, nil
}

// Start registers the batch job, runs it once immediately, then every interval.
func (w *PairingWorker) Start(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting")

	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(w.tick, ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("pairing-batch"),
	)
	if err != nil {
		return fmt.Errorf("schedule pairing job: %w", err)
	}
	w.scheduler.Start()
	return nil
}

// Stop waits for a running batch to finish and shuts the scheduler down.
func (w *PairingWorker) Stop() error {
	w.log.Info().Msg("stopping")
	return w.scheduler.Shutdown()
}

func (w *PairingWorker) tick(ctx context.Context) {
	start := time.Now()

	res, err := w.RunOnce(ctx)
	if err != nil {
		metrics.PairingRuns.WithLabelValues("error").Inc()
		w.log.Error().Err(err).Msg("pairing batch failed")
		return
	}
	metrics.PairingRuns.WithLabelValues("ok").Inc()
	w.log.Info().
		Int("closed", res.Closed).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Dur("duration_ms", time.Since(start)).
		Msg("pairing batch complete")
}

// RunOnce closes incomparable matchups, then seeds every category.
func (w *PairingWorker) RunOnce(ctx context.Context) (PairingResult, error) {
	var res PairingResult

	closed, err := w.matchups.SweepIncomparable(ctx)
	if err != nil {
		return res, fmt.Errorf("sweep: %w", err)
	}
	res.Closed = closed

	reports, err := w.matchups.SeedAll(ctx)
	for _, r := range reports {
		res.Created += r.Created
		res.Skipped += r.Skipped
	}
	return res, err
}
