// Package scheduler provides the nightly reconciliation sweep over stale
// enrollments.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ecostride/ecostride-api/internal/config"
	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/pkg/dateutil"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

// SweepStore lists enrollments whose challenge window has already closed but
// whose status was never rechecked.
type SweepStore interface {
	ListJoinedEnrollmentsEndedBefore(cutoff time.Time) ([]models.Enrollment, error)
}

// Reconciler re-derives one enrollment's status from current wall-clock time.
type Reconciler interface {
	ReconcileEnrollment(ctx context.Context, enrollment *models.Enrollment) (*models.Enrollment, error)
}

// Service runs the nightly sweep. The sweep is a safety net behind the lazy
// read-time reconciliation: it catches enrollments nobody has read since
// their challenge window closed, so leaderboards and exports see correct
// statuses too.
type Service struct {
	config     *config.Config
	store      SweepStore
	reconciler Reconciler
	loc        *time.Location
	log        *logger.Logger
	cron       *cron.Cron
	now        func() time.Time
}

// NewService creates a new sweep scheduler.
func NewService(
	cfg *config.Config,
	store SweepStore,
	reconciler Reconciler,
	loc *time.Location,
	log *logger.Logger,
) *Service {
	return &Service{
		config:     cfg,
		store:      store,
		reconciler: reconciler,
		loc:        loc,
		log:        log,
		now:        time.Now,
	}
}

// Start initializes and starts the cron scheduler.
func (s *Service) Start() error {
	if !s.config.Challenges.Sweep.Enabled {
		s.log.Info().Msg("Reconciliation sweep is disabled in configuration")
		return nil
	}

	s.cron = cron.New(cron.WithLocation(s.loc))

	_, err := s.cron.AddFunc(s.config.Challenges.Sweep.Schedule, func() {
		s.RunSweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to register sweep job: %w", err)
	}

	s.cron.Start()

	entries := s.cron.Entries()
	nextRun := ""
	if len(entries) > 0 {
		nextRun = entries[0].Next.Format(time.RFC3339)
	}

	s.log.Info().
		Str("schedule", s.config.Challenges.Sweep.Schedule).
		Str("timezone", s.loc.String()).
		Str("next_run", nextRun).
		Msg("Reconciliation sweep scheduled")

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.log.Info().Msg("Reconciliation sweep stopped")
	}
}

// RunSweep reconciles every still-joined enrollment whose challenge ended
// before today. Failures on individual enrollments are logged and skipped so
// one bad row cannot stall the rest.
func (s *Service) RunSweep(ctx context.Context) (swept, failed int) {
	start := s.now()
	cutoff := dateutil.StartOfDay(start, s.loc)

	s.log.Info().
		Time("cutoff", cutoff).
		Msg("Running enrollment reconciliation sweep")

	enrollments, err := s.store.ListJoinedEnrollmentsEndedBefore(cutoff)
	if err != nil {
		s.log.Error().
			Err(err).
			Msg("Failed to list stale enrollments")
		return 0, 0
	}

	for i := range enrollments {
		if _, err := s.reconciler.ReconcileEnrollment(ctx, &enrollments[i]); err != nil {
			failed++
			s.log.Error().
				Err(err).
				Uint("user_id", enrollments[i].UserID).
				Uint("challenge_id", enrollments[i].ChallengeID).
				Msg("Failed to reconcile enrollment")
			continue
		}
		swept++
	}

	s.log.Info().
		Int("swept", swept).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Reconciliation sweep completed")

	return swept, failed
}
