// Package challenges implements the challenge progression engine: enrollment,
// per-task completion, lazy status reconciliation, and reward fan-out.
package challenges

import (
	"context"
	"errors"
	"fmt"
	"time"

	prommetrics "github.com/ecostride/ecostride-api/internal/metrics"
	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/internal/repository"
	"github.com/ecostride/ecostride-api/pkg/dateutil"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

// Store is the persistence surface the engine and query service consume.
// Reads return (nil, nil) on not-found; writes return repository.ErrConflict
// or repository.ErrNotFound so callers can branch on cause.
type Store interface {
	FindActiveChallenges() ([]models.Challenge, error)
	FindChallengesByIDs(ids []uint) ([]models.Challenge, error)
	GetChallengeByID(id uint) (*models.Challenge, error)
	GetTasksByChallenge(challengeID uint) ([]models.ChallengeTask, error)
	GetEnrollment(userID, challengeID uint) (*models.Enrollment, error)
	GetEnrollmentsByUser(userID uint) ([]models.Enrollment, error)
	CreateEnrollment(enrollment *models.Enrollment) error
	UpdateEnrollmentProgress(userID, challengeID uint, progress int, status models.EnrollmentStatus) error
	GetTaskCompletion(enrollmentID, taskID uint) (*models.TaskCompletion, error)
	GetTaskCompletionsByEnrollment(enrollmentID uint) ([]models.TaskCompletion, error)
	CreateTaskCompletion(completion *models.TaskCompletion) error
	UpdateTaskCompletion(completion *models.TaskCompletion) error
}

// PointsLedger records experience-point events.
type PointsLedger interface {
	Record(ctx context.Context, userID uint, amount int, origin models.PointOrigin, referenceID uint) error
}

// CO2Ledger records CO2-savings events.
type CO2Ledger interface {
	Record(ctx context.Context, userID uint, grams float64, origin models.PointOrigin, referenceID uint) error
}

// StatsAggregate accumulates challenge events into the per-user rollup. The
// two entry points keep the tasks-completed and challenges-completed
// counters accurate.
type StatsAggregate interface {
	ApplyTaskCompletion(ctx context.Context, userID uint, pointsDelta int, co2Delta float64) error
	ApplyChallengeCompletion(ctx context.Context, userID uint, pointsDelta int, co2Delta float64) error
}

// StreakTracker records that the user did something today.
type StreakTracker interface {
	RecordActivity(ctx context.Context, userID uint) error
}

// DispatchLedger is the idempotency ledger gating reward fan-out. Claim
// returns false when the (enrollment, reference, kind) key was already
// taken; Release undoes a claim whose ledger write failed so a retry can
// dispatch that step again.
type DispatchLedger interface {
	ClaimDispatch(enrollmentID, referenceID uint, kind models.RewardKind) (bool, error)
	ReleaseDispatch(enrollmentID, referenceID uint, kind models.RewardKind) error
}

// Engine is the challenge state machine. All mutations for one
// (user, challenge) pair are serialized behind a keyed mutex.
type Engine struct {
	store      Store
	points     PointsLedger
	co2        CO2Ledger
	stats      StatsAggregate
	streaks    StreakTracker
	dispatches DispatchLedger
	locks      *keyedMutex
	loc        *time.Location
	now        func() time.Time
	log        *logger.Logger
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Store      Store
	Points     PointsLedger
	CO2        CO2Ledger
	Stats      StatsAggregate
	Streaks    StreakTracker
	Dispatches DispatchLedger
	Location   *time.Location
	Now        func() time.Time
	Log        *logger.Logger
}

// NewEngine creates a new challenge engine.
func NewEngine(deps Deps) *Engine {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:      deps.Store,
		points:     deps.Points,
		co2:        deps.CO2,
		stats:      deps.Stats,
		streaks:    deps.Streaks,
		dispatches: deps.Dispatches,
		locks:      newKeyedMutex(),
		loc:        loc,
		now:        now,
		log:        deps.Log,
	}
}

// Join enrolls the user in a challenge. The challenge must exist, now must
// be within [start-of-day(start), end-of-day(end)], and the user must not be
// enrolled yet. A successful join counts as daily activity for the streak.
func (e *Engine) Join(ctx context.Context, userID, challengeID uint) (*models.Enrollment, error) {
	unlock := e.locks.lock(userID, challengeID)
	defer unlock()

	challenge, err := e.store.GetChallengeByID(challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
	}
	if challenge == nil {
		prommetrics.ChallengeJoinsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrChallengeNotFound(challengeID)
	}

	now := e.now()
	if now.Before(dateutil.StartOfDay(challenge.StartDate, e.loc)) {
		prommetrics.ChallengeJoinsTotal.WithLabelValues("not_started").Inc()
		return nil, ErrChallengeNotStarted(challengeID)
	}
	if now.After(dateutil.EndOfDay(challenge.EndDate, e.loc)) {
		prommetrics.ChallengeJoinsTotal.WithLabelValues("expired").Inc()
		return nil, ErrChallengeExpired(challengeID)
	}

	enrollment := &models.Enrollment{
		UserID:      userID,
		ChallengeID: challengeID,
		Status:      models.StatusJoined,
		Progress:    0,
		JoinedAt:    now,
	}
	if err := e.store.CreateEnrollment(enrollment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			prommetrics.ChallengeJoinsTotal.WithLabelValues("conflict").Inc()
			return nil, ErrAlreadyEnrolled(challengeID)
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	// The streak marks daily activity, independent of task rewards. It is
	// idempotent per day and self-heals on the next activity, so a failure
	// here does not invalidate the enrollment.
	if err := e.streaks.RecordActivity(ctx, userID); err != nil {
		e.log.Warn().Err(err).Uint("user_id", userID).Msg("Failed to record streak activity on join")
	}

	prommetrics.ChallengeJoinsTotal.WithLabelValues("ok").Inc()
	e.log.Info().
		Uint("user_id", userID).
		Uint("challenge_id", challengeID).
		Msg("User joined challenge")

	return enrollment, nil
}

// CompleteTask marks a task completed for the user's enrollment, dispatches
// per-task rewards at most once, and re-evaluates the enrollment's status.
// Completing an already-completed task is an idempotent no-op returning the
// existing record.
func (e *Engine) CompleteTask(ctx context.Context, userID, challengeID, taskID uint) (*models.TaskCompletion, error) {
	unlock := e.locks.lock(userID, challengeID)
	defer unlock()

	enrollment, err := e.store.GetEnrollment(userID, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	if enrollment == nil {
		return nil, ErrNotEnrolled(challengeID)
	}
	if enrollment.Status == models.StatusExpired {
		return nil, ErrChallengeExpired(challengeID)
	}

	challenge, err := e.store.GetChallengeByID(challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge %d: %w", challengeID, err)
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound(challengeID)
	}

	tasks, err := e.store.GetTasksByChallenge(challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks for challenge %d: %w", challengeID, err)
	}
	task := taskByID(tasks, taskID)
	if task == nil {
		return nil, ErrTaskNotFound(taskID, challengeID)
	}

	// Lazily catch a window that closed since the last observation.
	now := e.now()
	if now.After(dateutil.EndOfDay(challenge.EndDate, e.loc)) && enrollment.Status != models.StatusCompleted {
		if err := e.expireEnrollment(enrollment, challenge, "write"); err != nil {
			return nil, err
		}
		return nil, ErrChallengeExpired(challengeID)
	}

	completion, err := e.store.GetTaskCompletion(enrollment.ID, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task completion: %w", err)
	}
	if completion != nil && completion.Completed {
		// Already done; no duplicate reward dispatch.
		return completion, nil
	}

	if completion == nil {
		completion = &models.TaskCompletion{
			EnrollmentID: enrollment.ID,
			TaskID:       taskID,
		}
		if err := e.store.CreateTaskCompletion(completion); err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				return nil, fmt.Errorf("failed to create task completion: %w", err)
			}
			// Lost a race outside our lock domain (another instance);
			// re-read the winner's row.
			completion, err = e.store.GetTaskCompletion(enrollment.ID, taskID)
			if err != nil || completion == nil {
				return nil, fmt.Errorf("failed to reload task completion: %w", err)
			}
			if completion.Completed {
				return completion, nil
			}
		}
	}

	// Rewards go out before the completion mark is persisted. A ledger
	// failure then leaves the task incomplete and the claim released, so a
	// retry dispatches again; the claim gate covers the reverse crash.
	if err := e.dispatchTaskRewards(ctx, userID, enrollment.ID, task); err != nil {
		return nil, err
	}

	completion.Completed = true
	completion.CompletedAt = &now
	if err := e.store.UpdateTaskCompletion(completion); err != nil {
		return nil, fmt.Errorf("failed to update task completion: %w", err)
	}

	prommetrics.TasksCompletedTotal.WithLabelValues(challenge.Category).Inc()

	if err := e.reconcileChallengeState(ctx, userID, challenge, enrollment, tasks, task); err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("user_id", userID).
		Uint("challenge_id", challengeID).
		Uint("task_id", taskID).
		Int("progress", enrollment.Progress).
		Str("status", string(enrollment.Status)).
		Msg("Task completed")

	return completion, nil
}

// reconcileChallengeState recomputes progress from the completion rows and
// applies the post-completion transition rules. The progress/status write is
// unconditional so drifted counters self-heal.
func (e *Engine) reconcileChallengeState(
	ctx context.Context,
	userID uint,
	challenge *models.Challenge,
	enrollment *models.Enrollment,
	tasks []models.ChallengeTask,
	justCompleted *models.ChallengeTask,
) error {
	completions, err := e.store.GetTaskCompletionsByEnrollment(enrollment.ID)
	if err != nil {
		return fmt.Errorf("failed to load completions: %w", err)
	}
	count := len(completedTaskSet(completions))

	status, completedNow := deriveStatusAfterCompletion(tasks, completions, justCompleted, enrollment.Status)
	if completedNow {
		if err := e.dispatchChallengeBonus(ctx, userID, enrollment.ID, challenge); err != nil {
			return err
		}
		prommetrics.ChallengesCompletedTotal.WithLabelValues(challenge.Category).Inc()
		e.log.Info().
			Uint("user_id", userID).
			Uint("challenge_id", challenge.ID).
			Msg("Challenge completed")
	} else if status == models.StatusExpired && enrollment.Status != models.StatusExpired {
		prommetrics.ChallengesExpiredTotal.WithLabelValues("write").Inc()
		e.log.Info().
			Uint("user_id", userID).
			Uint("challenge_id", challenge.ID).
			Int("completed", count).
			Int("total", len(tasks)).
			Msg("Final day's task completed with tasks remaining, challenge expired")
	}

	if err := e.store.UpdateEnrollmentProgress(userID, challenge.ID, count, status); err != nil {
		return fmt.Errorf("failed to persist enrollment progress: %w", err)
	}
	enrollment.Progress = count
	enrollment.Status = status
	return nil
}

// Reconcile is the read-time lazy recheck. It never fails the read: when
// persisting a status flip fails, the freshly derived value is returned and
// the miss logged for the nightly sweep to correct.
func (e *Engine) Reconcile(
	ctx context.Context,
	challenge *models.Challenge,
	enrollment *models.Enrollment,
	tasks []models.ChallengeTask,
	completions []models.TaskCompletion,
) *models.Enrollment {
	return e.reconcile(ctx, challenge, enrollment, tasks, completions, "read")
}

func (e *Engine) reconcile(
	ctx context.Context,
	challenge *models.Challenge,
	enrollment *models.Enrollment,
	tasks []models.ChallengeTask,
	completions []models.TaskCompletion,
	path string,
) *models.Enrollment {
	unlock := e.locks.lock(enrollment.UserID, enrollment.ChallengeID)
	defer unlock()

	count := len(completedTaskSet(completions))
	derived := deriveStatus(e.now(), e.loc, challenge, tasks, completions, enrollment.Status)
	if derived == enrollment.Status {
		return enrollment
	}

	switch derived {
	case models.StatusExpired:
		prommetrics.ChallengesExpiredTotal.WithLabelValues(path).Inc()
	case models.StatusJoined:
		prommetrics.ReconcileRecoveriesTotal.Inc()
		e.log.Info().
			Uint("user_id", enrollment.UserID).
			Uint("challenge_id", challenge.ID).
			Msg("Recovered spuriously expired enrollment")
	}

	if err := e.store.UpdateEnrollmentProgress(enrollment.UserID, challenge.ID, count, derived); err != nil {
		e.log.Warn().
			Err(err).
			Uint("user_id", enrollment.UserID).
			Uint("challenge_id", challenge.ID).
			Str("status", string(derived)).
			Msg("Failed to persist reconciled status, serving computed view")
	}

	enrollment.Status = derived
	enrollment.Progress = count
	return enrollment
}

// ReconcileEnrollment loads an enrollment's challenge state and runs the
// read-time recheck. Used by the nightly sweep.
func (e *Engine) ReconcileEnrollment(ctx context.Context, enrollment *models.Enrollment) (*models.Enrollment, error) {
	challenge, err := e.store.GetChallengeByID(enrollment.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load challenge %d: %w", enrollment.ChallengeID, err)
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound(enrollment.ChallengeID)
	}
	tasks, err := e.store.GetTasksByChallenge(challenge.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	completions, err := e.store.GetTaskCompletionsByEnrollment(enrollment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load completions: %w", err)
	}
	return e.reconcile(ctx, challenge, enrollment, tasks, completions, "sweep"), nil
}

// expireEnrollment persists the expired transition found by the lazy
// window check in CompleteTask.
func (e *Engine) expireEnrollment(enrollment *models.Enrollment, challenge *models.Challenge, path string) error {
	completions, err := e.store.GetTaskCompletionsByEnrollment(enrollment.ID)
	if err != nil {
		return fmt.Errorf("failed to load completions: %w", err)
	}
	count := len(completedTaskSet(completions))
	if err := e.store.UpdateEnrollmentProgress(enrollment.UserID, challenge.ID, count, models.StatusExpired); err != nil {
		return fmt.Errorf("failed to expire enrollment: %w", err)
	}
	enrollment.Progress = count
	enrollment.Status = models.StatusExpired
	prommetrics.ChallengesExpiredTotal.WithLabelValues(path).Inc()
	return nil
}

// dispatchStep runs one reward write behind its own idempotency claim. A
// retry after a partial failure skips the steps that already landed, so no
// ledger entry is ever credited twice.
func (e *Engine) dispatchStep(enrollmentID, referenceID uint, kind models.RewardKind, write func() error) error {
	claimed, err := e.dispatches.ClaimDispatch(enrollmentID, referenceID, kind)
	if err != nil {
		return err
	}
	if !claimed {
		// This write already landed on a previous attempt.
		return nil
	}
	if err := write(); err != nil {
		if relErr := e.dispatches.ReleaseDispatch(enrollmentID, referenceID, kind); relErr != nil {
			e.log.Error().
				Err(relErr).
				Uint("enrollment_id", enrollmentID).
				Uint("reference_id", referenceID).
				Str("kind", string(kind)).
				Msg("Failed to release reward dispatch claim")
		}
		return err
	}
	return nil
}

// dispatchTaskRewards fans out the per-task rewards, each write at most
// once. On a ledger failure the failed step's claim is released and the
// error surfaced so the caller can retry.
func (e *Engine) dispatchTaskRewards(ctx context.Context, userID, enrollmentID uint, task *models.ChallengeTask) error {
	if task.Points > 0 {
		err := e.dispatchStep(enrollmentID, task.ID, models.RewardKindTaskPoints, func() error {
			return e.points.Record(ctx, userID, task.Points, models.OriginChallengeTask, task.ID)
		})
		if err != nil {
			return ErrRewardDispatch(fmt.Errorf("points ledger: %w", err))
		}
	}
	if task.CO2Grams > 0 {
		err := e.dispatchStep(enrollmentID, task.ID, models.RewardKindTaskCO2, func() error {
			return e.co2.Record(ctx, userID, task.CO2Grams, models.OriginChallengeTask, task.ID)
		})
		if err != nil {
			return ErrRewardDispatch(fmt.Errorf("co2 ledger: %w", err))
		}
	}
	err := e.dispatchStep(enrollmentID, task.ID, models.RewardKindTaskStats, func() error {
		return e.stats.ApplyTaskCompletion(ctx, userID, task.Points, task.CO2Grams)
	})
	if err != nil {
		return ErrRewardDispatch(fmt.Errorf("stats aggregate: %w", err))
	}
	err = e.dispatchStep(enrollmentID, task.ID, models.RewardKindTaskStreak, func() error {
		return e.streaks.RecordActivity(ctx, userID)
	})
	if err != nil {
		return ErrRewardDispatch(fmt.Errorf("streak tracker: %w", err))
	}

	prommetrics.RewardsDispatchedTotal.WithLabelValues("task").Inc()
	return nil
}

// dispatchChallengeBonus fans out the one-shot completion bonus, gated the
// same way as per-task rewards.
func (e *Engine) dispatchChallengeBonus(ctx context.Context, userID, enrollmentID uint, challenge *models.Challenge) error {
	if challenge.Points > 0 {
		err := e.dispatchStep(enrollmentID, challenge.ID, models.RewardKindBonusPoints, func() error {
			return e.points.Record(ctx, userID, challenge.Points, models.OriginChallengeBonus, challenge.ID)
		})
		if err != nil {
			return ErrRewardDispatch(fmt.Errorf("points ledger: %w", err))
		}
	}
	if challenge.CO2Grams > 0 {
		err := e.dispatchStep(enrollmentID, challenge.ID, models.RewardKindBonusCO2, func() error {
			return e.co2.Record(ctx, userID, challenge.CO2Grams, models.OriginChallengeBonus, challenge.ID)
		})
		if err != nil {
			return ErrRewardDispatch(fmt.Errorf("co2 ledger: %w", err))
		}
	}
	err := e.dispatchStep(enrollmentID, challenge.ID, models.RewardKindBonusStats, func() error {
		return e.stats.ApplyChallengeCompletion(ctx, userID, challenge.Points, challenge.CO2Grams)
	})
	if err != nil {
		return ErrRewardDispatch(fmt.Errorf("stats aggregate: %w", err))
	}

	prommetrics.RewardsDispatchedTotal.WithLabelValues("bonus").Inc()
	return nil
}
