package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/internal/repository"
	"github.com/ecostride/ecostride-api/pkg/dateutil"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

// StreakRepository is the persistence surface of the streak tracker.
type StreakRepository interface {
	GetStreak(userID uint) (*models.Streak, error)
	SaveStreak(streak *models.Streak) error
}

// StreakService tracks the daily-activity streak. Any qualifying action
// counts: the tracker increments when the last recorded day was yesterday,
// resets to 1 after a gap, and no-ops when today is already recorded.
type StreakService struct {
	repo StreakRepository
	loc  *time.Location
	now  func() time.Time
	log  *logger.Logger
}

// NewStreakService creates a new streak service.
func NewStreakService(repo *repository.RewardRepository, loc *time.Location, log *logger.Logger) *StreakService {
	return newStreakService(repo, loc, log)
}

// NewStreakServiceWithInterfaces creates a streak service with interface dependencies (useful for testing).
func NewStreakServiceWithInterfaces(repo StreakRepository, loc *time.Location, log *logger.Logger) *StreakService {
	return newStreakService(repo, loc, log)
}

func newStreakService(repo StreakRepository, loc *time.Location, log *logger.Logger) *StreakService {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakService{repo: repo, loc: loc, now: time.Now, log: log}
}

// WithNow overrides the clock; test hook.
func (s *StreakService) WithNow(now func() time.Time) *StreakService {
	s.now = now
	return s
}

// RecordActivity marks the user active today.
func (s *StreakService) RecordActivity(ctx context.Context, userID uint) error {
	streak, err := s.repo.GetStreak(userID)
	if err != nil {
		return fmt.Errorf("failed to load streak: %w", err)
	}
	if streak == nil {
		streak = &models.Streak{UserID: userID}
	}

	now := s.now()
	today := dateutil.StartOfDay(now, s.loc)

	if streak.LastActivityDate != nil {
		switch dateutil.DaysBetween(*streak.LastActivityDate, now, s.loc) {
		case 0:
			// Already recorded today.
			return nil
		case 1:
			streak.CurrentStreak++
		default:
			streak.CurrentStreak = 1
		}
	} else {
		streak.CurrentStreak = 1
	}

	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastActivityDate = &today

	if err := s.repo.SaveStreak(streak); err != nil {
		return fmt.Errorf("failed to save streak: %w", err)
	}

	s.log.Debug().
		Uint("user_id", userID).
		Int("current", streak.CurrentStreak).
		Int("longest", streak.LongestStreak).
		Msg("Streak updated")
	return nil
}

// GetStreak returns the user's streak, zero-valued when no activity exists.
func (s *StreakService) GetStreak(ctx context.Context, userID uint) (*models.Streak, error) {
	streak, err := s.repo.GetStreak(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	if streak == nil {
		return &models.Streak{UserID: userID}, nil
	}
	return streak, nil
}
