package rewards

import (
	"context"
	"fmt"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/internal/repository"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

// StatsRepository is the persistence surface of the user rollup. Increments
// are atomic in the database so concurrent completions in different
// challenges never lose an update.
type StatsRepository interface {
	GetUserStats(userID uint) (*models.UserStats, error)
	IncrementUserStats(userID uint, pointsDelta int, co2Delta float64, tasksDelta, challengesDelta int) error
}

// StatsService maintains the denormalized per-user rollup used for leveling
// and profile display.
type StatsService struct {
	repo StatsRepository
	log  *logger.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(repo *repository.RewardRepository, log *logger.Logger) *StatsService {
	return &StatsService{repo: repo, log: log}
}

// NewStatsServiceWithInterfaces creates a stats service with interface dependencies (useful for testing).
func NewStatsServiceWithInterfaces(repo StatsRepository, log *logger.Logger) *StatsService {
	return &StatsService{repo: repo, log: log}
}

// ApplyTaskCompletion accumulates a per-task reward into the rollup and
// bumps the tasks-completed counter.
func (s *StatsService) ApplyTaskCompletion(ctx context.Context, userID uint, pointsDelta int, co2Delta float64) error {
	return s.apply(userID, pointsDelta, co2Delta, 1, 0)
}

// ApplyChallengeCompletion accumulates the completion bonus into the rollup
// and bumps the challenges-completed counter.
func (s *StatsService) ApplyChallengeCompletion(ctx context.Context, userID uint, pointsDelta int, co2Delta float64) error {
	return s.apply(userID, pointsDelta, co2Delta, 0, 1)
}

func (s *StatsService) apply(userID uint, pointsDelta int, co2Delta float64, tasksDelta, challengesDelta int) error {
	if err := s.repo.IncrementUserStats(userID, pointsDelta, co2Delta, tasksDelta, challengesDelta); err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	s.log.Debug().
		Uint("user_id", userID).
		Int("points_delta", pointsDelta).
		Float64("co2_delta", co2Delta).
		Msg("User stats updated")
	return nil
}

// GetUserStats returns the rollup, or a zero-valued level-1 row for users
// with no activity.
func (s *StatsService) GetUserStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	stats, err := s.repo.GetUserStats(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	if stats == nil {
		return &models.UserStats{UserID: userID, Level: 1}, nil
	}
	return stats, nil
}
