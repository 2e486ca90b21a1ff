// Package rewards implements the reward-side services the challenge engine
// fans out to: the points and CO2 ledgers, the per-user stats rollup, and
// the daily-activity streak tracker.
package rewards

import (
	"context"
	"fmt"

	"github.com/ecostride/ecostride-api/internal/models"
	"github.com/ecostride/ecostride-api/internal/repository"
	"github.com/ecostride/ecostride-api/pkg/logger"
)

// PointsRepository is the persistence surface of the points ledger.
type PointsRepository interface {
	CreatePointEntry(entry *models.PointEntry) error
	GetPointsBalance(userID uint) (int64, error)
}

// PointsService is the experience-points ledger. Entries are append-only;
// idempotence of challenge dispatches is enforced upstream by the dispatch
// ledger, not here, because points also flow in from missions and posts.
type PointsService struct {
	repo PointsRepository
	log  *logger.Logger
}

// NewPointsService creates a new points ledger service.
func NewPointsService(repo *repository.RewardRepository, log *logger.Logger) *PointsService {
	return &PointsService{repo: repo, log: log}
}

// NewPointsServiceWithInterfaces creates a points service with interface dependencies (useful for testing).
func NewPointsServiceWithInterfaces(repo PointsRepository, log *logger.Logger) *PointsService {
	return &PointsService{repo: repo, log: log}
}

// Record appends a points event.
func (s *PointsService) Record(ctx context.Context, userID uint, amount int, origin models.PointOrigin, referenceID uint) error {
	if amount <= 0 {
		return fmt.Errorf("points amount must be positive, got %d", amount)
	}
	entry := &models.PointEntry{
		UserID:      userID,
		Amount:      amount,
		Origin:      origin,
		ReferenceID: referenceID,
	}
	if err := s.repo.CreatePointEntry(entry); err != nil {
		return fmt.Errorf("failed to record points: %w", err)
	}
	s.log.Debug().
		Uint("user_id", userID).
		Int("amount", amount).
		Str("origin", string(origin)).
		Msg("Points recorded")
	return nil
}

// Balance sums the user's points ledger.
func (s *PointsService) Balance(ctx context.Context, userID uint) (int64, error) {
	return s.repo.GetPointsBalance(userID)
}

// CO2Repository is the persistence surface of the CO2 ledger.
type CO2Repository interface {
	CreateCO2Entry(entry *models.CO2Entry) error
	GetCO2Total(userID uint) (float64, error)
}

// CO2Service is the environmental-impact ledger, in grams of CO2 saved.
type CO2Service struct {
	repo CO2Repository
	log  *logger.Logger
}

// NewCO2Service creates a new CO2 ledger service.
func NewCO2Service(repo *repository.RewardRepository, log *logger.Logger) *CO2Service {
	return &CO2Service{repo: repo, log: log}
}

// NewCO2ServiceWithInterfaces creates a CO2 service with interface dependencies (useful for testing).
func NewCO2ServiceWithInterfaces(repo CO2Repository, log *logger.Logger) *CO2Service {
	return &CO2Service{repo: repo, log: log}
}

// Record appends a CO2-savings event.
func (s *CO2Service) Record(ctx context.Context, userID uint, grams float64, origin models.PointOrigin, referenceID uint) error {
	if grams <= 0 {
		return fmt.Errorf("co2 grams must be positive, got %f", grams)
	}
	entry := &models.CO2Entry{
		UserID:      userID,
		Grams:       grams,
		Origin:      origin,
		ReferenceID: referenceID,
	}
	if err := s.repo.CreateCO2Entry(entry); err != nil {
		return fmt.Errorf("failed to record co2 savings: %w", err)
	}
	s.log.Debug().
		Uint("user_id", userID).
		Float64("grams", grams).
		Str("origin", string(origin)).
		Msg("CO2 savings recorded")
	return nil
}

// Total sums the user's CO2 ledger.
func (s *CO2Service) Total(ctx context.Context, userID uint) (float64, error) {
	return s.repo.GetCO2Total(userID)
}
