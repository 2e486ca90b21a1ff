package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecostride/ecostride-api/internal/models"
)

// RewardRepository handles the reward-side tables: the points and CO2
// ledgers, the per-user stats rollup, streaks, and the dispatch ledger that
// keeps reward fan-out at-most-once.
type RewardRepository struct {
	db *DB
}

// NewRewardRepository creates a new reward repository.
func NewRewardRepository(db *DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// CreatePointEntry appends a points ledger row.
func (r *RewardRepository) CreatePointEntry(entry *models.PointEntry) error {
	return r.db.Create(entry).Error
}

// GetPointsBalance sums a user's points ledger.
func (r *RewardRepository) GetPointsBalance(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.PointEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// CreateCO2Entry appends a CO2 ledger row.
func (r *RewardRepository) CreateCO2Entry(entry *models.CO2Entry) error {
	return r.db.Create(entry).Error
}

// GetCO2Total sums a user's CO2 ledger in grams.
func (r *RewardRepository) GetCO2Total(userID uint) (float64, error) {
	var total float64
	err := r.db.Model(&models.CO2Entry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(grams), 0)").
		Scan(&total).Error
	return total, err
}

// GetUserStats retrieves a user's rollup. Returns (nil, nil) when the user
// has never earned anything.
func (r *RewardRepository) GetUserStats(userID uint) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.db.First(&stats, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// IncrementUserStats applies reward deltas to a user's rollup as one atomic
// upsert. The increments and the level recompute happen in SQL, so
// concurrent completions in different challenges cannot lose an update.
func (r *RewardRepository) IncrementUserStats(userID uint, pointsDelta int, co2Delta float64, tasksDelta, challengesDelta int) error {
	stats := &models.UserStats{
		UserID:              userID,
		TotalPoints:         pointsDelta,
		TotalCO2Grams:       co2Delta,
		TasksCompleted:      tasksDelta,
		ChallengesCompleted: challengesDelta,
		Level:               1 + pointsDelta/models.PointsPerLevel,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_points":         gorm.Expr("total_points + ?", pointsDelta),
			"total_co2_grams":      gorm.Expr("total_co2_grams + ?", co2Delta),
			"tasks_completed":      gorm.Expr("tasks_completed + ?", tasksDelta),
			"challenges_completed": gorm.Expr("challenges_completed + ?", challengesDelta),
			"level":                gorm.Expr("(total_points + ?) / ? + 1", pointsDelta, models.PointsPerLevel),
		}),
	}).Create(stats).Error
}

// GetStreak retrieves a user's streak row. Returns (nil, nil) when the user
// has no recorded activity yet.
func (r *RewardRepository) GetStreak(userID uint) (*models.Streak, error) {
	var streak models.Streak
	err := r.db.First(&streak, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &streak, nil
}

// SaveStreak upserts a user's streak row.
func (r *RewardRepository) SaveStreak(streak *models.Streak) error {
	return r.db.Save(streak).Error
}

// ClaimDispatch records that rewards for (enrollment, reference, kind) are
// being dispatched. Returns false when the claim was already taken, which
// is how double-crediting is prevented across retries and racing callers.
func (r *RewardRepository) ClaimDispatch(enrollmentID, referenceID uint, kind models.RewardKind) (bool, error) {
	dispatch := &models.RewardDispatch{
		EnrollmentID: enrollmentID,
		ReferenceID:  referenceID,
		Kind:         kind,
	}
	err := r.db.Create(dispatch).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseDispatch removes a claim so a failed dispatch can be retried.
func (r *RewardRepository) ReleaseDispatch(enrollmentID, referenceID uint, kind models.RewardKind) error {
	return r.db.
		Where("enrollment_id = ? AND reference_id = ? AND kind = ?", enrollmentID, referenceID, kind).
		Delete(&models.RewardDispatch{}).Error
}
