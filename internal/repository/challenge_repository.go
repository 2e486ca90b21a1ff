package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ecostride/ecostride-api/internal/models"
)

// ChallengeRepository handles catalog, enrollment, and task-completion
// database operations. It holds no business rules; status transitions are
// decided by the challenge engine.
type ChallengeRepository struct {
	db *DB
}

// NewChallengeRepository creates a new challenge repository.
func NewChallengeRepository(db *DB) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

// FindActiveChallenges retrieves all active catalog challenges with their
// tasks, newest first.
func (r *ChallengeRepository) FindActiveChallenges() ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := r.db.
		Where("is_active = ?", true).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("day_order ASC")
		}).
		Order("start_date DESC").
		Find(&challenges).Error
	return challenges, err
}

// FindChallengesByIDs retrieves challenges by id regardless of the active
// flag; used to surface enrolled challenges that fell out of the catalog.
func (r *ChallengeRepository) FindChallengesByIDs(ids []uint) ([]models.Challenge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var challenges []models.Challenge
	err := r.db.
		Where("id IN ?", ids).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("day_order ASC")
		}).
		Find(&challenges).Error
	return challenges, err
}

// GetChallengeByID retrieves a challenge by id. Returns (nil, nil) when the
// challenge does not exist.
func (r *ChallengeRepository) GetChallengeByID(id uint) (*models.Challenge, error) {
	var challenge models.Challenge
	err := r.db.First(&challenge, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// GetTasksByChallenge retrieves a challenge's tasks ordered by day.
func (r *ChallengeRepository) GetTasksByChallenge(challengeID uint) ([]models.ChallengeTask, error) {
	var tasks []models.ChallengeTask
	err := r.db.
		Where("challenge_id = ?", challengeID).
		Order("day_order ASC").
		Find(&tasks).Error
	return tasks, err
}

// GetEnrollment retrieves the enrollment for (user, challenge). Returns
// (nil, nil) when the user never joined.
func (r *ChallengeRepository) GetEnrollment(userID, challengeID uint) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := r.db.
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// GetEnrollmentsByUser retrieves all of a user's enrollments.
func (r *ChallengeRepository) GetEnrollmentsByUser(userID uint) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.
		Where("user_id = ?", userID).
		Find(&enrollments).Error
	return enrollments, err
}

// CreateEnrollment inserts a new enrollment. Returns ErrConflict when the
// (user, challenge) pair is already enrolled.
func (r *ChallengeRepository) CreateEnrollment(enrollment *models.Enrollment) error {
	err := r.db.Create(enrollment).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// UpdateEnrollmentProgress persists the recomputed progress counter and
// status for (user, challenge). Returns ErrNotFound when no enrollment row
// matches.
func (r *ChallengeRepository) UpdateEnrollmentProgress(userID, challengeID uint, progress int, status models.EnrollmentStatus) error {
	updates := map[string]interface{}{
		"progress": progress,
		"status":   status,
	}
	if status == models.StatusCompleted {
		updates["completed_at"] = time.Now()
	}
	result := r.db.Model(&models.Enrollment{}).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTaskCompletion retrieves the completion row for (enrollment, task).
// Returns (nil, nil) when the task was never attempted.
func (r *ChallengeRepository) GetTaskCompletion(enrollmentID, taskID uint) (*models.TaskCompletion, error) {
	var completion models.TaskCompletion
	err := r.db.
		Where("enrollment_id = ? AND task_id = ?", enrollmentID, taskID).
		First(&completion).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &completion, nil
}

// GetTaskCompletionsByEnrollment retrieves all completion rows under an
// enrollment.
func (r *ChallengeRepository) GetTaskCompletionsByEnrollment(enrollmentID uint) ([]models.TaskCompletion, error) {
	var completions []models.TaskCompletion
	err := r.db.
		Where("enrollment_id = ?", enrollmentID).
		Find(&completions).Error
	return completions, err
}

// CreateTaskCompletion inserts a completion row. Returns ErrConflict when
// the (enrollment, task) pair already has one.
func (r *ChallengeRepository) CreateTaskCompletion(completion *models.TaskCompletion) error {
	err := r.db.Create(completion).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrConflict
	}
	return err
}

// UpdateTaskCompletion persists changes to an existing completion row.
func (r *ChallengeRepository) UpdateTaskCompletion(completion *models.TaskCompletion) error {
	return r.db.Save(completion).Error
}

// ListJoinedEnrollmentsEndedBefore retrieves enrollments still marked joined
// whose challenge window closed before the cutoff. Used by the nightly
// reconciliation sweep.
func (r *ChallengeRepository) ListJoinedEnrollmentsEndedBefore(cutoff time.Time) ([]models.Enrollment, error) {
	var enrollments []models.Enrollment
	err := r.db.
		Joins("JOIN challenges ON challenges.id = challenge_enrollments.challenge_id").
		Where("challenge_enrollments.status = ?", models.StatusJoined).
		Where("challenges.end_date < ?", cutoff).
		Find(&enrollments).Error
	return enrollments, err
}
