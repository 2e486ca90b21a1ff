package models

import "time"

// EnrollmentStatus is the lifecycle state of a user's participation in a
// challenge.
type EnrollmentStatus string

const (
	// StatusJoined means the user is enrolled and still within the window.
	StatusJoined EnrollmentStatus = "joined"
	// StatusCompleted means every task was completed. Terminal.
	StatusCompleted EnrollmentStatus = "completed"
	// StatusExpired means the window closed (or the final day's task was
	// acted on) with tasks still missing. Recoverable back to joined by
	// reconciliation, never from completed.
	StatusExpired EnrollmentStatus = "expired"
)

// IsValid returns true if the status is one of the known states.
func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case StatusJoined, StatusCompleted, StatusExpired:
		return true
	default:
		return false
	}
}

// Enrollment records one user's participation in one challenge. At most one
// row exists per (user, challenge). Progress is a count of completed tasks,
// recomputed from task completions on every state change rather than
// incremented.
type Enrollment struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	UserID      uint             `gorm:"not null;uniqueIndex:idx_user_challenge" json:"user_id"`
	ChallengeID uint             `gorm:"not null;uniqueIndex:idx_user_challenge" json:"challenge_id"`
	Status      EnrollmentStatus `gorm:"not null;size:20;default:joined" json:"status"`
	Progress    int              `gorm:"not null;default:0" json:"progress"`
	JoinedAt    time.Time        `gorm:"not null" json:"joined_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// TableName specifies the table name for Enrollment model.
func (Enrollment) TableName() string {
	return "challenge_enrollments"
}

// TaskCompletion records one user's completion of one task, scoped under an
// enrollment. At most one row exists per (enrollment, task); once Completed
// is true it is never reverted.
type TaskCompletion struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EnrollmentID uint       `gorm:"not null;uniqueIndex:idx_enrollment_task" json:"enrollment_id"`
	TaskID       uint       `gorm:"not null;uniqueIndex:idx_enrollment_task" json:"task_id"`
	Completed    bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for TaskCompletion model.
func (TaskCompletion) TableName() string {
	return "challenge_task_completions"
}
