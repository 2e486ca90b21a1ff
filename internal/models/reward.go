package models

import "time"

// PointOrigin tags a ledger entry with the feature that produced it. The tag
// set is shared with the mobile clients and must not be extended without a
// coordinated release.
type PointOrigin string

const (
	OriginMission        PointOrigin = "mision"
	OriginChallenge      PointOrigin = "reto"
	OriginPost           PointOrigin = "post"
	OriginComment        PointOrigin = "comentario"
	OriginChallengeTask  PointOrigin = "tarea_reto"
	OriginChallengeBonus PointOrigin = "reto_completado"
)

// PointEntry is an append-only experience-points ledger row.
type PointEntry struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	Amount      int         `gorm:"not null" json:"amount"`
	Origin      PointOrigin `gorm:"not null;size:30" json:"origin"`
	ReferenceID uint        `gorm:"not null" json:"reference_id"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TableName specifies the table name for PointEntry model.
func (PointEntry) TableName() string {
	return "point_entries"
}

// CO2Entry is an append-only environmental-impact ledger row, in grams of
// CO2 saved.
type CO2Entry struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	Grams       float64     `gorm:"not null" json:"grams"`
	Origin      PointOrigin `gorm:"not null;size:30" json:"origin"`
	ReferenceID uint        `gorm:"not null" json:"reference_id"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TableName specifies the table name for CO2Entry model.
func (CO2Entry) TableName() string {
	return "co2_entries"
}

// PointsPerLevel is the points required per level step. Level 1 is the
// floor; every full step of points earns one level.
const PointsPerLevel = 1000

// UserStats is the denormalized per-user rollup also used for leveling.
type UserStats struct {
	UserID              uint      `gorm:"primaryKey" json:"user_id"`
	TotalPoints         int       `gorm:"not null;default:0" json:"total_points"`
	TotalCO2Grams       float64   `gorm:"not null;default:0" json:"total_co2_grams"`
	TasksCompleted      int       `gorm:"not null;default:0" json:"tasks_completed"`
	ChallengesCompleted int       `gorm:"not null;default:0" json:"challenges_completed"`
	Level               int       `gorm:"not null;default:1" json:"level"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName specifies the table name for UserStats model.
func (UserStats) TableName() string {
	return "user_stats"
}

// Streak is the daily-activity streak counter. Any qualifying action
// (challenge join, task completion, mission, post) counts once per day.
type Streak struct {
	UserID           uint       `gorm:"primaryKey" json:"user_id"`
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Streak model.
func (Streak) TableName() string {
	return "streaks"
}

// RewardKind identifies one reward write in the dispatch ledger. Each ledger
// write of a fan-out carries its own kind, so a retry after a partial
// failure skips the writes that already landed instead of repeating them.
type RewardKind string

const (
	// Per-task reward steps; ReferenceID is the task ID.
	RewardKindTaskPoints RewardKind = "task_points"
	RewardKindTaskCO2    RewardKind = "task_co2"
	RewardKindTaskStats  RewardKind = "task_stats"
	RewardKindTaskStreak RewardKind = "task_streak"

	// Challenge completion bonus steps; ReferenceID is the challenge ID.
	RewardKindBonusPoints RewardKind = "bonus_points"
	RewardKindBonusCO2    RewardKind = "bonus_co2"
	RewardKindBonusStats  RewardKind = "bonus_stats"
)

// RewardDispatch marks that one reward write for (enrollment, reference,
// kind) reached its ledger. The unique index makes every write at-most-once
// even across retries and concurrent callers.
type RewardDispatch struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EnrollmentID uint       `gorm:"not null;uniqueIndex:idx_dispatch_key" json:"enrollment_id"`
	ReferenceID  uint       `gorm:"not null;uniqueIndex:idx_dispatch_key" json:"reference_id"`
	Kind         RewardKind `gorm:"not null;size:30;uniqueIndex:idx_dispatch_key" json:"kind"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TableName specifies the table name for RewardDispatch model.
func (RewardDispatch) TableName() string {
	return "reward_dispatches"
}
