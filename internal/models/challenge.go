// Package models defines domain models for the challenge progression engine.
package models

import "time"

// Challenge represents a catalog challenge: a time-boxed set of tasks with an
// aggregate completion reward. Catalog rows are written by the content
// pipeline and are read-only for this service.
type Challenge struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Title       string          `gorm:"not null;size:255" json:"title"`
	Description string          `gorm:"type:text" json:"description"`
	Category    string          `gorm:"size:100;index" json:"category"`
	StartDate   time.Time       `gorm:"not null;index" json:"start_date"`
	EndDate     time.Time       `gorm:"not null" json:"end_date"`
	Points      int             `gorm:"not null;default:0" json:"points"`     // bonus on full completion
	CO2Grams    float64         `gorm:"not null;default:0" json:"co2_grams"`  // bonus on full completion
	IsActive    bool            `gorm:"not null;default:true;index" json:"is_active"`
	Tasks       []ChallengeTask `gorm:"foreignKey:ChallengeID" json:"tasks,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Challenge model.
func (Challenge) TableName() string {
	return "challenges"
}

// ChallengeTask represents a single task within a challenge. DayOrder is the
// day within the challenge window the task belongs to; the task(s) with the
// highest DayOrder mark the final day for expiry purposes. DayOrder does not
// gate when a task may be completed.
type ChallengeTask struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ChallengeID uint      `gorm:"not null;index" json:"challenge_id"`
	Title       string    `gorm:"not null;size:255" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Points      int       `gorm:"not null;default:0" json:"points"`
	CO2Grams    float64   `gorm:"not null;default:0" json:"co2_grams"`
	DayOrder    int       `gorm:"not null" json:"day_order"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for ChallengeTask model.
func (ChallengeTask) TableName() string {
	return "challenge_tasks"
}
