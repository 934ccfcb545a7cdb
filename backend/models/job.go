package models

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a deferred task for the notification dispatcher.
type Job struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Task         string         `gorm:"not null;index" json:"task"`
	Payload      datatypes.JSON `json:"payload"`
	Status       JobStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	NotBefore    time.Time      `gorm:"not null;index" json:"not_before"`
	Attempts     int            `gorm:"not null;default:0" json:"attempts"`
	MaxRetries   int            `gorm:"not null;default:0" json:"max_retries"`
	LastError    string         `json:"last_error,omitempty"`
	ClaimToken   string         `gorm:"index" json:"-"`
	ClaimedUntil *time.Time     `json:"-"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{},
		&Media{},
		&Tag{},
		&Course{},
		&Enrollment{},
		&Purchase{},
		&Job{},
	}
}
