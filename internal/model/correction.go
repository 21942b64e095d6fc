package model

import "time"

// PendingCorrection is a derived-status write that failed and waits for a retry.
type PendingCorrection struct {
	ID            uint   `gorm:"primaryKey"`
	TaskID        TaskID `gorm:"index:idx_correction_task,unique"`
	AuthUID       string `gorm:"index"`
	// Payload is the task as it was first sent; retries re-read the task instead.
	Payload       string
	Attempts      int
	NextAttemptAt time.Time `gorm:"index"`
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
