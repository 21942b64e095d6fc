package model

import (
	"strconv"
	"time"
)

// TaskRecord is the storage row of the bundled task backend.
type TaskRecord struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      string `gorm:"index"`
	Title       string
	Description string
	DueDate     time.Time
	Priority    string
	IsCompleted bool `gorm:"default:false"`
	StatusEnum  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ToTask converts the row into the wire model.
func (r TaskRecord) ToTask() Task {
	return Task{
		ID:          TaskID(strconv.FormatUint(uint64(r.ID), 10)),
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.UTC(),
		Priority:    Priority(r.Priority),
		IsCompleted: r.IsCompleted,
		Status:      StatusFromCode(r.StatusEnum),
		UserID:      r.UserID,
	}
}

// ApplyTask copies the mutable fields of t into the row.
func (r *TaskRecord) ApplyTask(t Task) {
	r.UserID = t.UserID
	r.Title = t.Title
	r.Description = t.Description
	r.DueDate = t.DueDate.UTC()
	r.Priority = string(t.Priority)
	r.IsCompleted = t.IsCompleted
	r.StatusEnum = int(t.Status)
}
