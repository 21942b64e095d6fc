package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultDescription is shown for tasks stored without a description.
const DefaultDescription = "No description provided."

// TaskID is the backend-assigned identifier. The wire value may be a string or a number.
type TaskID string

func (id *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

// Priority is the user-assigned importance of a task.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// ParsePriority is case-insensitive. An empty value yields Medium.
func ParsePriority(raw string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow, nil
	case "", "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unknown priority %q", raw)
	}
}

// Task is the client copy of a task owned by the REST backend.
type Task struct {
	ID          TaskID
	Title       string
	Description string
	DueDate     time.Time
	Priority    Priority
	IsCompleted bool
	Status      Status
	UserID      string
}

type taskWire struct {
	ID          TaskID   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     string   `json:"dueDate"`
	Priority    Priority `json:"priority"`
	IsCompleted bool     `json:"isCompleted"`
	Status      string   `json:"status"`
	StatusEnum  *int     `json:"statusEnum,omitempty"`
	UserID      string   `json:"userId"`
}

// MarshalJSON emits both status fields from the single canonical Status.
func (t Task) MarshalJSON() ([]byte, error) {
	code := int(t.Status)
	w := taskWire{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		IsCompleted: t.IsCompleted,
		Status:      t.Status.String(),
		StatusEnum:  &code,
		UserID:      t.UserID,
	}
	if !t.DueDate.IsZero() {
		w.DueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

// UnmarshalJSON prefers statusEnum and falls back to the status string.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	due, err := parseDueDate(w.DueDate)
	if err != nil {
		return fmt.Errorf("task %s: %w", w.ID, err)
	}

	status := StatusTodo
	switch {
	case w.StatusEnum != nil:
		status = StatusFromCode(*w.StatusEnum)
	case w.Status != "":
		if parsed, err := ParseStatus(w.Status); err == nil {
			status = parsed
		}
	}

	*t = Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		DueDate:     due,
		Priority:    w.Priority,
		IsCompleted: w.IsCompleted,
		Status:      status,
		UserID:      w.UserID,
	}
	return nil
}

func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse("2006-01-02", raw); err == nil {
		return ts, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", raw)
}

// WithDefaults fills presentation defaults for fields the backend left empty.
func (t Task) WithDefaults() Task {
	if strings.TrimSpace(t.Description) == "" {
		t.Description = DefaultDescription
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return t
}
