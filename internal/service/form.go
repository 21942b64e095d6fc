package service

import (
	"errors"
	"strings"
	"time"

	"taskboard/internal/model"
)

// ErrIncompleteForm is returned when any task form field is empty.
var ErrIncompleteForm = errors.New("please fill out all fields")

// DateLayout is the due-date format accepted by forms.
const DateLayout = "2006-01-02"

// TaskInput is the raw text of the create/edit task form.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
}

// InputFromTask pre-fills the form with an existing task.
func InputFromTask(task model.Task) TaskInput {
	in := TaskInput{
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
	}
	if !task.DueDate.IsZero() {
		in.DueDate = task.DueDate.UTC().Format(DateLayout)
	}
	return in
}

// ParseDueDate reads a YYYY-MM-DD date as midnight UTC.
func ParseDueDate(raw string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(raw))
}

// Build validates the form and returns the task it describes. When base is
// non-nil the result keeps base's identity and completion state.
func (in TaskInput) Build(base *model.Task) (model.Task, error) {
	title := strings.TrimSpace(in.Title)
	desc := strings.TrimSpace(in.Description)
	if title == "" || desc == "" || strings.TrimSpace(in.DueDate) == "" {
		return model.Task{}, ErrIncompleteForm
	}
	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		return model.Task{}, err
	}
	priority, err := model.ParsePriority(in.Priority)
	if err != nil {
		return model.Task{}, err
	}

	task := model.Task{Status: model.StatusTodo}
	if base != nil {
		task = *base
	}
	task.Title = title
	task.Description = desc
	task.DueDate = due
	task.Priority = priority
	return task, nil
}
