package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the canonical task status. The numeric value is the code the
// backend stores as statusEnum.
type Status int

const (
	StatusExpired Status = iota
	StatusTodo
	StatusDoing
	StatusDone
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusExpired, StatusTodo, StatusDoing, StatusDone}

const (
	colorExpired  = "#dc3545"
	colorTodo     = "#ffc107"
	colorDoing    = "#007bff"
	colorDone     = "#28a745"
	colorFallback = "#f0ad4e"
)

func (s Status) String() string {
	switch s {
	case StatusExpired:
		return "Expired"
	case StatusTodo:
		return "Todo"
	case StatusDoing:
		return "Doing"
	case StatusDone:
		return "Done"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Key is the lower-case bucket key used in callbacks and prompts.
func (s Status) Key() string {
	return strings.ToLower(s.String())
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	return s >= StatusExpired && s <= StatusDone
}

// Color returns the display color used by the calendar and the board.
func (s Status) Color() string {
	switch s {
	case StatusExpired:
		return colorExpired
	case StatusTodo:
		return colorTodo
	case StatusDoing:
		return colorDoing
	case StatusDone:
		return colorDone
	default:
		return colorFallback
	}
}

// ParseStatus accepts either the display name or the bucket key, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "expired":
		return StatusExpired, nil
	case "todo":
		return StatusTodo, nil
	case "doing":
		return StatusDoing, nil
	case "done":
		return StatusDone, nil
	default:
		return 0, fmt.Errorf("unknown status %q", raw)
	}
}

// StatusFromCode maps a stored numeric code; unknown codes fall back to Todo.
func StatusFromCode(code int) Status {
	s := Status(code)
	if !s.Valid() {
		return StatusTodo
	}
	return s
}

// DeriveStatus recomputes the status a task must have at now.
// Completion wins over the due date; an incomplete task past due is Expired.
//
// Two transitions go beyond the overdue check and are intentional: a stored
// Expired whose due date is no longer past, and a stored Done that is not
// completed, both fall back to Todo. Either one means the fields were edited
// elsewhere, and keeping the old bucket would break the status invariant.
func DeriveStatus(task Task, now time.Time) Status {
	if task.IsCompleted {
		return StatusDone
	}
	if !task.DueDate.IsZero() && task.DueDate.Before(now) {
		return StatusExpired
	}
	switch task.Status {
	case StatusDoing:
		return StatusDoing
	default:
		return StatusTodo
	}
}

// CanDrag reports whether a manual move between two buckets is allowed.
// Expired and Done are fixed as far as bucket moves go.
func CanDrag(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to {
		return false
	}
	if from == StatusExpired || from == StatusDone {
		return false
	}
	if to == StatusExpired || to == StatusDone {
		return false
	}
	return true
}
