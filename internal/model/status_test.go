package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	tomorrow := now.AddDate(0, 0, 1)

	tests := []struct {
		name string
		task Task
		want Status
	}{
		{"overdue incomplete todo", Task{DueDate: yesterday, Status: StatusTodo}, StatusExpired},
		{"overdue incomplete doing", Task{DueDate: yesterday, Status: StatusDoing}, StatusExpired},
		{"overdue stored done but incomplete", Task{DueDate: yesterday, Status: StatusDone}, StatusExpired},
		{"completed overdue", Task{DueDate: yesterday, IsCompleted: true, Status: StatusExpired}, StatusDone},
		{"completed future", Task{DueDate: tomorrow, IsCompleted: true, Status: StatusTodo}, StatusDone},
		{"future todo", Task{DueDate: tomorrow, Status: StatusTodo}, StatusTodo},
		{"future doing", Task{DueDate: tomorrow, Status: StatusDoing}, StatusDoing},
		{"future stored expired", Task{DueDate: tomorrow, Status: StatusExpired}, StatusTodo},
		{"future stored done but incomplete", Task{DueDate: tomorrow, Status: StatusDone}, StatusTodo},
		{"no due date", Task{Status: StatusDoing}, StatusDoing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.task, now))
		})
	}
}

func TestCanDrag(t *testing.T) {
	assert.True(t, CanDrag(StatusTodo, StatusDoing))
	assert.True(t, CanDrag(StatusDoing, StatusTodo))

	assert.False(t, CanDrag(StatusTodo, StatusTodo))
	for _, s := range Statuses {
		assert.False(t, CanDrag(StatusExpired, s), "from expired to %s", s)
		assert.False(t, CanDrag(StatusDone, s), "from done to %s", s)
		assert.False(t, CanDrag(s, StatusExpired), "from %s to expired", s)
		assert.False(t, CanDrag(s, StatusDone), "from %s to done", s)
	}
	assert.False(t, CanDrag(Status(7), StatusTodo))
}

func TestParseStatus(t *testing.T) {
	for _, s := range Statuses {
		got, err := ParseStatus(s.String())
		assert.NoError(t, err)
		assert.Equal(t, s, got)

		got, err = ParseStatus(s.Key())
		assert.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("blocked")
	assert.Error(t, err)
}

func TestStatusColor(t *testing.T) {
	assert.Equal(t, "#dc3545", StatusExpired.Color())
	assert.Equal(t, "#28a745", StatusDone.Color())
	assert.Equal(t, "#007bff", StatusDoing.Color())
	assert.Equal(t, "#ffc107", StatusTodo.Color())
	assert.Equal(t, "#f0ad4e", Status(9).Color())
}

func TestStatusFromCode(t *testing.T) {
	assert.Equal(t, StatusExpired, StatusFromCode(0))
	assert.Equal(t, StatusDone, StatusFromCode(3))
	assert.Equal(t, StatusTodo, StatusFromCode(42))
}
