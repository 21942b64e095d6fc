package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/model"
)

func TestTaskInputBuildNew(t *testing.T) {
	task, err := TaskInput{
		Title:       "  Write report ",
		Description: "Q3 numbers",
		DueDate:     "2026-10-20",
		Priority:    "high",
	}.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), task.DueDate)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.Empty(t, task.ID)
}

func TestTaskInputBuildKeepsBase(t *testing.T) {
	base := model.Task{ID: "9", Status: model.StatusDoing, IsCompleted: false, UserID: "u1", Priority: model.PriorityLow}
	in := InputFromTask(model.Task{Title: "t", Description: "d", DueDate: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Priority: model.PriorityLow})
	assert.Equal(t, "2026-01-02", in.DueDate)

	task, err := in.Build(&base)
	require.NoError(t, err)
	assert.Equal(t, model.TaskID("9"), task.ID)
	assert.Equal(t, model.StatusDoing, task.Status)
	assert.Equal(t, "u1", task.UserID)
	assert.Equal(t, "t", task.Title)
}

func TestTaskInputValidation(t *testing.T) {
	full := TaskInput{Title: "t", Description: "d", DueDate: "2026-10-20"}

	missing := []TaskInput{
		{Description: "d", DueDate: "2026-10-20"},
		{Title: "t", DueDate: "2026-10-20"},
		{Title: "t", Description: "   ", DueDate: "2026-10-20"},
		{Title: "t", Description: "d"},
	}
	for _, in := range missing {
		_, err := in.Build(nil)
		assert.ErrorIs(t, err, ErrIncompleteForm)
	}

	task, err := full.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityMedium, task.Priority, "empty priority defaults to Medium")

	bad := full
	bad.DueDate = "20/10/2026"
	_, err = bad.Build(nil)
	assert.Error(t, err)

	bad = full
	bad.Priority = "urgent"
	_, err = bad.Build(nil)
	assert.Error(t, err)
}
