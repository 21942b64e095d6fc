package service

import (
	"time"

	"taskboard/internal/model"
)

// MonthlyCount is the number of completed tasks due in one calendar month.
type MonthlyCount struct {
	Month time.Month
	Count int
}

// CompletedPerMonth counts completed tasks by the month of their due date, in loc.
// All twelve months are returned in calendar order; tasks without a due date are skipped.
func CompletedPerMonth(tasks []model.Task, year int, loc *time.Location) []MonthlyCount {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]MonthlyCount, 12)
	for i := range out {
		out[i].Month = time.Month(i + 1)
	}
	for _, task := range tasks {
		if !task.IsCompleted || task.DueDate.IsZero() {
			continue
		}
		due := task.DueDate.In(loc)
		if year != 0 && due.Year() != year {
			continue
		}
		out[due.Month()-1].Count++
	}
	return out
}
