package service

import (
	"sort"
	"time"

	"taskboard/internal/model"
)

// CalendarEvent is one task placed on the calendar at its due date.
type CalendarEvent struct {
	TaskID      model.TaskID
	Title       string
	Description string
	Start       time.Time
	Status      model.Status
	Priority    model.Priority
	IsCompleted bool
	Color       string
}

// CalendarEvents flattens the board into events ordered by start time.
// Tasks without a due date are left off.
func CalendarEvents(b Board) []CalendarEvent {
	var events []CalendarEvent
	for _, task := range b.All() {
		if task.DueDate.IsZero() {
			continue
		}
		task = task.WithDefaults()
		events = append(events, CalendarEvent{
			TaskID:      task.ID,
			Title:       task.Title,
			Description: task.Description,
			Start:       task.DueDate,
			Status:      task.Status,
			Priority:    task.Priority,
			IsCompleted: task.IsCompleted,
			Color:       task.Status.Color(),
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events
}

// MonthEvents groups the events falling into year/month by day of month, in loc.
func MonthEvents(events []CalendarEvent, year int, month time.Month, loc *time.Location) map[int][]CalendarEvent {
	if loc == nil {
		loc = time.UTC
	}
	days := make(map[int][]CalendarEvent)
	for _, ev := range events {
		start := ev.Start.In(loc)
		if start.Year() != year || start.Month() != month {
			continue
		}
		days[start.Day()] = append(days[start.Day()], ev)
	}
	return days
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
