package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskboard/internal/model"
)

// dueSoonWindow marks open tasks whose due date is close.
const dueSoonWindow = 48 * time.Hour

// DailyReport renders the HTML summary sent to signed-in chats once a day:
// expired tasks first, then open tasks by due date, then today's done count.
func DailyReport(b Board, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("02.01.2006")))

	expired := append([]model.Task{}, b[model.StatusExpired]...)
	open := append(append([]model.Task{}, b[model.StatusDoing]...), b[model.StatusTodo]...)
	sortByDue(expired)
	sortByDue(open)

	builder.WriteString("⚠️ <b>Expired</b>\n")
	if len(expired) == 0 {
		builder.WriteString("— nothing overdue\n")
	} else {
		for _, task := range expired {
			builder.WriteString(formatReportTask(task, now))
		}
	}

	builder.WriteString("\n🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— no open tasks\n")
	} else {
		for _, task := range open {
			builder.WriteString(formatReportTask(task, now))
		}
	}

	builder.WriteString(fmt.Sprintf("\n✅ Done: %d", len(b[model.StatusDone])))
	return strings.TrimSpace(builder.String())
}

func sortByDue(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case tasks[i].DueDate.IsZero() && tasks[j].DueDate.IsZero():
			return false
		case tasks[i].DueDate.IsZero():
			return false
		case tasks[j].DueDate.IsZero():
			return true
		default:
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
	})
}

func formatReportTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.Status == model.StatusDoing {
		icon = "🔵"
	}
	if !task.DueDate.IsZero() {
		d := task.DueDate.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= dueSoonWindow:
			icon = "⏳"
		}
	}

	sb.WriteString(fmt.Sprintf("%s %s", icon, html.EscapeString(strings.TrimSpace(task.Title))))
	if task.Priority != "" {
		sb.WriteString(fmt.Sprintf(" <i>(%s)</i>", task.Priority))
	}

	if !task.DueDate.IsZero() {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s, <b>overdue</b>", d.Format(DateLayout)))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d day(s) left", d.Format(DateLayout), daysLeft))
		}
	}

	sb.WriteByte('\n')
	return sb.String()
}
