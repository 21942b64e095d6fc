package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/feedback"
	"taskboard/internal/model"
	"taskboard/internal/service"
)

const (
	cbTogglePrefix   = "tg:"
	cbMovePrefix     = "mv:"
	cbEditPrefix     = "ed:"
	cbDeletePrefix   = "del:"
	cbConfirmPrefix  = "cdel:"
	cbCancelPrefix   = "cancel:"
	cbFeedbackPrefix = "fb:"
	cbTimerPrefix    = "tm:"
	cbCalendarPrefix = "cal:"
	cbBoardRefresh   = "board:refresh"
)

const (
	timerToggle  = "toggle"
	timerReset   = "reset"
	timerRefresh = "refresh"
)

const monthLayout = "2006-01"

// statusIcon mirrors the status colors: red, yellow, blue, green.
func statusIcon(s model.Status) string {
	switch s {
	case model.StatusExpired:
		return "🔴"
	case model.StatusTodo:
		return "🟡"
	case model.StatusDoing:
		return "🔵"
	case model.StatusDone:
		return "🟢"
	default:
		return "🟠"
	}
}

func escape(s string) string {
	return html.EscapeString(s)
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func formatDue(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "no due date"
	}
	return t.In(loc).Format(service.DateLayout)
}

// renderBoard lists the filtered board and builds one button row per task.
func renderBoard(board service.Board, view service.View, loc *time.Location) (string, *tgbotapi.InlineKeyboardMarkup) {
	shown := view.Apply(board)

	var sb strings.Builder
	sb.WriteString("📋 <b>Task board</b>\n")
	if view.Active() || view.Descending {
		sb.WriteString(fmt.Sprintf("<i>View: %s</i>\n", escape(view.String())))
	}

	if shown.Count() == 0 {
		if board.Count() == 0 {
			sb.WriteString("\nNo tasks yet. Add one with /newtask.")
		} else {
			sb.WriteString("\nNo task matches this view. Reset it with /board.")
		}
		return sb.String(), refreshKeyboard()
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	n := 0
	for _, status := range model.Statuses {
		tasks := shown[status]
		sb.WriteString(fmt.Sprintf("\n%s <b>%s</b> (%d)\n", statusIcon(status), status, len(tasks)))
		if len(tasks) == 0 {
			sb.WriteString("   —\n")
			continue
		}
		for _, task := range tasks {
			n++
			task = task.WithDefaults()
			sb.WriteString(fmt.Sprintf("%d. <b>%s</b> · %s · %s\n", n, escape(normalizeTitle(task.Title)), formatDue(task.DueDate, loc), task.Priority))
			sb.WriteString(fmt.Sprintf("   %s <code>%s</code>\n", escape(task.Description), escape(string(task.ID))))
			rows = append(rows, taskButtons(n, task))
		}
	}
	rows = append(rows, refreshKeyboard().InlineKeyboard...)

	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return strings.TrimSpace(sb.String()), &markup
}

func taskButtons(n int, task model.Task) []tgbotapi.InlineKeyboardButton {
	id := string(task.ID)
	label := fmt.Sprintf("%d · %s", n, shortTitle(task.Title, 16))

	var row []tgbotapi.InlineKeyboardButton
	if task.IsCompleted {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("↩️ "+label, cbTogglePrefix+"0:"+id))
	} else {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("☑️ "+label, cbTogglePrefix+"1:"+id))
	}

	switch task.Status {
	case model.StatusTodo:
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("▶️ Doing", moveData(model.StatusTodo, model.StatusDoing, task.ID)))
	case model.StatusDoing:
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("◀️ Todo", moveData(model.StatusDoing, model.StatusTodo, task.ID)))
	}

	row = append(row,
		tgbotapi.NewInlineKeyboardButtonData("✏️", cbEditPrefix+id),
		tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+id),
	)
	return row
}

func refreshKeyboard() *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", cbBoardRefresh),
	))
	return &markup
}

func moveData(from, to model.Status, id model.TaskID) string {
	return cbMovePrefix + from.Key() + ":" + to.Key() + ":" + string(id)
}

// parseMove reads "mv:<from>:<to>:<id>".
func parseMove(data string) (from, to model.Status, id model.TaskID, err error) {
	parts := strings.SplitN(strings.TrimPrefix(data, cbMovePrefix), ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, 0, "", fmt.Errorf("malformed move %q", data)
	}
	if from, err = model.ParseStatus(parts[0]); err != nil {
		return 0, 0, "", err
	}
	if to, err = model.ParseStatus(parts[1]); err != nil {
		return 0, 0, "", err
	}
	return from, to, model.TaskID(parts[2]), nil
}

// parseToggle reads "tg:<0|1>:<id>".
func parseToggle(data string) (bool, model.TaskID, error) {
	flag, id, ok := strings.Cut(strings.TrimPrefix(data, cbTogglePrefix), ":")
	if !ok || id == "" || (flag != "0" && flag != "1") {
		return false, "", fmt.Errorf("malformed toggle %q", data)
	}
	return flag == "1", model.TaskID(id), nil
}

func taskSummary(title string, task model.Task, loc *time.Location) string {
	task = task.WithDefaults()
	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(fmt.Sprintf("• <b>Title:</b> %s\n", escape(normalizeTitle(task.Title))))
	sb.WriteString(fmt.Sprintf("• <b>Description:</b> %s\n", escape(task.Description)))
	sb.WriteString(fmt.Sprintf("• <b>Due:</b> %s\n", formatDue(task.DueDate, loc)))
	sb.WriteString(fmt.Sprintf("• <b>Priority:</b> %s\n", task.Priority))
	sb.WriteString(fmt.Sprintf("• <b>Status:</b> %s %s", statusIcon(task.Status), task.Status))
	return sb.String()
}

// renderCalendar draws a Monday-first month grid with days that have tasks
// marked by "*". Tasks of the month are listed under the grid.
func renderCalendar(events []service.CalendarEvent, month time.Time, loc *time.Location) (string, *tgbotapi.InlineKeyboardMarkup) {
	year, mon := month.Year(), month.Month()
	days := service.MonthEvents(events, year, mon, loc)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 <b>%s %d</b>\n<pre>", mon, year))
	sb.WriteString("Mo Tu We Th Fr Sa Su\n")

	first := time.Date(year, mon, 1, 0, 0, 0, 0, loc)
	offset := (int(first.Weekday()) + 6) % 7
	sb.WriteString(strings.Repeat("   ", offset))
	col := offset
	for day := 1; day <= service.DaysInMonth(year, mon); day++ {
		mark := " "
		if len(days[day]) > 0 {
			mark = "*"
		}
		sb.WriteString(fmt.Sprintf("%2d%s", day, mark))
		col++
		if col == 7 {
			sb.WriteString("\n")
			col = 0
		}
	}
	if col != 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("</pre>\n")

	count := 0
	for day := 1; day <= 31; day++ {
		for _, ev := range days[day] {
			count++
			sb.WriteString(fmt.Sprintf("%s <b>%02d</b> %s <i>(%s, %s)</i>\n",
				statusIcon(ev.Status), day, escape(normalizeTitle(ev.Title)), ev.Status, ev.Priority))
		}
	}
	if count == 0 {
		sb.WriteString("No tasks due this month.")
	}

	prev := first.AddDate(0, -1, 0).Format(monthLayout)
	next := first.AddDate(0, 1, 0).Format(monthLayout)
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ "+prev, cbCalendarPrefix+prev),
		tgbotapi.NewInlineKeyboardButtonData(next+" ▶️", cbCalendarPrefix+next),
	))
	return strings.TrimSpace(sb.String()), &markup
}

const dashboardBarWidth = 20

// renderDashboard draws completed tasks per month as a text bar chart.
func renderDashboard(counts []service.MonthlyCount, year int) string {
	peak := 0
	total := 0
	for _, c := range counts {
		total += c.Count
		if c.Count > peak {
			peak = c.Count
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 <b>Completed tasks, %d</b>\n<pre>", year))
	for _, c := range counts {
		bar := 0
		if peak > 0 {
			bar = (c.Count*dashboardBarWidth + peak - 1) / peak
		}
		sb.WriteString(fmt.Sprintf("%s %-*s %d\n", c.Month.String()[:3], dashboardBarWidth, strings.Repeat("█", bar), c.Count))
	}
	sb.WriteString("</pre>")
	sb.WriteString(fmt.Sprintf("\nTotal: %d", total))
	return sb.String()
}

func renderTimer(sw *service.Stopwatch) (string, *tgbotapi.InlineKeyboardMarkup) {
	state := "⏸ paused"
	toggle := "▶️ Start"
	if sw.Running() {
		state = "▶️ running"
		toggle = "⏸ Pause"
	}
	text := fmt.Sprintf("⏱ <b>Stopwatch</b>\n<code>%s</code>\n%s", service.FormatElapsed(sw.Elapsed()), state)
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(toggle, cbTimerPrefix+timerToggle),
		tgbotapi.NewInlineKeyboardButtonData("⏹ Reset", cbTimerPrefix+timerReset),
		tgbotapi.NewInlineKeyboardButtonData("🔄", cbTimerPrefix+timerRefresh),
	))
	return text, &markup
}

// renderFeedback renders the accordion with one toggle button per section.
func renderFeedback(acc *feedback.Accordion) (string, *tgbotapi.InlineKeyboardMarkup) {
	text := "🤖 <b>AI feedback</b>\n\n" + acc.RenderHTML()
	if len(acc.Sections) == 0 {
		return text, nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, section := range acc.Sections {
		marker := "▸"
		if acc.Expanded(section.Index) {
			marker = "▾"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%s %s", marker, shortTitle(section.Title, 30)),
			cbFeedbackPrefix+strconv.Itoa(section.Index),
		)))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return text, &markup
}
