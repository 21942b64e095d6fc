package bot

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/ai"
	"taskboard/internal/feedback"
	"taskboard/internal/service"
)

func (b *Bot) handleCalendar(ctx context.Context, msg *tgbotapi.Message) error {
	month, err := parseMonth(msg.CommandArguments(), time.Now(), b.loc)
	if err != nil {
		return b.sendText(msg.Chat.ID, "Usage: /calendar [YYYY-MM]")
	}
	board, err := b.loadBoard(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "open the calendar", err)
	}

	text, markup := renderCalendar(service.CalendarEvents(board), month, b.loc)
	return b.sendInline(msg.Chat.ID, text, markup)
}

func (b *Bot) calendarFromCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	month, err := parseMonth(strings.TrimPrefix(cb.Data, cbCalendarPrefix), time.Now(), b.loc)
	if err != nil {
		b.answer(cb, "")
		return nil
	}
	store, err := b.storeFor(ctx, cb.From.ID)
	if err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}
	b.answer(cb, "")
	text, markup := renderCalendar(service.CalendarEvents(store.Snapshot()), month, b.loc)
	return b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, text, markup)
}

// parseMonth reads YYYY-MM; empty input means the month of now.
func parseMonth(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), 1, 0, 0, 0, 0, loc), nil
	}
	return time.ParseInLocation(monthLayout, raw, loc)
}

func (b *Bot) handleDashboard(ctx context.Context, msg *tgbotapi.Message) error {
	year := time.Now().In(b.loc).Year()
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		parsed, err := strconv.Atoi(arg)
		if err != nil || parsed < 1970 || parsed > 9999 {
			return b.sendText(msg.Chat.ID, "Usage: /dashboard [year]")
		}
		year = parsed
	}

	board, err := b.loadBoard(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "build the dashboard", err)
	}
	counts := service.CompletedPerMonth(board.All(), year, b.loc)
	return b.sendText(msg.Chat.ID, renderDashboard(counts, year))
}

func (b *Bot) handleTimer(msg *tgbotapi.Message) error {
	text, markup := renderTimer(b.stopwatch(msg.From.ID))
	return b.sendInline(msg.Chat.ID, text, markup)
}

func (b *Bot) timerFromCallback(cb *tgbotapi.CallbackQuery) error {
	sw := b.stopwatch(cb.From.ID)
	switch strings.TrimPrefix(cb.Data, cbTimerPrefix) {
	case timerToggle:
		sw.Toggle()
	case timerReset:
		sw.Reset()
	case timerRefresh:
	default:
		b.answer(cb, "")
		return nil
	}
	b.answer(cb, service.FormatElapsed(sw.Elapsed()))
	text, markup := renderTimer(sw)
	return b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, text, markup)
}

func (b *Bot) handleAnalyze(ctx context.Context, msg *tgbotapi.Message) error {
	board, err := b.loadBoard(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "analyze the board", err)
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		log.Printf("[warn] chat action: %v", err)
	}
	reply, err := b.analyzer.Analyze(ctx, board)
	if errors.Is(err, ai.ErrMissingAPIKey) {
		return b.sendText(msg.Chat.ID, "🤖 AI analysis is not configured: GEMINI_API_KEY is missing.")
	}
	if err != nil {
		log.Printf("[warn] analyze for %d: %v", msg.From.ID, err)
		return b.sendText(msg.Chat.ID, "⚠️ Failed to analyze schedule. Please try again later.")
	}

	acc := feedback.NewAccordion(reply)
	b.setAccordion(msg.From.ID, acc)
	text, markup := renderFeedback(acc)
	return b.sendInline(msg.Chat.ID, text, markup)
}

func (b *Bot) toggleFeedback(cb *tgbotapi.CallbackQuery) error {
	acc := b.getAccordion(cb.From.ID)
	index, err := strconv.Atoi(strings.TrimPrefix(cb.Data, cbFeedbackPrefix))
	if acc == nil || err != nil {
		b.answer(cb, "This feedback has expired. Run /analyze again.")
		return nil
	}
	acc.Toggle(index)
	b.answer(cb, "")
	text, markup := renderFeedback(acc)
	return b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, text, markup)
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	board, err := b.loadBoard(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "build the report", err)
	}
	return b.sendText(msg.Chat.ID, service.DailyReport(board, time.Now().In(b.loc)))
}
