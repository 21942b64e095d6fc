package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/feedback"
	"taskboard/internal/model"
	"taskboard/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageEmail
	stagePassword
	stageTitle
	stageDescription
	stageDueDate
	stagePriority
)

type authMode int

const (
	authLogin authMode = iota
	authRegister
)

const (
	btnKeep         = "⏭️ Keep"
	btnCancelDialog = "⏪ Cancel input"
)

type conversationState struct {
	stage conversationStage

	mode  authMode
	email string

	input   service.TaskInput
	editing *model.Task
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) setConfirmation(userID int64, id model.TaskID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = id
}

// takeConfirmation returns and clears the pending delete, if it matches id.
func (b *Bot) takeConfirmation(userID int64, id model.TaskID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending, ok := b.confirmations[userID]
	if !ok || pending != id {
		return false
	}
	delete(b.confirmations, userID)
	return true
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setView(userID int64, view service.View) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.views[userID] = view
}

func (b *Bot) getView(userID int64) service.View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.views[userID]
}

func (b *Bot) setAccordion(userID int64, acc *feedback.Accordion) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accordions[userID] = acc
}

func (b *Bot) getAccordion(userID int64) *feedback.Accordion {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accordions[userID]
}

func (b *Bot) stopwatch(userID int64) *service.Stopwatch {
	b.mu.Lock()
	defer b.mu.Unlock()
	sw, ok := b.stopwatches[userID]
	if !ok {
		sw = service.NewStopwatch()
		b.stopwatches[userID] = sw
	}
	return sw
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelBoard),
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelCalendar),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelAnalyze),
			tgbotapi.NewKeyboardButton(menuLabelTimer),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// stepKeyboard offers "Keep" while editing an existing task.
func stepKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	if !editing {
		return cancelKeyboard()
	}
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnKeep),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard(editing bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(string(model.PriorityLow)),
			tgbotapi.NewKeyboardButton(string(model.PriorityMedium)),
			tgbotapi.NewKeyboardButton(string(model.PriorityHigh)),
		),
	}
	if editing {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnKeep)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func confirmDeleteKeyboard(id model.TaskID) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Delete", cbConfirmPrefix+string(id)),
		tgbotapi.NewInlineKeyboardButtonData("↩️ Cancel", cbCancelPrefix+string(id)),
	))
}

func isKeepInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnKeep) || value == "keep" || value == "-"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}
