package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/model"
	"taskboard/internal/service"
)

func (b *Bot) handleBoard(ctx context.Context, msg *tgbotapi.Message) error {
	view, err := service.ParseView(msg.CommandArguments())
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ %s\nExample: /board q=report status=todo priority=high order=desc", escape(err.Error())))
	}
	b.setView(msg.From.ID, view)

	board, err := b.loadBoard(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "load tasks", err)
	}

	text, markup := renderBoard(board, view, b.loc)
	return b.sendInline(msg.Chat.ID, text, markup)
}

func (b *Bot) refreshBoard(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	store, err := b.storeFor(ctx, cb.From.ID)
	if err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}
	if _, err := store.Load(ctx); err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}
	b.answer(cb, "Refreshed")
	return b.redrawBoard(cb, store)
}

func (b *Bot) redrawBoard(cb *tgbotapi.CallbackQuery, store *service.Store) error {
	text, markup := renderBoard(store.Snapshot(), b.getView(cb.From.ID), b.loc)
	return b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, text, markup)
}

func (b *Bot) toggleFromCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	completed, id, err := parseToggle(cb.Data)
	if err != nil {
		b.answer(cb, "")
		return nil
	}
	store, err := b.storeFor(ctx, cb.From.ID)
	if err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}

	task, err := store.ToggleCompletion(ctx, id, completed)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		b.alert(cb, "Task not found. Refresh the board.")
		return nil
	case err != nil:
		log.Printf("[warn] toggle task=%s: %v", id, err)
		b.alert(cb, "Saving failed: "+err.Error())
	case completed:
		b.answer(cb, fmt.Sprintf("✅ %s done", shortTitle(task.Title, 40)))
	default:
		b.answer(cb, fmt.Sprintf("↩️ %s reopened", shortTitle(task.Title, 40)))
	}
	return b.redrawBoard(cb, store)
}

func (b *Bot) moveFromCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	from, to, id, err := parseMove(cb.Data)
	if err != nil {
		b.answer(cb, "")
		return nil
	}
	store, err := b.storeFor(ctx, cb.From.ID)
	if err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}

	moved, err := store.Move(ctx, id, from, to)
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		b.alert(cb, "Task is no longer there. Refresh the board.")
		return nil
	case err != nil:
		log.Printf("[warn] move task=%s %s->%s: %v", id, from, to, err)
		b.alert(cb, "Saving failed: "+err.Error())
	case !moved:
		b.answer(cb, fmt.Sprintf("%s tasks cannot be moved to %s", from, to))
		return nil
	default:
		b.answer(cb, fmt.Sprintf("Moved to %s", to))
	}
	return b.redrawBoard(cb, store)
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	id := model.TaskID(strings.TrimPrefix(cb.Data, cbDeletePrefix))
	store, err := b.storeFor(ctx, cb.From.ID)
	if err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}
	task, ok := store.Find(id)
	if !ok {
		b.alert(cb, "Task not found. Refresh the board.")
		return nil
	}
	b.answer(cb, "")

	b.setConfirmation(cb.From.ID, id)
	markup := confirmDeleteKeyboard(id)
	text := fmt.Sprintf("Delete task «%s»?", escape(normalizeTitle(task.Title)))
	return b.sendInline(cb.Message.Chat.ID, text, &markup)
}

func (b *Bot) deleteFromCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	id := model.TaskID(strings.TrimPrefix(cb.Data, cbConfirmPrefix))
	if !b.takeConfirmation(cb.From.ID, id) {
		b.answer(cb, "This confirmation has expired.")
		return nil
	}
	store, err := b.storeFor(ctx, cb.From.ID)
	if err != nil {
		b.alert(cb, callbackErrorText(err))
		return nil
	}

	text := "🗑 Task deleted."
	if err := store.Delete(ctx, id); err != nil {
		log.Printf("[warn] delete task=%s: %v", id, err)
		text = fmt.Sprintf("🗑 Removed from the board, but the server said: %s", escape(err.Error()))
	}
	b.answer(cb, "")
	if err := b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, text, nil); err != nil {
		return err
	}
	board, markup := renderBoard(store.Snapshot(), b.getView(cb.From.ID), b.loc)
	return b.sendInline(cb.Message.Chat.ID, board, markup)
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.storeFor(ctx, msg.From.ID); err != nil {
		return b.reportError(msg.Chat.ID, "start a new task", err)
	}
	log.Printf("[info] start new task conversation user=%d", msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{stage: stageTitle})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 New task.\n<b>Step 1/4:</b> title?", cancelKeyboard())
}

func (b *Bot) handleEditCommand(ctx context.Context, msg *tgbotapi.Message) error {
	id := strings.TrimSpace(msg.CommandArguments())
	if id == "" {
		return b.sendText(msg.Chat.ID, "Give the task id: /edit &lt;id&gt;. Ids are shown on the /board.")
	}
	return b.startEditConversation(ctx, msg.Chat.ID, msg.From.ID, model.TaskID(id))
}

func (b *Bot) startEditConversation(ctx context.Context, chatID, userID int64, id model.TaskID) error {
	store, err := b.storeFor(ctx, userID)
	if err != nil {
		return b.reportError(chatID, "edit the task", err)
	}
	task, ok := store.Find(id)
	if !ok {
		return b.sendText(chatID, "Task not found.")
	}

	b.setConversation(userID, &conversationState{
		stage:   stageTitle,
		input:   service.InputFromTask(task),
		editing: &task,
	})
	text := fmt.Sprintf("✏️ Editing «%s».\n<b>Step 1/4:</b> title? Current: <i>%s</i>",
		escape(normalizeTitle(task.Title)), escape(task.Title))
	return b.sendWithReplyMarkup(chatID, text, stepKeyboard(true))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}
	switch state.stage {
	case stageEmail, stagePassword:
		return b.handleAuthStep(ctx, msg, state)
	default:
		return b.handleTaskStep(ctx, msg, state)
	}
}

// handleTaskStep walks the task form. Every field is required; when editing,
// "Keep" leaves the current value.
func (b *Bot) handleTaskStep(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	editing := state.editing != nil
	keep := editing && isKeepInput(text)

	switch state.stage {
	case stageTitle:
		if !keep {
			if text == "" {
				return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Please fill out all fields. Title?", stepKeyboard(editing))
			}
			state.input.Title = text
		}
		state.stage = stageDescription
		return b.sendWithReplyMarkup(msg.Chat.ID, b.stepPrompt("<b>Step 2/4:</b> description?", state.input.Description, editing), stepKeyboard(editing))
	case stageDescription:
		if !keep {
			if text == "" {
				return b.sendWithReplyMarkup(msg.Chat.ID, "⚠️ Please fill out all fields. Description?", stepKeyboard(editing))
			}
			state.input.Description = text
		}
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, b.stepPrompt("<b>Step 3/4:</b> due date as <code>2026-11-30</code>?", state.input.DueDate, editing), stepKeyboard(editing))
	case stageDueDate:
		if !keep {
			if _, err := service.ParseDueDate(text); err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code>.", stepKeyboard(editing))
			}
			state.input.DueDate = text
		}
		state.stage = stagePriority
		return b.sendWithReplyMarkup(msg.Chat.ID, b.stepPrompt("<b>Step 4/4:</b> priority?", state.input.Priority, editing), priorityKeyboard(editing))
	case stagePriority:
		if !keep {
			if _, err := model.ParsePriority(text); err != nil {
				return b.sendWithReplyMarkup(msg.Chat.ID, "Pick Low, Medium or High.", priorityKeyboard(editing))
			}
			state.input.Priority = text
		}
		b.clearConversation(msg.From.ID)
		return b.finishTaskForm(ctx, msg, state)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Try /newtask again.")
	}
}

func (b *Bot) stepPrompt(prompt, current string, editing bool) string {
	if !editing || current == "" {
		return prompt
	}
	return fmt.Sprintf("%s Current: <i>%s</i>", prompt, escape(current))
}

func (b *Bot) finishTaskForm(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	task, err := state.input.Build(state.editing)
	if errors.Is(err, service.ErrIncompleteForm) {
		return b.sendText(msg.Chat.ID, "⚠️ Please fill out all fields.")
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("⚠️ %s", escape(err.Error())))
	}

	store, err := b.storeFor(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "save the task", err)
	}

	title := "✅ <b>Task created</b>"
	if state.editing != nil {
		task, err = store.Update(ctx, task)
		title = "✅ <b>Task updated</b>"
	} else {
		task, err = store.Create(ctx, task)
	}
	if err != nil {
		return b.reportError(msg.Chat.ID, "save the task", err)
	}
	log.Printf("[info] task saved id=%s user=%d", task.ID, msg.From.ID)

	if err := b.sendText(msg.Chat.ID, taskSummary(title, task, b.loc)); err != nil {
		return err
	}
	text, markup := renderBoard(store.Snapshot(), b.getView(msg.From.ID), b.loc)
	return b.sendInline(msg.Chat.ID, text, markup)
}

func (b *Bot) handleReschedule(ctx context.Context, msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		return b.sendText(msg.Chat.ID, "Usage: /reschedule &lt;id&gt; &lt;YYYY-MM-DD&gt;")
	}
	due, err := service.ParseDueDate(args[1])
	if err != nil {
		return b.sendText(msg.Chat.ID, "Cannot read that date. Use <code>2026-11-30</code>.")
	}

	store, err := b.storeFor(ctx, msg.From.ID)
	if err != nil {
		return b.reportError(msg.Chat.ID, "reschedule", err)
	}
	task, err := store.Reschedule(ctx, model.TaskID(args[0]), due)
	if errors.Is(err, service.ErrTaskNotFound) {
		return b.sendText(msg.Chat.ID, "Task not found.")
	}
	if err != nil {
		return b.reportError(msg.Chat.ID, "reschedule", err)
	}
	return b.sendText(msg.Chat.ID, taskSummary("📆 <b>Rescheduled</b>", task, b.loc))
}

func callbackErrorText(err error) string {
	if errors.Is(err, service.ErrNotSignedIn) {
		return "Please sign in first: /login"
	}
	return "Failed: " + err.Error()
}
