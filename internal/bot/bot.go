package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/auth"
	"taskboard/internal/feedback"
	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

const (
	menuLabelBoard    = "📋 Board"
	menuLabelNewTask  = "➕ New task"
	menuLabelCalendar = "🗓 Calendar"
	menuLabelAnalyze  = "🤖 Analyze"
	menuLabelTimer    = "⏱ Timer"
	menuLabelHelp     = "ℹ️ Help"
)

const signInHint = "🔒 Please sign in first: /login, /register or /google &lt;id_token&gt;."

// Analyzer turns a board into free-form feedback. ai.Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, board map[model.Status][]model.Task) (string, error)
}

// Bot is the Telegram front-end: it hosts the board, calendar, dashboard,
// stopwatch and AI feedback views for each private chat.
type Bot struct {
	api      *tgbotapi.BotAPI
	userRepo *repository.UserRepository
	sessions *auth.Sessions
	boards   *service.Boards
	analyzer Analyzer
	loc      *time.Location

	mu            sync.Mutex
	conversations map[int64]*conversationState
	confirmations map[int64]model.TaskID
	views         map[int64]service.View
	accordions    map[int64]*feedback.Accordion
	stopwatches   map[int64]*service.Stopwatch
	watched       map[int64]string
}

func New(token string, userRepo *repository.UserRepository, sessions *auth.Sessions, boards *service.Boards, analyzer Analyzer, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api:           api,
		userRepo:      userRepo,
		sessions:      sessions,
		boards:        boards,
		analyzer:      analyzer,
		loc:           loc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]model.TaskID),
		views:         make(map[int64]service.View),
		accordions:    make(map[int64]*feedback.Accordion),
		stopwatches:   make(map[int64]*service.Stopwatch),
		watched:       make(map[int64]string),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				log.Printf("[error] handle callback: %v", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				log.Printf("[error] handle message: %v", err)
			}
		}
	}

	return nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s", msg.From.ID, msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if b.hasConversation(msg.From.ID) {
		log.Printf("[info] conversation step %d from %d", b.getConversation(msg.From.ID).stage, msg.From.ID)
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "I did not get that. Try /board, /newtask or /help.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "login":
		return b.startAuthConversation(msg, authLogin)
	case "register":
		return b.startAuthConversation(msg, authRegister)
	case "google":
		return b.handleGoogle(ctx, msg)
	case "logout":
		return b.handleLogout(ctx, msg)
	case "whoami":
		return b.handleWhoAmI(ctx, msg)
	case "board", "tasks":
		return b.handleBoard(ctx, msg)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "edit":
		return b.handleEditCommand(ctx, msg)
	case "reschedule":
		return b.handleReschedule(ctx, msg)
	case "calendar":
		return b.handleCalendar(ctx, msg)
	case "dashboard":
		return b.handleDashboard(ctx, msg)
	case "timer":
		return b.handleTimer(msg)
	case "analyze":
		return b.handleAnalyze(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your task board: Expired, Todo, Doing and Done.</b>\n\n", escape(name))
	if cur := b.currentIdentity(ctx, msg.From.ID); cur != nil {
		text += fmt.Sprintf("You are signed in as <b>%s</b>. Open your /board.", escape(cur.Email))
	} else {
		text += "Sign in with /login, create an account with /register, or use /google &lt;id_token&gt;."
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /login, /register — sign in with email and password\n" +
		"• /google &lt;id_token&gt; — sign in with a Google ID token\n" +
		"• /logout, /whoami — session\n" +
		"• /board [q=text] [status=todo] [priority=high] [order=desc] — the board\n" +
		"• /newtask — add a task step by step\n" +
		"• /edit &lt;id&gt; — edit a task\n" +
		"• /reschedule &lt;id&gt; &lt;YYYY-MM-DD&gt; — move a due date\n" +
		"• /calendar [YYYY-MM] — tasks by due date\n" +
		"• /dashboard [year] — completed tasks per month\n" +
		"• /timer — stopwatch\n" +
		"• /analyze — AI feedback on your board\n" +
		"• /report — today's report\n" +
		"• /cancel — cancel the current input"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelBoard):
		return true, b.handleBoard(ctx, msg)
	case strings.ToLower(menuLabelNewTask):
		return true, b.startNewTaskConversation(ctx, msg)
	case strings.ToLower(menuLabelCalendar):
		return true, b.handleCalendar(ctx, msg)
	case strings.ToLower(menuLabelAnalyze):
		return true, b.handleAnalyze(ctx, msg)
	case strings.ToLower(menuLabelTimer):
		return true, b.handleTimer(msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}

	data := cb.Data
	log.Printf("[info] callback user=%d data=%s", cb.From.ID, data)

	var err error
	switch {
	case data == cbBoardRefresh:
		err = b.refreshBoard(ctx, cb)
	case strings.HasPrefix(data, cbTogglePrefix):
		err = b.toggleFromCallback(ctx, cb)
	case strings.HasPrefix(data, cbMovePrefix):
		err = b.moveFromCallback(ctx, cb)
	case strings.HasPrefix(data, cbEditPrefix):
		b.answer(cb, "")
		err = b.startEditConversation(ctx, cb.Message.Chat.ID, cb.From.ID, model.TaskID(strings.TrimPrefix(data, cbEditPrefix)))
	case strings.HasPrefix(data, cbDeletePrefix):
		err = b.askDeleteConfirmation(ctx, cb)
	case strings.HasPrefix(data, cbConfirmPrefix):
		err = b.deleteFromCallback(ctx, cb)
	case strings.HasPrefix(data, cbCancelPrefix):
		b.clearConfirmation(cb.From.ID)
		b.answer(cb, "Cancelled")
		err = b.editMessage(cb.Message.Chat.ID, cb.Message.MessageID, "↩️ Cancelled.", nil)
	case strings.HasPrefix(data, cbFeedbackPrefix):
		err = b.toggleFeedback(cb)
	case strings.HasPrefix(data, cbTimerPrefix):
		err = b.timerFromCallback(cb)
	case strings.HasPrefix(data, cbCalendarPrefix):
		err = b.calendarFromCallback(ctx, cb)
	default:
		b.answer(cb, "")
	}
	return err
}

// SendDailyReports sends the board report to every signed-in chat. Loading
// each board also queues status corrections for tasks that expired overnight.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	users, err := b.userRepo.ListSignedIn(ctx)
	if err != nil {
		return err
	}
	now := time.Now().In(b.loc)
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		board, err := b.boards.For(user.AuthUID).Load(ctx)
		if err != nil {
			log.Printf("[warn] load board for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, service.DailyReport(board, now)); err != nil {
			log.Printf("[warn] send report to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, from.FirstName, from.UserName)
}

// session returns the chat's session and makes sure identity changes
// reset the chat's board, view and feedback state.
func (b *Bot) session(ctx context.Context, userID int64) (*auth.Session, error) {
	sess, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	_, watching := b.watched[userID]
	if !watching {
		uid := ""
		if cur := sess.Current(); cur != nil {
			uid = cur.UID
		}
		b.watched[userID] = uid
	}
	b.mu.Unlock()

	if !watching {
		sess.Subscribe(func(id *auth.Identity) { b.onIdentityChange(userID, id) })
	}
	return sess, nil
}

func (b *Bot) onIdentityChange(userID int64, id *auth.Identity) {
	newUID := ""
	if id != nil {
		newUID = id.UID
	}

	b.mu.Lock()
	old := b.watched[userID]
	b.watched[userID] = newUID
	delete(b.views, userID)
	delete(b.accordions, userID)
	delete(b.confirmations, userID)
	b.mu.Unlock()

	if old != "" && old != newUID {
		b.boards.Drop(old)
	}
	log.Printf("[info] identity change user=%d uid=%q", userID, newUID)
}

func (b *Bot) currentIdentity(ctx context.Context, userID int64) *auth.Identity {
	sess, err := b.session(ctx, userID)
	if err != nil {
		log.Printf("[warn] session for %d: %v", userID, err)
		return nil
	}
	return sess.Current()
}

// storeFor returns the signed-in user's store, loading it on first use.
func (b *Bot) storeFor(ctx context.Context, userID int64) (*service.Store, error) {
	cur := b.currentIdentity(ctx, userID)
	if cur == nil {
		return nil, service.ErrNotSignedIn
	}
	store := b.boards.For(cur.UID)
	if !store.Loaded() {
		if _, err := store.Load(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// loadBoard fetches the signed-in user's board from the backend.
func (b *Bot) loadBoard(ctx context.Context, userID int64) (service.Board, error) {
	cur := b.currentIdentity(ctx, userID)
	if cur == nil {
		return nil, service.ErrNotSignedIn
	}
	return b.boards.For(cur.UID).Load(ctx)
}

// reportError tells the user what went wrong; it only fails when sending fails.
func (b *Bot) reportError(chatID int64, action string, err error) error {
	if errors.Is(err, service.ErrNotSignedIn) {
		return b.sendText(chatID, signInHint)
	}
	log.Printf("[warn] %s for chat %d: %v", action, chatID, err)
	return b.sendText(chatID, fmt.Sprintf("⚠️ Could not %s: %s", action, escape(err.Error())))
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendInline(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) editMessage(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	if _, err := b.api.Send(edit); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

func (b *Bot) answer(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		log.Printf("[warn] callback ack: %v", err)
	}
}

func (b *Bot) alert(cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(cb.ID, text)); err != nil {
		log.Printf("[warn] callback alert: %v", err)
	}
}

// isNotModified matches Telegram's reply to an edit that changes nothing.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
