package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskboard/internal/auth"
)

const googleProviderID = "google.com"

func (b *Bot) startAuthConversation(msg *tgbotapi.Message, mode authMode) error {
	b.setConversation(msg.From.ID, &conversationState{stage: stageEmail, mode: mode})
	prompt := "🔑 <b>Sign in.</b> What is your email?"
	if mode == authRegister {
		prompt = "🆕 <b>Create an account.</b> What is your email?"
	}
	return b.sendWithReplyMarkup(msg.Chat.ID, prompt, cancelKeyboard())
}

func (b *Bot) handleAuthStep(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageEmail:
		if text == "" || !strings.Contains(text, "@") {
			return b.sendWithReplyMarkup(msg.Chat.ID, "That does not look like an email. Try again.", cancelKeyboard())
		}
		state.email = text
		state.stage = stagePassword
		return b.sendWithReplyMarkup(msg.Chat.ID, "🔒 Now the password. I delete the message right after reading it.", cancelKeyboard())
	case stagePassword:
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
			log.Printf("[warn] delete password message: %v", err)
		}
		b.clearConversation(msg.From.ID)
		return b.finishPasswordAuth(ctx, msg, state, text)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Input reset. Start again with /login.")
	}
}

func (b *Bot) finishPasswordAuth(ctx context.Context, msg *tgbotapi.Message, state *conversationState, password string) error {
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	sess, err := b.session(ctx, msg.From.ID)
	if err != nil {
		return err
	}

	var id *auth.Identity
	if state.mode == authRegister {
		id, err = sess.SignUp(ctx, state.email, password)
	} else {
		id, err = sess.SignInWithPassword(ctx, state.email, password)
	}
	if err != nil {
		return b.sendText(msg.Chat.ID, authFailureText(err))
	}

	log.Printf("[info] signed in user=%d uid=%s", msg.From.ID, id.UID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Signed in as <b>%s</b>. Open your /board.", escape(id.Email)))
}

func (b *Bot) handleGoogle(ctx context.Context, msg *tgbotapi.Message) error {
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		return b.sendText(msg.Chat.ID, "Send your Google ID token: /google &lt;id_token&gt;")
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		log.Printf("[warn] delete token message: %v", err)
	}
	if _, err := b.ensureUser(ctx, msg.From); err != nil {
		return err
	}
	sess, err := b.session(ctx, msg.From.ID)
	if err != nil {
		return err
	}

	id, err := sess.SignInWithIdP(ctx, googleProviderID, token)
	if err != nil {
		return b.sendText(msg.Chat.ID, authFailureText(err))
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Signed in with Google as <b>%s</b>.", escape(id.Email)))
}

func (b *Bot) handleLogout(ctx context.Context, msg *tgbotapi.Message) error {
	sess, err := b.session(ctx, msg.From.ID)
	if err != nil {
		return err
	}
	if sess.Current() == nil {
		return b.sendText(msg.Chat.ID, "You are not signed in.")
	}
	if err := sess.SignOut(ctx); err != nil {
		return b.reportError(msg.Chat.ID, "sign out", err)
	}
	return b.sendText(msg.Chat.ID, "👋 Signed out.")
}

func (b *Bot) handleWhoAmI(ctx context.Context, msg *tgbotapi.Message) error {
	cur := b.currentIdentity(ctx, msg.From.ID)
	if cur == nil {
		return b.sendText(msg.Chat.ID, signInHint)
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👤 <b>%s</b>\nuid <code>%s</code>", escape(cur.Email), escape(cur.UID)))
}

// authFailureText shows provider errors verbatim.
func authFailureText(err error) string {
	var perr *auth.ProviderError
	if errors.As(err, &perr) {
		return fmt.Sprintf("❌ Authentication failed: %s", escape(perr.Error()))
	}
	return fmt.Sprintf("❌ Authentication failed: %s", escape(err.Error()))
}
