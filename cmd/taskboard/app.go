package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"gorm.io/gorm"

	"taskboard/internal/ai"
	"taskboard/internal/auth"
	"taskboard/internal/bot"
	"taskboard/internal/config"
	"taskboard/internal/repository"
	"taskboard/internal/service"
	"taskboard/internal/taskapi"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg         config.Config
	db          *gorm.DB
	users       *repository.UserRepository
	sessions    *auth.Sessions
	corrections *service.CorrectionService
	boards      *service.Boards
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	users := repository.NewUserRepository(db)
	provider := auth.NewProvider(cfg.AuthAPIKey, cfg.AuthBaseURL, cfg.TokenBaseURL, httpClient)
	sessions := auth.NewSessions(provider, users)

	backend := taskapi.New(cfg.BackendURL, httpClient)
	clientFor := func(uid string) *taskapi.Client {
		return backend.WithTokenSource(auth.UIDTokenSource{Sessions: sessions, UID: uid})
	}

	corrections := service.NewCorrectionService(
		repository.NewCorrectionRepository(db),
		func(uid string) service.TaskUpdater { return clientFor(uid) },
		cfg.CorrectionMaxAttempts,
	)
	boards := service.NewBoards(func(uid string) service.TaskAPI { return clientFor(uid) }, corrections)

	return &app{
		cfg:         cfg,
		db:          db,
		users:       users,
		sessions:    sessions,
		corrections: corrections,
		boards:      boards,
	}, nil
}

func (a *app) Close() {
	a.corrections.Wait()
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) newBot() (*bot.Bot, error) {
	analyzer := ai.NewClient(a.cfg.GeminiAPIKey, a.cfg.GeminiModel, a.cfg.GeminiBaseURL,
		&http.Client{Timeout: a.cfg.HTTPTimeout})
	return bot.New(a.cfg.TelegramToken, a.users, a.sessions, a.boards, analyzer, a.cfg.Location())
}

// runBot polls Telegram and runs the correction retries and the daily report
// on the scheduler until ctx is done.
func (a *app) runBot(ctx context.Context) error {
	telegramBot, err := a.newBot()
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}

	scheduler := service.NewSchedulerService(a.cfg.Location())
	if _, err := scheduler.ScheduleInterval("correction retries", a.cfg.CorrectionRetryInterval, func() {
		a.retryCorrections(ctx)
	}); err != nil {
		return fmt.Errorf("schedule corrections: %w", err)
	}
	if a.cfg.ReportTime != "" {
		if _, err := scheduler.ScheduleDaily("daily report", a.cfg.ReportTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, a.cfg.HTTPTimeout*4)
			defer cancel()
			if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("[error] daily report: %v", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule report: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Println("[info] taskboard bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	return nil
}

func (a *app) retryCorrections(ctx context.Context) {
	sent, failed, err := a.corrections.RetryDue(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[error] retry corrections: %v", err)
		return
	}
	if sent > 0 || failed > 0 {
		log.Printf("[info] corrections retried: %d sent, %d failed", sent, failed)
	}
}
