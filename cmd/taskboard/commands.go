package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"taskboard/internal/api"
	"taskboard/internal/model"
	"taskboard/internal/repository"
	"taskboard/internal/service"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func botCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.runBot(ctx)
		},
	}
}

func apiCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Run the bundled task backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.APIAddr
			}
			return a.runAPI(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (defaults to API_ADDR)")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the task backend and the bot together",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.runAPI(gctx, a.cfg.APIAddr) })
			g.Go(func() error { return a.runBot(gctx) })
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Println("[info] shutdown complete")
			return nil
		},
	}
}

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "board [uid]",
		Short: "Print the board of a signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			board, err := a.boards.For(args[0]).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load board: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, status := range model.Statuses {
				fmt.Fprintf(out, "%s (%d)\n", status, len(board[status]))
				for _, task := range board[status] {
					task = task.WithDefaults()
					due := "-"
					if !task.DueDate.IsZero() {
						due = task.DueDate.In(a.cfg.Location()).Format(service.DateLayout)
					}
					fmt.Fprintf(out, "  %-10s %-8s %-6s %s\n", task.ID, due, task.Priority, task.Title)
				}
			}
			return nil
		},
	}
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Send queued status corrections that are due",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			sent, failed, err := a.corrections.RetryDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d, failed %d\n", sent, failed)
			return nil
		},
	}
}

func (a *app) runAPI(ctx context.Context, addr string) error {
	tasks := service.NewTaskService(repository.NewTaskRepository(a.db))
	return api.NewServer(tasks).Run(ctx, addr)
}
