package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"chatrelay/pkg/access"
	"chatrelay/pkg/assistant"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/channel/telegram"
	"chatrelay/pkg/config"
	"chatrelay/pkg/dispatch"
	"chatrelay/pkg/history"
	"chatrelay/pkg/lockfile"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/roster"
	"chatrelay/pkg/service"
	"chatrelay/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay service",
	Long:  "Runs ChatRelay as a long-lived service: Telegram long polling, assistant sessions, and health endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		lock, err := lockfile.Acquire(cfg.Lock.Path)
		if err != nil {
			if errors.Is(err, lockfile.ErrHeld) {
				log.Error("Another instance is already running", "lock_file", cfg.Lock.Path)
				return
			}
			log.Error("Failed to acquire lock file", "error", err)
			return
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("Failed to release lock file", "error", err)
			}
		}()

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, adapters, err := buildService(cfg, log)
		if err != nil {
			log.Error("Failed to initialize service", "error", err)
			return
		}

		log.Info("Relay started", "channels", channelNames(adapters), "assistant_id", cfg.Assistant.AssistantID)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Relay runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildService wires every component from configuration.
func buildService(cfg *config.Config, log *slog.Logger) (*service.Service, []channel.Adapter, error) {
	api, err := assistant.NewOpenAIClient(cfg.Assistant)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize assistant backend: %w", err)
	}

	store := session.New(
		func(ctx context.Context, _ string) (string, error) { return api.CreateThread(ctx) },
		api.DeleteThread,
		cfg.SessionLifetime(),
		log,
	)

	sanitizer := assistant.NewSanitizer(cfg.Sanitize)
	invoker := assistant.NewInvoker(api, store, sanitizer, cfg.AssistantTimeout(), cfg.PollInterval(), log)

	policy := access.ParsePolicy(cfg.Access, log)
	limiter := access.NewRateLimiter(cfg.Limits.RateLimitMessages, cfg.RateWindow())
	admission := access.NewController(policy, limiter, cfg.Limits.MaxMessageLength, cfg.RateWindow(), cfg.Access.RejectionNotices)

	chats, err := roster.Open(cfg.Roster.Path, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open chat roster: %w", err)
	}

	hist := history.NewLog(cfg.Limits.HistoryDepth)
	dispatcher := dispatch.New(admission, invoker, store, hist, chats, log)

	adapter, err := telegram.NewAdapter(cfg.Telegram, chats, log)
	if err != nil {
		return nil, nil, fmt.Errorf("configure telegram channel: %w", err)
	}
	adapters := []channel.Adapter{adapter}

	svc, err := service.New(cfg, api, store, dispatcher.Dispatch, adapters, log)
	if err != nil {
		return nil, nil, err
	}

	return svc, adapters, nil
}

func channelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
