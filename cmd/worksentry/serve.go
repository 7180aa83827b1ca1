package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worksentry/internal/config"
	"worksentry/internal/handler"
	"worksentry/internal/models"
	"worksentry/internal/service"
	"worksentry/pkg/ruleset"
	"worksentry/pkg/telegram"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API, live-поток и фоновые задачи",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetConfig()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "адрес HTTP-сервера (по умолчанию HTTP_ADDR)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		client   *telegram.Client
		notifier service.Notifier
	)
	if cfg.TelegramEnabled() {
		var err error
		client, err = telegram.NewClient(cfg.TelegramToken, cfg.AdminChatID, cfg.TelegramDebug)
		if err != nil {
			return fmt.Errorf("create telegram client: %w", err)
		}
		notifier = client
	}

	a, err := newApp(cfg, notifier)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.warmUp(ctx); err != nil {
		return err
	}

	if cfg.RulesFile != "" {
		if err := a.loadRules(ctx, cfg.RulesFile); err != nil {
			return err
		}
		go func() {
			err := ruleset.Watch(ctx, cfg.RulesFile, func(file *ruleset.File) {
				if err := a.services.Rules.ApplyFile(ctx, file); err != nil {
					a.logger.WithError(err).Error("Failed to apply reloaded rules")
					return
				}
				a.services.Audit.Record(ctx, models.OperatorSystem, service.AuditRulesReload, "rules_file", cfg.RulesFile, map[string]int{
					"rules":       len(file.Rules),
					"departments": len(file.Departments),
				})
				a.logger.WithField("file", cfg.RulesFile).Info("Rules reloaded")
			}, func(err error) {
				a.logger.WithError(err).Warn("Rules file rejected")
			})
			if err != nil {
				a.logger.WithError(err).Error("Rules watcher stopped")
			}
		}()
	}

	go a.jobs.Run(ctx)

	if client != nil {
		a.logger.Infof("Authorized on account %s", client.Bot.Self.UserName)
		bot := handler.NewBotHandler(client, a.services.Live, a.services.Reviews, a.services.Stats, a.services.Clients, a.services.Audit, cfg.AdminChatID)
		go bot.HandleUpdates(client.Updates())
		defer client.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.NewHandler(a.services, cfg.AdminAPIKey).Router(cfg.HTTPDebug),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stop()
			return fmt.Errorf("http server: %w", err)
		}
	}
	stop()

	a.logger.Info("Shutting down...")
	// Shutdown не ждет hijacked-соединения, live-подписки закрываем сами
	a.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("HTTP server shutdown")
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}

// loadRules применяет файл правил при старте
func (a *app) loadRules(ctx context.Context, path string) error {
	file, err := ruleset.Load(path)
	if err != nil {
		return fmt.Errorf("load rules file: %w", err)
	}
	if err := a.services.Rules.ApplyFile(ctx, file); err != nil {
		return fmt.Errorf("apply rules file: %w", err)
	}
	a.logger.WithFields(logrus.Fields{
		"rules":       len(file.Rules),
		"departments": len(file.Departments),
	}).Info("Rules file applied")
	return nil
}
