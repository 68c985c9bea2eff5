package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kimlikbridge/tg-sorgu-bridge/internal/api"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/biz"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/conf"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/data"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/server"
	"github.com/kimlikbridge/tg-sorgu-bridge/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge until interrupted",
	RunE:  runBridge,
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize data layer
	store, err := data.NewMembershipStore(ctx, cfg.Groups, logger)
	if err != nil {
		logger.Error("failed to open membership store", zap.Error(err))
		return err
	}
	defer store.Close()

	initial, err := data.LoadInitialGroups(ctx, store, cfg.Groups.Initial, logger)
	if err != nil {
		logger.Error("failed to load groups", zap.Error(err))
		return err
	}
	if initial.Len() == 0 {
		logger.Warn("no groups configured, waiting for membership reconciliation")
	}

	// Initialize usecase layer
	client := newTelegramClient(cfg, logger)
	ucs := biz.NewUsecases(initial, store, client, cfg.Texts.ToExtractorConfig(), cfg.Groups.ToMembershipConfig(), logger)

	// Initialize service layer
	router := service.NewRouter(client, ucs.Pending, ucs.Extractor, ucs.Active, cfg.Responder.Username, cfg.Texts.ToRouterTexts(), logger)

	tasks := []server.BackgroundTask{service.NewReconcileLoop(ucs.Membership, logger)}
	if cfg.Pending.TTL > 0 {
		tasks = append(tasks, service.NewPendingSweeper(ucs.Pending, cfg.Pending.TTL, cfg.Pending.SweepInterval, logger))
	}
	if cfg.Groups.Watch && cfg.Groups.Store == conf.StoreEnv {
		tasks = append(tasks, service.NewConfigWatcher(cfg.Groups.ConfigPath, ucs.Membership, logger))
	}

	supervisor := server.NewSupervisor(client, router, cfg.Reconnect.ToSupervisorConfig(), logger, tasks...)

	// Liveness endpoint
	if cfg.HTTP.Addr != "" {
		apiServer := api.NewServer(cfg.HTTP.Addr, func() api.Status {
			return api.Status{
				Connection:     supervisor.State().String(),
				Groups:         ucs.Active.Len(),
				PendingQueries: ucs.Pending.Len(),
			}
		}, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("liveness server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Stop(shutdownCtx)
		}()
	}

	logger.Info("bridge starting",
		zap.Int("groups", ucs.Active.Len()),
		zap.String("responder", cfg.Responder.Username),
		zap.String("store", cfg.Groups.Store),
	)

	err = supervisor.Run(ctx)
	if errors.Is(err, server.ErrFatalStopped) {
		logger.Error("bridge stopped", zap.Error(err))
		return err
	}
	logger.Info("bridge shut down")
	return err
}
