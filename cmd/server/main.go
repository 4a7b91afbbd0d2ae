// Package main is the entry point for the tipfolio dashboard server.
// It wires the mail client, extraction pipeline, tip store and mirror sync,
// starts the HTTP API and runs scheduled maintenance jobs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/config"
	"github.com/avramidis/tipfolio/internal/database"
	"github.com/avramidis/tipfolio/internal/fetch"
	"github.com/avramidis/tipfolio/internal/mirror"
	"github.com/avramidis/tipfolio/internal/modules/earnings"
	earningshandlers "github.com/avramidis/tipfolio/internal/modules/earnings/handlers"
	"github.com/avramidis/tipfolio/internal/modules/tips"
	tipshandlers "github.com/avramidis/tipfolio/internal/modules/tips/handlers"
	"github.com/avramidis/tipfolio/internal/periodcache"
	"github.com/avramidis/tipfolio/internal/reliability"
	"github.com/avramidis/tipfolio/internal/scheduler"
	"github.com/avramidis/tipfolio/internal/server"
	"github.com/avramidis/tipfolio/internal/session"
	"github.com/avramidis/tipfolio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting tipfolio")

	// Durable tips and the ephemeral period cache live in separate databases
	// so cache churn never touches the tip file.
	tipsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "tips.db"),
		Profile: database.ProfileStandard,
		Name:    "tips",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open tips database")
	}
	defer tipsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{tipsDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	// Mail side: client, batched fetch pipeline, earnings service.
	gmailClient := gmail.NewClient(log)
	pipeline := fetch.New(gmailClient, log)
	cacheRepo := periodcache.NewRepository(cacheDB.Conn(), log)

	earningsService := earnings.NewService(gmailClient, pipeline, cacheRepo, earnings.Config{
		ProviderSender: cfg.ProviderSender,
		SavingsGoal:    cfg.SavingsGoal,
		DayTTL:         cfg.DayCacheTTL,
		YearTTL:        cfg.YearCacheTTL,
	}, log)

	// Tip side: local store plus draft-backed mirror for cross-device sync.
	tipRepo := tips.NewRepository(tipsDB.Conn(), log)
	mirrorStore := mirror.NewStore(gmailClient, log)
	coordinator := tips.NewCoordinator(tipRepo, mirrorStore, log)

	// The watchdog closes the activity window on idle; the server reopens it
	// (and replays the remote merge) on the next credentialed request.
	var srvRef atomic.Pointer[server.Server]
	watchdog := session.NewWatchdog(cfg.SessionIdleTimeout, func() {
		log.Info().Msg("Session idle timeout reached")
		if s := srvRef.Load(); s != nil {
			s.ResetSession()
		}
	}, log)
	defer watchdog.Stop()

	srv := server.NewServer(server.ServerConfig{
		Config:           cfg,
		Log:              log,
		TipsDB:           tipsDB,
		CacheDB:          cacheDB,
		EarningsHandlers: earningshandlers.NewHandler(earningsService, log),
		EarningsStream:   earningshandlers.NewStreamHandler(earningsService, log),
		TipsHandlers:     tipshandlers.NewHandler(tipRepo, coordinator, log),
		Watchdog:         watchdog,
		OnSessionStart: func(token string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := coordinator.Initialize(ctx, token); err != nil {
				log.Warn().Err(err).Msg("Session tip merge failed")
			}
		},
	})
	srvRef.Store(srv)

	// Background jobs: hourly cache eviction, daily off-site backup.
	sched := scheduler.New(log)
	if err := sched.AddJob("@hourly", periodcache.NewCleanupJob(cacheRepo, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cache cleanup job")
	}

	if cfg.Backup.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Backup, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create backup storage client")
		}
		backupService := reliability.NewBackupService(
			map[string]*database.DB{"tips": tipsDB, "cache": cacheDB},
			s3Client,
			cfg.DataDir,
			cfg.Backup.RetentionDays,
			log,
		)
		if err := sched.AddJob("@daily", reliability.NewBackupJob(backupService, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register backup job")
		}
	} else {
		log.Info().Msg("Backups disabled, no bucket configured")
	}

	sched.Start()
	defer sched.Stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
