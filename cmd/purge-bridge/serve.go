package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/bridge"
	"github.com/edgecomet/purgebridge/internal/common/config"
	"github.com/edgecomet/purgebridge/internal/common/logger"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the event API, queue worker and metrics server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	// Create initial logger for startup
	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	initialLogger.Info("Starting Purge Bridge", zap.String("config_path", configPath))

	configManager, err := config.NewConfigManager(configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Error("Failed to load purge-bridge config", zap.Error(err))
		return err
	}
	cfg := configManager.GetConfig()

	// Uses INFO during startup if the configured level is quieter
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Logging)
	if err != nil {
		initialLogger.Error("Failed to create configured logger", zap.Error(err))
		return err
	}
	defer func() { _ = dynamicLogger.Sync() }()

	zapLogger := dynamicLogger.With(zap.String("bridge_id", cfg.BridgeID))

	b, err := bridge.New(configManager, zapLogger)
	if err != nil {
		zapLogger.Error("Failed to create purge bridge", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		zapLogger.Error("Failed to start purge bridge components", zap.Error(err))
		return err
	}

	var httpServer *fasthttp.Server
	if cfg.HTTPApi.Enabled {
		httpServer = &fasthttp.Server{
			Handler:                      b.ServeHTTP,
			Name:                         "PurgeBridge/1.0",
			ReadTimeout:                  cfg.HTTPApi.RequestTimeout.ToDuration(),
			WriteTimeout:                 cfg.HTTPApi.RequestTimeout.ToDuration(),
			IdleTimeout:                  60 * time.Second,
			MaxRequestBodySize:           1 << 20,
			DisablePreParseMultipartForm: true,
			NoDefaultServerHeader:        true,
			NoDefaultDate:                true,
		}

		listenAddr := cfg.HTTPApi.Listen
		go func() {
			zapLogger.Info("HTTP API server starting", zap.String("addr", listenAddr))
			if err := httpServer.ListenAndServe(listenAddr); err != nil {
				zapLogger.Error("HTTP server error", zap.Error(err))
			}
		}()
	} else {
		zapLogger.Warn("HTTP API is disabled in configuration; only queued tasks will run")
	}

	zapLogger.Info("Purge bridge started",
		zap.Bool("http_api", cfg.HTTPApi.Enabled),
		zap.String("api_addr", cfg.HTTPApi.Listen))

	// Switch to configured log level after startup is complete
	dynamicLogger.SetPurgeDebug(cfg.Purge.Debug)
	dynamicLogger.SwitchToConfiguredLevel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range signals {
		if sig == syscall.SIGHUP {
			reloaded, err := b.Reload()
			if err != nil {
				zapLogger.Error("Configuration reload failed, keeping previous configuration", zap.Error(err))
				continue
			}
			dynamicLogger.Reconfigure(reloaded.Logging, reloaded.Purge.Debug)
			zapLogger.Info("Configuration reloaded")
			continue
		}
		break
	}
	signal.Stop(signals)

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("Shutting down Purge Bridge...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting events before draining the queue
	if httpServer != nil {
		if err := httpServer.ShutdownWithContext(shutdownCtx); err != nil {
			zapLogger.Error("Failed to shutdown HTTP server gracefully", zap.Error(err))
		}
	}

	if err := b.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown purge bridge gracefully", zap.Error(err))
	}

	zapLogger.Info("Purge bridge stopped")
	return nil
}
