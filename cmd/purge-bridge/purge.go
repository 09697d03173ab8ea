package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edgecomet/purgebridge/internal/bridge"
	"github.com/edgecomet/purgebridge/internal/common/config"
	"github.com/edgecomet/purgebridge/internal/common/logger"
	"github.com/edgecomet/purgebridge/internal/purge/audit"
	"github.com/edgecomet/purgebridge/internal/purge/cfclient"
)

// errPurgeCommand is returned after the failure has already been reported,
// so main only sets the exit code
var errPurgeCommand = errors.New("purge failed")

func newPurgeCmd(configPath *string) *cobra.Command {
	var (
		url    string
		zoneID string
		domain string
	)

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Purge Cloudflare cache",
		Long: `Purge Cloudflare cache for one URL, one zone, the zone of a configured
domain, or everything. When several flags are given --url wins over --zone,
which wins over --domain. Exits non-zero when the purge fails, when purging
is disabled, or when --domain has no configured zone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := bridge.PurgeRequest{Zone: zoneID, Domain: domain}
			if url != "" {
				req.URLs = []string{url}
			}
			return runPurge(cmd, *configPath, req)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "specific URL to purge")
	cmd.Flags().StringVar(&zoneID, "zone", "", "zone ID to purge entirely")
	cmd.Flags().StringVar(&domain, "domain", "", "configured domain whose zone is purged entirely")

	return cmd
}

func runPurge(cmd *cobra.Command, configPath string, req bridge.PurgeRequest) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.LoadBridgeConfig(configPath, zap.NewNop())
	if err != nil {
		fmt.Fprintf(errOut, "Failed to load configuration: %v\n", err)
		return errPurgeCommand
	}

	dynamicLogger, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		initialLogger.Warn("Falling back to default logger", zap.Error(err))
		dynamicLogger = initialLogger
	}
	dynamicLogger.Reconfigure(cfg.Logging, cfg.Purge.Debug)
	defer func() { _ = dynamicLogger.Sync() }()
	log := dynamicLogger.With(zap.String("bridge_id", cfg.BridgeID))

	plan, err := bridge.PlanPurge(cfg, req)
	switch {
	case errors.Is(err, bridge.ErrDisabled):
		fmt.Fprintln(errOut, "Cloudflare Cache is disabled in configuration.")
		return errPurgeCommand
	case errors.Is(err, bridge.ErrNoZoneForDomain):
		fmt.Fprintf(errOut, "No zone configured for domain: %s\n", req.Domain)
		return errPurgeCommand
	case err != nil:
		fmt.Fprintf(errOut, "Failed to plan purge: %v\n", err)
		return errPurgeCommand
	}

	emitter, err := audit.New(cfg.Audit, log)
	if err != nil {
		fmt.Fprintf(errOut, "Failed to open audit log: %v\n", err)
		return errPurgeCommand
	}
	defer func() { _ = emitter.Close() }()

	client := cfclient.New(config.NewStaticConfigManager(cfg, log), log, cfclient.WithAudit(emitter))

	fmt.Fprintln(out, plan.Describe()+"...")

	if _, err := bridge.ExecutePurge(context.Background(), client, plan, req); err != nil {
		fmt.Fprintln(errOut, "Failed to purge cache. Check logs for details.")
		return errPurgeCommand
	}

	fmt.Fprintln(out, "Cache purged successfully!")
	return nil
}
