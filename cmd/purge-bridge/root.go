package main

import (
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/example/purge-bridge.yaml"

// newRootCmd builds the purge-bridge command tree
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "purge-bridge",
		Short: "Purge Cloudflare cache when CMS content changes",
		Long: `purge-bridge receives content events (entry, term and asset saves and
deletes), works out which public URLs went stale and asks Cloudflare to
purge them, or purges whole zones when no URL can be determined.

  purge-bridge serve -c purge-bridge.yaml        # run the event API and queue worker
  purge-bridge purge                             # purge everything (all zones)
  purge-bridge purge --url https://example.com/  # purge one URL
  purge-bridge purge --domain example.com        # purge the zone mapped to a domain`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to purge-bridge configuration file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newPurgeCmd(&configPath))

	return root
}
