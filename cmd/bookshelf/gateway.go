package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/bookshelf/internal/app"
	"github.com/wondertwin-ai/bookshelf/internal/config"
)

var (
	gatewayFlags    serviceFlags
	upstreamURL     string
	upstreamTimeout time.Duration
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Serve the forwarding gateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mergeGatewayFlags(cmd, &cfg.Gateway)
		cfg.ApplyDefaults()

		gw, err := app.NewGateway(cfg.Gateway)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		return gw.Serve(ctx)
	},
}

func init() {
	gatewayFlags.register(gatewayCmd.Flags(), 0)
	gatewayCmd.Flags().StringVar(&upstreamURL, "upstream-url", "", "base URL of the store's /books endpoint (falls back to $BOOKSHELF_UPSTREAM_URL)")
	gatewayCmd.Flags().DurationVar(&upstreamTimeout, "upstream-timeout", 0, "timeout for one upstream call (default 5s)")
}

// mergeGatewayFlags copies explicitly set flags over the file values.
func mergeGatewayFlags(cmd *cobra.Command, g *config.Gateway) {
	if changed(cmd, "port") {
		g.Port = gatewayFlags.port
	}
	if changed(cmd, "latency") {
		g.Latency = gatewayFlags.latency
	}
	if changed(cmd, "upstream-url") {
		g.UpstreamURL = upstreamURL
	}
	if changed(cmd, "upstream-timeout") {
		g.UpstreamTimeout = upstreamTimeout
	}
	if changed(cmd, "verbose") {
		g.Verbose = verbose
	}
}
