package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wondertwin-ai/bookshelf/internal/app"
	"github.com/wondertwin-ai/bookshelf/internal/config"
)

var (
	allStorePort   int
	allGatewayPort int
	allSeedFile    string
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run the store and the gateway in one process",
	Long: `Run the store and the gateway in one process. Unless configured otherwise
the gateway forwards to the store started alongside it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if changed(cmd, "store-port") {
			cfg.Store.Port = allStorePort
		}
		if changed(cmd, "gateway-port") {
			cfg.Gateway.Port = allGatewayPort
		}
		if changed(cmd, "seed-file") {
			cfg.Store.SeedFile = allSeedFile
		}
		if changed(cmd, "verbose") {
			cfg.Store.Verbose = verbose
			cfg.Gateway.Verbose = verbose
		}
		if cfg.Store.Port == 0 {
			cfg.Store.Port = config.DefaultStorePort
		}
		if cfg.Gateway.UpstreamURL == "" {
			cfg.Gateway.UpstreamURL = fmt.Sprintf("http://localhost:%d/books", cfg.Store.Port)
		}
		cfg.ApplyDefaults()

		st, err := app.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		gw, err := app.NewGateway(cfg.Gateway)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return st.Serve(gctx) })
		g.Go(func() error { return gw.Serve(gctx) })
		return g.Wait()
	},
}

func init() {
	allCmd.Flags().IntVar(&allStorePort, "store-port", config.DefaultStorePort, "store listen port")
	allCmd.Flags().IntVar(&allGatewayPort, "gateway-port", config.DefaultGatewayPort, "gateway listen port")
	allCmd.Flags().StringVar(&allSeedFile, "seed-file", "", "JSON state file loaded into the store at startup")
}
