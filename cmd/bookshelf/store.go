package main

import (
	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/bookshelf/internal/app"
	"github.com/wondertwin-ai/bookshelf/internal/config"
)

var (
	storeFlags    serviceFlags
	storeSeedFile string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Serve the book resource store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mergeStoreFlags(cmd, &cfg.Store)
		cfg.ApplyDefaults()

		st, err := app.NewStore(cfg.Store)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()
		return st.Serve(ctx)
	},
}

func init() {
	storeFlags.register(storeCmd.Flags(), 0)
	storeFlags.registerFailRate(storeCmd.Flags())
	storeCmd.Flags().StringVar(&storeSeedFile, "seed-file", "", "JSON state file loaded at startup")
}

// mergeStoreFlags copies explicitly set flags over the file values.
func mergeStoreFlags(cmd *cobra.Command, s *config.Store) {
	if changed(cmd, "port") {
		s.Port = storeFlags.port
	}
	if changed(cmd, "latency") {
		s.Latency = storeFlags.latency
	}
	if changed(cmd, "fail-rate") {
		s.FailRate = storeFlags.failRate
	}
	if changed(cmd, "seed-file") {
		s.SeedFile = storeSeedFile
	}
	if changed(cmd, "verbose") {
		s.Verbose = verbose
	}
}
