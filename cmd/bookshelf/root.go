package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wondertwin-ai/bookshelf/internal/config"
)

var (
	// version is set at build time via -ldflags "-X main.version=..."
	version = "dev"

	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bookshelf",
	Short: "bookshelf serves an in-memory book store and a forwarding gateway",
	Long: `bookshelf runs two HTTP/JSON services: a resource store holding books in
memory under /books, and a stateless gateway exposing the same operations under
/gateway/books that forwards every call to the store.

Settings come from flags, then the --config YAML file, then the PORT and
BOOKSHELF_UPSTREAM_URL environment variables, then built-in defaults.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a bookshelf YAML config file")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log at debug level")

	rootCmd.AddCommand(storeCmd, gatewayCmd, allCmd)
}

// serviceFlags are the per-service flags shared by store and gateway.
type serviceFlags struct {
	port     int
	latency  time.Duration
	failRate float64
}

func (f *serviceFlags) register(fs *pflag.FlagSet, defPort int) {
	fs.IntVar(&f.port, "port", defPort, "listen port (falls back to $PORT)")
	fs.DurationVar(&f.latency, "latency", 0, "latency injected into every resource response")
}

// registerFailRate adds --fail-rate. Only the store fails at random.
func (f *serviceFlags) registerFailRate(fs *pflag.FlagSet) {
	fs.Float64Var(&f.failRate, "fail-rate", 0, "probability (0.0-1.0) of a random 500")
}

// loadConfig reads --config. Flags are merged by the caller.
func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// changed reports whether the named flag was set on the command line.
func changed(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Changed(name)
}
