package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/bookshelf/internal/client"
	"github.com/wondertwin-ai/bookshelf/internal/config"
)

var adminAddr string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Talk to the admin endpoints of a running service",
}

var adminHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check GET /admin/health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, msg := client.New(adminAddr).Health(cmd.Context())
		if !ok {
			return errors.New("unhealthy: " + msg)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

var adminResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all books, faults and the request log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := client.New(adminAddr).Reset(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var adminStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the store's full state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := client.New(adminAddr).State(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var adminSeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: "Replace the store's state with a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := client.New(adminAddr).Seed(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminAddr, "addr",
		fmt.Sprintf("http://localhost:%d", config.DefaultStorePort), "base URL of the service")
	adminCmd.AddCommand(adminHealthCmd, adminResetCmd, adminStateCmd, adminSeedCmd)
	rootCmd.AddCommand(adminCmd)
}
