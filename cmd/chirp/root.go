package main

import (
	"context"

	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Chirp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chirp",
		Short: "Chirp - a small social feed with wallet login",
		Long: `Chirp serves a social feed API with password and Ethereum wallet
sign-in. The same binary runs the server and acts as a client for it.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewKeygenCmd())
	cmd.AddCommand(NewSignCmd())
	cmd.AddCommand(NewWalletLoginCmd())
	cmd.AddCommand(NewPostCmd())
	cmd.AddCommand(NewReadCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("chirp %s (commit: %s, built: %s)\n", version, commit, date)
			return nil
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
