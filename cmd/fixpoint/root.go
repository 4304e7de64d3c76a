package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/fixpoint/internal/config"
	"github.com/aretw0/fixpoint/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "fixpoint",
	Short: "Fixpoint explores the reachable states of a program",
	Long: `Fixpoint runs a configurable program analysis over a control-flow automaton
until no new abstract states appear, reusing the results of function calls
through a block cache.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().String("log-level", "", "Log to stderr at debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	name, _ := cmd.Flags().GetString("log-level")
	if name == "" {
		return logging.NewNop(), nil
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}
