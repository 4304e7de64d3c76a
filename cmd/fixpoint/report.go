package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/fixpoint/internal/cli"
	"github.com/aretw0/fixpoint/pkg/ports"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Manage saved run reports",
}

var reportListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List saved reports",
	RunE: withStore(func(cmd *cobra.Command, store ports.ReportStore, args []string) error {
		ids, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No reports found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}),
}

var reportInspectCmd = &cobra.Command{
	Use:   "inspect <id>",
	Short: "Show a saved report",
	Args:  cobra.ExactArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store ports.ReportStore, args []string) error {
		report, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
			return cli.WriteJSON(cmd.OutOrStdout(), report)
		}
		cli.PrintReport(cmd.OutOrStdout(), report)
		return nil
	}),
}

var reportRemoveCmd = &cobra.Command{
	Use:     "rm <id>...",
	Aliases: []string{"delete"},
	Short:   "Delete saved reports",
	Args:    cobra.MinimumNArgs(1),
	RunE: withStore(func(cmd *cobra.Command, store ports.ReportStore, args []string) error {
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete %s: %w", id, err)
			}
			cli.PrintSystemMessage(cmd.OutOrStdout(), "Report '%s' deleted.", id)
		}
		return nil
	}),
}

// withStore opens the configured report store around fn.
func withStore(fn func(cmd *cobra.Command, store ports.ReportStore, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, closeStore, err := cli.OpenStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()
		return fn(cmd, store, args)
	}
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportListCmd, reportInspectCmd, reportRemoveCmd)
	reportInspectCmd.Flags().Bool("json", false, "Print the report as JSON")
}
