package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/fixpoint/internal/cli"
	"github.com/aretw0/fixpoint/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <program>",
	Short: "Export the program or its exploration as a Mermaid diagram",
	Long: `Prints a Mermaid flowchart of the control-flow automaton. With --overlay the
program is verified first and reached and target locations are highlighted.
With --arg the abstract reachability graph of the run is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program, name, err := cli.LoadProgram(args[0])
		if err != nil {
			return err
		}

		overlay, _ := cmd.Flags().GetBool("overlay")
		arg, _ := cmd.Flags().GetBool("arg")
		if !overlay && !arg {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateCFA(program, nil))
			return nil
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyAnalysisFlags(cmd, &cfg); err != nil {
			return err
		}
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}

		v, err := cli.BuildVerifier(program, cli.VerifyOptions{Config: cfg, Logger: logger, Name: name})
		if err != nil {
			return err
		}
		res, err := v.Run(context.Background())
		if err != nil && res == nil {
			return err
		}
		if err != nil {
			logger.Warn("run did not complete, graph is partial", "error", err)
		}

		if arg {
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateARG(res.Reached))
			return nil
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateCFA(program, graph.OverlayFor(res.Reached)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addAnalysisFlags(graphCmd)
	graphCmd.Flags().Bool("overlay", false, "Verify first and highlight reached and target locations")
	graphCmd.Flags().Bool("arg", false, "Print the abstract reachability graph of a run")
}
