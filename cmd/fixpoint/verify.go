package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/fixpoint/internal/cli"
	"github.com/aretw0/fixpoint/internal/config"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/observability"
)

var errUnsafe = errors.New("target states are reachable")

var verifyCmd = &cobra.Command{
	Use:   "verify <program>",
	Short: "Explore a program and report reachable target states",
	Long: `Loads a program description (YAML or JSON), explores it until a fixpoint
is reached and prints the run report. The report is also saved to the
configured store.

Exits with a non-zero status when a target state is reachable or the run
did not complete.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		program, name, err := cli.LoadProgram(args[0])
		if err != nil {
			return err
		}

		store, closeStore, err := cli.OpenStore(cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()

		reg := prometheus.NewRegistry()
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}

		v, err := cli.BuildVerifier(program, cli.VerifyOptions{
			Config: cfg,
			Logger: logger,
			Hooks:  observability.Chain(metrics.Hooks(), observability.LoggingHooks(logger)),
			Store:  store,
			Name:   name,
		})
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		res, runErr := v.Run(ctx)
		if res == nil {
			return runErr
		}
		if sig := ctx.Signal(); sig != nil {
			cli.PrintSystemMessage(os.Stderr, "Interrupted by %s, report is partial.", sig)
		}

		jsonMode, _ := cmd.Flags().GetBool("json")
		if jsonMode {
			if err := cli.WriteJSON(cmd.OutOrStdout(), res.Report); err != nil {
				return err
			}
		} else {
			cli.PrintReport(cmd.OutOrStdout(), res.Report)
		}

		if path, _ := cmd.Flags().GetString("metrics-out"); path != "" {
			if err := prometheus.WriteToTextfile(path, reg); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}

		if runErr != nil {
			return runErr
		}
		switch {
		case res.Outcome.Status != domain.StatusCompleted:
			return fmt.Errorf("run %s", res.Outcome)
		case len(res.Targets) > 0:
			return fmt.Errorf("%w: %d found", errUnsafe, len(res.Targets))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	addAnalysisFlags(verifyCmd)
	verifyCmd.Flags().Bool("json", false, "Print the report as JSON")
	verifyCmd.Flags().String("metrics-out", "", "Write Prometheus metrics of the run to this file")
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().String("waitlist", "", "Waitlist order: dfs, bfs or distance")
	cmd.Flags().Bool("stop-at-first-target", false, "Stop exploring once a target state is found")
	cmd.Flags().Int("max-iterations", 0, "Interrupt the run after this many iterations (0 = unbounded)")
	cmd.Flags().Bool("no-bam", false, "Inline function calls instead of using the block cache")
	cmd.Flags().String("recursion", "", "Recursion policy of the block cache: fail or fixpoint")
	cmd.Flags().StringSlice("cpa", nil, "Analyses to combine, in order (e.g. location,value)")
}

// applyAnalysisFlags overrides the config with the flags set on the command line.
func applyAnalysisFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("waitlist") {
		cfg.Analysis.Waitlist, _ = flags.GetString("waitlist")
	}
	if flags.Changed("stop-at-first-target") {
		cfg.Analysis.StopAtFirstTarget, _ = flags.GetBool("stop-at-first-target")
	}
	if flags.Changed("max-iterations") {
		cfg.Analysis.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Changed("no-bam") {
		noBAM, _ := flags.GetBool("no-bam")
		cfg.BAM.Enabled = !noBAM
	}
	if flags.Changed("recursion") {
		cfg.BAM.Recursion, _ = flags.GetString("recursion")
	}
	if flags.Changed("cpa") {
		cfg.Analysis.CPAs, _ = flags.GetStringSlice("cpa")
	}
	return cfg.Validate()
}
