package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/fixpoint/internal/cli"
	"github.com/aretw0/fixpoint/internal/validator"
	"github.com/aretw0/fixpoint/pkg/cfa"
)

var validateCmd = &cobra.Command{
	Use:   "validate <program>",
	Short: "Check the program for consistency",
	Long: `Checks that every function has an entry and an exit, that calls return
into their caller and that each function forms a closed block. Unreachable
locations are reported as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program, _, err := cli.LoadProgram(args[0])
		if err != nil {
			return err
		}

		res := validator.ValidateCFA(program, cfa.FunctionBlocks(program))
		for _, w := range res.Warnings {
			fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w)
		}
		if err := res.Err(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Program is valid!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
