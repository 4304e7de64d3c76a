package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/fixpoint"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fixpoint",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fixpoint version %s\n", strings.TrimSpace(fixpoint.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
