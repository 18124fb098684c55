// Package main provides the entry point for the newprstack CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/newpr-stack/cmd/newprstack/commands"
	"github.com/Sumatoshi-tech/newpr-stack/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newprstack",
		Short: "Decompose a pull request into a stack of dependency-ordered commits",
		Long: `newprstack splits the diff between a base and head commit into a DAG of
smaller, reviewable commits whose leaves jointly reproduce the original head
tree bit for bit.

Commands:
  stack     Decompose a commit range into a stacked DAG of branches`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewStackCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "newprstack %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
