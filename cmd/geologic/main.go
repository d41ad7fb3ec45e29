// Package main is the entry point for the geologic CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scape1989/geo-logic/internal/config"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geologic",
		Short:         "Verify geometric construction tool catalogues",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), checkCmd(), verifyCmd(), failuresCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("geologic %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <catalogue>",
		Short: "Validate a tool catalogue without verifying proofs",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			loaded, err := config.Load(args[0], nil)
			if err != nil {
				return err
			}

			proved := 0
			for _, t := range loaded.Tools {
				if t.HasProof() {
					proved++
				}
			}
			fmt.Printf("%s: %d tools (%d with proofs), %d capabilities registered\n",
				args[0], len(loaded.Tools), proved, loaded.Registry.Len())
			return nil
		},
	}
}
