// Package main provides the entry point for the quantify CLI, the
// scheduled pipeline that snapshots Creative Commons license-usage
// counts from external APIs into the data tree.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/creativecommons/quantify/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "quantify",
	Short: "Quantifying the Commons data collection",
	Long:  "Quantify collects Creative Commons license-usage counts from external search and code-host APIs, writes dated CSV snapshots, and commits them to the surrounding git checkout.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(pipeline.ExitCodeFor(err))
	}
}
