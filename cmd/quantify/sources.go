package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/creativecommons/quantify/internal/observability"
	"github.com/creativecommons/quantify/internal/sources/githubsearch"
	"github.com/creativecommons/quantify/internal/sources/googlecse"
)

var sourcesCommand = &cobra.Command{
	Use:   "sources",
	Short: "List the registered data sources and their query plans",
	Run:   runSourcesCmd,
}

func init() {
	rootCmd.AddCommand(sourcesCommand)
}

func runSourcesCmd(_ *cobra.Command, _ []string) {
	printer := observability.NewPrinter(os.Stdout)
	printer.PrintPlan(googlecse.SourceName, googlecse.DefaultPlan())
	printer.PrintPlan(githubsearch.SourceName, githubsearch.DefaultPlan())
}
