package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/creativecommons/quantify/internal/config"
	"github.com/creativecommons/quantify/internal/fetcher"
	"github.com/creativecommons/quantify/internal/gitops"
	"github.com/creativecommons/quantify/internal/pipeline"
	"github.com/creativecommons/quantify/internal/retry"
	"github.com/creativecommons/quantify/internal/sources/githubsearch"
	"github.com/creativecommons/quantify/internal/sources/googlecse"
)

var fetchCommand = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch license-usage counts and snapshot them",
	Long: `Runs one fetch -> (save) -> (publish) pipeline over the configured sources.

Without --enable-save the run is a dry run: records are fetched and reported, then discarded.
Without --enable-git no commit or push happens.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.`,
	RunE: runFetchCmd,
}

var (
	fetchConfigPath  string
	fetchSources     []string
	fetchLimit       int
	fetchEnableSave  bool
	fetchEnableGit   bool
	fetchDataDir     string
	fetchRepoDir     string
	fetchCommitName  string
	fetchCommitEmail string
	fetchVerbose     bool
)

func init() {
	// Config file flag (processed first)
	fetchCommand.Flags().StringVar(&fetchConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	fetchCommand.Flags().StringSliceVar(&fetchSources, "sources", nil, "Sources to fetch (google_custom_search, github); defaults to all")
	fetchCommand.Flags().IntVar(&fetchLimit, "limit", -1, "Maximum records per source this run (-1 for the full plan)")
	fetchCommand.Flags().BoolVar(&fetchEnableSave, "enable-save", false, "Write snapshot files to the data tree")
	fetchCommand.Flags().BoolVar(&fetchEnableGit, "enable-git", false, "Commit and push written snapshot files")
	fetchCommand.Flags().StringVar(&fetchDataDir, "data-dir", "data", "Root of the snapshot data tree")
	fetchCommand.Flags().StringVar(&fetchRepoDir, "repo-dir", ".", "Git checkout to publish from")
	fetchCommand.Flags().StringVar(&fetchCommitName, "commit-name", "", "Commit author name (service identity)")
	fetchCommand.Flags().StringVar(&fetchCommitEmail, "commit-email", "", "Commit author email (service identity)")
	fetchCommand.Flags().BoolVarP(&fetchVerbose, "verbose", "v", false, "Print detailed debug information")

	rootCmd.AddCommand(fetchCommand)
}

func runFetchCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	// Step 1: Load config file if provided
	var cfg config.Config
	if fetchConfigPath != "" {
		loadedCfg, err := config.LoadConfig(fetchConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
		if fetchVerbose {
			_, _ = fmt.Fprintf(os.Stdout, "Loaded config from: %s\n", fetchConfigPath)
		}
	}

	// Steps 2-4: layer explicit flags over the file, fill the gaps from
	// defaults, validate the result
	cfg, err := resolveConfig(cmd, cfg)
	if err != nil {
		return err
	}

	// Step 5: Credentials are checked for every selected source before
	// any fetch attempt; a missing credential fails the run here.
	creds := config.CredentialsFromEnv()
	for _, source := range cfg.Sources {
		if err := creds.Check(source); err != nil {
			return err
		}
	}

	pagers, err := buildPagers(ctx, cfg.Sources, creds)
	if err != nil {
		return err
	}

	opts := pipeline.RunOptions{
		Pagers:     pagers,
		Limit:      *cfg.Limit,
		EnableSave: cfg.EnableSave,
		EnableGit:  cfg.EnableGit,
		DataDir:    cfg.DataDir,
		Policy:     retry.DefaultPolicy(),
		Verbose:    cfg.Verbose,
		Out:        os.Stdout,
	}
	if cfg.EnableGit {
		publisher := &gitops.Publisher{
			RepoDir: cfg.RepoDir,
			Author:  gitops.Author{Name: cfg.CommitName, Email: cfg.CommitEmail},
		}
		// Bring the checkout up to date before writing snapshots into it,
		// so the eventual push lands on the remote's current history.
		if err := publisher.SyncRemote(ctx); err != nil {
			return fmt.Errorf("pre-run sync with remote failed: %w", err)
		}
		opts.Publisher = publisher
	}

	report, err := pipeline.Run(ctx, opts)
	if report != nil && report.Failed() {
		return fmt.Errorf("run %s failed: %w", report.RunID, err)
	}
	return err
}

// resolveConfig applies explicitly-set CLI flags over cfg (command-line
// args take priority), fills remaining gaps from the built-in defaults,
// and validates the merged result.
func resolveConfig(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	if cmd.Flags().Changed("sources") {
		cfg.Sources = fetchSources
	}
	if cmd.Flags().Changed("limit") {
		// Pointer so an explicit --limit 0 is not mistaken for unset
		// when defaults are merged in below.
		cfg.Limit = &fetchLimit
	}
	if cmd.Flags().Changed("enable-save") {
		cfg.EnableSave = fetchEnableSave
	}
	if cmd.Flags().Changed("enable-git") {
		cfg.EnableGit = fetchEnableGit
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = fetchDataDir
	}
	if cmd.Flags().Changed("repo-dir") {
		cfg.RepoDir = fetchRepoDir
	}
	if cmd.Flags().Changed("commit-name") {
		cfg.CommitName = fetchCommitName
	}
	if cmd.Flags().Changed("commit-email") {
		cfg.CommitEmail = fetchCommitEmail
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = fetchVerbose
	}

	defaults := config.Config{
		Sources:     []string{googlecse.SourceName, githubsearch.SourceName},
		Limit:       config.Int(-1),
		DataDir:     "data",
		RepoDir:     ".",
		CommitName:  "CC Quantify Bot",
		CommitEmail: "quantify-bot@creativecommons.org",
	}
	cfg = cfg.MergeWithDefaults(defaults)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// buildPagers constructs one pager per selected source, in the order
// the sources were configured.
func buildPagers(ctx context.Context, sources []string, creds config.Credentials) ([]fetcher.Pager, error) {
	var pagers []fetcher.Pager
	for _, source := range sources {
		switch source {
		case googlecse.SourceName:
			pager, err := googlecse.NewPager(ctx, googlecse.Config{
				APIKey: creds.GCSDeveloperKey,
				CX:     creds.GCSCx,
			})
			if err != nil {
				return nil, err
			}
			pagers = append(pagers, pager)
		case githubsearch.SourceName:
			pager, err := githubsearch.NewPager(githubsearch.Config{Token: creds.GitHubToken})
			if err != nil {
				return nil, err
			}
			pagers = append(pagers, pager)
		default:
			return nil, fmt.Errorf("unknown source %q (expected one of: %s)",
				source, strings.Join([]string{googlecse.SourceName, githubsearch.SourceName}, ", "))
		}
	}
	return pagers, nil
}
