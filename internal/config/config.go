// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Int returns a pointer to v, for setting optional numeric fields.
func Int(v int) *int {
	return &v
}

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
// Limit is a pointer so an explicit zero survives merging with defaults.
type Config struct {
	// Run parameters
	Sources    []string `json:"sources,omitempty" validate:"omitempty,dive,oneof=google_custom_search github"`
	Limit      *int     `json:"limit,omitempty" validate:"omitempty,gte=-1"`
	EnableSave bool     `json:"enable_save,omitempty"`
	EnableGit  bool     `json:"enable_git,omitempty"`

	// Paths
	DataDir string `json:"data_dir,omitempty"` // Snapshot tree root
	RepoDir string `json:"repo_dir,omitempty"` // Git checkout to publish from

	// Commit identity (service account, not user input)
	CommitName  string `json:"commit_name,omitempty"`
	CommitEmail string `json:"commit_email,omitempty" validate:"omitempty,email"`

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// Publishing needs a git checkout to work in
	if c.EnableGit && c.RepoDir != "" {
		if _, err := os.Stat(c.RepoDir); os.IsNotExist(err) {
			return fmt.Errorf("config error: repo directory not found: %s", c.RepoDir)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if len(result.Sources) == 0 {
		result.Sources = defaults.Sources
	}
	if result.Limit == nil {
		result.Limit = defaults.Limit
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.RepoDir == "" {
		result.RepoDir = defaults.RepoDir
	}
	if result.CommitName == "" {
		result.CommitName = defaults.CommitName
	}
	if result.CommitEmail == "" {
		result.CommitEmail = defaults.CommitEmail
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
