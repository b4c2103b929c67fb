package config

import (
	"os"

	"github.com/creativecommons/quantify/internal/fetcher"
	"github.com/creativecommons/quantify/internal/sources/githubsearch"
	"github.com/creativecommons/quantify/internal/sources/googlecse"
)

// Credentials holds the per-source API credentials. They are read from
// the environment exactly once at startup and passed explicitly into
// each source's constructor, keeping the sources testable with mock
// credentials.
type Credentials struct {
	GCSDeveloperKey string // GCS_DEVELOPER_KEY
	GCSCx           string // GCS_CX
	GitHubToken     string // GITHUB_TOKEN
}

// CredentialsFromEnv reads all source credentials from the environment.
func CredentialsFromEnv() Credentials {
	return Credentials{
		GCSDeveloperKey: os.Getenv("GCS_DEVELOPER_KEY"),
		GCSCx:           os.Getenv("GCS_CX"),
		GitHubToken:     os.Getenv("GITHUB_TOKEN"),
	}
}

// Check verifies that the credentials needed for a source are present.
// A missing credential is an AuthError, raised before any fetch attempt.
func (c Credentials) Check(source string) error {
	switch source {
	case googlecse.SourceName:
		if c.GCSDeveloperKey == "" || c.GCSCx == "" {
			return &fetcher.AuthError{
				Source:  source,
				Message: "GCS_DEVELOPER_KEY and GCS_CX must be set",
			}
		}
	case githubsearch.SourceName:
		if c.GitHubToken == "" {
			return &fetcher.AuthError{
				Source:  source,
				Message: "GITHUB_TOKEN must be set",
			}
		}
	}
	return nil
}
