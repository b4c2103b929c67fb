package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creativecommons/quantify/internal/config"
	"github.com/creativecommons/quantify/internal/fetcher"
)

func TestResolveConfig_UnsetLimitTakesDefault(t *testing.T) {
	cfg, err := resolveConfig(fetchCommand, config.Config{})
	require.NoError(t, err)
	require.NotNil(t, cfg.Limit)
	assert.Equal(t, -1, *cfg.Limit)
	assert.Equal(t, []string{"google_custom_search", "github"}, cfg.Sources)
}

func TestResolveConfig_ExplicitZeroLimitIsKept(t *testing.T) {
	require.NoError(t, fetchCommand.Flags().Set("limit", "0"))

	cfg, err := resolveConfig(fetchCommand, config.Config{})
	require.NoError(t, err)
	require.NotNil(t, cfg.Limit)
	assert.Equal(t, 0, *cfg.Limit)
}

func TestBuildPagers_OrderFollowsConfiguration(t *testing.T) {
	creds := config.Credentials{GCSDeveloperKey: "key", GCSCx: "cx", GitHubToken: "token"}

	pagers, err := buildPagers(context.Background(),
		[]string{"github", "google_custom_search"}, creds)
	require.NoError(t, err)
	require.Len(t, pagers, 2)
	assert.Equal(t, "github", pagers[0].Source())
	assert.Equal(t, "google_custom_search", pagers[1].Source())
}

func TestBuildPagers_UnknownSource(t *testing.T) {
	creds := config.Credentials{GitHubToken: "token"}

	_, err := buildPagers(context.Background(), []string{"bing"}, creds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown source "bing"`)
}

func TestBuildPagers_MissingCredentialIsAuthError(t *testing.T) {
	_, err := buildPagers(context.Background(), []string{"github"}, config.Credentials{})
	require.Error(t, err)

	var authErr *fetcher.AuthError
	assert.ErrorAs(t, err, &authErr)
}
