package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("BROWSERD_PORT", "9400")
	t.Setenv("BROWSER_HEADLESS", "true")

	cmd := rootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "9500", "--profile", "/tmp/p", "--dev"}))

	var f flags
	f.port, _ = cmd.Flags().GetString("port")
	f.profile, _ = cmd.Flags().GetString("profile")
	f.dev, _ = cmd.Flags().GetBool("dev")

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)

	assert.Equal(t, "9500", cfg.Server.Port)
	assert.Equal(t, "/tmp/p", cfg.Browser.ProfileDir)
	assert.True(t, cfg.Browser.Headless, "unset flags leave env values alone")
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestSessionAndDomainFlags(t *testing.T) {
	cmd := rootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{
		"--profile", "/tmp/p", "--session", "work",
		"--allow-domain", "example.com", "--allow-domain", "example.org",
	}))

	var f flags
	f.profile, _ = cmd.Flags().GetString("profile")
	f.session, _ = cmd.Flags().GetString("session")
	f.domains, _ = cmd.Flags().GetStringSlice("allow-domain")

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/tmp/p", "work"), cfg.ProfilePath())
	assert.Equal(t, []string{"example.com", "example.org"}, cfg.Browser.AllowedDomains)
}

func TestInvalidFlagValue(t *testing.T) {
	cmd := rootCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "abc"}))

	_, err := loadConfig(cmd, flags{port: "abc"})
	assert.Error(t, err)
}
