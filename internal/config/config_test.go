package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APPFORGE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, config.Forge.PollIntervalSeconds)
	assert.Equal(t, 1800, config.Forge.PollTimeoutSeconds)
	assert.Equal(t, 1000, config.Forge.HistoryMax)
	assert.False(t, config.IsTrace)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	err := ioutil.WriteFile(path, []byte("forge:\n  poll_interval_seconds: 2\n  s3_connection: s3://key:secret@s3.example.com/artifacts\n"), 0644)
	require.NoError(t, err)
	t.Setenv("APPFORGE_CONFIG_PATH", path)

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, config.Forge.PollIntervalSeconds)
	assert.Equal(t, 1800, config.Forge.PollTimeoutSeconds)
	assert.Equal(t, "s3://key:secret@s3.example.com/artifacts", config.Forge.S3Connection)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("APPFORGE_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yml"))
	t.Setenv("APPFORGE_POLL_TIMEOUT", "60")
	t.Setenv("APPFORGE_TRACE", "true")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60, config.Forge.PollTimeoutSeconds)
	assert.True(t, config.IsTrace)
}
