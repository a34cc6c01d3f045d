package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaultsForMissingFields(t *testing.T) {
	path := writeConfigFile(t, `{"storage_root": "/data/repolex"}`)

	cfg, err := Load(path, viper.New())
	require.NoError(t, err)

	assert.Equal(t, "/data/repolex", cfg.StorageRoot)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, 300, cfg.ProcessingTimeoutSeconds)
	assert.Equal(t, 10, cfg.MaxFileSizeMB)
	assert.Equal(t, 4, cfg.MaxConcurrentParsers)
	assert.Equal(t, 30, cfg.QueryTimeoutSeconds)
	assert.True(t, cfg.RequireConfirmationForDestructive)
}

func TestLoadRejectsOutOfRangeBound(t *testing.T) {
	path := writeConfigFile(t, `{"storage_root": "/data/repolex", "max_concurrent_parsers": 64}`)

	_, err := Load(path, viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_parsers")
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeConfigFile(t, `{"storage_root": "/data/repolex", "log_level": "verbose"}`)

	_, err := Load(path, viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestLoadWithNoFileStillAppliesDefaultsAndPasses(t *testing.T) {
	cfg, err := Load("", viper.New())
	require.NoError(t, err)
	assert.Equal(t, Defaults().StorageRoot, cfg.StorageRoot)
}

func TestLoadHonorsPreboundFlagOverDefault(t *testing.T) {
	v := viper.New()
	v.Set("storage_root", "/flag/overridden")

	cfg, err := Load("", v)
	require.NoError(t, err)
	assert.Equal(t, "/flag/overridden", cfg.StorageRoot)
}

func TestValidatorAccumulatesAllErrors(t *testing.T) {
	err := Validate(Config{
		StorageRoot:               "",
		LogLevel:                  "bogus",
		ProcessingTimeoutSeconds:  1,
		MaxFileSizeMB:             0,
		MaxConcurrentParsers:      0,
		QueryTimeoutSeconds:       1,
	})
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "storage_root")
	assert.Contains(t, msg, "log_level")
	assert.Contains(t, msg, "processing_timeout_seconds")
}
