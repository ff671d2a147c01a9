package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefaultConfig(t *testing.T) {
	tests := []struct {
		name            string
		existingFile    bool
		validateContent func(t *testing.T, content string)
	}{
		{
			name: "create_new_config",
			validateContent: func(t *testing.T, content string) {
				assert.Contains(t, content, "# config.toml")
				assert.Contains(t, content, "host =")
				assert.Contains(t, content, "port =")
				assert.Contains(t, content, "logLevel =")
				assert.Contains(t, content, "[reseed]")
			},
		},
		{
			name:         "skip_existing_config",
			existingFile: true,
			validateContent: func(t *testing.T, content string) {
				assert.Equal(t, "existing content", content)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.toml")

			if tt.existingFile {
				require.NoError(t, os.WriteFile(configPath, []byte("existing content"), 0o644))
			}

			require.NoError(t, WriteDefaultConfig(configPath))

			content, err := os.ReadFile(configPath)
			require.NoError(t, err)
			tt.validateContent(t, string(content))
		})
	}
}

func TestWriteDefaultConfigCreatesDirectories(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "deeper", "config.toml")

	require.NoError(t, WriteDefaultConfig(configPath))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

// TestGeneratedConfigLoads makes sure the template stays parseable and in
// sync with the defaults.
func TestGeneratedConfigLoads(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, WriteDefaultConfig(configPath))

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Config.Host)
	assert.Equal(t, 3000, cfg.Config.Port)
	assert.Equal(t, "./data", cfg.Config.DataDir)
	assert.Equal(t, "info", cfg.Config.LogLevel)
	assert.Equal(t, 500, cfg.Config.Reseed.RequestIntervalMs)
	assert.Equal(t, 100, cfg.Config.Reseed.MaxPerRun)
}
