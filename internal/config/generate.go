package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const defaultConfig = `# config.toml

# Hostname / IP the HTTP server binds to.
#
# Default: "0.0.0.0"
#
host = "0.0.0.0"

# HTTP server port.
#
# Default: 3000
#
port = 3000

# Data directory. The SQLite database lives here unless dbPath is set.
#
# Default: "./data"
#
dataDir = "./data"

# Database path override.
#
# Optional
#
#dbPath = "/config/graft.db"

# Log level.
#
# Options: "trace", "debug", "info", "warn", "error"
#
# Default: "info"
#
logLevel = "info"

# Log file path. Empty logs to stderr only.
#
# Optional
#
#logPath = "log/graft.log"

# Max log file size in MB before rotation.
#
# Default: 50
#
#logMaxSize = 50

# Rotated log files to keep.
#
# Default: 3
#
#logMaxBackups = 3

[reseed]
# Add matched torrents to the target client in paused state.
#
# Default: false
#
defaultPaused = false

# Pause between torrent download requests to a site, in milliseconds.
#
# Default: 500
#
requestIntervalMs = 500

# Upper bound of matches attempted per execute run.
#
# Default: 100
#
maxPerRun = 100
`

// WriteDefaultConfig writes the commented default config file. An existing
// file is left untouched.
func WriteDefaultConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	return os.WriteFile(configPath, []byte(defaultConfig), 0o644)
}
