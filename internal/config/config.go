package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "GRAFT_"
	defaultDataDir = "./data"
)

type Config struct {
	Host          string       `mapstructure:"host"`
	Port          int          `mapstructure:"port"`
	DataDir       string       `mapstructure:"dataDir"`
	DBPath        string       `mapstructure:"dbPath"`
	LogLevel      string       `mapstructure:"logLevel"`
	LogPath       string       `mapstructure:"logPath"`
	LogMaxSize    int          `mapstructure:"logMaxSize"`
	LogMaxBackups int          `mapstructure:"logMaxBackups"`
	Reseed        ReseedConfig `mapstructure:"reseed"`
}

type ReseedConfig struct {
	DefaultPaused     bool `mapstructure:"defaultPaused"`
	RequestIntervalMs int  `mapstructure:"requestIntervalMs"`
	MaxPerRun         int  `mapstructure:"maxPerRun"`
}

type AppConfig struct {
	Config *Config
	viper  *viper.Viper
}

// New loads the configuration from defaults, the config file, and GRAFT_*
// environment variables, in increasing precedence. configPath may name a
// .toml file or a directory holding config.toml; empty searches the working
// directory and the data directory.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &Config{},
	}

	c.defaults()
	c.bindEnv()

	if err := c.load(configPath); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "0.0.0.0")
	c.viper.SetDefault("port", 3000)
	c.viper.SetDefault("dataDir", defaultDataDir)
	c.viper.SetDefault("logLevel", "info")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("reseed.defaultPaused", false)
	c.viper.SetDefault("reseed.requestIntervalMs", 500)
	c.viper.SetDefault("reseed.maxPerRun", 100)
}

func (c *AppConfig) bindEnv() {
	for key, env := range map[string]string{
		"host":                     "HOST",
		"port":                     "PORT",
		"dataDir":                  "DATA_DIR",
		"dbPath":                   "DB_PATH",
		"logLevel":                 "LOG_LEVEL",
		"logPath":                  "LOG_PATH",
		"logMaxSize":               "LOG_MAX_SIZE",
		"logMaxBackups":            "LOG_MAX_BACKUPS",
		"reseed.defaultPaused":     "RESEED_DEFAULT_PAUSED",
		"reseed.requestIntervalMs": "RESEED_REQUEST_INTERVAL_MS",
		"reseed.maxPerRun":         "RESEED_MAX_PER_RUN",
	} {
		c.viper.BindEnv(key, envPrefix+env)
	}
}

func (c *AppConfig) load(configPath string) error {
	if configPath != "" {
		resolved := c.resolveConfigPath(configPath)
		if _, err := os.Stat(resolved); os.IsNotExist(err) {
			// No file yet, run on defaults and environment.
			return nil
		}
		c.viper.SetConfigFile(resolved)
		return c.viper.ReadInConfig()
	}

	c.viper.SetConfigName("config")
	c.viper.SetConfigType("toml")
	c.viper.AddConfigPath(".")
	if dir := os.Getenv(envPrefix + "DATA_DIR"); dir != "" {
		c.viper.AddConfigPath(dir)
	} else {
		c.viper.AddConfigPath(defaultDataDir)
	}

	err := c.viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// resolveConfigPath turns a file-or-directory argument into a config file
// path. Anything ending in .toml, or an existing plain file, is used as-is;
// everything else is treated as a directory holding config.toml.
func (c *AppConfig) resolveConfigPath(input string) string {
	if strings.HasSuffix(strings.ToLower(input), ".toml") {
		return input
	}
	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		return input
	}
	return filepath.Join(input, "config.toml")
}

// GetDatabasePath returns the SQLite database location: dbPath when set,
// otherwise graft.db inside the data directory.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DBPath != "" {
		return c.Config.DBPath
	}
	return filepath.Join(c.Config.DataDir, "graft.db")
}

// SetDataDir overrides the data directory, typically from a CLI flag.
func (c *AppConfig) SetDataDir(dir string) {
	c.Config.DataDir = dir
	c.viper.Set("dataDir", dir)
}

// RequestInterval returns the pause between site requests during a reseed
// run.
func (c *AppConfig) RequestInterval() time.Duration {
	ms := c.Config.Reseed.RequestIntervalMs
	if ms <= 0 {
		ms = 500
	}
	return time.Duration(ms) * time.Millisecond
}

// Watch re-applies the log level when the config file changes on disk.
// Other keys need a restart.
func (c *AppConfig) Watch() {
	if c.viper.ConfigFileUsed() == "" {
		return
	}

	c.viper.OnConfigChange(func(_ fsnotify.Event) {
		fresh := &Config{}
		if err := c.viper.Unmarshal(fresh); err != nil {
			log.Error().Err(err).Msg("Failed to reload config")
			return
		}
		c.applyConfigChange(fresh)
	})
	c.viper.WatchConfig()
	log.Debug().Str("file", c.viper.ConfigFileUsed()).Msg("Watching config file")
}

func (c *AppConfig) applyConfigChange(fresh *Config) {
	if !strings.EqualFold(fresh.LogLevel, c.Config.LogLevel) {
		c.Config.LogLevel = fresh.LogLevel
		setLogLevel(fresh.LogLevel)
		log.Info().Str("logLevel", fresh.LogLevel).Msg("Log level updated")
	}
}
