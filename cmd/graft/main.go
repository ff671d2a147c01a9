// Copyright (c) 2025, the graft contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/graftseed/graft/internal/api"
	"github.com/graftseed/graft/internal/btclient"
	"github.com/graftseed/graft/internal/config"
	"github.com/graftseed/graft/internal/database"
	"github.com/graftseed/graft/internal/metrics"
	"github.com/graftseed/graft/internal/models"
	"github.com/graftseed/graft/internal/services"
)

var Version = "dev"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "graft",
		Short: "A self-hosted cross-seeding engine for private trackers",
		Long: `graft - Index the torrents you already seed, match them against
other private trackers by content fingerprint, and inject the matches
back into your download client so the same data seeds everywhere.`,
	}

	// Initialize logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.Version = Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	// Running the binary bare starts the server
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configPath string
		dataDir    string
		logPath    string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the graft server",
		Long:  `Start the graft server with the admin API on the configured host and port.`,
	}

	command.Flags().StringVar(&configPath, "config", "", "config file or directory path (default is ./config.toml, then {dataDir}/config.toml)")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the database and other files (default ./data)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stderr only)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(Version, configPath, dataDir, logPath)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of graft",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configOut string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config is specified, the file is written to ./config.toml.

You can specify either a directory path or a direct file path:
- Directory: graft generate-config --config /path/to/config/
- File: graft generate-config --config /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := "config.toml"
			if configOut != "" {
				if strings.HasSuffix(strings.ToLower(configOut), ".toml") {
					configPath = configOut
				} else if info, err := os.Stat(configOut); err == nil && !info.IsDir() {
					configPath = configOut
				} else {
					configPath = filepath.Join(configOut, "config.toml")
				}
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configOut, "config", "",
		"config file or directory path (defaults to ./config.toml)")

	return command
}

type Application struct {
	version    string
	configPath string
	dataDir    string
	logPath    string
}

func NewApplication(version, configPath, dataDir, logPath string) *Application {
	return &Application{
		version:    version,
		configPath: configPath,
		dataDir:    dataDir,
		logPath:    logPath,
	}
}

func (app *Application) runServer() {
	log.Info().Str("version", app.version).Msg("Starting graft")

	// Initialize configuration
	cfg, err := config.New(app.configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided. The env mirror keeps the
	// override in effect across config hot-reloads.
	if app.dataDir != "" {
		os.Setenv("GRAFT_DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("GRAFT_LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}

	if err := cfg.ApplyLogConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logging")
	}
	cfg.Watch()

	// Initialize database
	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Initialize stores
	clientStore := models.NewClientStore(db.Conn())
	siteStore := models.NewSiteStore(db.Conn())
	indexStore := models.NewIndexStore(db.Conn())
	historyStore := models.NewHistoryStore(db.Conn())

	// Initialize BitTorrent client pool
	clientPool, err := btclient.NewClientPool(clientStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize client pool")
	}
	defer clientPool.Close()

	// Initialize services
	indexService := services.NewIndexService(indexStore, siteStore, clientPool)
	reseedService := services.NewReseedService(indexStore, siteStore, historyStore, clientPool).
		WithRequestInterval(cfg.RequestInterval()).
		WithDefaultPaused(cfg.Config.Reseed.DefaultPaused)

	metricsManager := metrics.NewManager(clientStore, siteStore, indexStore, historyStore, clientPool)
	log.Info().Msg("Prometheus metrics enabled at /metrics endpoint")

	// Connect to enabled clients on startup
	go func() {
		listCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		clients, err := clientStore.List(listCtx)
		cancel()

		if err != nil {
			log.Error().Err(err).Msg("Failed to get clients for startup connection")
			return
		}

		// Connect in parallel with separate timeouts
		for _, client := range clients {
			if !client.Enabled {
				continue
			}

			go func(clientID string) {
				connCtx, connCancel := context.WithTimeout(context.Background(), 60*time.Second)
				defer connCancel()

				// Trigger connection by trying to get the client,
				// which populates the pool
				if _, err := clientPool.GetClient(connCtx, clientID); err != nil {
					log.Debug().Err(err).Str("clientID", clientID).Msg("Failed to connect to client on startup")
				} else {
					log.Debug().Str("clientID", clientID).Msg("Successfully connected to client on startup")
				}
			}(client.ID)
		}
	}()

	// Create router dependencies
	deps := &api.Dependencies{
		Version:       app.version,
		ClientStore:   clientStore,
		SiteStore:     siteStore,
		IndexStore:    indexStore,
		HistoryStore:  historyStore,
		Pool:          clientPool,
		IndexService:  indexService,
		ReseedService: reseedService,
		Metrics:       metricsManager,
	}

	// Initialize router
	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  180 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", srv.Addr).
			Msg("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
