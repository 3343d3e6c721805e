package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/api"
	"github.com/rknell/vibe-coder-sub002/internal/config"
	"github.com/rknell/vibe-coder-sub002/internal/mcptools"
	"github.com/rknell/vibe-coder-sub002/internal/models"
	"github.com/rknell/vibe-coder-sub002/internal/runtime"
	"github.com/rknell/vibe-coder-sub002/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger. The MCP transport owns stdout, so logs go to
	// stderr in both modes.
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Logger()
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	// Initialize persistence
	queue := store.NewWriteQueue(store.QueueConfig{}, logger)
	defer queue.Stop()
	files := store.NewFileStore(queue, logger)

	// Load models
	reg := models.NewRegistry(files, cfg.AgentsDir(), cfg.ServersDir(),
		runtime.DefaultFactory(cfg.IsDevelopment(), logger), logger)
	if err := reg.Load(); err != nil {
		logger.Fatal().Err(err).Msg("registry load failed")
	}
	defer reg.Dispose()

	prefs := models.NewLayoutPreferences(files, cfg.PreferencesPath(), logger)
	if err := prefs.Load(); err != nil {
		// Preferences are best-effort; a load failure is not fatal.
		logger.Warn().Err(err).Msg("layout preferences load failed, using defaults")
	}

	// Build MCP server
	mcpServer, err := mcptools.NewServer(cfg.MCPServerName, cfg.MCPServerVersion, reg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("mcp server setup failed")
	}

	// Admin HTTP server
	router := api.NewRouter(logger, reg, cfg)
	srv := &http.Server{
		Addr:         ":" + cfg.AdminPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.AdminPort).
			Str("env", cfg.Env).
			Msg("starting admin server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("admin server failed to start")
		}
	}()

	// MCP stdio transport; exits on stdin EOF.
	mcpDone := make(chan error, 1)
	go func() {
		logger.Info().Str("name", cfg.MCPServerName).Msg("starting MCP stdio server")
		mcpDone <- mcptools.Serve(mcpServer)
	}()

	// Wait for interrupt signal or MCP transport exit
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info().Msg("shutting down...")
	case err := <-mcpDone:
		if err != nil {
			logger.Error().Err(err).Msg("mcp server stopped")
		} else {
			logger.Info().Msg("mcp server stopped")
		}
	}

	// Graceful shutdown with timeout; the deferred queue.Stop drains
	// pending writes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server forced to shutdown")
	}

	logger.Info().Msg("stopped")
}
