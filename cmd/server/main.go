// Package main provides the wipbot server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Arimodu/wipbot/internal/api"
	"github.com/Arimodu/wipbot/internal/app/library"
	"github.com/Arimodu/wipbot/internal/app/manager"
	"github.com/Arimodu/wipbot/internal/infra/chat"
	"github.com/Arimodu/wipbot/internal/infra/config"
	"github.com/Arimodu/wipbot/internal/infra/logger"
)

var (
	app        = kingpin.New("wipbot-server", "WIP request queue and download server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	// Persist migrated settings so the next start skips the migrations.
	if err := cfg.Save(*configPath); err != nil {
		zlog.Warn().Msgf("Failed to save migrated config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	// Bring old library folders up to the current naming scheme before
	// anything starts serving.
	renamed, err := library.RenameLegacyFolders(cfg.Library.Dir)
	if err != nil {
		zlog.Warn().Msgf("Legacy folder scan failed: %v", err)
	}
	if renamed > 0 {
		zlog.Info().Msgf("Renamed %d legacy folders", renamed)
		library.RunHooks(cfg.Library.OnReindex, "on_reindex")
	}

	chatInteg, err := chat.New(chat.Config{
		Backend:  cfg.Chat.Backend,
		Settings: cfg.Chat.Settings,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat backend: %w", err)
	}

	mgr := manager.New(cfg, chatInteg)
	defer mgr.Close()

	apiServer := api.NewServer(mgr, cfg.Server.AdminToken)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(apiServer.Handler(), &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	chatErrCh := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		chatErrCh <- mgr.Run(ctx)
	}()

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	library.RunHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-chatErrCh:
		if err != nil && err != context.Canceled {
			zlog.Error().Msgf("Chat backend stopped: %v", err)
		} else {
			zlog.Info().Msg("Chat backend stopped, shutting down...")
		}
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	mgr.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	library.RunHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}
