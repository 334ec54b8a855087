// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/queuesync/internal/api/ws"
	"github.com/osa030/queuesync/internal/app/notification"
	"github.com/osa030/queuesync/internal/app/playback"
	"github.com/osa030/queuesync/internal/app/session"
	"github.com/osa030/queuesync/internal/infra/config"
	"github.com/osa030/queuesync/internal/infra/logger"
	"github.com/osa030/queuesync/internal/infra/spotify"
	"github.com/osa030/queuesync/internal/infra/store"
)

var (
	app        = kingpin.New("queuesync-server", "queuesync playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stderr)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Initialize logger
	loggerConfig := logger.Config{Level: "info", File: *logfile}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	// Load config
	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open record store
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Create Spotify catalog (optional)
	var catalog session.Catalog
	if cfg.HasSpotify() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify client: %w", err)
		}
		catalog = client
	} else {
		zlog.Info().Msg("Spotify not configured, album/artist/search playback disabled")
	}

	// Create media session and restore the last queue
	sess := session.New(st, catalog, session.Config{
		BufferAhead:   cfg.Playback.BufferAhead(),
		SaveDebounce:  cfg.Playback.SaveDebounce(),
		GapCorrection: cfg.Playback.GapCorrection(),
	})
	if !cfg.Playback.SkipRestore {
		if err := sess.Restore(ctx); err != nil {
			zlog.Warn().Msgf("Failed to restore queue: %v", err)
		}
	}

	// Create playback connection and feed hub
	conn := playback.NewConnection(st, sess, playback.Config{
		ProgressInterval: cfg.Playback.ProgressInterval(),
	})
	hub := notification.NewManager()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := conn.Run(ctx); err != nil {
			zlog.Error().Msgf("Playback connection stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		notification.Relay(ctx, hub, conn)
	}()

	if err := sess.Connect(conn); err != nil {
		return fmt.Errorf("failed to connect to session: %w", err)
	}
	zlog.Info().Msgf("Session connected: id=%s", sess.ID())

	// Create server with h2c (HTTP/2 cleartext) support
	handler := ws.NewHandler(hub, conn, st)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(handler.Routes(), &http2.Server{}),
	}

	// Channel to capture server startup errors
	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	// Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close websocket clients first, they are not tracked by Shutdown
	handler.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	// Session close flushes the pending queue save
	if err := sess.Close(); err != nil {
		zlog.Error().Msgf("Failed to close session: %v", err)
	}
	cancel()
	wg.Wait()
	hub.Close()

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
