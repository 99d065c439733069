package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mvdveer/fediviz/internal/auth"
	"github.com/mvdveer/fediviz/internal/config"
	"github.com/mvdveer/fediviz/internal/httpserver"
	"github.com/mvdveer/fediviz/internal/hub"
	"github.com/mvdveer/fediviz/internal/mastodon"
	"github.com/mvdveer/fediviz/internal/rdf"
	"github.com/mvdveer/fediviz/internal/webmention"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := rdf.Open()
	if err != nil {
		return fmt.Errorf("open graph store: %w", err)
	}
	defer store.Close()
	logger.Info("graph store ready")

	broadcast := hub.New(logger)
	mentions := webmention.NewService(broadcast, logger, nil)
	authenticator := auth.New(cfg.AdminSecretHash)
	if cfg.AdminSecretHash == "" {
		logger.Warn("ADMIN_SECRET_HASH not set, all privileged requests will be refused")
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the stream subscriber in the background
	subscriber := mastodon.NewSubscriber(cfg.StreamURL, cfg.AccessToken, store, broadcast, logger)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("stream subscriber exited with error", "error", err)
		}
	}()

	// Start the hashtag poller
	poller := mastodon.NewPoller(cfg.APIBaseURL, cfg.Hashtag, broadcast, logger, nil)
	go poller.Start(ctx)

	// Start the HTTP server
	server := httpserver.NewServer(cfg, store, mentions, authenticator, broadcast, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "hashtag", cfg.Hashtag)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
