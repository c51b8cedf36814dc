package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"liveclass/internal/api"
	"liveclass/internal/auth"
	"liveclass/internal/config"
	"liveclass/internal/gateway"
	"liveclass/internal/history"
	"liveclass/internal/room"
	"liveclass/internal/websocket"
	"liveclass/pkg/logger"
)

// Application wires the coordinator's components together.
// Initialization order: archive -> gateway -> directory -> auth/registry ->
// handler -> API -> HTTP.
type Application struct {
	config     *config.Config
	log        *logger.Logger
	archive    *history.Archive
	directory  *room.Directory
	registry   *websocket.Registry
	httpServer *http.Server
}

func New(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.Default
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var archive *history.Archive
	var archiver room.Archiver = room.NopArchiver{}
	if cfg.Archive.Path != "" {
		a, err := history.Open(cfg.Archive.Path, cfg.Archive.Timeout, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open archive: %w", err)
		}
		archive = a
		archiver = a
	}

	gw := gateway.New(log)

	directory := room.NewDirectory(room.DirectoryOptions{
		Room: room.Options{
			ReconnectGrace:    cfg.Room.ReconnectGrace,
			MaxParticipants:   cfg.Room.MaxParticipants,
			ChatMaxBodyLength: cfg.Chat.MaxBodyLength,
			ChatRetention:     cfg.Chat.Retention,
			ChatRatePerMinute: cfg.Chat.RatePerMinute,
		},
		IdleTimeout:   cfg.Room.IdleTimeout,
		SweepInterval: cfg.Room.SweepInterval,
	}, gw, archiver, log)

	registry := websocket.NewRegistry(auth.NewService(cfg.Auth.JWTSecret))
	wsHandler := websocket.NewHandler(registry, directory, gw, cfg.WebSocket, log)

	var messages api.MessageReader
	if archive != nil {
		messages = archive
	}
	apiServer := api.NewServer(directory, registry, messages, log)

	mux := http.NewServeMux()
	mux.Handle("/healthz", apiServer)
	mux.Handle("/api/", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		archive:    archive,
		directory:  directory,
		registry:   registry,
		httpServer: httpServer,
	}, nil
}

// Start launches the sweep and the HTTP server, and confirms the listener
// came up before returning.
func (a *Application) Start(ctx context.Context) error {
	a.log.Info("starting liveclass coordinator on %s", a.httpServer.Addr)
	a.directory.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		a.directory.Close()
		return err
	case <-time.After(100 * time.Millisecond):
		a.log.Info("liveclass coordinator started")
		return nil
	case <-ctx.Done():
		a.directory.Close()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP listener, rooms (each
// live connection gets session-ended), then the archive drain.
func (a *Application) Stop(ctx context.Context) error {
	a.log.Info("shutting down liveclass coordinator")

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown error: %v", err)
	}
	a.directory.Close()
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.Error("archive shutdown error: %v", err)
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
