package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"flux/pkg/config"
	"flux/pkg/logger"
	"flux/pkg/respond"
	"flux/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	rsp         *respond.Responder
	srv         *http.Server
	stopArchive context.CancelFunc
}

// New initializes resources that do not require a running context (store,
// responder). It does not start the HTTP server or the archive scheduler;
// call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	if eff.Config == nil {
		return nil, fmt.Errorf("nil config")
	}

	// Open never fails hard: a broken durable layer degrades the store to
	// memory-only for the session.
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", eff.DBPath, err)
	}

	up := eff.Config.Upstream
	rsp := respond.New(respond.Config{
		APIKey:      up.APIKey,
		BaseURL:     up.BaseURL,
		MaxPersonas: up.MaxPersonas,
		MaxTokens:   up.MaxTokens,
		Temperature: up.Temperature,
		CallTimeout: up.CallTimeout.Duration(),
		PacingDelay: up.PacingDelay.Duration(),
		RPS:         up.RateLimit.RPS,
		Burst:       up.RateLimit.Burst,
	})
	if !rsp.Configured() {
		logger.Warn("upstream_not_configured", "hint", "set FLUX_GROQ_API_KEY for live persona replies")
	}

	return &App{eff: eff, version: version, commit: commit, buildDate: buildDate, rsp: rsp}, nil
}

// Run starts the archive scheduler and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.printBanner()

	cancelArchive, err := startArchive(ctx, a.eff)
	if err != nil {
		return err
	}
	a.stopArchive = cancelArchive

	errCh := a.startHTTP(ctx)
	logger.Info("server_started", "addr", a.eff.Addr, "version", a.version)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown_requested")
		return a.Close()
	}
}

// Close stops background work and shuts the server down gracefully.
func (a *App) Close() error {
	if a.stopArchive != nil {
		a.stopArchive()
	}
	if a.srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(sctx); err != nil {
			logger.Warn("http_shutdown_error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Warn("store_close_error", "error", err)
	}
	logger.Info("shutdown_complete")
	return nil
}
