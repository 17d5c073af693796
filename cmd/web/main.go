package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scene-studio/internal/api"
	"scene-studio/internal/compose"
	"scene-studio/internal/config"
	"scene-studio/internal/editor"
	"scene-studio/internal/gemini"
	"scene-studio/internal/httpclient"
	"scene-studio/internal/presets"
	"scene-studio/internal/remoteimage"
)

//go:embed static/*
var staticFS embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if !gem.Configured() {
		logger.Warn("GEMINI_API_KEY is not set, edit requests will fail")
	}

	// Product URLs are user supplied; their connections get the address guard.
	fetchClient := httpClient
	if !cfg.AllowPrivateURLs {
		fetchClient = httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
			Control:    remoteimage.DialControl,
		})
	}

	tpl, err := compose.Lookup(cfg.InstructionTemplate)
	if err != nil {
		logger.Error("instruction template", "err", err)
		os.Exit(1)
	}

	ed, err := editor.New(editor.Options{
		Gateway: gem,
		Fetcher: remoteimage.New(remoteimage.Options{
			HTTPClient:   fetchClient,
			Logger:       logger,
			AllowPrivate: cfg.AllowPrivateURLs,
		}),
		Template:   tpl,
		FitToScene: cfg.FitToScene,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("editor init failed", "err", err)
		os.Exit(1)
	}

	catalog := presets.Default()
	if cfg.PresetsFile != "" {
		catalog, err = presets.Load(cfg.PresetsFile)
		if err != nil {
			logger.Error("presets load failed", "path", cfg.PresetsFile, "err", err)
			os.Exit(1)
		}
	}

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}

	srv := &http.Server{
		Addr: cfg.WebAddr,
		Handler: api.NewRouter(api.Options{
			Editor:         ed,
			Presets:        catalog,
			Static:         staticSub,
			Logger:         logger,
			CORSOrigins:    cfg.CORSOrigins,
			MaxBodyBytes:   cfg.MaxBodySize,
			RequestTimeout: cfg.RequestTimeout,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("web started", "addr", cfg.WebAddr, "model", gem.Model(), "template", tpl.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
