package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scene-studio/internal/bot"
	"scene-studio/internal/compose"
	"scene-studio/internal/config"
	"scene-studio/internal/editor"
	"scene-studio/internal/gemini"
	"scene-studio/internal/httpclient"
	"scene-studio/internal/mediagroup"
	"scene-studio/internal/presets"
	"scene-studio/internal/remoteimage"
	"scene-studio/internal/session"
	"scene-studio/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Model:      cfg.GeminiModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})

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

	sessions := session.NewStore()

	handler := bot.New(bot.Options{
		Messenger: tg,
		Editor:    ed,
		Sessions:  sessions,
		Presets:   catalog,
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onAlbum := func(album mediagroup.Album) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleAlbum(reqCtx, album)
		}()
	}

	albums := mediagroup.New(mediagroup.Options{
		Quiet:   cfg.MediaGroupDebounce,
		OnAlbum: onAlbum,
	})
	defer albums.Stop()
	handler.SetAlbumCollector(albums)

	go pruneSessions(ctx, sessions, cfg.SessionTTL, logger)

	logger.Info("bot started", "username", tg.Username(), "model", gem.Model(), "template", tpl.Name)

	updates := tg.Updates(30 * time.Second)
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func pruneSessions(ctx context.Context, store *session.Store, ttl time.Duration, logger *slog.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Prune(ttl); n > 0 {
				logger.Info("sessions pruned", "removed", n, "remaining", store.Len())
			}
		}
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
