// Package api is the HTTP surface used by the browser studio.
package api

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scene-studio/internal/editor"
	"scene-studio/internal/presets"
)

const defaultMaxBodyBytes = 25 << 20

type Editor interface {
	Edit(ctx context.Context, req editor.Request) (editor.Result, error)
}

type Options struct {
	Editor  Editor
	Presets *presets.Catalog
	// Static is served at "/" when set.
	Static         fs.FS
	Logger         *slog.Logger
	CORSOrigins    []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

type server struct {
	editor         Editor
	presets        *presets.Catalog
	logger         *slog.Logger
	maxBodyBytes   int64
	requestTimeout time.Duration
}

func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	catalog := opts.Presets
	if catalog == nil {
		catalog = presets.Default()
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	s := &server{
		editor:         opts.Editor,
		presets:        catalog,
		logger:         logger,
		maxBodyBytes:   maxBody,
		requestTimeout: opts.RequestTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP, RequestID, accessLog(logger), recoverJSON(logger))
	if len(opts.CORSOrigins) > 0 {
		r.Use(CORS(opts.CORSOrigins))
	}

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/image", s.handleImage)
		r.Get("/presets", s.handlePresets)
	})

	if opts.Static != nil {
		r.Handle("/*", http.FileServer(http.FS(opts.Static)))
	}

	return r
}
