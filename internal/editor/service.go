// Package editor implements the edit round trip: it turns an edit request
// into an ordered multimodal request, relays it to the image model and wraps
// the first returned image as a PNG data URL.
package editor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"scene-studio/internal/compose"
	"scene-studio/internal/dataurl"
	"scene-studio/internal/gemini"
)

// Gateway is the external image model.
type Gateway interface {
	Configured() bool
	EditImage(ctx context.Context, parts []gemini.Part) (gemini.Blob, error)
}

// ProductFetcher downloads product images given by URL.
type ProductFetcher interface {
	FetchAll(ctx context.Context, urls []string) ([]dataurl.Image, error)
}

type Request struct {
	Prompt        string             `json:"prompt"`
	Image         string             `json:"image"`
	ProductImages []string           `json:"productImages"`
	ProductURLs   []string           `json:"productUrls"`
	SceneSize     *compose.SceneSize `json:"sceneSize"`
}

// Result carries the edited image. Description is always empty: the model's
// text output is not surfaced.
type Result struct {
	Image       string `json:"image"`
	Description string `json:"description"`
}

type Options struct {
	Gateway  Gateway
	Fetcher  ProductFetcher
	Template compose.Template
	// FitToScene redraws the generated image onto the scene canvas size.
	FitToScene bool
	Logger     *slog.Logger
}

type Service struct {
	gateway    Gateway
	fetcher    ProductFetcher
	template   compose.Template
	fitToScene bool
	logger     *slog.Logger
}

func New(opts Options) (*Service, error) {
	if opts.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}

	tpl := opts.Template
	if tpl.Name == "" {
		tpl = compose.DefaultTemplate()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Service{
		gateway:    opts.Gateway,
		fetcher:    opts.Fetcher,
		template:   tpl,
		fitToScene: opts.FitToScene,
		logger:     logger,
	}, nil
}

func (s *Service) Edit(ctx context.Context, req Request) (Result, error) {
	if !s.gateway.Configured() {
		s.logger.ErrorContext(ctx, "edit refused", "err", gemini.ErrMissingAPIKey)
		return Result{}, gemini.ErrMissingAPIKey
	}

	var base *dataurl.Image
	if img, ok := dataurl.Parse(req.Image); ok {
		base = &img
	} else if strings.TrimSpace(req.Image) != "" {
		s.logger.WarnContext(ctx, "skipping malformed base image")
	}

	products, err := s.collectProducts(ctx, req)
	if err != nil {
		s.logger.ErrorContext(ctx, "product fetch failed", "err", err)
		return Result{}, err
	}

	size := req.SceneSize
	if size != nil && !size.Known() {
		s.logger.WarnContext(ctx, "ignoring scene size", "width", size.Width, "height", size.Height)
	}
	if !size.Known() && base != nil {
		if sniffed, ok := SceneSizeOf(*base); ok {
			size = &sniffed
		}
	}

	instruction := s.template.Compose(req.Prompt, size)
	parts := compose.Assemble(base, products, instruction)
	s.logger.InfoContext(ctx, "sending edit",
		"has_base", base != nil, "products", len(products), "parts", len(parts), "template", s.template.Name)

	out, err := s.gateway.EditImage(ctx, parts)
	if err != nil {
		s.logger.ErrorContext(ctx, "edit failed", "err", err)
		return Result{}, err
	}

	data := out.Data
	if s.fitToScene && size.Known() {
		fitted, err := fitToScene(data, *size)
		if err != nil {
			s.logger.WarnContext(ctx, "fit to scene skipped", "err", err)
		} else {
			data = fitted
		}
	}

	return Result{Image: dataurl.PNG(data)}, nil
}

// collectProducts takes inline uploads first and fills the remaining slots
// from the product URLs. A malformed inline entry keeps its slot.
func (s *Service) collectProducts(ctx context.Context, req Request) ([]dataurl.Image, error) {
	inline := compose.ProductSlots(req.ProductImages)
	products := compose.ParseProducts(inline)
	if skipped := len(inline) - len(products); skipped > 0 {
		s.logger.WarnContext(ctx, "skipping malformed product images", "count", skipped)
	}

	var urls []string
	for _, u := range req.ProductURLs {
		if len(inline)+len(urls) == compose.MaxProductImages {
			break
		}
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return products, nil
	}

	fetched, err := s.fetcher.FetchAll(ctx, urls)
	if err != nil {
		return nil, err
	}
	return append(products, fetched...), nil
}
