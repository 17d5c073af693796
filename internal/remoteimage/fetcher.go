// Package remoteimage downloads product images referenced by URL and turns
// them into inline base64 images.
package remoteimage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"scene-studio/internal/dataurl"
)

const defaultMaxBytes = 20 << 20

// FetchError is a non-success status from a product image URL.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed %d for %s", e.Status, e.URL)
}

type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	// AllowPrivate disables the check that refuses loopback, private and
	// link-local targets.
	AllowPrivate bool
	MaxBytes     int64
}

type Fetcher struct {
	httpClient   *http.Client
	logger       *slog.Logger
	allowPrivate bool
	maxBytes     int64
	lookupIP     func(ctx context.Context, host string) ([]net.IP, error)
}

func New(opts Options) *Fetcher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	f := &Fetcher{
		logger:       logger,
		allowPrivate: opts.AllowPrivate,
		maxBytes:     maxBytes,
		lookupIP: func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip", host)
		},
	}

	// Every redirect hop goes through the same URL check as the first request.
	client := *httpClient
	client.CheckRedirect = f.checkRedirect
	f.httpClient = &client
	return f
}

// Fetch downloads one image. The MIME type is guessed from the URL suffix:
// ".png" means image/png, anything else is treated as image/jpeg.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (dataurl.Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := f.checkURL(ctx, rawURL); err != nil {
		return dataurl.Image{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return dataurl.Image{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return dataurl.Image{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("product image fetch failed", "url", rawURL, "status", resp.StatusCode)
		return dataurl.Image{}, &FetchError{URL: rawURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return dataurl.Image{}, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return dataurl.Image{}, fmt.Errorf("image at %s exceeds %d bytes", rawURL, f.maxBytes)
	}

	return dataurl.FromBytes(MIMETypeFor(rawURL), body), nil
}

// FetchAll downloads every URL concurrently. Results keep the input order and
// the first failure aborts the rest.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]dataurl.Image, error) {
	out := make([]dataurl.Image, len(urls))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, u := range urls {
		i, u := i, u
		eg.Go(func() error {
			img, err := f.Fetch(egCtx, u)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func MIMETypeFor(rawURL string) string {
	if strings.HasSuffix(strings.ToLower(rawURL), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}

const maxRedirects = 5

var errBlockedURL = errors.New("blocked url")

func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return f.checkURL(req.Context(), req.URL.String())
}

// DialControl refuses connections to restricted addresses. Set it as the
// net.Dialer Control of the fetch client so the check runs on the address
// actually dialled, after redirects and DNS resolution.
func DialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedURL, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || restrictedIP(ip) {
		return fmt.Errorf("%w: dial %s %s", errBlockedURL, network, address)
	}
	return nil
}

func restrictedIP(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

func (f *Fetcher) checkURL(ctx context.Context, rawURL string) error {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q not allowed", errBlockedURL, parsed.Scheme)
	}
	if f.allowPrivate {
		return nil
	}

	host := parsed.Hostname()
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		ips, err = f.lookupIP(ctx, host)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
	}
	if len(ips) == 0 {
		return fmt.Errorf("resolve %s: no addresses", host)
	}

	for _, ip := range ips {
		if restrictedIP(ip) {
			f.logger.Warn("blocked product image url", "url", rawURL, "ip", ip.String())
			return fmt.Errorf("%w: %s resolves to restricted address %s", errBlockedURL, host, ip)
		}
	}
	return nil
}
