package remoteimage

import (
	"context"
	"encoding/base64"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rug.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("png-bytes")) })
	mux.HandleFunc("/wall.JPG", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("jpg-bytes")) })
	mux.HandleFunc("/noext", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("other")) })
	mux.HandleFunc("/big.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(make([]byte, 64)) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := newImageServer(t)
	f := New(Options{HTTPClient: srv.Client(), AllowPrivate: true})

	tests := []struct {
		path     string
		wantMIME string
		wantBody string
	}{
		{path: "/rug.png", wantMIME: "image/png", wantBody: "png-bytes"},
		{path: "/wall.JPG", wantMIME: "image/jpeg", wantBody: "jpg-bytes"},
		{path: "/noext", wantMIME: "image/jpeg", wantBody: "other"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			img, err := f.Fetch(context.Background(), srv.URL+tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMIME, img.MIMEType)
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(tt.wantBody)), img.Data)
		})
	}
}

func TestFetch_NotFound(t *testing.T) {
	srv := newImageServer(t)
	f := New(Options{HTTPClient: srv.Client(), AllowPrivate: true})

	_, err := f.Fetch(context.Background(), srv.URL+"/missing.png")

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.Status)
	assert.Equal(t, "fetch failed 404 for "+srv.URL+"/missing.png", err.Error())
}

func TestFetch_TooLarge(t *testing.T) {
	srv := newImageServer(t)
	f := New(Options{HTTPClient: srv.Client(), AllowPrivate: true, MaxBytes: 16})

	_, err := f.Fetch(context.Background(), srv.URL+"/big.png")
	assert.ErrorContains(t, err, "exceeds")
}

func TestFetch_BlocksRestrictedTargets(t *testing.T) {
	srv := newImageServer(t)
	f := New(Options{HTTPClient: srv.Client()})
	f.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		switch host {
		case "internal.example":
			return []net.IP{net.ParseIP("10.0.0.7")}, nil
		case "public.example":
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		}
		return nil, errors.New("no such host")
	}

	for _, u := range []string{
		srv.URL + "/rug.png",
		"http://internal.example/rug.png",
		"http://169.254.169.254/latest/meta-data",
		"file:///etc/passwd",
		"ftp://public.example/rug.png",
	} {
		_, err := f.Fetch(context.Background(), u)
		assert.ErrorIs(t, err, errBlockedURL, u)
	}

	assert.NoError(t, f.checkURL(context.Background(), "https://public.example/rug.png"))
}

func TestFetchAll_PreservesOrder(t *testing.T) {
	srv := newImageServer(t)
	f := New(Options{HTTPClient: srv.Client(), AllowPrivate: true})

	imgs, err := f.FetchAll(context.Background(), []string{srv.URL + "/wall.JPG", srv.URL + "/rug.png"})
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "image/jpeg", imgs[0].MIMEType)
	assert.Equal(t, "image/png", imgs[1].MIMEType)
}

func TestFetchAll_FirstFailureAborts(t *testing.T) {
	srv := newImageServer(t)
	f := New(Options{HTTPClient: srv.Client(), AllowPrivate: true})

	imgs, err := f.FetchAll(context.Background(), []string{srv.URL + "/rug.png", srv.URL + "/gone.png"})
	assert.Nil(t, imgs)
	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestMIMETypeFor(t *testing.T) {
	assert.Equal(t, "image/png", MIMETypeFor("https://cdn.example/A.PNG"))
	assert.Equal(t, "image/jpeg", MIMETypeFor("https://cdn.example/a.png?w=200"))
	assert.Equal(t, "image/jpeg", MIMETypeFor("https://cdn.example/a.webp"))
}

// routedClient sends every connection to srv whatever host the URL names.
func routedClient(srv *httptest.Server) *http.Client {
	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}}
}

func TestFetch_RedirectToRestrictedTargetIsBlocked(t *testing.T) {
	var internalHits atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/lamp.png", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/admin.png", http.StatusFound)
	})
	mux.HandleFunc("/moved.png", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://cdn.example.com/rug.png", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/rug.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("rug")) })
	mux.HandleFunc("/admin.png", func(w http.ResponseWriter, r *http.Request) {
		internalHits.Add(1)
		_, _ = w.Write([]byte("SECRET-INTERNAL"))
	})

	f := New(Options{HTTPClient: routedClient(srv)})
	f.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		if host == "cdn.example.com" {
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		}
		return nil, errors.New("no such host")
	}

	img, err := f.Fetch(context.Background(), "http://cdn.example.com/lamp.png")
	assert.ErrorIs(t, err, errBlockedURL)
	assert.Empty(t, img.Data)
	assert.Zero(t, internalHits.Load())

	img, err = f.Fetch(context.Background(), "http://cdn.example.com/moved.png")
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("rug")), img.Data)
}

func TestFetch_RedirectLoopStops(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/loop.png", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop.png", http.StatusFound)
	})

	f := New(Options{HTTPClient: srv.Client(), AllowPrivate: true})
	_, err := f.Fetch(context.Background(), srv.URL+"/loop.png")
	assert.ErrorContains(t, err, "stopped after 5 redirects")
}

func TestFetch_DialControlBlocksRebinding(t *testing.T) {
	srv := newImageServer(t)
	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Control: DialControl}
			return d.DialContext(ctx, network, srv.Listener.Addr().String())
		},
	}}

	// The name resolves to a public address at check time, but the
	// connection lands on loopback.
	f := New(Options{HTTPClient: client})
	f.lookupIP = func(ctx context.Context, host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("93.184.216.34")}, nil
	}

	_, err := f.Fetch(context.Background(), "http://cdn.example.com/rug.png")
	assert.ErrorIs(t, err, errBlockedURL)
}

func TestDialControl(t *testing.T) {
	tests := []struct {
		address string
		blocked bool
	}{
		{"127.0.0.1:80", true},
		{"10.1.2.3:443", true},
		{"192.168.0.10:8080", true},
		{"169.254.169.254:80", true},
		{"[::1]:443", true},
		{"0.0.0.0:80", true},
		{"not-an-address", true},
		{"93.184.216.34:443", false},
		{"[2606:2800:220:1::1]:443", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := DialControl("tcp", tt.address, nil)
			if tt.blocked {
				assert.ErrorIs(t, err, errBlockedURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
