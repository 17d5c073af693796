package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStub(t *testing.T, status int, body string, calls *int32, inspect func(r *http.Request, raw []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		raw, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, raw)
		}
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_MissingKeyMakesNoCalls(t *testing.T) {
	var calls int32
	srv := newStub(t, http.StatusOK, `{}`, &calls, nil)

	c := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	_, err := c.EditImage(context.Background(), []Part{TextPart("x")})

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.False(t, c.Configured())
}

func TestClient_RequestShape(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := newStub(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":"BBBB"}}]}}]}`, nil,
		func(r *http.Request, raw []byte) {
			gotPath = r.URL.Path
			gotKey = r.URL.Query().Get("key")
			assert.NoError(t, json.Unmarshal(raw, &gotBody))
		})

	c := New(Options{APIKey: "secret", BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	img, err := c.EditImage(context.Background(), []Part{
		ImagePart("image/png", "AAAA"),
		ImagePart("image/jpeg", "CCCC"),
		TextPart(""),
	})
	require.NoError(t, err)
	assert.Equal(t, Blob{MIMEType: "image/png", Data: "BBBB"}, img)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash-image:generateContent", gotPath)
	assert.Equal(t, "secret", gotKey)

	contents := gotBody["contents"].([]any)
	require.Len(t, contents, 1)
	turn := contents[0].(map[string]any)
	assert.Equal(t, "user", turn["role"])
	parts := turn["parts"].([]any)
	require.Len(t, parts, 3)
	assert.Equal(t, map[string]any{"inlineData": map[string]any{"mimeType": "image/png", "data": "AAAA"}}, parts[0])
	assert.Equal(t, map[string]any{"inlineData": map[string]any{"mimeType": "image/jpeg", "data": "CCCC"}}, parts[1])
	assert.Equal(t, map[string]any{"text": ""}, parts[2])
}

func TestClient_UpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "rate limited with message", status: http.StatusTooManyRequests, body: `{"error":{"code":429,"message":"Resource exhausted"}}`, wantMsg: "Resource exhausted"},
		{name: "server error with message", status: http.StatusInternalServerError, body: `{"error":{"message":"quota exceeded"}}`, wantMsg: "quota exceeded"},
		{name: "no message", status: http.StatusBadRequest, body: `{"error":{}}`, wantMsg: "Gemini API error"},
		{name: "not json", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantMsg: "Gemini API error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			srv := newStub(t, tt.status, tt.body, &calls, nil)
			c := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})

			_, err := c.EditImage(context.Background(), []Part{TextPart("x")})

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "no retry")
		})
	}
}

func TestClient_NoImage(t *testing.T) {
	bodies := []string{
		`{"candidates":[{"content":{"parts":[{"text":"I cannot do that"}]}}]}`,
		`{"candidates":[]}`,
		`{}`,
		`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png","data":""}}]}}]}`,
	}
	for _, body := range bodies {
		srv := newStub(t, http.StatusOK, body, nil, nil)
		c := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})

		_, err := c.EditImage(context.Background(), []Part{TextPart("x")})
		assert.ErrorIs(t, err, ErrNoImage, body)
	}
}

func TestClient_DecodeFailure(t *testing.T) {
	srv := newStub(t, http.StatusOK, `not json`, nil, nil)
	c := New(Options{APIKey: "k", BaseURL: srv.URL, HTTPClient: srv.Client()})

	_, err := c.GenerateContent(context.Background(), []Part{TextPart("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_ModelOverride(t *testing.T) {
	var gotPath string
	srv := newStub(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"inline_data":{"data":"Zg=="}}]}}]}`, nil,
		func(r *http.Request, _ []byte) { gotPath = r.URL.Path })

	c := New(Options{APIKey: "k", BaseURL: srv.URL, APIVersion: "v1", Model: "other-model", HTTPClient: srv.Client()})
	img, err := c.EditImage(context.Background(), nil)

	require.NoError(t, err)
	assert.Equal(t, "Zg==", img.Data)
	assert.Equal(t, "/v1/models/other-model:generateContent", gotPath)
	assert.Equal(t, "other-model", c.Model())
}
