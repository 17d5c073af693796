package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-2.5-flash-image"

	fallbackErrorMessage = "Gemini API error"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		apiVersion: apiVersion,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) Model() string {
	return c.model
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// EditImage sends the parts as a single user turn and returns the first
// inline image of the answer.
func (c *Client) EditImage(ctx context.Context, parts []Part) (Blob, error) {
	resp, err := c.GenerateContent(ctx, parts)
	if err != nil {
		return Blob{}, err
	}

	img, err := resp.FirstImage()
	if err != nil {
		finish := ""
		if len(resp.Candidates) > 0 {
			finish = resp.Candidates[0].FinishReason
		}
		c.logger.Warn("gemini answer carried no image", "model", c.model, "candidates", len(resp.Candidates), "finish_reason", finish)
		return Blob{}, err
	}
	return img, nil
}

func (c *Client) GenerateContent(ctx context.Context, parts []Part) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrMissingAPIKey
	}

	body, err := json.Marshal(generateContentRequest{
		Contents: []Content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		c.baseURL, c.apiVersion, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", redactKey(err, c.apiKey))
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: httpResp.StatusCode, Message: fallbackErrorMessage}
		var decoded errorResponse
		if err := json.Unmarshal(rawBody, &decoded); err == nil && strings.TrimSpace(decoded.Error.Message) != "" {
			apiErr.Message = decoded.Error.Message
		}
		c.logger.Error("gemini error", "status", httpResp.StatusCode, "model", c.model, "message", apiErr.Message)
		return Response{}, apiErr
	}

	var decoded Response
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return decoded, nil
}

// redactKey keeps the API key out of *url.Error messages, which embed the request URL.
func redactKey(err error, key string) error {
	var urlErr *url.Error
	if key == "" || !errors.As(err, &urlErr) {
		return err
	}
	redacted := *urlErr
	redacted.URL = strings.ReplaceAll(redacted.URL, url.QueryEscape(key), "REDACTED")
	return &redacted
}
