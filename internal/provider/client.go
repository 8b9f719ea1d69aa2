package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/config"
	"github.com/genstudio/api/internal/task"
)

const defaultHTTPTimeout = 60 * time.Second

// HTTPError is a non-success reply from an upstream provider. StatusCode is
// either the HTTP status or the status carried in the response envelope.
type HTTPError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether polling again could succeed.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// classify marks client errors other than 429 as permanent for the poller.
func classify(err error) error {
	var he *HTTPError
	if errors.As(err, &he) && !he.Retryable() {
		return task.Permanent(err)
	}
	return err
}

// envelope is the response wrapper shared by the kie-style APIs.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// restClient is the JSON/HTTP transport shared by the upstream providers.
type restClient struct {
	name       string
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *zap.Logger
}

func newRESTClient(name string, cfg config.ProviderConfig, logger *zap.Logger) *restClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &restClient{
		name:       name,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		logger:     logger.With(zap.String("provider", name)),
	}
}

// IsConfigured returns true if the client has an API key.
func (c *restClient) IsConfigured() bool {
	return c.apiKey != ""
}

// post sends a POST request with JSON body and decodes the envelope data into result.
func (c *restClient) post(ctx context.Context, endpoint string, body, result any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

// get sends a GET request with query parameters.
func (c *restClient) get(ctx context.Context, endpoint string, query url.Values, result any) error {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

func (c *restClient) doRequest(req *http.Request, result any) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	log := c.logger.With(zap.String("method", req.Method), zap.String("url", req.URL.String()))
	log.Debug("→ upstream request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("✗ upstream request failed", zap.Error(err))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("✗ failed to read upstream response", zap.Error(err))
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("← upstream response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
		zap.ByteString("body", respBody),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Provider: c.name, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return &HTTPError{Provider: c.name, StatusCode: env.Code, Message: env.Msg}
	}

	if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, result); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}
