// Package studio is the client side of the generation API: uploads, the
// credit/session guard and the workspace that owns one task and its poll loop.
package studio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/genstudio/api/internal/model"
)

const defaultHTTPTimeout = 60 * time.Second

// APIError is a rejected request. Message is the server's error string verbatim.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// ErrorCode returns the machine code of the server's error body.
func (e *APIError) ErrorCode() string {
	return e.Code
}

// Retryable reports whether the same request could succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// errorBody is the uniform error shape of the server.
type errorBody struct {
	Success   *bool          `json:"success"`
	Error     string         `json:"error"`
	ErrorCode string         `json:"error_code"`
	Details   map[string]any `json:"details"`
	Status    string         `json:"status"`
}

// API calls the generation server on behalf of one signed-in user.
type API struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// APIOption configures an API.
type APIOption func(*API)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.httpClient = c }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) APIOption {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAPI returns a client for baseURL. token may be empty for anonymous use.
func NewAPI(baseURL, token string, opts ...APIOption) *API {
	a := &API{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasToken reports whether requests are authenticated.
func (a *API) HasToken() bool {
	return a.token != ""
}

// HTTPClient exposes the transport for side requests such as HEAD checks.
func (a *API) HTTPClient() *http.Client {
	return a.httpClient
}

// Submit starts a generation task. Credits are deducted by the server.
func (a *API) Submit(ctx context.Context, provider string, req *model.SubmitRequest) (*model.SubmitResponse, error) {
	var out model.SubmitResponse
	if err := a.doJSON(ctx, http.MethodPost, "/api/"+url.PathEscape(provider)+"/submit", req, &out); err != nil {
		return nil, err
	}
	if out.TaskID == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "submit response has no task id"}
	}
	return &out, nil
}

// Status fetches the current state of a submitted task.
func (a *API) Status(ctx context.Context, provider, taskID string) (*model.StatusResponse, error) {
	var raw json.RawMessage
	path := "/api/" + url.PathEscape(provider) + "/status/" + url.PathEscape(taskID)
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return a.decodeStatus(taskID, raw)
}

// decodeStatus drops a result that does not decode so the status still
// reaches the poller; a completed reply without results then fails as such.
func (a *API) decodeStatus(taskID string, body []byte) (*model.StatusResponse, error) {
	var out model.StatusResponse
	if len(body) == 0 {
		return &out, nil
	}
	err := json.Unmarshal(body, &out)
	if err == nil {
		return &out, nil
	}

	var lenient struct {
		model.StatusResponse
		Result json.RawMessage `json:"result,omitempty"`
	}
	if lerr := json.Unmarshal(body, &lenient); lerr != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", lerr)
	}
	a.logger.Warn("discarding unreadable status result",
		zap.String("task_id", taskID),
		zap.Error(err),
	)
	out = lenient.StatusResponse
	out.Result = nil
	return &out, nil
}

// History lists the user's tasks for a provider, newest first.
func (a *API) History(ctx context.Context, provider string, page, limit int) (*model.HistoryResponse, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/" + url.PathEscape(provider) + "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out model.HistoryResponse
	if err := a.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteHistory removes a stored task record.
func (a *API) DeleteHistory(ctx context.Context, provider, taskID string) error {
	path := "/api/" + url.PathEscape(provider) + "/history/" + url.PathEscape(taskID)
	return a.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Upgrade1080p asks for the 1080p rendition of a finished video. A not-ready
// artifact comes back as an *APIError with code PROCESSING.
func (a *API) Upgrade1080p(ctx context.Context, provider, taskID string) (string, error) {
	var out model.UpgradeResponse
	path := "/api/" + url.PathEscape(provider) + "/upgrade/" + url.PathEscape(taskID)
	if err := a.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", err
	}
	if out.VideoURL == "" {
		return "", &APIError{StatusCode: http.StatusOK, Code: model.ErrorCodeResultsUnavailable, Message: "upgrade response has no video url"}
	}
	return out.VideoURL, nil
}

// Credits returns the cached-balance read model source.
func (a *API) Credits(ctx context.Context) (*model.CreditsResponse, error) {
	var out model.CreditsResponse
	if err := a.doJSON(ctx, http.MethodGet, "/api/credits", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload stores one file and returns its public URL.
func (a *API) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(name)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out model.UploadResponse
	if err := a.do(req, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "upload response has no url"}
	}
	return out.URL, nil
}

func (a *API) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.do(req, result)
}

func (a *API) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	log := a.logger.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))
	log.Debug("→ api request")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Debug("✗ api request failed", zap.Error(err))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("← api response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if apiErr := decodeError(resp.StatusCode, respBody); apiErr != nil {
		return apiErr
	}
	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// decodeError returns an *APIError for non-2xx replies and for 2xx replies
// carrying success:false (the upgrade endpoint answers 202 PROCESSING that way).
// A 2xx status payload is data even when it reports a failed task.
func decodeError(status int, body []byte) *APIError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	ok := status >= 200 && status < 300
	if ok && (eb.Success == nil || *eb.Success || eb.Status != "") {
		return nil
	}

	e := &APIError{
		StatusCode: status,
		Code:       eb.ErrorCode,
		Message:    eb.Error,
		Details:    eb.Details,
	}
	if e.Message == "" && !ok {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
	}
	return e
}
