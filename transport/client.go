package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://127.0.0.1:5000"
	defaultTimeout = 90 * time.Second

	pathHealth    = "/api/health"
	pathDashboard = "/api/dashboard"
	pathQuery     = "/api/assistant/query"
	pathUpload    = "/api/document/upload"

	// maxErrorBody bounds how much of a failed response is read for diagnostics.
	maxErrorBody = 64 << 10
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout. It is a backstop; callers should
// bound individual calls with their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to the feedback analysis service. Every call is a single attempt.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: want http(s)://host[:port]", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Query asks the assistant a question.
func (c *Client) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	const op = "query"

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var raw struct {
		Answer             *string  `json:"answer"`
		RetrievedDocuments []string `json:"retrieved_documents"`
	}
	if err := c.do(ctx, op, http.MethodPost, pathQuery, "application/json", bytes.NewReader(body), &raw); err != nil {
		return nil, err
	}
	if raw.Answer == nil {
		return nil, &Error{Op: op, Kind: KindMalformed, Err: errors.New("response has no answer")}
	}

	resp := &QueryResponse{Answer: *raw.Answer, RetrievedDocuments: raw.RetrievedDocuments}
	if resp.RetrievedDocuments == nil {
		resp.RetrievedDocuments = []string{}
	}
	return resp, nil
}

// Dashboard fetches and normalizes the aggregate dashboard data.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var raw rawDashboard
	if err := c.do(ctx, "dashboard", http.MethodGet, pathDashboard, "", nil, &raw); err != nil {
		return nil, err
	}
	return normalizeDashboard(&raw), nil
}

// Health probes the service.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, "health", http.MethodGet, pathHealth, "", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Upload sends a document for ingestion as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	const op = "upload"

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var res UploadResult
	if err := c.do(ctx, op, http.MethodPost, pathUpload, mw.FormDataContentType(), &buf, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, op, method, path, contentType string, body io.Reader, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{
			Op:         op,
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &Error{Op: op, Kind: KindNetwork, Err: ctx.Err()}
		}
		return &Error{Op: op, Kind: KindMalformed, Err: err}
	}
	return nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling back to the raw text.
func errorMessage(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(b))
}
