// Package transport is the HTTP layer shared by every Echostash resource client.
//
// A Client owns the base URL, authentication headers, retry policy, optional
// client-side throttling, and request logging. Resource clients never talk to
// net/http directly; they build a Request and call Do or one of the JSON verbs.
package transport

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
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/echostash/echostash-automation/internal/config"
	"github.com/echostash/echostash-automation/internal/metrics"
)

// Header names set by the transport.
const (
	HeaderAuthorization = "Authorization"
	HeaderAPIKey        = "X-API-KEY"
	HeaderRequestID     = "X-Request-ID"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"
	HeaderRetryAfter    = "Retry-After"

	contentTypeJSON = "application/json"
)

// maxBodyBytes caps how much of any response is buffered.
const maxBodyBytes = 32 << 20

// Logger is the subset of the gofulmen logger the transport needs.
// *zap.Logger satisfies it as well.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// RateLimiter throttles outgoing attempts. *rate.Limiter satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// BeforeHook runs before every attempt; a non-nil error aborts the request.
type BeforeHook func(req *http.Request, attempt int) error

// AfterHook runs after every attempt with whatever the attempt produced.
type AfterHook func(req *http.Request, resp *http.Response, err error, elapsed time.Duration, attempt int)

// Config holds everything needed to build a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Token     string
	APIKey    string
	UserAgent string

	// Logging enables the request/response lines.
	Logging bool
	Logger  Logger

	Retry   RetryPolicy
	Limiter RateLimiter

	HTTPClient *http.Client
	Before     []BeforeHook
	After      []AfterHook
}

// Option mutates a Config before the Client is built.
type Option func(*Config)

// WithBaseURL overrides the base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) { c.BaseURL = baseURL }
}

// WithToken sets the initial bearer token.
func WithToken(token string) Option {
	return func(c *Config) { c.Token = token }
}

// WithAPIKey sets the initial X-API-KEY value.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithLogger installs a logger and turns on request logging.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
		c.Logging = logger != nil
	}
}

// WithLogging toggles request logging without changing the logger.
func WithLogging(enabled bool) Option {
	return func(c *Config) { c.Logging = enabled }
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Config) { c.Retry = policy }
}

// WithMaxRetries changes only the retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.Retry.MaxRetries = n }
}

// WithRateLimit throttles requests to rps with the given burst. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Config) {
		if rps <= 0 {
			c.Limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient swaps the underlying *http.Client (httptest servers, custom transports).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithHooks appends attempt hooks.
func WithHooks(before []BeforeHook, after []AfterHook) Option {
	return func(c *Config) {
		c.Before = append(c.Before, before...)
		c.After = append(c.After, after...)
	}
}

// Client is safe for concurrent use. Credentials may be changed at any time
// and apply to requests started afterwards.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	retry      RetryPolicy
	limiter    RateLimiter
	logger     Logger
	logging    bool
	before     []BeforeHook
	after      []AfterHook

	mu           sync.RWMutex
	token        string
	apiKey       string
	lastDuration time.Duration
}

// New builds a Client from cfg plus opts.
func New(cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	policy := cfg.Retry.withDefaults()

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		userAgent:  cfg.UserAgent,
		retry:      policy,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
		logging:    cfg.Logging && cfg.Logger != nil,
		before:     append([]BeforeHook(nil), cfg.Before...),
		after:      append([]AfterHook(nil), cfg.After...),
		token:      strings.TrimSpace(cfg.Token),
		apiKey:     strings.TrimSpace(cfg.APIKey),
	}, nil
}

// NewFromConfig builds a Client from the loaded application config.
func NewFromConfig(cfg *config.Config, logger Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	base := Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		Token:     cfg.API.Token,
		APIKey:    cfg.API.APIKey,
		UserAgent: cfg.API.UserAgent,
		Logging:   cfg.Logging.Enabled,
		Logger:    logger,
		Retry: RetryPolicy{
			MaxRetries:         cfg.Retry.MaxRetries,
			BaseDelay:          cfg.Retry.BaseDelay,
			MaxDelay:           cfg.Retry.MaxDelay,
			RetryNonIdempotent: cfg.Retry.RetryNonIdempotent,
			RespectRetryAfter:  cfg.Retry.RespectRetryAfter,
		},
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		opts = append([]Option{WithRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)}, opts...)
	}
	return New(base, opts...)
}

// Clone returns a new Client sharing configuration but with independent credentials.
func (c *Client) Clone() *Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Client{
		baseURL:    c.baseURL,
		httpClient: c.httpClient,
		timeout:    c.timeout,
		userAgent:  c.userAgent,
		retry:      c.retry,
		limiter:    c.limiter,
		logger:     c.logger,
		logging:    c.logging,
		before:     c.before,
		after:      c.after,
		token:      c.token,
		apiKey:     c.apiKey,
	}
}

// Anonymous returns a clone with no credentials, for negative auth checks.
func (c *Client) Anonymous() *Client {
	clone := c.Clone()
	clone.ClearAuth()
	return clone
}

// SetToken sets the bearer token sent on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// SetAPIKey sets the X-API-KEY header sent on subsequent requests.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

// ClearAuth removes both credentials.
func (c *Client) ClearAuth() {
	c.mu.Lock()
	c.token = ""
	c.apiKey = ""
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// APIKey returns the current API key.
func (c *Client) APIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

// LastDuration is the client-observed latency of the most recent completed attempt.
func (c *Client) LastDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDuration
}

// Request describes one logical API call. Retries replay it unchanged.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is marshalled as JSON unless RawBody is set.
	Body        any
	RawBody     []byte
	ContentType string
}

// Response is a fully buffered backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string

	// Duration is the latency of the final attempt.
	Duration time.Duration
	Attempts int
}

// Decode unmarshals the JSON body into out. Empty bodies leave out untouched.
func (r *Response) Decode(out any) error {
	if out == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Do executes req with retries. Non-2xx final responses are returned as *Error
// alongside the Response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolveURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	endpoint := routeLabel(req.Path)

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, elapsed, sendErr := c.attempt(ctx, method, target, req.Header, body, contentType, requestID, attempt)
		if sendErr == nil {
			metrics.RecordAPICall(method, endpoint, resp.StatusCode, elapsed)
		} else {
			metrics.RecordTransportError(method, endpoint)
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}

		if sendErr == nil && status >= 200 && status < 300 {
			resp.Attempts = attempt + 1
			return resp, nil
		}

		retryable := c.retry.ShouldRetry(method, status, sendErr)
		if !retryable || attempt >= c.retry.MaxRetries {
			return resp, c.finalError(method, target, resp, sendErr, requestID, attempt+1, retryable)
		}

		delay := c.retry.Delay(attempt, resp)
		metrics.RecordRetry(method, endpoint, status)
		if c.logging {
			c.logger.Info("retrying request",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", c.retry.MaxRetries),
				zap.Duration("delay", delay),
				zap.Int("status", status),
				zap.String("method", method),
				zap.String("path", target.Path),
			)
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (c *Client) attempt(ctx context.Context, method string, target *url.URL, extra http.Header, body []byte, contentType, requestID string, attempt int) (*Response, time.Duration, error) {
	attemptCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, method, target.String(), reader)
	if err != nil {
		return nil, 0, err
	}
	c.applyHeaders(httpReq, extra, contentType, requestID)

	for _, hook := range c.before {
		if hook == nil {
			continue
		}
		if err := hook(httpReq, attempt); err != nil {
			return nil, 0, err
		}
	}

	if c.logging {
		c.logger.Info(fmt.Sprintf("--> %s %s", method, target.RequestURI()))
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	var resp *Response
	if err == nil {
		resp, err = readResponse(httpResp)
	}
	elapsed := time.Since(start)

	for _, hook := range c.after {
		if hook != nil {
			hook(httpReq, httpResp, err, elapsed, attempt)
		}
	}

	if err != nil {
		if c.logging {
			c.logger.Warn(fmt.Sprintf("<-- ERR %s %s (%dms)", method, target.RequestURI(), elapsed.Milliseconds()), zap.Error(err))
		}
		return nil, elapsed, err
	}

	resp.Duration = elapsed
	if resp.RequestID == "" {
		resp.RequestID = requestID
	}
	c.mu.Lock()
	c.lastDuration = elapsed
	c.mu.Unlock()

	if c.logging {
		c.logger.Info(fmt.Sprintf("<-- %d %s %s (%dms)", resp.StatusCode, method, target.RequestURI(), elapsed.Milliseconds()))
	}
	return resp, elapsed, nil
}

func (c *Client) applyHeaders(req *http.Request, extra http.Header, contentType, requestID string) {
	req.Header.Set(HeaderAccept, contentTypeJSON)
	if contentType != "" {
		req.Header.Set(HeaderContentType, contentType)
	}
	if c.userAgent != "" {
		req.Header.Set(HeaderUserAgent, c.userAgent)
	}
	req.Header.Set(HeaderRequestID, requestID)

	c.mu.RLock()
	token, apiKey := c.token, c.apiKey
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
	if apiKey != "" {
		req.Header.Set(HeaderAPIKey, apiKey)
	}

	for key, values := range extra {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
}

func (c *Client) finalError(method string, target *url.URL, resp *Response, cause error, requestID string, attempts int, retryable bool) error {
	apiErr := &Error{
		Method:    method,
		URL:       target.String(),
		RequestID: requestID,
		Attempts:  attempts,
		Retryable: retryable,
		Cause:     cause,
	}
	if resp != nil {
		apiErr.StatusCode = resp.StatusCode
		apiErr.Body = resp.Body
		apiErr.RequestID = resp.RequestID
		apiErr.Backend = parseErrorBody(resp.Body)
	}
	return apiErr
}

func (c *Client) resolveURL(path string, query url.Values) (*url.URL, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("request path is required")
	}
	ref, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}

	var target *url.URL
	if ref.IsAbs() {
		target = ref
	} else {
		if err := checkSegments(ref.EscapedPath()); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPath, path, err)
		}
		// A leading slash is relative to the base path so prefixes like /qa survive.
		// RawPath carries escaped separators such as %2F through resolution.
		rel := *ref
		rel.Path = strings.TrimPrefix(rel.Path, "/")
		rel.RawPath = strings.TrimPrefix(rel.RawPath, "/")
		target = c.baseURL.ResolveReference(&rel)
	}

	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		target.RawQuery = merged.Encode()
	}
	return target, nil
}

// checkSegments rejects empty and dot segments, which would otherwise resolve
// to a different endpoint than the one the caller built.
func checkSegments(escaped string) error {
	for i, segment := range strings.Split(strings.TrimPrefix(escaped, "/"), "/") {
		switch segment {
		case "":
			return fmt.Errorf("empty segment at position %d", i)
		case ".", "..":
			return fmt.Errorf("dot segment %q at position %d", segment, i)
		}
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", raw)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func encodeBody(req Request) ([]byte, string, error) {
	if req.RawBody != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return req.RawBody, contentType, nil
	}
	if req.Body == nil {
		return nil, "", nil
	}
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("encode request body: %w", err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = contentTypeJSON
	}
	return payload, contentType, nil
}

func readResponse(httpResp *http.Response) (*Response, error) {
	defer httpResp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
		RequestID:  strings.TrimSpace(httpResp.Header.Get(HeaderRequestID)),
	}, nil
}

// routeLabel collapses IDs out of a path so metrics stay low-cardinality.
func routeLabel(path string) string {
	trimmed := path
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	segments := strings.Split(strings.Trim(trimmed, "/"), "/")
	for i, segment := range segments {
		if looksLikeID(segment) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func looksLikeID(segment string) bool {
	if segment == "" {
		return false
	}
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
