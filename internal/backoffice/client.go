// Package backoffice is the register's REST client for the store back office
// (catalog, categories and sales).
package backoffice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/thevault/register/pkg/auth"
	"github.com/thevault/register/pkg/config"
	pkgerrors "github.com/thevault/register/pkg/errors"
	"github.com/thevault/register/pkg/logger"
	"github.com/thevault/register/pkg/metrics"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultBreakerFailures  = 5
	defaultBreakerOpenFor   = 30 * time.Second
	responseBodyLimit int64 = 4 << 20
	errorBodyLimit    int64 = 4096
	idempotencyHeader       = "Idempotency-Key"
)

var (
	errBaseURLRequired = errors.New("back office base url is required")
	errNoCredentials   = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
)

// response is what a read returns through the breaker. Non-2xx statuses that
// are the caller's fault are not breaker failures.
type response struct {
	status int
	body   []byte
}

// Client talks to the back office on behalf of one authenticated session per
// call. It holds no credentials of its own.
type Client struct {
	httpClient *http.Client
	baseURL    string
	reads      *gobreaker.CircuitBreaker[response]
	logg       *logger.Logger
	metrics    *metrics.RegisterMetrics
	failures   uint32
	openFor    time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the instrumented default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) { c.logg = logg }
}

func WithMetrics(m *metrics.RegisterMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBreaker sets how many consecutive read failures open the breaker and
// how long it stays open.
func WithBreaker(failures uint32, openFor time.Duration) Option {
	return func(c *Client) {
		if failures > 0 {
			c.failures = failures
		}
		if openFor > 0 {
			c.openFor = openFor
		}
	}
}

// NewClient builds a client for the configured back office.
func NewClient(cfg config.BackofficeConfig, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConnsPerHost = cfg.MaxIdleConns
	}

	client := &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		failures: defaultBreakerFailures,
		openFor:  defaultBreakerOpenFor,
	}
	WithBreaker(cfg.BreakerTrips, cfg.BreakerTimeout)(client)

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	client.reads = gobreaker.NewCircuitBreaker[response](gobreaker.Settings{
		Name:    "backoffice-reads",
		Timeout: client.openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= client.failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if client.logg == nil {
				return
			}
			ctx := client.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			client.logg.Warn(ctx, "back office breaker state changed")
		},
	})

	return client, nil
}

// get performs a read through the breaker and decodes a 2xx body into out.
func (c *Client) get(ctx context.Context, sess auth.Session, endpoint, path string, query url.Values, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "back office client not configured")
	}
	if strings.TrimSpace(sess.Token) == "" {
		return errNoCredentials
	}

	resp, err := c.reads.Execute(func() (response, error) {
		resp, err := c.send(ctx, sess, endpoint, http.MethodGet, path, query, nil, "")
		if err != nil {
			return response{}, err
		}
		if resp.status >= http.StatusInternalServerError {
			return resp, statusError(resp.status, resp.body)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "back office unavailable")
		}
		return err
	}
	if resp.status < 200 || resp.status > 299 {
		return statusError(resp.status, resp.body)
	}
	return decode(resp.body, out)
}

// post sends a write. Writes bypass the breaker and are never retried here.
func (c *Client) post(ctx context.Context, sess auth.Session, endpoint, path string, payload any, key string, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "back office client not configured")
	}
	if strings.TrimSpace(sess.Token) == "" {
		return errNoCredentials
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal request")
	}
	resp, err := c.send(ctx, sess, endpoint, http.MethodPost, path, nil, body, key)
	if err != nil {
		return err
	}
	if resp.status < 200 || resp.status > 299 {
		return statusError(resp.status, resp.body)
	}
	return decode(resp.body, out)
}

func (c *Client) send(ctx context.Context, sess auth.Session, endpoint, method, path string, query url.Values, body []byte, key string) (response, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return response{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build back office request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", sess.Bearer())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveBackoffice(endpoint, "error", time.Since(start))
		return response{}, transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	c.metrics.ObserveBackoffice(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return response{}, transportError(ctx, err)
	}
	return response{status: resp.StatusCode, body: payload}, nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request timed out")
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request timed out")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "back office unreachable")
}

// statusError maps a non-2xx response onto the register's error codes,
// keeping the back office's message verbatim where it sent one.
func statusError(status int, body []byte) error {
	msg := serverMessage(body)
	cause := fmt.Errorf("back office status %d", status)
	switch {
	case status == http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, auth.ErrSessionExpired.Message())
	case status == http.StatusForbidden:
		return pkgerrors.Wrap(pkgerrors.CodeForbidden, cause, orDefault(msg, "access denied"))
	case status == http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, orDefault(msg, "not found"))
	case status >= 400 && status < 500:
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, cause, orDefault(msg, "request rejected by back office"))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, orDefault(msg, "back office error"))
	}
}

func serverMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if int64(len(body)) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Msg     string          `json:"msg"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	if len(envelope.Error) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Error, &text); err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Msg
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode back office response")
	}
	return nil
}
