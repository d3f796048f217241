// Package gateway is the single point of contact with the remote Hichers
// loyalty API. It attaches credentials from the injected session, applies
// per-endpoint timeouts and normalizes the remote's inconsistent responses.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hichers/hichers/internal/model"
)

const (
	// DefaultBaseURL is the production API root.
	DefaultBaseURL = "https://api.hichers.com/api"
	// DefaultTimeout applies to every endpoint without an override.
	DefaultTimeout = 15 * time.Second
	// SchemeSaveTimeout applies to scheme creation, which the remote is slow to acknowledge.
	SchemeSaveTimeout = 45 * time.Second
)

// Endpoints used by the client. Paths are relative to the base URL.
const (
	EndpointGenerateOTP = "auth/generate-otp"
	EndpointValidateOTP = "auth/validate-otp"
	EndpointLoadOffers  = "offer/load-offers"
	EndpointSaveOffer   = "offer/save-offer"
	EndpointUpdateOffer = "offer/update-offer"
	EndpointDeleteOffer = "offer/delete-offer"
	EndpointViewOffer   = "offer/view-offer"
	EndpointLoadSchemes = "loyalty/load-loyalty-scheme"
	EndpointSaveScheme  = "loyalty/save-loyalty-scheme"
	EndpointWebInfo     = "web/web-info"
)

// SessionReader supplies the credentials for each call.
type SessionReader interface {
	Load(ctx context.Context) (model.Session, error)
}

// Response is a successful (or soft-failed) remote response.
type Response struct {
	Status int
	Data   any
	// Soft is set when a timeout was converted into {success:false}.
	Soft bool
}

// Object returns Data as an object, or nil when it is not one.
func (r *Response) Object() Fields {
	if r == nil {
		return nil
	}
	if m, ok := r.Data.(map[string]any); ok {
		return Fields(m)
	}
	return nil
}

// Success reports the remote success flag. Objects without the flag count as
// successful unless the response is a soft failure.
func (r *Response) Success() bool {
	if r == nil || r.Soft {
		return false
	}
	obj := r.Object()
	if obj == nil || !obj.Has("success") {
		return true
	}
	return obj.Bool("success")
}

// Message returns the remote message, or the response text some endpoints use instead.
func (r *Response) Message() string {
	obj := r.Object()
	if obj == nil {
		return ""
	}
	if m := obj.String("message"); m != "" {
		return m
	}
	return obj.String("response")
}

// Err returns an *APIError when the remote reported failure inside a 2xx
// body, or when the response is a soft failure.
func (r *Response) Err(endpoint string) error {
	if r.Success() {
		return nil
	}
	return &APIError{Status: r.Status, Message: r.Message(), Endpoint: endpointPath(endpoint)}
}

// Client talks to the remote API.
type Client struct {
	baseURL   string
	http      *http.Client
	session   SessionReader
	logger    *slog.Logger
	timeout   time.Duration
	overrides map[string]time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithEndpointTimeout overrides the timeout for one endpoint.
func WithEndpointTimeout(endpoint string, d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.overrides[endpoint] = d
		}
	}
}

// New creates a client reading credentials from sess.
func New(sess SessionReader, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{},
		session: sess,
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		overrides: map[string]time.Duration{
			EndpointSaveScheme: SchemeSaveTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func endpointPath(endpoint string) string {
	endpoint = strings.TrimLeft(endpoint, "/")
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}

func isPublic(path string) bool {
	return path == EndpointGenerateOTP || path == EndpointValidateOTP
}

// softFails reports whether timeouts on path degrade to {success:false}.
func softFails(path string) bool {
	return strings.HasPrefix(path, "offer/") || strings.HasPrefix(path, "loyalty/")
}

func (c *Client) timeoutFor(path string) time.Duration {
	for ep, d := range c.overrides {
		if path == ep || strings.HasPrefix(path, ep+"/") {
			return d
		}
	}
	return c.timeout
}

// Request issues a call using the current session.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	sess, err := c.session.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return c.do(ctx, sess, method, endpoint, body)
}

func (c *Client) do(ctx context.Context, sess model.Session, method, endpoint string, body any) (*Response, error) {
	path := endpointPath(endpoint)
	if sess.AuthToken == "" && !isPublic(path) {
		return nil, ErrAuthRequired
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	timeout := c.timeoutFor(path)
	reqCtx, cancel := context.WithTimeoutCause(ctx, timeout, errDeadline)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+"/"+strings.TrimLeft(endpoint, "/"), reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if sess.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AuthToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.failure(ctx, reqCtx, path, timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failure(ctx, reqCtx, path, timeout, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, raw), Endpoint: path}
	}
	return &Response{Status: resp.StatusCode, Data: decodeBody(path, raw)}, nil
}

// failure classifies a transport error. Only our own deadline counts as a
// timeout; cancellation by the caller is returned unchanged.
func (c *Client) failure(parent, reqCtx context.Context, path string, timeout time.Duration, err error) (*Response, error) {
	if parent.Err() != nil {
		return nil, parent.Err()
	}
	if errors.Is(context.Cause(reqCtx), errDeadline) {
		if softFails(path) {
			c.logger.Warn("remote request timed out, returning soft failure", "endpoint", path, "timeout", timeout)
			return &Response{Status: http.StatusGatewayTimeout, Data: map[string]any{"success": false}, Soft: true}, nil
		}
		return nil, &TimeoutError{Endpoint: path, After: timeout}
	}
	return nil, &NetworkError{Endpoint: path, Err: err}
}

func errorMessage(status int, raw []byte) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		f := Fields(obj)
		if m := f.String("message"); m != "" {
			return m
		}
		if errs, ok := f.Any("errors"); ok {
			if arr, ok := errs.([]any); ok && len(arr) > 0 {
				if first, ok := arr[0].(map[string]any); ok {
					if m := Fields(first).String("message"); m != "" {
						return m
					}
				}
			}
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(status)
}

func decodeBody(path string, raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	text := strings.TrimSpace(string(raw))
	if strings.HasPrefix(path, "offer/") {
		return map[string]any{"success": true, "message": text}
	}
	return map[string]any{"message": text}
}
