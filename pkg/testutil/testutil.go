// Package testutil provides HTTP clients and assertion helpers for tests that
// drive the Hichers twin and the dashboard server over HTTP.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/hichers/hichers/pkg/twincore"
)

// TwinClient is an HTTP client for interacting with a test server. It keeps
// cookies between calls and, once Token is set, sends it as a bearer token.
type TwinClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	t          *testing.T
}

// NewTwinClient creates a client pointed at a test server.
func NewTwinClient(t *testing.T, server *httptest.Server) *TwinClient {
	hc := *server.Client()
	hc.Jar = newJar(t)
	return &TwinClient{
		BaseURL:    server.URL,
		HTTPClient: &hc,
		t:          t,
	}
}

// NewTwinClientURL creates a client pointed at a specific URL.
func NewTwinClientURL(t *testing.T, baseURL string) *TwinClient {
	return &TwinClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Jar: newJar(t)},
		t:          t,
	}
}

func newJar(t *testing.T) http.CookieJar {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("creating cookie jar: %v", err)
	}
	return jar
}

// Response wraps an HTTP response with helper methods.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	t          *testing.T
}

// JSON unmarshals the response body into v.
func (r *Response) JSON(v any) {
	r.t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.t.Fatalf("failed to unmarshal response: %v\nbody: %s", err, string(r.Body))
	}
}

// JSONMap returns the response body as a map.
func (r *Response) JSONMap() map[string]any {
	r.t.Helper()
	var m map[string]any
	r.JSON(&m)
	return m
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Field   string `json:"field"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (r *Response) envelope() errorEnvelope {
	r.t.Helper()
	var env errorEnvelope
	r.JSON(&env)
	return env
}

// ErrorMessage returns error.message from a twincore error envelope.
func (r *Response) ErrorMessage() string {
	r.t.Helper()
	return r.envelope().Error.Message
}

// ErrorField returns error.field from a twincore error envelope, or "" when
// the error is not tied to an input field.
func (r *Response) ErrorField() string {
	r.t.Helper()
	return r.envelope().Error.Field
}

// Cookie returns the cookie the response set under name, or nil.
func (r *Response) Cookie(name string) *http.Cookie {
	for _, c := range (&http.Response{Header: r.Headers}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AssertStatus asserts the response has the expected status code.
func (r *Response) AssertStatus(expected int) *Response {
	r.t.Helper()
	if r.StatusCode != expected {
		r.t.Errorf("expected status %d, got %d\nbody: %s", expected, r.StatusCode, string(r.Body))
	}
	return r
}

// AssertBodyContains asserts the response body contains the given substring.
func (r *Response) AssertBodyContains(substr string) *Response {
	r.t.Helper()
	if !strings.Contains(string(r.Body), substr) {
		r.t.Errorf("expected body to contain %q, got: %s", substr, string(r.Body))
	}
	return r
}

// Get sends a GET to path.
func (c *TwinClient) Get(path string) *Response {
	c.t.Helper()
	return c.send(http.MethodGet, path, nil, nil)
}

// Post sends body as JSON. A nil body sends no payload.
func (c *TwinClient) Post(path string, body any) *Response {
	c.t.Helper()
	return c.send(http.MethodPost, path, body, nil)
}

// Put sends body as JSON.
func (c *TwinClient) Put(path string, body any) *Response {
	c.t.Helper()
	return c.send(http.MethodPut, path, body, nil)
}

// Delete sends a DELETE to path.
func (c *TwinClient) Delete(path string) *Response {
	c.t.Helper()
	return c.send(http.MethodDelete, path, nil, nil)
}

// DoWithHeaders sends a request with extra headers, which win over the
// client's own Content-Type and Authorization.
func (c *TwinClient) DoWithHeaders(method, path string, body any, headers map[string]string) *Response {
	c.t.Helper()
	return c.send(method, path, body, headers)
}

// send runs one request bound to the test's context and buffers the reply.
// Transport failures end the test.
func (c *TwinClient) send(method, path string, body any, extra map[string]string) *Response {
	c.t.Helper()

	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("encoding %s %s body: %v", method, path, err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(c.t.Context(), method, c.BaseURL+path, payload)
	if err != nil {
		c.t.Fatalf("building %s %s: %v", method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("reading %s %s reply: %v", method, path, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data, Headers: resp.Header, t: c.t}
}

// AdminClient drives the /admin control plane shared by the twin and the
// dashboard server.
type AdminClient struct {
	*TwinClient
}

// NewAdminClient wraps tc.
func NewAdminClient(tc *TwinClient) *AdminClient {
	return &AdminClient{TwinClient: tc}
}

// Reset calls POST /admin/reset.
func (ac *AdminClient) Reset() *Response {
	ac.t.Helper()
	return ac.Post("/admin/reset", nil)
}

// GetState calls GET /admin/state.
func (ac *AdminClient) GetState() *Response {
	ac.t.Helper()
	return ac.Get("/admin/state")
}

// LoadState calls POST /admin/state with the given state data.
func (ac *AdminClient) LoadState(state any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/state", state)
}

// InjectFault calls POST /admin/fault/{endpoint}. endpoint may span several
// path segments, e.g. "offer/update-offer".
func (ac *AdminClient) InjectFault(endpoint string, fault twincore.FaultConfig) *Response {
	ac.t.Helper()
	return ac.Post("/admin/fault/"+strings.TrimPrefix(endpoint, "/"), fault)
}

// RemoveFault calls DELETE /admin/fault/{endpoint}.
func (ac *AdminClient) RemoveFault(endpoint string) *Response {
	ac.t.Helper()
	return ac.Delete("/admin/fault/" + strings.TrimPrefix(endpoint, "/"))
}

// GetRequests calls GET /admin/requests.
func (ac *AdminClient) GetRequests() *Response {
	ac.t.Helper()
	return ac.Get("/admin/requests")
}

// AdvanceTime calls POST /admin/time/advance, moving the simulated clock
// forward by d.
func (ac *AdminClient) AdvanceTime(d time.Duration) *Response {
	ac.t.Helper()
	return ac.Post("/admin/time/advance", map[string]string{"duration": d.String()})
}

// UpdateSettings calls POST /admin/settings.
func (ac *AdminClient) UpdateSettings(settings map[string]any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/settings", settings)
}

// UpdateConfig calls POST /admin/config.
func (ac *AdminClient) UpdateConfig(updates map[string]any) *Response {
	ac.t.Helper()
	return ac.Post("/admin/config", updates)
}

// Health calls GET /admin/health.
func (ac *AdminClient) Health() *Response {
	ac.t.Helper()
	return ac.Get("/admin/health")
}
