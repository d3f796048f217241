// Package client talks to the /admin endpoints of a running twin-hichers so
// the CLI can reset, seed and time-travel the simulated loyalty API.
package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// AdminClient talks to twin /admin/* endpoints.
type AdminClient struct {
	base string
	http *http.Client
}

// New creates an AdminClient for the twin at baseURL with a 5-second timeout.
func New(baseURL string) *AdminClient {
	return &AdminClient{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *AdminClient) url(path string) string {
	return c.base + "/admin" + path
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *AdminClient) Health() (bool, string) {
	resp, err := c.http.Get(c.url("/health"))
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusOK {
		return true, strings.TrimSpace(string(body))
	}
	return false, fmt.Sprintf("status %d: %s", resp.StatusCode, body)
}

// Reset calls POST /admin/reset.
func (c *AdminClient) Reset() (string, error) {
	return c.post("/reset", nil, "reset")
}

// Seed POSTs the contents of a JSON file to /admin/state.
func (c *AdminClient) Seed(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	return c.post("/state", data, "seed")
}

// AdvanceTime moves the twin's simulated clock forward by d, e.g. "90m".
func (c *AdminClient) AdvanceTime(d string) (string, error) {
	if _, err := time.ParseDuration(d); err != nil {
		return "", fmt.Errorf("invalid duration %q: %w", d, err)
	}
	data, _ := json.Marshal(map[string]string{"duration": d})
	return c.post("/time/advance", data, "advance")
}

// UpdateSettings changes the twin's response-shape settings, for example
// {"offer_envelope": "array"}.
func (c *AdminClient) UpdateSettings(settings map[string]any) (string, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return "", err
	}
	return c.post("/settings", data, "settings")
}

func (c *AdminClient) post(path string, data []byte, op string) (string, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}
	resp, err := c.http.Post(c.url(path), "application/json", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s failed (status %d): %s", op, resp.StatusCode, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
