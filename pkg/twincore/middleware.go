package twincore

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// RequestLogEntry is one request seen by the server, as shown by
// GET /admin/requests.
type RequestLogEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"request_id,omitempty"`
	Method     string            `json:"method"`
	Path       string            `json:"path"`
	Query      string            `json:"query,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	StatusCode int               `json:"status_code"`
	DurationMS float64           `json:"duration_ms"`
}

// RequestLog keeps the most recent requests, oldest first.
type RequestLog struct {
	mu      sync.RWMutex
	entries []RequestLogEntry
	maxSize int
}

// NewRequestLog creates a request log holding at most maxSize entries.
func NewRequestLog(maxSize int) *RequestLog {
	return &RequestLog{
		entries: make([]RequestLogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest if at capacity.
func (rl *RequestLog) Add(entry RequestLogEntry) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.entries) >= rl.maxSize {
		rl.entries = rl.entries[1:]
	}
	rl.entries = append(rl.entries, entry)
}

// Entries returns a copy of all log entries.
func (rl *RequestLog) Entries() []RequestLogEntry {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return slices.Clone(rl.entries)
}

// Clear removes all entries.
func (rl *RequestLog) Clear() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.entries = rl.entries[:0]
}

// FaultConfig is an injected failure for an endpoint. A zero StatusCode with
// a Delay only slows the real handler down.
type FaultConfig struct {
	StatusCode  int
	Body        string
	ContentType string
	Delay       time.Duration
	Rate        float64 // 0.0-1.0, probability of the fault triggering
}

// faultJSON is the wire form; delays travel as whole milliseconds.
type faultJSON struct {
	StatusCode  int     `json:"status_code"`
	Body        string  `json:"body,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	DelayMS     int64   `json:"delay_ms,omitempty"`
	Rate        float64 `json:"rate"`
}

// MarshalJSON implements json.Marshaler.
func (f FaultConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(faultJSON{
		StatusCode:  f.StatusCode,
		Body:        f.Body,
		ContentType: f.ContentType,
		DelayMS:     f.Delay.Milliseconds(),
		Rate:        f.Rate,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FaultConfig) UnmarshalJSON(data []byte) error {
	var w faultJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.DelayMS < 0 {
		return fmt.Errorf("delay_ms must not be negative")
	}
	*f = FaultConfig{
		StatusCode:  w.StatusCode,
		Body:        w.Body,
		ContentType: w.ContentType,
		Delay:       time.Duration(w.DelayMS) * time.Millisecond,
		Rate:        w.Rate,
	}
	return nil
}

// FaultRegistry holds injected faults. A pattern matches its exact path and
// every path below it, so /offer/update-offer also covers /offer/update-offer/7.
type FaultRegistry struct {
	mu     sync.RWMutex
	faults map[string]FaultConfig
}

// NewFaultRegistry creates an empty registry.
func NewFaultRegistry() *FaultRegistry {
	return &FaultRegistry{faults: make(map[string]FaultConfig)}
}

// Set injects a fault for pattern. A zero Rate means always.
func (fr *FaultRegistry) Set(pattern string, fault FaultConfig) {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	if fault.Rate == 0 {
		fault.Rate = 1.0
	}
	fr.faults[normalizePattern(pattern)] = fault
}

// Remove drops the fault for pattern and reports whether one existed.
func (fr *FaultRegistry) Remove(pattern string) bool {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	pattern = normalizePattern(pattern)
	_, existed := fr.faults[pattern]
	delete(fr.faults, pattern)
	return existed
}

func normalizePattern(p string) string {
	return "/" + strings.Trim(p, "/")
}

// Check returns the fault for the longest pattern matching path, or nil if
// no fault applies this time.
func (fr *FaultRegistry) Check(path string) *FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	var matches []string
	for p := range fr.faults {
		if path == p || strings.HasPrefix(path, p+"/") {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool { return len(matches[i]) > len(matches[j]) })
	f := fr.faults[matches[0]]
	if f.Rate >= 1.0 || rand.Float64() < f.Rate {
		return &f
	}
	return nil
}

// All returns a copy of the registered faults keyed by pattern.
func (fr *FaultRegistry) All() map[string]FaultConfig {
	fr.mu.RLock()
	defer fr.mu.RUnlock()
	out := make(map[string]FaultConfig, len(fr.faults))
	for k, v := range fr.faults {
		out[k] = v
	}
	return out
}

// Reset clears all faults.
func (fr *FaultRegistry) Reset() {
	fr.mu.Lock()
	defer fr.mu.Unlock()
	clear(fr.faults)
}

// Middleware is the shared middleware set. ReqLog and Faults are exposed to
// the admin plane.
type Middleware struct {
	cfg    *Config
	logger *slog.Logger
	ReqLog *RequestLog
	Faults *FaultRegistry
}

// NewMiddleware creates a Middleware. A nil logger uses slog.Default.
func NewMiddleware(cfg *Config, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		cfg:    cfg,
		logger: logger,
		ReqLog: NewRequestLog(1000),
		Faults: NewFaultRegistry(),
	}
}

// CORS answers preflights and sets CORS headers. With no AllowedOrigins any
// origin may call without credentials, which is what the twin wants. With a
// list, matching origins are echoed back and may send the session cookie.
func (m *Middleware) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := r.Header.Get("Origin")
		switch {
		case len(m.cfg.AllowedOrigins) == 0:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(m.cfg.AllowedOrigins, origin):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		h.Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by downstream handlers.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// redactedHeaders carry credentials or session ids and are never recorded.
var redactedHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

// RequestLog records every request in ReqLog and logs it at debug level.
// Headers are recorded only in verbose mode.
func (m *Middleware) RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		entry := RequestLogEntry{
			Timestamp:  start,
			RequestID:  chimw.GetReqID(r.Context()),
			Method:     r.Method,
			Path:       r.URL.Path,
			Query:      r.URL.RawQuery,
			StatusCode: rec.statusCode,
			DurationMS: float64(elapsed.Microseconds()) / 1000,
		}
		if m.cfg.Verbose {
			entry.Headers = make(map[string]string, len(r.Header))
			for k := range r.Header {
				if !slices.Contains(redactedHeaders, k) {
					entry.Headers[k] = r.Header.Get(k)
				}
			}
		}
		m.ReqLog.Add(entry)

		m.logger.Debug("request",
			"request_id", entry.RequestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration", elapsed,
		)
	})
}

// LatencyInjection delays every request by 80-120% of the configured latency.
func (m *Middleware) LatencyInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.Latency > 0 {
			jitter := 0.8 + rand.Float64()*0.4
			if !sleep(r, time.Duration(float64(m.cfg.Latency)*jitter)) {
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RandomFailure fails requests with a 500 at the configured rate.
func (m *Middleware) RandomFailure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cfg.FailRate > 0 && rand.Float64() < m.cfg.FailRate {
			Error(w, http.StatusInternalServerError, "simulated random failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FaultInjection applies the registered fault for the request path. Mount it
// inside route groups so the admin plane is never affected. Without a body
// the fault answers in the remote's {success,message} shape.
func (m *Middleware) FaultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fault := m.Faults.Check(r.URL.Path)
		if fault == nil {
			next.ServeHTTP(w, r)
			return
		}
		if fault.Delay > 0 && !sleep(r, fault.Delay) {
			return
		}
		if fault.StatusCode == 0 {
			next.ServeHTTP(w, r)
			return
		}
		m.logger.Debug("fault injected", "path", r.URL.Path, "status", fault.StatusCode)
		ct := fault.ContentType
		if ct == "" {
			ct = "application/json"
		}
		w.Header().Set("Content-Type", ct)
		w.WriteHeader(fault.StatusCode)
		if fault.Body != "" {
			fmt.Fprint(w, fault.Body)
			return
		}
		fmt.Fprintf(w, `{"success":false,"message":"injected fault","code":%d}`, fault.StatusCode)
	})
}

// sleep waits for d or until the client goes away. It reports whether the
// request is still live.
func sleep(r *http.Request, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}
