// Package twincore provides the base HTTP server, CLI flags, middleware chain,
// and response helpers shared by the Hichers API twin and the dashboard server.
package twincore

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
)

// Config holds the common server configuration, parsed from CLI flags.
type Config struct {
	Port     int
	Latency  time.Duration
	FailRate float64
	SeedFile string
	Verbose  bool
	Name     string // server name for logging

	// AllowedOrigins may call with credentials. Empty means any origin,
	// without credentials.
	AllowedOrigins []string
}

// RegisterFlags binds the common flags to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port")
	fs.DurationVar(&c.Latency, "latency", 0, "Base simulated latency")
	fs.Float64Var(&c.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	fs.StringVar(&c.SeedFile, "seed-file", "", "Path to JSON fixture for initial state")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable request/response logging")
	fs.Func("allowed-origins", "Comma-separated browser origins allowed to send cookies", func(v string) error {
		c.AllowedOrigins = c.AllowedOrigins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
		return nil
	})
}

// ParseFlags parses common CLI flags and returns a Config.
// The name is used for logging and identification.
func ParseFlags(name string, defaultPort int) *Config {
	cfg := &Config{Name: name, Port: defaultPort}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if p := os.Getenv("PORT"); p != "" {
		fmt.Sscanf(p, "%d", &cfg.Port)
	}
	return cfg
}

// NewLogger builds the JSON logger used by every binary.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Twin is the base server. It wraps a chi router with common middleware and
// provides lifecycle management.
type Twin struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	mw     *Middleware
	mu     sync.RWMutex // protects Config fields during runtime updates
}

// New creates a new Twin with the given config.
func New(cfg *Config) *Twin {
	logger := NewLogger(cfg.Verbose)

	r := chi.NewRouter()
	mw := NewMiddleware(cfg, logger)

	// Latency and failure middleware are always mounted so runtime config
	// updates take effect immediately; both check the config per request.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)
	r.Use(mw.LatencyInjection)
	r.Use(mw.RandomFailure)

	return &Twin{
		Config: cfg,
		Router: r,
		Logger: logger,
		mw:     mw,
	}
}

// Middleware returns the middleware instance for external access (e.g., fault injection).
func (t *Twin) Middleware() *Middleware {
	return t.mw
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (t *Twin) GetConfig() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return map[string]any{
		"name":      t.Config.Name,
		"port":      t.Config.Port,
		"latency":   t.Config.Latency.String(),
		"fail_rate": t.Config.FailRate,
		"verbose":   t.Config.Verbose,
		"origins":   t.Config.AllowedOrigins,
	}
}

// UpdateConfig updates runtime configuration fields from a map.
// This implements the admin.ConfigProvider interface.
// All fields are validated before any are applied.
func (t *Twin) UpdateConfig(updates map[string]any) error {
	var (
		latency  *time.Duration
		failRate *float64
		verbose  *bool
	)

	for k, v := range updates {
		switch k {
		case "latency":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(s)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			verbose = &b
		case "name", "port", "origins":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if latency != nil {
		t.Config.Latency = *latency
	}
	if failRate != nil {
		t.Config.FailRate = *failRate
	}
	if verbose != nil {
		t.Config.Verbose = *verbose
	}
	return nil
}

// Serve starts the HTTP server and blocks until shutdown signal.
func (t *Twin) Serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", t.Config.Port),
		Handler:      t.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return Run(srv, t.Logger, t.Config.Name)
}

// Run serves srv until SIGINT or SIGTERM, then shuts down gracefully.
func Run(srv *http.Server, logger *slog.Logger, name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting server", "name", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serving %s: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server", "name", name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Twin can be used directly in tests.
func (t *Twin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// FieldError writes a JSON error response naming the offending input field.
func FieldError(w http.ResponseWriter, status int, field, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
			"field":   field,
		},
	})
}

// Text writes a plain-text response.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

// Decode reads a JSON request body into v.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
