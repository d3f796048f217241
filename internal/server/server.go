// Package server is the dashboard's backend-for-frontend: a JSON API over the
// offer, scheme and dashboard managers with one session per browser.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hichers/hichers/internal/auth"
	"github.com/hichers/hichers/internal/dashboard"
	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/internal/schemes"
	"github.com/hichers/hichers/internal/session"
	"github.com/hichers/hichers/pkg/twincore"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "hichers_sid"

// Mounter is implemented by route sets mounted next to the BFF under /api.
type Mounter interface {
	Routes(r chi.Router)
}

// Server serves the BFF API.
type Server struct {
	sessions  session.Provider
	auth      *auth.Service
	offers    *offers.Manager
	schemes   *schemes.Manager
	dashboard *dashboard.Aggregator
	local     Mounter

	loc    *time.Location
	now    func() time.Time
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLocation sets the zone offer and scheme dates are entered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source used for validation and classification.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithSessionTTL sets the cookie lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secure = secure }
}

// WithLocalAPI mounts the local backend routes under /api.
func WithLocalAPI(m Mounter) Option {
	return func(s *Server) { s.local = m }
}

// New creates a Server. gw must read its session from the request context
// (session.ContextReader) so one client serves every browser.
func New(gw *gateway.Client, sessions session.Provider, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		loc:      time.Local,
		now:      time.Now,
		ttl:      7 * 24 * time.Hour,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.auth = auth.NewService(gw, s.logger)
	s.offers = offers.NewManager(gw,
		offers.WithLocation(s.loc), offers.WithClock(s.now), offers.WithLogger(s.logger))
	s.schemes = schemes.NewManager(gw,
		schemes.WithLocation(s.loc), schemes.WithClock(s.now), schemes.WithLogger(s.logger))
	s.dashboard = dashboard.New(s.schemes, s.offers, gw, s.logger)
	return s
}

// Routes registers the BFF routes.
func (s *Server) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		twincore.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.withSession)

			r.Post("/auth/otp", s.RequestCode)
			r.Post("/auth/verify", s.Verify)
			r.Post("/auth/logout", s.Logout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)

				r.Get("/session", s.CurrentSession)

				r.Get("/offers", s.ListOffers)
				r.Post("/offers", s.CreateOffer)
				r.Get("/offers/{id}", s.ViewOffer)
				r.Put("/offers/{id}", s.UpdateOffer)
				r.Delete("/offers/{id}", s.DeleteOffer)
				r.Post("/offers/{id}/end", s.EndOffer)

				r.Get("/schemes", s.ListSchemes)
				r.Post("/schemes", s.CreateScheme)

				r.Get("/dashboard", s.Dashboard)
			})
		})

		if s.local != nil {
			s.local.Routes(r)
		}
	})
}

// withSession resolves the browser session from the cookie, issuing a new
// id when it is missing or malformed, and attaches its store to the context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(SessionCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				sid = id.String()
			}
		}
		if sid == "" {
			sid = uuid.NewString()
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sid,
			Path:     "/",
			MaxAge:   int(s.ttl.Seconds()),
			HttpOnly: true,
			Secure:   s.secure,
			SameSite: http.SameSiteLaxMode,
		})
		ctx := session.WithStore(r.Context(), s.sessions.For(sid))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth rejects requests whose session carries no token.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, _ := session.StoreFrom(r.Context())
		sess, err := st.Load(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !sess.Authenticated() {
			s.fail(w, r, gateway.ErrAuthRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
