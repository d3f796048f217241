// Package api implements the Hichers loyalty API handlers for the twin. It
// reproduces the consumed contract, including its uneven response shapes.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hichers/hichers/pkg/twincore"
	"github.com/hichers/hichers/twin-hichers/internal/store"
)

// Handler holds all API handler state.
type Handler struct {
	store  *store.MemoryStore
	mw     *twincore.Middleware
	tokens *TokenIssuer
	loc    *time.Location
	logger *slog.Logger
}

// NewHandler creates a new API handler. Offer windows are interpreted in loc.
func NewHandler(s *store.MemoryStore, mw *twincore.Middleware, tokens *TokenIssuer, loc *time.Location, logger *slog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, mw: mw, tokens: tokens, loc: loc, logger: logger}
}

// Routes mounts the Hichers API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.FaultInjection)
		r.Post("/auth/generate-otp", h.GenerateOTP)
		r.Post("/auth/validate-otp", h.ValidateOTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware)
		r.Use(h.mw.FaultInjection)

		r.Group(func(r chi.Router) {
			r.Use(requireUserQuery)
			r.Get("/offer/load-offers", h.LoadOffers)
			r.Post("/offer/load-offers", h.LoadOffers)
			r.Post("/offer/save-offer", h.SaveOffer)
			r.Put("/offer/update-offer/{id}", h.UpdateOffer)
			r.Delete("/offer/delete-offer/{id}", h.DeleteOffer)
			r.Post("/offer/view-offer", h.ViewOffer)
			r.Get("/loyalty/load-loyalty-scheme", h.LoadSchemes)
		})

		r.Post("/loyalty/save-loyalty-scheme", h.SaveScheme)
		r.Post("/web/web-info", h.WebInfo)
	})
}

// Settings implements admin.SettingsProvider.
func (h *Handler) Settings() map[string]any {
	s := h.store.Settings()
	return map[string]any{
		"offer_envelope":   s.OfferEnvelope,
		"save_offer_reply": s.SaveOfferReply,
		"otp_ttl":          s.OTPTTL,
	}
}

// UpdateSettings implements admin.SettingsProvider.
func (h *Handler) UpdateSettings(updates map[string]any) error {
	return h.store.ApplySettings(updates)
}

type userKey struct{}

func userFrom(ctx context.Context) int {
	id, _ := ctx.Value(userKey{}).(int)
	return id
}

// authMiddleware verifies the bearer token and rejects a userID query
// parameter that names a different user.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			fail(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		uid, err := h.tokens.Verify(token)
		if err != nil {
			h.logger.Debug("rejected token", "err", err)
			fail(w, http.StatusUnauthorized, "Session expired, please login again")
			return
		}
		if q := r.URL.Query().Get("userID"); q != "" && q != strconv.Itoa(uid) {
			fail(w, http.StatusForbidden, "You are not allowed to access this resource")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, uid)))
	})
}

func requireUserQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("userID") == "" {
			fail(w, http.StatusBadRequest, "userID is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fail writes the remote API's error body.
func fail(w http.ResponseWriter, status int, message string) {
	twincore.JSON(w, status, map[string]any{"success": false, "message": message})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}
