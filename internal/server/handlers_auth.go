package server

import (
	"net/http"

	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/session"
	"github.com/hichers/hichers/pkg/twincore"
)

type sessionView struct {
	UserID   int                   `json:"userID"`
	Business model.BusinessProfile `json:"business"`
}

// RequestCode handles POST /api/auth/otp.
func (s *Server) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CountryCode  string `json:"countryCode"`
		MobileNumber string `json:"mobileNumber"`
	}
	if err := twincore.Decode(r, &req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, _ := session.StoreFrom(r.Context())
	ch, err := s.auth.RequestCode(r.Context(), st, req.CountryCode, req.MobileNumber)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	msg := ch.Message
	if msg == "" {
		msg = "Verification code sent."
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"message": msg})
}

// Verify handles POST /api/auth/verify.
func (s *Server) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OTP string `json:"otp"`
	}
	if err := twincore.Decode(r, &req); err != nil {
		twincore.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	st, _ := session.StoreFrom(r.Context())
	sess, err := s.auth.Verify(r.Context(), st, req.OTP)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusOK, sessionView{UserID: sess.UserID, Business: sess.Business})
}

// Logout handles POST /api/auth/logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	st, _ := session.StoreFrom(r.Context())
	if err := s.auth.Logout(r.Context(), st); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CurrentSession handles GET /api/session.
func (s *Server) CurrentSession(w http.ResponseWriter, r *http.Request) {
	st, _ := session.StoreFrom(r.Context())
	sess, err := st.Load(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusOK, sessionView{UserID: sess.UserID, Business: sess.Business})
}
