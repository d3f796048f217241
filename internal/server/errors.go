package server

import (
	"errors"
	"net/http"

	"github.com/hichers/hichers/internal/auth"
	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/internal/schemes"
	"github.com/hichers/hichers/internal/session"
	"github.com/hichers/hichers/pkg/twincore"
)

// fail maps err onto an error envelope. Remote rejections carry the remote
// message; anything unexplained gets the generic text.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr    *model.ValidationError
		apiErr  *gateway.APIError
		timeout *gateway.TimeoutError
		netErr  *gateway.NetworkError
	)
	switch {
	case errors.As(err, &verr):
		twincore.FieldError(w, http.StatusBadRequest, verr.Field, verr.Message)
	case errors.Is(err, gateway.ErrAuthRequired):
		twincore.Error(w, http.StatusUnauthorized, "Please sign in to continue.")
	case errors.Is(err, auth.ErrNoPendingOTP):
		twincore.Error(w, http.StatusBadRequest, "Request a verification code first.")
	case errors.Is(err, auth.ErrCodeRejected):
		twincore.FieldError(w, http.StatusBadRequest, "otp", "The code you entered is not valid.")
	case errors.Is(err, offers.ErrNotFound):
		twincore.Error(w, http.StatusNotFound, "Offer not found.")
	case errors.Is(err, offers.ErrNotRunning):
		twincore.Error(w, http.StatusConflict, "Only running offers can be ended early.")
	case errors.Is(err, schemes.ErrDuplicateName):
		twincore.FieldError(w, http.StatusConflict, "name", "A loyalty scheme with this name already exists.")
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusUnauthorized {
			// The remote no longer accepts the token.
			if st, ok := session.StoreFrom(r.Context()); ok {
				if cerr := st.Clear(r.Context()); cerr != nil {
					s.logger.Warn("clearing rejected session failed", "err", cerr)
				}
			}
		}
		twincore.Error(w, remoteStatus(apiErr.Status), gateway.Message(err))
	case errors.As(err, &timeout):
		s.logger.Warn("remote request timed out", "path", r.URL.Path, "err", err)
		twincore.Error(w, http.StatusGatewayTimeout, gateway.GenericMessage)
	case errors.As(err, &netErr):
		s.logger.Warn("remote unreachable", "path", r.URL.Path, "err", err)
		twincore.Error(w, http.StatusBadGateway, gateway.GenericMessage)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		twincore.Error(w, http.StatusInternalServerError, gateway.GenericMessage)
	}
}

// remoteStatus picks the status returned for a remote rejection. Auth and
// not-found pass through, other client errors and success:false bodies are
// reported as bad requests, and remote server errors as a bad gateway.
func remoteStatus(status int) int {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return status
	case status >= 500:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
