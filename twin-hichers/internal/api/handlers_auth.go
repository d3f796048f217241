package api

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/hichers/hichers/pkg/twincore"
	"github.com/hichers/hichers/twin-hichers/internal/store"
)

// GenerateOTP handles POST /auth/generate-otp. Unknown phone numbers get a
// new account. The code is echoed in the response, as the staging API does.
func (h *Handler) GenerateOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CountryCode  string `json:"countryCode"`
		MobileNumber string `json:"mobileNumber"`
		WebFlag      bool   `json:"webFlag"`
	}
	if err := twincore.Decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.CountryCode = strings.TrimSpace(req.CountryCode)
	req.MobileNumber = strings.TrimSpace(req.MobileNumber)
	if req.CountryCode == "" || req.MobileNumber == "" {
		fail(w, http.StatusBadRequest, "Country code and mobile number are required")
		return
	}

	now := h.store.Clock.Now()
	u, ok := h.store.UserByPhone(req.CountryCode, req.MobileNumber)
	if !ok {
		u = store.User{
			ID:           h.store.Users.NextID(),
			CountryCode:  req.CountryCode,
			MobileNumber: req.MobileNumber,
			CreatedAt:    now,
		}
	}
	u.OTP = fmt.Sprintf("%04d", rand.IntN(10000))
	u.OTPExpires = now.Add(h.store.OTPTTL())
	h.store.Users.Set(u.ID, u)

	h.logger.Info("otp issued", "user_id", u.ID, "web", req.WebFlag)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": "OTP sent successfully",
		"userID":   u.ID,
		"otp":      u.OTP,
	})
}

// ValidateOTP handles POST /auth/validate-otp. A wrong or expired code is a
// 200 with success false and no token.
func (h *Handler) ValidateOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int    `json:"userID"`
		OTP    string `json:"otp"`
	}
	if err := twincore.Decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	u, ok := h.store.Users.Get(req.UserID)
	if !ok {
		fail(w, http.StatusNotFound, "User not found")
		return
	}
	if u.OTP == "" || u.OTP != strings.TrimSpace(req.OTP) || h.store.Clock.Now().After(u.OTPExpires) {
		twincore.JSON(w, http.StatusOK, map[string]any{"success": false, "response": "Invalid OTP"})
		return
	}

	u, _ = h.store.Users.Update(u.ID, func(u *store.User) { u.OTP = "" })
	token, err := h.tokens.Issue(u.ID)
	if err != nil {
		fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"response": "Login successful",
		"token":    token,
		"user": map[string]any{
			"userID":       u.ID,
			"businessName": u.BusinessName,
			"logo":         u.Logo,
			"mobileNumber": u.MobileNumber,
			"countryCode":  u.CountryCode,
		},
	})
}
