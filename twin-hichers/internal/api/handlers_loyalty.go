package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/hichers/hichers/pkg/twincore"
	"github.com/hichers/hichers/twin-hichers/internal/store"
)

// schemePayload is the save-loyalty-scheme body.
type schemePayload struct {
	UserID           int     `json:"userID"`
	Name             string  `json:"loyaltySchemeName"`
	TypeID           int     `json:"loyaltySchemeTypeID"`
	AmountSpend      float64 `json:"amountSpend"`
	PointsCollected  int     `json:"pointsCollected"`
	PointsRedeem     int     `json:"pointsRedeem"`
	AmountFromPoints float64 `json:"amountFromPoints"`
	RedeemFrequency  int     `json:"redeemFrequency"`
	StampsToCollect  int     `json:"stampsToCollect"`
	FreeItems        int     `json:"freeItems"`
	MonthsExpire     int     `json:"monthsExpire"`
	ReturnPolicyDays int     `json:"returnPolicyDays"`
	ValidFromDate    string  `json:"validFromDate"`
}

// parseSchemeDate accepts YYYY/MM/DD or YYYY-MM-DD; empty means immediately.
func (h *Handler) parseSchemeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range []string{"2006/01/02", wireDate} {
		if t, err := time.ParseInLocation(layout, s, h.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (h *Handler) schemeJSON(sc store.Scheme, now time.Time) map[string]any {
	status := "present"
	from, _ := h.parseSchemeDate(sc.ValidFromDate)
	switch {
	case sc.ExpireFlag:
		status = "past"
	case !from.IsZero() && now.Before(from):
		status = "future"
	}
	var date string
	if !from.IsZero() {
		date = from.Format(wireDate)
	}
	return map[string]any{
		"loyaltySchemeId":     sc.ID,
		"loyaltySchemeName":   sc.Name,
		"loyaltySchemeTypeId": sc.TypeID,
		"amountSpend":         sc.AmountSpend,
		"pointsCollected":     sc.PointsCollected,
		"pointsRedeem":        sc.PointsRedeem,
		"amountFromPoints":    sc.AmountFromPoints,
		"redeemFrequency":     sc.RedeemFrequency,
		"stampsToCollect":     sc.StampsToCollect,
		"freeItems":           sc.FreeItems,
		"monthsExpire":        sc.MonthsExpire,
		"returnPolicyDays":    sc.ReturnPolicyDays,
		"validFromDate":       date,
		"timeStatus":          status,
		"expireFlag":          sc.ExpireFlag,
		"memberCount":         sc.MemberCount,
	}
}

// LoadSchemes handles GET /loyalty/load-loyalty-scheme.
func (h *Handler) LoadSchemes(w http.ResponseWriter, r *http.Request) {
	now := h.store.Clock.Now()
	schemes := h.store.SchemesFor(userFrom(r.Context()))
	items := make([]map[string]any, 0, len(schemes))
	for _, sc := range schemes {
		items = append(items, h.schemeJSON(sc, now))
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
}

// SaveScheme handles POST /loyalty/save-loyalty-scheme. A name the user
// already has is answered with a success-shaped body whose message says so.
func (h *Handler) SaveScheme(w http.ResponseWriter, r *http.Request) {
	var p schemePayload
	if err := twincore.Decode(r, &p); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	uid := userFrom(r.Context())
	if p.UserID != uid {
		fail(w, http.StatusForbidden, "You are not allowed to access this resource")
		return
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		fail(w, http.StatusBadRequest, "Loyalty scheme name is required")
		return
	}
	if p.TypeID < 1 || p.TypeID > 3 {
		fail(w, http.StatusBadRequest, "Invalid loyalty scheme type")
		return
	}
	if _, ok := h.parseSchemeDate(p.ValidFromDate); !ok {
		fail(w, http.StatusBadRequest, "Invalid validFromDate")
		return
	}
	if h.store.SchemeNamed(uid, p.Name) {
		twincore.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Loyalty scheme with this name already added",
		})
		return
	}

	sc := store.Scheme{
		ID:               h.store.Schemes.NextID(),
		UserID:           uid,
		Name:             p.Name,
		TypeID:           p.TypeID,
		AmountSpend:      p.AmountSpend,
		PointsCollected:  p.PointsCollected,
		PointsRedeem:     p.PointsRedeem,
		AmountFromPoints: p.AmountFromPoints,
		RedeemFrequency:  p.RedeemFrequency,
		StampsToCollect:  p.StampsToCollect,
		FreeItems:        p.FreeItems,
		MonthsExpire:     p.MonthsExpire,
		ReturnPolicyDays: p.ReturnPolicyDays,
		ValidFromDate:    p.ValidFromDate,
		CreatedAt:        h.store.Clock.Now(),
	}
	h.store.Schemes.Set(sc.ID, sc)
	twincore.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Loyalty scheme saved successfully",
		"data":    map[string]any{"loyaltySchemeId": sc.ID},
	})
}
