package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/hichers/hichers/pkg/twincore"
	"github.com/hichers/hichers/twin-hichers/internal/store"
)

// WebInfo handles POST /web/web-info. Seeded metrics are served as stored;
// without them the customer count is derived from scheme membership.
// total_free_stamps is rendered as an array with string counts and
// last_month_total_free_stamps as an object, matching the remote's mixed shapes.
func (h *Handler) WebInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int `json:"userID"`
	}
	if err := twincore.Decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	uid := userFrom(r.Context())
	if req.UserID != uid {
		fail(w, http.StatusForbidden, "You are not allowed to access this resource")
		return
	}

	m, ok := h.store.Metrics.Get(uid)
	if !ok {
		m = store.Metrics{UserID: uid}
		for _, sc := range h.store.SchemesFor(uid) {
			m.TotalCustomers += sc.MemberCount
		}
	}

	now := h.store.Clock.Now()
	active := 0
	for _, o := range h.store.OffersFor(uid) {
		if timeStatus(o, now) == "PRESENT" {
			active++
		}
	}

	twincore.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"totalCustomers":        m.TotalCustomers,
			"lastMonthCustomers":    m.LastMonthCustomers,
			"pointsRedeemed":        m.PointsRedeemed,
			"lastMonthRewards":      m.LastMonthRewards,
			"total_free_stamps":            stampList(m.FreeStamps),
			"last_month_total_free_stamps": stampObject(m.LastMonthFreeStamps),
			"loyaltyValue":          m.LoyaltyValue,
			"lastMonthLoyaltyValue": m.LastMonthLoyaltyValue,
			"activeOffers":          active,
		},
	})
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stampList(m map[string]int) []map[string]any {
	out := make([]map[string]any, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, map[string]any{"schemeId": k, "count": strconv.Itoa(m[k])})
	}
	return out
}

func stampObject(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = map[string]any{"schemeId": k, "count": v}
	}
	return out
}
