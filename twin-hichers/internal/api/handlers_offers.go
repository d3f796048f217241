package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hichers/hichers/pkg/twincore"
	"github.com/hichers/hichers/twin-hichers/internal/store"
)

const (
	wireDateTime = "2006-01-02 15:04:05"
	wireDate     = "2006-01-02"
	wireClock    = "15:04"
)

var windowLayouts = []string{
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// offerPayload is the save/update body sent by the dashboard.
type offerPayload struct {
	OfferID          int     `json:"offerID"`
	MapID            int     `json:"mapID"`
	OfferName        string  `json:"offerName"`
	OfferDescription string  `json:"offerDescription"`
	OfferTypeID      int     `json:"offerTypeID"`
	ItemsBuying      int     `json:"itemsBuying"`
	ItemsFree        int     `json:"itemsFree"`
	PercentDiscount  int     `json:"percentDiscount"`
	CashDiscount     float64 `json:"cashDiscount"`
	MinimumSpend     float64 `json:"minimumSpend"`
	ValidFrom        string  `json:"validFrom"`
	ValidTo          string  `json:"validTo"`
	ValidFromDate    string  `json:"validFromDate"`
	ValidFromTime    string  `json:"validFromTime"`
	ValidToDate      string  `json:"validToDate"`
	ValidToTime      string  `json:"validToTime"`
}

func (h *Handler) parseWindow(combined, date, clock string) (time.Time, error) {
	s := strings.TrimSpace(combined)
	if s == "" && date != "" {
		s = strings.TrimSpace(date + " " + clock)
	}
	for _, layout := range windowLayouts {
		if t, err := time.ParseInLocation(layout, s, h.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// apply validates p and copies it onto o.
func (h *Handler) apply(p offerPayload, o *store.Offer) string {
	if strings.TrimSpace(p.OfferName) == "" {
		return "Offer name is required"
	}
	if p.OfferTypeID < 1 || p.OfferTypeID > 6 {
		return "Invalid offer type"
	}
	from, err := h.parseWindow(p.ValidFrom, p.ValidFromDate, p.ValidFromTime)
	if err != nil {
		return "Invalid validFrom"
	}
	to, err := h.parseWindow(p.ValidTo, p.ValidToDate, p.ValidToTime)
	if err != nil {
		return "Invalid validTo"
	}
	if !from.Before(to) {
		return "Offer end must be after its start"
	}
	o.Name = strings.TrimSpace(p.OfferName)
	o.Description = p.OfferDescription
	o.TypeID = p.OfferTypeID
	o.ItemsBuying = p.ItemsBuying
	o.ItemsFree = p.ItemsFree
	o.PercentDiscount = p.PercentDiscount
	o.CashDiscount = p.CashDiscount
	o.MinimumSpend = p.MinimumSpend
	o.ValidFrom = from
	o.ValidTo = to
	return ""
}

func timeStatus(o store.Offer, now time.Time) string {
	switch {
	case o.ExpireFlag:
		return "PAST"
	case now.Before(o.ValidFrom):
		return "FUTURE"
	case !now.After(o.ValidTo):
		return "PRESENT"
	default:
		return "PAST"
	}
}

// offerJSON renders an offer the way load-offers does: dashed dates, both
// combined and split window fields, upper-case status and a numeric flag.
func (h *Handler) offerJSON(o store.Offer, now time.Time) map[string]any {
	from, to := o.ValidFrom.In(h.loc), o.ValidTo.In(h.loc)
	expire := 0
	if o.ExpireFlag {
		expire = 1
	}
	return map[string]any{
		"offerID":          o.ID,
		"mapID":            o.MapID,
		"offerName":        o.Name,
		"offerDescription": o.Description,
		"offerTypeID":      o.TypeID,
		"itemsBuying":      o.ItemsBuying,
		"itemsFree":        o.ItemsFree,
		"percentDiscount":  o.PercentDiscount,
		"cashDiscount":     o.CashDiscount,
		"minimumSpend":     o.MinimumSpend,
		"validFrom":        from.Format(wireDateTime),
		"validTo":          to.Format(wireDateTime),
		"validFromDate":    from.Format(wireDate),
		"validFromTime":    from.Format(wireClock),
		"validToDate":      to.Format(wireDate),
		"validToTime":      to.Format(wireClock),
		"timeStatus":       timeStatus(o, now),
		"expire_flag":      expire,
		"redemption_count": o.Redemptions,
	}
}

// LoadOffers handles GET|POST /offer/load-offers in the configured envelope.
func (h *Handler) LoadOffers(w http.ResponseWriter, r *http.Request) {
	now := h.store.Clock.Now()
	offers := h.store.OffersFor(userFrom(r.Context()))
	items := make([]map[string]any, 0, len(offers))
	for _, o := range offers {
		items = append(items, h.offerJSON(o, now))
	}

	envelope := h.store.Settings().OfferEnvelope
	if len(items) == 0 && envelope != store.EnvelopeArray {
		twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "No offers found"})
		return
	}
	switch envelope {
	case store.EnvelopeArray:
		twincore.JSON(w, http.StatusOK, items)
	case store.EnvelopeResponse:
		twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "response": items})
	case store.EnvelopeOffers:
		twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "offers": items})
	case store.EnvelopeNested:
		twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"offers": items}})
	default:
		twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "data": items})
	}
}

// SaveOffer handles POST /offer/save-offer. By default the reply is plain
// text, which clients must tolerate.
func (h *Handler) SaveOffer(w http.ResponseWriter, r *http.Request) {
	var p offerPayload
	if err := twincore.Decode(r, &p); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	now := h.store.Clock.Now()
	o := store.Offer{UserID: userFrom(r.Context()), CreatedAt: now}
	if msg := h.apply(p, &o); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	o.ID = h.store.Offers.NextID()
	o.MapID = h.store.NextMapID()
	h.store.Offers.Set(o.ID, o)

	if h.store.Settings().SaveOfferReply == store.ReplyJSON {
		twincore.JSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Offer saved successfully",
			"data":    map[string]any{"offerID": o.ID, "mapID": o.MapID},
		})
		return
	}
	twincore.Text(w, http.StatusOK, "Offer saved successfully")
}

func (h *Handler) ownedOffer(r *http.Request, id int) (store.Offer, bool) {
	o, ok := h.store.Offers.Get(id)
	return o, ok && o.UserID == userFrom(r.Context())
}

// UpdateOffer handles PUT /offer/update-offer/{id}.
func (h *Handler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, http.StatusBadRequest, "Invalid offer id")
		return
	}
	o, ok := h.ownedOffer(r, id)
	if !ok {
		fail(w, http.StatusNotFound, "Offer not found")
		return
	}
	var p offerPayload
	if err := twincore.Decode(r, &p); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := h.apply(p, &o); msg != "" {
		fail(w, http.StatusBadRequest, msg)
		return
	}
	h.store.Offers.Set(id, o)
	twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "Offer updated successfully"})
}

// DeleteOffer handles DELETE /offer/delete-offer/{id}. Success is an empty 200.
func (h *Handler) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		fail(w, http.StatusBadRequest, "Invalid offer id")
		return
	}
	if _, ok := h.ownedOffer(r, id); !ok {
		fail(w, http.StatusNotFound, "Offer not found")
		return
	}
	h.store.Offers.Delete(id)
	w.WriteHeader(http.StatusOK)
}

// ViewOffer handles POST /offer/view-offer. Each view is counted.
func (h *Handler) ViewOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OfferID int `json:"offerID"`
		MapID   int `json:"mapID"`
	}
	if err := twincore.Decode(r, &req); err != nil {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	o, ok := h.ownedOffer(r, req.OfferID)
	if !ok || (req.MapID > 0 && req.MapID != o.MapID) {
		fail(w, http.StatusNotFound, "Offer not found")
		return
	}
	o, _ = h.store.Offers.Update(o.ID, func(o *store.Offer) { o.Views++ })

	body := h.offerJSON(o, h.store.Clock.Now())
	body["stats"] = map[string]any{
		"views":       o.Views,
		"redemptions": o.Redemptions,
		"customers":   o.Customers,
	}
	twincore.JSON(w, http.StatusOK, map[string]any{"success": true, "data": body})
}
