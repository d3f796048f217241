package offers

import (
	"errors"
	"strings"
	"time"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
)

const (
	outDate     = "2006/01/02"
	outClock    = "15:04"
	outDateTime = outDate + " " + outClock
)

// ErrMissingID is returned when a remote offer has no identifier.
var ErrMissingID = errors.New("offers: remote offer has no id")

// ToRemoteContract renders a validated offer as the remote save/update body.
// Both the split date/time fields and the combined form are sent; times are
// rendered in loc.
func ToRemoteContract(v ValidOffer, loc *time.Location) map[string]any {
	d := v.draft
	from := d.ValidFrom.In(loc)
	until := d.ValidUntil.In(loc)

	body := map[string]any{
		"offerName":        d.Title,
		"offerDescription": d.Description,
		"offerTypeID":      int(d.OfferTypeID),
		"itemsBuying":      d.Discount.ItemsBuying,
		"itemsFree":        d.Discount.ItemsFree,
		"percentDiscount":  d.Discount.PercentDiscount,
		"cashDiscount":     d.Discount.CashDiscount.InexactFloat64(),
		"minimumSpend":     d.Discount.MinimumSpend.InexactFloat64(),
		"validFromDate":    from.Format(outDate),
		"validFromTime":    from.Format(outClock),
		"validToDate":      until.Format(outDate),
		"validToTime":      until.Format(outClock),
		"validFrom":        from.Format(outDateTime),
		"validTo":          until.Format(outDateTime),
	}
	if d.ID > 0 {
		body["offerID"] = d.ID
	}
	if d.MapID > 0 {
		body["mapID"] = d.MapID
	}
	return body
}

// MapRemoteToLocal converts one remote offer object. Keys are matched
// regardless of snake/camel case, dates may use - or / separators, and the
// time status is derived from the window when it parses.
func MapRemoteToLocal(raw gateway.Fields, now time.Time, loc *time.Location) (model.Offer, error) {
	id := raw.Int("offerID", "id")
	if id <= 0 {
		return model.Offer{}, ErrMissingID
	}

	o := model.Offer{
		ID:          id,
		Title:       raw.String("offerName", "title", "name"),
		Description: raw.String("offerDescription", "description"),
		OfferTypeID: model.OfferType(raw.Int("offerTypeID", "offerType", "typeID")),
		Discount: model.Discount{
			ItemsBuying:     raw.Int("itemsBuying"),
			ItemsFree:       raw.Int("itemsFree"),
			PercentDiscount: raw.Int("percentDiscount"),
			CashDiscount:    raw.Decimal("cashDiscount"),
			MinimumSpend:    raw.Decimal("minimumSpend"),
		},
		IsActive:        !raw.Bool("expireFlag"),
		MapID:           raw.Int("mapID"),
		RedemptionCount: raw.Int("redemptionCount", "redeemCount", "redemptions"),
	}

	from, okFrom := remoteTime(raw, "validFrom", "validFromDate", "validFromTime", loc)
	until, okUntil := remoteTime(raw, "validTo", "validToDate", "validToTime", loc)
	if !okUntil {
		until, okUntil = remoteTime(raw, "validUntil", "validUntilDate", "validUntilTime", loc)
	}
	o.ValidFrom, o.ValidUntil = from, until
	if okFrom && okUntil {
		o.TimeStatus = StatusAt(from, until, now)
	} else {
		o.TimeStatus = model.ParseTimeStatus(raw.String("timeStatus"))
	}
	o.Label = DiscountLabel(o.OfferTypeID, o.Discount)
	return o, nil
}

// remoteTime reads a combined date-time field, falling back to split date
// and time fields.
func remoteTime(raw gateway.Fields, combined, dateKey, clockKey string, loc *time.Location) (time.Time, bool) {
	if t, ok := parseRemoteTime(raw.String(combined), loc); ok {
		return t, true
	}
	date := raw.String(dateKey)
	if date == "" {
		return time.Time{}, false
	}
	if clock := raw.String(clockKey); clock != "" {
		date += " " + clock
	}
	return parseRemoteTime(date, loc)
}

var inboundLayouts = []string{
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02T15:04:05",
	"2006/01/02T15:04",
	"2006/01/02",
}

func parseRemoteTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	// Only the date part uses - as a separator.
	if len(s) >= 10 {
		s = strings.ReplaceAll(s[:10], "-", "/") + s[10:]
	}
	s = strings.TrimSuffix(s, "Z")
	if i := strings.IndexByte(s, '.'); i > 0 {
		s = s[:i]
	}
	for _, layout := range inboundLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
