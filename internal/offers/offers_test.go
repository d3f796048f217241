package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	london  = mustLoad("Europe/London")
	fixedAt = time.Date(2025, 1, 15, 9, 0, 0, 0, london)
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func validDraft() Draft {
	return Draft{
		Title:       "Morning coffee",
		Description: "Any hot drink",
		OfferTypeID: model.OfferPercentage,
		Discount:    model.Discount{PercentDiscount: 20, ItemsBuying: 3, CashDiscount: decimal.NewFromInt(5)},
		ValidFrom:   fixedAt.Add(time.Hour),
		ValidUntil:  fixedAt.Add(48 * time.Hour),
	}
}

func TestValidateDraftRules(t *testing.T) {
	tests := []struct {
		description string
		mutate      func(d *Draft)
		field       string
	}{
		{"unknown type", func(d *Draft) { d.OfferTypeID = 9 }, "offerTypeID"},
		{"percentage without percent", func(d *Draft) { d.Discount.PercentDiscount = 0 }, "percentDiscount"},
		{"percentage over 100", func(d *Draft) { d.Discount.PercentDiscount = 120 }, "percentDiscount"},
		{"bogo without free items", func(d *Draft) {
			d.OfferTypeID = model.OfferBOGO
			d.Discount = model.Discount{ItemsBuying: 1}
		}, "itemsFree"},
		{"cash without amount", func(d *Draft) {
			d.OfferTypeID = model.OfferCash
			d.Discount = model.Discount{}
		}, "cashDiscount"},
		{"minimum spend without threshold", func(d *Draft) {
			d.OfferTypeID = model.OfferMinimumSpend
			d.Discount = model.Discount{CashDiscount: decimal.NewFromInt(10)}
		}, "minimumSpend"},
		{"multi-buy without items", func(d *Draft) {
			d.OfferTypeID = model.OfferMultiBuy
			d.Discount = model.Discount{CashDiscount: decimal.NewFromInt(10)}
		}, "itemsBuying"},
		{"starts too soon", func(d *Draft) { d.ValidFrom = fixedAt.Add(19 * time.Minute) }, "validFrom"},
		{"ends before start", func(d *Draft) { d.ValidUntil = d.ValidFrom }, "validUntil"},
		{"missing title", func(d *Draft) { d.Title = "   " }, "title"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			_, err := ValidateDraft(d, fixedAt)
			var verr *model.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateDraftPercentageCitesField(t *testing.T) {
	d := validDraft()
	d.Discount = model.Discount{}
	_, err := ValidateDraft(d, fixedAt)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "percentDiscount", verr.Field)
	assert.Contains(t, verr.Error(), "percentDiscount")
}

func TestValidateDraftLeadTime(t *testing.T) {
	d := validDraft()
	d.ValidFrom = fixedAt.Add(LeadTime)
	_, err := ValidateDraft(d, fixedAt)
	assert.NoError(t, err, "exactly 20 minutes ahead is allowed")

	d.ValidFrom = fixedAt.Add(LeadTime - time.Minute)
	_, err = ValidateDraft(d, fixedAt)
	assert.Error(t, err)

	halfPast := fixedAt.Add(30 * time.Second)
	d.ValidFrom = fixedAt.Add(LeadTime)
	_, err = ValidateDraft(d, halfPast)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr, "19m30s ahead must be rejected")
	assert.Equal(t, "validFrom", verr.Field)

	d.ValidFrom = fixedAt.Add(LeadTime + time.Minute)
	_, err = ValidateDraft(d, halfPast)
	assert.NoError(t, err, "next whole minute after the lead time is allowed")

	d.ID = 7
	d.ValidFrom = fixedAt.Add(-time.Hour)
	_, err = ValidateDraft(d, fixedAt)
	assert.NoError(t, err, "updates may keep a start in the past")
}

func TestValidateDraftClearsOtherGroups(t *testing.T) {
	v, err := ValidateDraft(validDraft(), fixedAt)
	require.NoError(t, err)
	disc := v.Draft().Discount
	assert.Equal(t, 20, disc.PercentDiscount)
	assert.Zero(t, disc.ItemsBuying)
	assert.True(t, disc.CashDiscount.IsZero())
}

func TestToRemoteContract(t *testing.T) {
	d := validDraft()
	d.ID = 31
	d.ValidFrom = time.Date(2025, 1, 20, 14, 30, 0, 0, london)
	d.ValidUntil = time.Date(2025, 1, 27, 18, 0, 0, 0, london)
	v, err := ValidateDraft(d, fixedAt)
	require.NoError(t, err)

	body := ToRemoteContract(v, london)
	assert.Equal(t, "2025/01/20", body["validFromDate"])
	assert.Equal(t, "14:30", body["validFromTime"])
	assert.Equal(t, "2025/01/27", body["validToDate"])
	assert.Equal(t, "18:00", body["validToTime"])
	assert.Equal(t, "2025/01/20 14:30", body["validFrom"])
	assert.Equal(t, "2025/01/27 18:00", body["validTo"])
	assert.Equal(t, 31, body["offerID"])
	assert.Equal(t, 2, body["offerTypeID"])
	assert.Equal(t, 0, body["itemsBuying"])
	assert.Equal(t, float64(0), body["cashDiscount"])
	assert.Equal(t, "Morning coffee", body["offerName"])
}

func TestContractRoundTrip(t *testing.T) {
	drafts := []Draft{
		{OfferTypeID: model.OfferBOGO, Discount: model.Discount{ItemsBuying: 1, ItemsFree: 1}},
		{OfferTypeID: model.OfferPercentage, Discount: model.Discount{PercentDiscount: 20}},
		{OfferTypeID: model.OfferCash, Discount: model.Discount{CashDiscount: decimal.NewFromInt(10)}},
		{OfferTypeID: model.OfferMinimumSpend, Discount: model.Discount{CashDiscount: decimal.NewFromInt(10), MinimumSpend: decimal.NewFromInt(50)}},
		{OfferTypeID: model.OfferMultiBuy, Discount: model.Discount{ItemsBuying: 3, CashDiscount: decimal.RequireFromString("7.50")}},
		{OfferTypeID: model.OfferFlashSale, Discount: model.Discount{PercentDiscount: 30}},
	}
	for i, d := range drafts {
		d.ID = 100 + i
		d.Title = "Offer"
		d.ValidFrom = fixedAt.Add(time.Hour)
		d.ValidUntil = fixedAt.Add(5 * time.Hour)
		v, err := ValidateDraft(d, fixedAt)
		require.NoError(t, err)

		got, err := MapRemoteToLocal(gateway.Fields(ToRemoteContract(v, london)), fixedAt, london)
		require.NoError(t, err)
		assert.Equal(t, d.ID, got.ID)
		assert.Equal(t, d.OfferTypeID, got.OfferTypeID)
		assert.Equal(t, DiscountLabel(d.OfferTypeID, d.Discount), got.Label)
		assert.True(t, got.ValidFrom.Equal(d.ValidFrom))
		assert.Equal(t, model.StatusFuture, got.TimeStatus)
	}
}

func TestMapRemoteToLocal(t *testing.T) {
	raw := gateway.Fields{
		"offer_id":         float64(8),
		"offername":        "Lunch",
		"offer_type_id":    "5",
		"items_buying":     float64(3),
		"cash_discount":    "10",
		"valid_from_date":  "2025-01-14",
		"valid_from_time":  "08:00",
		"valid_to":         "2025-01-16 20:00:00",
		"expireflag":       true,
		"timestatus":       "PAST",
		"redemption_count": float64(12),
	}
	o, err := MapRemoteToLocal(raw, fixedAt, london)
	require.NoError(t, err)
	assert.Equal(t, 8, o.ID)
	assert.Equal(t, "Lunch", o.Title)
	assert.Equal(t, model.OfferMultiBuy, o.OfferTypeID)
	assert.Equal(t, "3 for £10", o.Label)
	assert.False(t, o.IsActive)
	assert.Equal(t, 12, o.RedemptionCount)
	assert.Equal(t, model.StatusPresent, o.TimeStatus, "window wins over the remote status")

	_, err = MapRemoteToLocal(gateway.Fields{"offerName": "no id"}, fixedAt, london)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestMapRemoteToLocalFallsBackToRemoteStatus(t *testing.T) {
	o, err := MapRemoteToLocal(gateway.Fields{"offerID": float64(1), "timeStatus": "Future"}, fixedAt, london)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFuture, o.TimeStatus)

	o, err = MapRemoteToLocal(gateway.Fields{"offerID": float64(2), "validFrom": "garbage"}, fixedAt, london)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnknown, o.TimeStatus)
}

func TestClassify(t *testing.T) {
	offers := []model.Offer{
		{ID: 1, TimeStatus: model.StatusPast},
		{ID: 2, TimeStatus: model.StatusPresent},
		{ID: 3, TimeStatus: model.StatusFuture},
		{ID: 4, TimeStatus: model.StatusUnknown},
		{ID: 5, TimeStatus: model.StatusFuture},
	}
	c := Classify(offers)
	assert.Equal(t, len(offers), c.Total())
	assert.Len(t, c.Past, 1)
	assert.Len(t, c.Present, 2)
	assert.Len(t, c.Future, 2)
	assert.Equal(t, 1, c.Defaulted)

	seen := map[int]int{}
	for _, bucket := range [][]model.Offer{c.Past, c.Present, c.Future} {
		for _, o := range bucket {
			seen[o.ID]++
		}
	}
	for _, o := range offers {
		assert.Equal(t, 1, seen[o.ID], "offer %d should appear exactly once", o.ID)
	}
}

func TestStatusAtIsMonotonic(t *testing.T) {
	from := fixedAt
	until := fixedAt.Add(time.Hour)
	rank := map[model.TimeStatus]int{model.StatusFuture: 0, model.StatusPresent: 1, model.StatusPast: 2}

	prev := -1
	for now := from.Add(-30 * time.Minute); now.Before(until.Add(30 * time.Minute)); now = now.Add(5 * time.Minute) {
		r := rank[StatusAt(from, until, now)]
		assert.GreaterOrEqual(t, r, prev)
		prev = r
	}
	assert.Equal(t, model.StatusPresent, StatusAt(from, until, from))
	assert.Equal(t, model.StatusPresent, StatusAt(from, until, until))
}

func TestDiscountLabel(t *testing.T) {
	tests := []struct {
		typ  model.OfferType
		d    model.Discount
		want string
	}{
		{model.OfferBOGO, model.Discount{ItemsBuying: 1, ItemsFree: 1}, "Buy 1 Get 1"},
		{model.OfferPercentage, model.Discount{PercentDiscount: 20}, "20%"},
		{model.OfferCash, model.Discount{CashDiscount: decimal.NewFromInt(10)}, "£10"},
		{model.OfferCash, model.Discount{CashDiscount: decimal.RequireFromString("2.5")}, "£2.50"},
		{model.OfferMinimumSpend, model.Discount{CashDiscount: decimal.NewFromInt(10), MinimumSpend: decimal.NewFromInt(50)}, "£10 off £50+"},
		{model.OfferMultiBuy, model.Discount{ItemsBuying: 3, CashDiscount: decimal.NewFromInt(10)}, "3 for £10"},
		{model.OfferFlashSale, model.Discount{PercentDiscount: 30}, "Flash 30%"},
		{model.OfferType(42), model.Discount{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DiscountLabel(tt.typ, tt.d))
	}
}

type fakeGateway struct {
	listData any
	listErr  error
	saved    map[string]any
	updated  map[string]any
	resp     *gateway.Response
	err      error
	viewData any
}

func (f *fakeGateway) LoadOffers(ctx context.Context) (*gateway.Response, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &gateway.Response{Status: 200, Data: f.listData}, nil
}

func (f *fakeGateway) SaveOffer(ctx context.Context, payload map[string]any) (*gateway.Response, error) {
	f.saved = payload
	return f.result()
}

func (f *fakeGateway) UpdateOffer(ctx context.Context, id int, payload map[string]any) (*gateway.Response, error) {
	f.updated = payload
	return f.result()
}

func (f *fakeGateway) DeleteOffer(ctx context.Context, id int) (*gateway.Response, error) {
	return f.result()
}

func (f *fakeGateway) ViewOffer(ctx context.Context, offerID, mapID int) (*gateway.Response, error) {
	return &gateway.Response{Status: 200, Data: f.viewData}, nil
}

func (f *fakeGateway) result() (*gateway.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.resp != nil {
		return f.resp, nil
	}
	return &gateway.Response{Status: 200, Data: map[string]any{"success": true}}, nil
}

func newTestManager(gw *fakeGateway) *Manager {
	return NewManager(gw, WithLocation(london), WithClock(func() time.Time { return fixedAt }))
}

func TestManagerListSwallowsErrors(t *testing.T) {
	m := newTestManager(&fakeGateway{listErr: &gateway.NetworkError{Endpoint: "offer/load-offers", Err: errors.New("refused")}})
	c := m.List(context.Background())
	assert.True(t, c.Unavailable)
	assert.Zero(t, c.Total())
	assert.NotNil(t, c.Present)
}

func TestManagerListClassifies(t *testing.T) {
	gw := &fakeGateway{listData: map[string]any{"data": []any{
		map[string]any{"offerID": float64(1), "validFrom": "2025/01/14 08:00", "validTo": "2025/01/14 09:00"},
		map[string]any{"offerID": float64(2), "validFrom": "2025/01/15 08:00", "validTo": "2025/01/16 09:00"},
		map[string]any{"offerID": float64(3), "validFrom": "2025/01/17 08:00", "validTo": "2025/01/18 09:00"},
		map[string]any{"offerName": "missing id"},
	}}}
	c := newTestManager(gw).List(context.Background())
	assert.False(t, c.Unavailable)
	require.Len(t, c.Past, 1)
	require.Len(t, c.Present, 1)
	require.Len(t, c.Future, 1)
	assert.Equal(t, 2, c.Present[0].ID)
}

func TestManagerCreate(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.Response{Status: 200, Data: map[string]any{"success": true, "offerID": float64(55)}}}
	o, err := newTestManager(gw).Create(context.Background(), validDraft())
	require.NoError(t, err)
	assert.Equal(t, 55, o.ID)
	assert.Equal(t, "20%", o.Label)
	assert.NotContains(t, gw.saved, "offerID")
}

func TestManagerCreateValidationSkipsNetwork(t *testing.T) {
	gw := &fakeGateway{}
	d := validDraft()
	d.Title = ""
	_, err := newTestManager(gw).Create(context.Background(), d)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Nil(t, gw.saved)
}

func TestManagerWritePropagatesRemoteFailure(t *testing.T) {
	gw := &fakeGateway{resp: &gateway.Response{Status: 200, Data: map[string]any{"success": false, "message": "Offer limit reached"}}}
	_, err := newTestManager(gw).Create(context.Background(), validDraft())
	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Offer limit reached", apiErr.Message)

	gw = &fakeGateway{err: &gateway.TimeoutError{Endpoint: "web/web-info"}}
	err = newTestManager(gw).Delete(context.Background(), 3)
	var te *gateway.TimeoutError
	assert.ErrorAs(t, err, &te)
}

func TestManagerEndEarly(t *testing.T) {
	gw := &fakeGateway{listData: []any{
		map[string]any{"offerID": float64(2), "offerTypeID": float64(2), "percentDiscount": float64(10),
			"offerName": "Live", "validFrom": "2025/01/15 08:00", "validTo": "2025/01/16 09:00"},
		map[string]any{"offerID": float64(3), "validFrom": "2025/01/17 08:00", "validTo": "2025/01/18 09:00"},
	}}
	m := newTestManager(gw)

	ended, err := m.EndEarly(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "2025/01/15 09:00", gw.updated["validTo"])
	assert.Equal(t, "2025/01/15 08:00", gw.updated["validFrom"])
	assert.Equal(t, 2, gw.updated["offerID"])
	assert.Equal(t, model.StatusPresent, ended.TimeStatus)

	_, err = m.EndEarly(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotRunning)

	_, err = m.EndEarly(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerView(t *testing.T) {
	gw := &fakeGateway{viewData: map[string]any{"data": map[string]any{
		"offerName":    "Weekend",
		"offerTypeID":  float64(3),
		"cashDiscount": float64(4),
		"stats":        map[string]any{"views": float64(40), "redemptions": "6", "customers": float64(5)},
	}}}
	d, err := newTestManager(gw).View(context.Background(), 12, 4)
	require.NoError(t, err)
	assert.Equal(t, 12, d.ID)
	assert.Equal(t, 4, d.MapID)
	assert.Equal(t, "£4", d.Label)
	assert.Equal(t, model.OfferStats{Views: 40, Redemptions: 6, Customers: 5}, d.Stats)
}
