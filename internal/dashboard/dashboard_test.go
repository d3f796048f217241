package dashboard

import (
	"context"
	"errors"
	"testing"

	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/internal/schemes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumFreeStamps(t *testing.T) {
	tests := []struct {
		description string
		in          any
		want        int
	}{
		{"number", float64(5), 5},
		{"numeric string", "6", 6},
		{"array of counts", []any{
			map[string]any{"schemeId": float64(1), "count": "3"},
			map[string]any{"schemeId": float64(2), "count": float64(4)},
		}, 7},
		{"object of counts", map[string]any{
			"a": map[string]any{"schemeId": "a", "count": float64(2)},
			"b": map[string]any{"schemeId": "b", "count": "x"},
		}, 2},
		{"single entry", map[string]any{"schemeId": float64(1), "count": float64(3)}, 3},
		{"nil", nil, 0},
		{"garbage", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, SumFreeStamps(tt.in))
		})
	}
}

func TestGrowth(t *testing.T) {
	assert.Equal(t, float64(0), Growth(0, 0))
	assert.Equal(t, float64(100), Growth(7, 0))
	assert.Equal(t, float64(50), Growth(15, 10))
	assert.Equal(t, float64(-25), Growth(30, 40))
}

func TestNewDelta(t *testing.T) {
	assert.Equal(t, Delta{Percent: 33.3, Direction: Up}, NewDelta(4, 3))
	assert.Equal(t, Delta{Percent: -50, Direction: Down}, NewDelta(1, 2))
	assert.Equal(t, Delta{Percent: 0, Direction: Flat}, NewDelta(0, 0))
}

type fakeSchemes struct{ list schemes.List }

func (f fakeSchemes) List(ctx context.Context) schemes.List { return f.list }

type fakeOffers struct{ c offers.Classification }

func (f fakeOffers) List(ctx context.Context) offers.Classification { return f.c }

type fakeMetrics struct {
	resp *gateway.Response
	err  error
}

func (f fakeMetrics) WebInfo(ctx context.Context) (*gateway.Response, error) { return f.resp, f.err }

func TestLoadMetricsFailureKeepsSchemes(t *testing.T) {
	s := fakeSchemes{list: schemes.List{Schemes: []model.LoyaltyScheme{
		{ID: 1, Name: "Gold", IsActive: true},
		{ID: 2, Name: "Card", IsActive: false},
	}}}
	o := fakeOffers{c: offers.Classify(nil)}
	m := fakeMetrics{err: &gateway.TimeoutError{Endpoint: gateway.EndpointWebInfo}}

	v := New(s, o, m, nil).Load(context.Background())
	require.Len(t, v.Schemes, 2)
	assert.True(t, v.MetricsUnavailable)
	assert.False(t, v.Customers.Available)
	assert.False(t, v.RewardsGiven.Available)
	assert.False(t, v.LoyaltyValue.Available)
	assert.True(t, v.ActivePrograms.Available)
	assert.Equal(t, "1", v.ActivePrograms.Value.String())
}

func TestLoadAllSources(t *testing.T) {
	s := fakeSchemes{list: schemes.List{Schemes: []model.LoyaltyScheme{{ID: 1, IsActive: true}}}}
	o := fakeOffers{c: offers.Classify([]model.Offer{
		{ID: 1, TimeStatus: model.StatusPresent},
		{ID: 2, TimeStatus: model.StatusPast},
	})}
	m := fakeMetrics{resp: &gateway.Response{Status: 200, Data: map[string]any{"data": map[string]any{
		"totalCustomers":        float64(120),
		"lastMonthCustomers":    float64(100),
		"total_free_stamps":     []any{map[string]any{"count": "3"}, map[string]any{"count": float64(4)}},
		"pointsRedeemed":        float64(3),
		"lastMonthRewards":      float64(20),
		"loyaltyValue":          "250.456",
		"lastMonthLoyaltyValue": float64(250.456),
	}}}}

	v := New(s, o, m, nil).Load(context.Background())
	assert.False(t, v.MetricsUnavailable)
	require.Len(t, v.ActiveOffers, 1)
	assert.Equal(t, 1, v.ActiveOffers[0].ID)

	assert.True(t, v.Customers.Available)
	assert.Equal(t, "120", v.Customers.Value.String())
	assert.Equal(t, Delta{Percent: 20, Direction: Up}, v.Customers.Delta)

	assert.Equal(t, "10", v.RewardsGiven.Value.String())
	assert.Equal(t, Down, v.RewardsGiven.Delta.Direction)

	assert.Equal(t, "250.46", v.LoyaltyValue.Value.String())
	assert.Equal(t, Flat, v.LoyaltyValue.Delta.Direction)
}

func TestLoadFreeStampShapes(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		rewards string
		dir     Direction
	}{
		{"remote key as array", map[string]any{
			"total_free_stamps": []any{map[string]any{"count": "3"}, map[string]any{"count": float64(4)}},
		}, "7", Up},
		{"remote key as number", map[string]any{"total_free_stamps": float64(5)}, "5", Up},
		{"remote key as object with last month", map[string]any{
			"total_free_stamps":            map[string]any{"a": map[string]any{"count": float64(2)}, "b": map[string]any{"count": "x"}},
			"last_month_total_free_stamps": float64(4),
		}, "2", Down},
		{"camel case fallback", map[string]any{"freeStamps": float64(6)}, "6", Up},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := fakeMetrics{resp: &gateway.Response{Status: 200, Data: map[string]any{"data": tt.data}}}
			v := New(fakeSchemes{}, fakeOffers{c: offers.Classify(nil)}, m, nil).Load(context.Background())
			assert.True(t, v.RewardsGiven.Available)
			assert.Equal(t, tt.rewards, v.RewardsGiven.Value.String())
			assert.Equal(t, tt.dir, v.RewardsGiven.Delta.Direction)
		})
	}
}

func TestLoadEverythingUnavailable(t *testing.T) {
	s := fakeSchemes{list: schemes.List{Unavailable: true}}
	c := offers.Classify(nil)
	c.Unavailable = true
	m := fakeMetrics{err: &gateway.NetworkError{Err: errors.New("refused")}}

	v := New(s, fakeOffers{c: c}, m, nil).Load(context.Background())
	assert.True(t, v.SchemesUnavailable)
	assert.True(t, v.OffersUnavailable)
	assert.True(t, v.MetricsUnavailable)
	assert.NotNil(t, v.Schemes)
	assert.NotNil(t, v.ActiveOffers)
	assert.False(t, v.ActivePrograms.Available)
}
