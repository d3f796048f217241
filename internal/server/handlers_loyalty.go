package server

import (
	"net/http"

	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/schemes"
	"github.com/hichers/hichers/pkg/twincore"
)

// schemeRequest is the scheme draft with its start as a plain date.
type schemeRequest struct {
	Name             string           `json:"name"`
	Type             model.SchemeType `json:"schemeType"`
	AmountSpend      float64          `json:"amountSpend"`
	PointsCollected  int              `json:"pointsCollected"`
	PointsRedeem     int              `json:"pointsRedeem"`
	AmountFromPoints float64          `json:"amountFromPoints"`
	RedeemFrequency  int              `json:"redeemFrequency"`
	StampsToCollect  int              `json:"stampsToCollect"`
	FreeItems        int              `json:"freeItems"`
	MonthsExpire     int              `json:"monthsExpire"`
	ReturnPolicyDays int              `json:"returnPolicyDays"`
	ValidFromDate    string           `json:"validFromDate"`
}

// ListSchemes handles GET /api/schemes.
func (s *Server) ListSchemes(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, s.schemes.List(r.Context()))
}

// CreateScheme handles POST /api/schemes. A taken name is retried once with
// the date appended; the reply says which name was used.
func (s *Server) CreateScheme(w http.ResponseWriter, r *http.Request) {
	var req schemeRequest
	if err := twincore.Decode(r, &req); err != nil {
		s.fail(w, r, model.Invalid("body", "invalid request body"))
		return
	}
	from, err := parseIn("validFromDate", req.ValidFromDate, s.loc, dateLayouts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d := schemes.Draft{
		Name:             req.Name,
		Type:             req.Type,
		AmountSpend:      req.AmountSpend,
		PointsCollected:  req.PointsCollected,
		PointsRedeem:     req.PointsRedeem,
		AmountFromPoints: req.AmountFromPoints,
		RedeemFrequency:  req.RedeemFrequency,
		StampsToCollect:  req.StampsToCollect,
		FreeItems:        req.FreeItems,
		MonthsExpire:     req.MonthsExpire,
		ReturnPolicyDays: req.ReturnPolicyDays,
		ValidFromDate:    from,
	}

	created, err := s.schemes.CreateWithRetry(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusCreated, created)
}

// Dashboard handles GET /api/dashboard.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, s.dashboard.Load(r.Context()))
}
