package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hichers/hichers/internal/model"
	"github.com/hichers/hichers/internal/offers"
	"github.com/hichers/hichers/pkg/twincore"
)

// Layouts accepted for offer and scheme dates. Zone-less values are read in
// the server's location.
var (
	dateTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05"}
	dateLayouts     = []string{"2006-01-02", "2006/01/02"}
)

func parseIn(field, value string, loc *time.Location, layouts []string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.Invalid(field, "%s is not a valid date", field)
}

type offerRequest struct {
	MapID       int             `json:"mapId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	OfferTypeID model.OfferType `json:"offerTypeId"`
	Discount    model.Discount  `json:"discount"`
	ValidFrom   string          `json:"validFrom"`
	ValidUntil  string          `json:"validUntil"`
}

func (s *Server) decodeOffer(r *http.Request) (offers.Draft, error) {
	var req offerRequest
	if err := twincore.Decode(r, &req); err != nil {
		return offers.Draft{}, model.Invalid("body", "invalid request body")
	}
	from, err := parseIn("validFrom", req.ValidFrom, s.loc, dateTimeLayouts)
	if err != nil {
		return offers.Draft{}, err
	}
	until, err := parseIn("validUntil", req.ValidUntil, s.loc, dateTimeLayouts)
	if err != nil {
		return offers.Draft{}, err
	}
	return offers.Draft{
		MapID:       req.MapID,
		Title:       req.Title,
		Description: req.Description,
		OfferTypeID: req.OfferTypeID,
		Discount:    req.Discount,
		ValidFrom:   from,
		ValidUntil:  until,
	}, nil
}

func offerID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		return 0, model.Invalid("offerID", "offer id must be a positive number")
	}
	return id, nil
}

// ListOffers handles GET /api/offers. A remote failure is reported through
// the unavailable flag, not an error status.
func (s *Server) ListOffers(w http.ResponseWriter, r *http.Request) {
	twincore.JSON(w, http.StatusOK, s.offers.List(r.Context()))
}

// CreateOffer handles POST /api/offers.
func (s *Server) CreateOffer(w http.ResponseWriter, r *http.Request) {
	d, err := s.decodeOffer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.offers.Create(r.Context(), d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusCreated, o)
}

// ViewOffer handles GET /api/offers/{id}?mapID=.
func (s *Server) ViewOffer(w http.ResponseWriter, r *http.Request) {
	id, err := offerID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	mapID := 0
	if v := r.URL.Query().Get("mapID"); v != "" {
		if mapID, err = strconv.Atoi(v); err != nil {
			s.fail(w, r, model.Invalid("mapID", "mapID must be a number"))
			return
		}
	}
	detail, err := s.offers.View(r.Context(), id, mapID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusOK, detail)
}

// UpdateOffer handles PUT /api/offers/{id}.
func (s *Server) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	id, err := offerID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d, err := s.decodeOffer(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.offers.Update(r.Context(), id, d)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusOK, o)
}

// DeleteOffer handles DELETE /api/offers/{id}.
func (s *Server) DeleteOffer(w http.ResponseWriter, r *http.Request) {
	id, err := offerID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.offers.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EndOffer handles POST /api/offers/{id}/end.
func (s *Server) EndOffer(w http.ResponseWriter, r *http.Request) {
	id, err := offerID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.offers.EndEarly(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	twincore.JSON(w, http.StatusOK, o)
}
