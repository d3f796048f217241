// Package offers implements the offer lifecycle: draft validation, mapping
// to and from the remote contract, time-status classification and the
// create/update/delete/end-early operations.
package offers

import (
	"strings"
	"time"

	"github.com/hichers/hichers/internal/model"
	"github.com/shopspring/decimal"
)

// LeadTime is the minimum gap between now and the start of a new offer.
const LeadTime = 20 * time.Minute

// Draft is unvalidated offer input. ID is zero for new offers.
type Draft struct {
	ID          int
	MapID       int
	Title       string
	Description string
	OfferTypeID model.OfferType
	Discount    model.Discount
	ValidFrom   time.Time
	ValidUntil  time.Time
}

// ValidOffer is a Draft that passed ValidateDraft. Only ValidateDraft
// produces one.
type ValidOffer struct {
	draft Draft
}

// Draft returns the validated values.
func (v ValidOffer) Draft() Draft { return v.draft }

// ValidateDraft checks d against the offer rules and returns the first
// violation. The lead-time rule applies to new offers only. Discount fields
// outside the group selected by the offer type are cleared.
func ValidateDraft(d Draft, now time.Time) (ValidOffer, error) {
	if !d.OfferTypeID.Valid() {
		return ValidOffer{}, model.Invalid("offerTypeID", "select an offer type")
	}
	if err := checkDiscount(d.OfferTypeID, d.Discount); err != nil {
		return ValidOffer{}, err
	}

	if d.ValidFrom.IsZero() {
		return ValidOffer{}, model.Invalid("validFrom", "start date and time are required")
	}
	if d.ValidUntil.IsZero() {
		return ValidOffer{}, model.Invalid("validUntil", "end date and time are required")
	}
	d.ValidFrom = d.ValidFrom.Truncate(time.Minute)
	d.ValidUntil = d.ValidUntil.Truncate(time.Minute)
	// The threshold keeps its seconds: a start at 09:20 is too soon at 09:00:30.
	if d.ID == 0 && d.ValidFrom.Before(now.Add(LeadTime)) {
		return ValidOffer{}, model.Invalid("validFrom", "offer must start at least %d minutes from now", int(LeadTime.Minutes()))
	}
	if !d.ValidFrom.Before(d.ValidUntil) {
		return ValidOffer{}, model.Invalid("validUntil", "end must be after start")
	}

	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return ValidOffer{}, model.Invalid("title", "title is required")
	}
	d.Description = strings.TrimSpace(d.Description)
	d.Discount = selectGroup(d.OfferTypeID, d.Discount)
	return ValidOffer{draft: d}, nil
}

func checkDiscount(t model.OfferType, disc model.Discount) error {
	positiveInt := func(field string, v int) error {
		if v <= 0 {
			return model.Invalid(field, "%s must be greater than zero", field)
		}
		return nil
	}
	percent := func(field string, v int) error {
		if v <= 0 || v > 100 {
			return model.Invalid(field, "%s must be between 1 and 100", field)
		}
		return nil
	}
	money := func(field string, v decimal.Decimal) error {
		if !v.IsPositive() {
			return model.Invalid(field, "%s must be greater than zero", field)
		}
		return nil
	}

	switch t {
	case model.OfferBOGO:
		if err := positiveInt("itemsBuying", disc.ItemsBuying); err != nil {
			return err
		}
		return positiveInt("itemsFree", disc.ItemsFree)
	case model.OfferPercentage, model.OfferFlashSale:
		return percent("percentDiscount", disc.PercentDiscount)
	case model.OfferCash:
		return money("cashDiscount", disc.CashDiscount)
	case model.OfferMinimumSpend:
		if err := money("minimumSpend", disc.MinimumSpend); err != nil {
			return err
		}
		return money("cashDiscount", disc.CashDiscount)
	case model.OfferMultiBuy:
		if err := positiveInt("itemsBuying", disc.ItemsBuying); err != nil {
			return err
		}
		return money("cashDiscount", disc.CashDiscount)
	}
	return nil
}

// selectGroup keeps only the discount fields used by t.
func selectGroup(t model.OfferType, disc model.Discount) model.Discount {
	var out model.Discount
	switch t {
	case model.OfferBOGO:
		out.ItemsBuying, out.ItemsFree = disc.ItemsBuying, disc.ItemsFree
	case model.OfferPercentage, model.OfferFlashSale:
		out.PercentDiscount = disc.PercentDiscount
	case model.OfferCash:
		out.CashDiscount = disc.CashDiscount
	case model.OfferMinimumSpend:
		out.MinimumSpend, out.CashDiscount = disc.MinimumSpend, disc.CashDiscount
	case model.OfferMultiBuy:
		out.ItemsBuying, out.CashDiscount = disc.ItemsBuying, disc.CashDiscount
	}
	return out
}
