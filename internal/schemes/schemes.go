// Package schemes creates and lists loyalty schemes on the remote API.
package schemes

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hichers/hichers/internal/gateway"
	"github.com/hichers/hichers/internal/model"
)

// maxNameLen matches the max tag on Draft.Name.
const maxNameLen = 100

// ErrDuplicateName is returned when the name is still taken after the
// date-suffixed retry.
var ErrDuplicateName = errors.New("schemes: a scheme with this name already exists")

// Draft is unvalidated scheme input.
type Draft struct {
	Name             string           `json:"name" validate:"required,max=100"`
	Type             model.SchemeType `json:"schemeType" validate:"required,oneof=POINTS STAMPS DISCOUNT"`
	AmountSpend      float64          `json:"amountSpend" validate:"required_if=Type POINTS,gte=0"`
	PointsCollected  int              `json:"pointsCollected" validate:"required_if=Type POINTS,gte=0"`
	PointsRedeem     int              `json:"pointsRedeem" validate:"required_if=Type POINTS,gte=0"`
	AmountFromPoints float64          `json:"amountFromPoints" validate:"required_if=Type POINTS,gte=0"`
	RedeemFrequency  int              `json:"redeemFrequency" validate:"gte=0"`
	StampsToCollect  int              `json:"stampsToCollect" validate:"required_if=Type STAMPS,gte=0"`
	FreeItems        int              `json:"freeItems" validate:"required_if=Type STAMPS,gte=0"`
	MonthsExpire     int              `json:"monthsExpire" validate:"gte=0"`
	ReturnPolicyDays int              `json:"returnPolicyDays" validate:"gte=0"`
	ValidFromDate    time.Time        `json:"validFromDate"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateDraft checks the shared rules and the per-type required fields.
func ValidateDraft(d Draft) error {
	d.Name = strings.TrimSpace(d.Name)
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required", "required_if":
		return model.Invalid(fe.Field(), "%s is required", fe.Field())
	case "oneof":
		return model.Invalid(fe.Field(), "%s must be one of %s", fe.Field(), fe.Param())
	case "max":
		return model.Invalid(fe.Field(), "%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return model.Invalid(fe.Field(), "%s must not be negative", fe.Field())
	}
}

// BuildRemotePayload renders the save body. Every field is sent for every
// type; fields the type does not use are zero.
func BuildRemotePayload(d Draft, loc *time.Location) map[string]any {
	body := map[string]any{
		"loyaltySchemeName":   strings.TrimSpace(d.Name),
		"loyaltySchemeTypeID": d.Type.ID(),
		"amountSpend":         0.0,
		"pointsCollected":     0,
		"pointsRedeem":        0,
		"amountFromPoints":    0.0,
		"redeemFrequency":     0,
		"stampsToCollect":     0,
		"freeItems":           0,
		"monthsExpire":        d.MonthsExpire,
		"returnPolicyDays":    d.ReturnPolicyDays,
		"validFromDate":       "",
	}
	switch d.Type {
	case model.SchemePoints:
		body["amountSpend"] = d.AmountSpend
		body["pointsCollected"] = d.PointsCollected
		body["pointsRedeem"] = d.PointsRedeem
		body["amountFromPoints"] = d.AmountFromPoints
		body["redeemFrequency"] = d.RedeemFrequency
	case model.SchemeStamps:
		body["stampsToCollect"] = d.StampsToCollect
		body["freeItems"] = d.FreeItems
	}
	if !d.ValidFromDate.IsZero() {
		body["validFromDate"] = d.ValidFromDate.In(loc).Format("2006/01/02")
	}
	return body
}

// MapRemoteToLocal converts one remote scheme object. A scheme is active when
// its time status is present and it has not been expired.
func MapRemoteToLocal(raw gateway.Fields) model.LoyaltyScheme {
	typ, _ := model.SchemeTypeFromID(raw.Int("loyaltySchemeTypeId", "schemeTypeId", "typeId"))
	s := model.LoyaltyScheme{
		ID:               raw.Int("loyaltySchemeId", "schemeId", "id"),
		Name:             raw.String("loyaltySchemeName", "schemeName", "name"),
		Type:             typ,
		AmountSpend:      raw.Float("amountSpend"),
		PointsCollected:  raw.Int("pointsCollected"),
		PointsRedeem:     raw.Int("pointsRedeem"),
		AmountFromPoints: raw.Float("amountFromPoints"),
		RedeemFrequency:  raw.Int("redeemFrequency"),
		StampsToCollect:  raw.Int("stampsToCollect"),
		FreeItems:        raw.Int("freeItems"),
		MonthsExpire:     raw.Int("monthsExpire"),
		ReturnPolicyDays: raw.Int("returnPolicyDays"),
		MemberCount:      raw.Int("memberCount", "members", "customerCount"),
		IsActive: strings.EqualFold(strings.TrimSpace(raw.String("timeStatus")), string(model.StatusPresent)) &&
			!raw.Bool("expireFlag"),
	}
	if date := raw.String("validFromDate", "validFrom"); date != "" {
		s.ValidFromDate = parseDate(date)
	}
	return s
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		s = strings.ReplaceAll(s[:10], "-", "/")
	}
	t, err := time.Parse("2006/01/02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DuplicateDetector decides whether a save attempt was rejected because the
// scheme name is taken.
type DuplicateDetector interface {
	IsDuplicate(resp *gateway.Response, err error) bool
}

// MessageMarker detects duplicates by a case-insensitive substring in the
// remote message, whether it arrives in a success-shaped body or an error.
type MessageMarker string

// DefaultDuplicateMarker is the text the remote uses for taken names.
const DefaultDuplicateMarker MessageMarker = "already added"

// IsDuplicate implements DuplicateDetector.
func (m MessageMarker) IsDuplicate(resp *gateway.Response, err error) bool {
	marker := strings.ToLower(string(m))
	if err != nil {
		var apiErr *gateway.APIError
		return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), marker)
	}
	return resp != nil && strings.Contains(strings.ToLower(resp.Message()), marker)
}
