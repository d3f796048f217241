package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/hichers/hichers/internal/model"
)

// OTPChallenge is the result of requesting a login code.
type OTPChallenge struct {
	TempUserID int
	Message    string
	// OTP is only populated by test environments that echo the code.
	OTP string
}

// OTPResult is the result of validating a login code. Token is empty when
// the code was rejected.
type OTPResult struct {
	Token    string
	UserID   int
	Message  string
	Business model.BusinessProfile
}

func (c *Client) authed(ctx context.Context) (model.Session, error) {
	sess, err := c.session.Load(ctx)
	if err != nil {
		return model.Session{}, fmt.Errorf("loading session: %w", err)
	}
	if sess.AuthToken == "" {
		return model.Session{}, ErrAuthRequired
	}
	return sess, nil
}

func withUser(endpoint string, userID int) string {
	return endpoint + "?userID=" + strconv.Itoa(userID)
}

// GenerateOTP asks the remote to send a login code to the phone number.
func (c *Client) GenerateOTP(ctx context.Context, countryCode, mobile string) (OTPChallenge, error) {
	resp, err := c.do(ctx, model.Session{}, http.MethodPost, EndpointGenerateOTP, map[string]any{
		"countryCode":  countryCode,
		"mobileNumber": mobile,
		"webFlag":      true,
	})
	if err != nil {
		return OTPChallenge{}, err
	}
	obj := resp.Object()
	return OTPChallenge{
		TempUserID: obj.Int("userID"),
		Message:    resp.Message(),
		OTP:        obj.String("otp"),
	}, nil
}

// ValidateOTP exchanges the code for a token and business profile.
func (c *Client) ValidateOTP(ctx context.Context, tempUserID int, otp string) (OTPResult, error) {
	resp, err := c.do(ctx, model.Session{}, http.MethodPost, EndpointValidateOTP, map[string]any{
		"userID": tempUserID,
		"otp":    otp,
	})
	if err != nil {
		return OTPResult{}, err
	}
	obj := resp.Object()
	res := OTPResult{
		Token:   obj.String("token"),
		UserID:  tempUserID,
		Message: resp.Message(),
	}
	if user := obj.Object("user"); user != nil {
		if id := user.Int("userID", "id"); id > 0 {
			res.UserID = id
		}
		res.Business = model.BusinessProfile{
			Name:        user.String("businessName", "name"),
			Logo:        user.String("logo", "businessLogo"),
			Phone:       user.String("mobileNumber", "phone"),
			CountryCode: user.String("countryCode"),
		}
	}
	return res, nil
}

// LoadOffers fetches the raw offer list.
func (c *Client) LoadOffers(ctx context.Context) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, sess, http.MethodGet, withUser(EndpointLoadOffers, sess.UserID), nil)
}

// SaveOffer creates an offer from a remote-contract payload.
func (c *Client) SaveOffer(ctx context.Context, payload map[string]any) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, sess, http.MethodPost, withUser(EndpointSaveOffer, sess.UserID), payload)
}

// UpdateOffer replaces an existing offer.
func (c *Client) UpdateOffer(ctx context.Context, id int, payload map[string]any) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := withUser(EndpointUpdateOffer+"/"+strconv.Itoa(id), sess.UserID)
	return c.do(ctx, sess, http.MethodPut, endpoint, payload)
}

// DeleteOffer removes an offer.
func (c *Client) DeleteOffer(ctx context.Context, id int) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := withUser(EndpointDeleteOffer+"/"+strconv.Itoa(id), sess.UserID)
	return c.do(ctx, sess, http.MethodDelete, endpoint, nil)
}

// ViewOffer fetches one offer with its statistics.
func (c *Client) ViewOffer(ctx context.Context, offerID, mapID int) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, sess, http.MethodPost, withUser(EndpointViewOffer, sess.UserID), map[string]any{
		"offerID": offerID,
		"mapID":   mapID,
	})
}

// LoadSchemes fetches the raw loyalty scheme list.
func (c *Client) LoadSchemes(ctx context.Context) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, sess, http.MethodGet, withUser(EndpointLoadSchemes, sess.UserID), nil)
}

// SaveScheme creates a loyalty scheme. The session user id is added to the body.
func (c *Client) SaveScheme(ctx context.Context, payload map[string]any) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["userID"] = sess.UserID
	return c.do(ctx, sess, http.MethodPost, EndpointSaveScheme, body)
}

// WebInfo fetches the business metrics block.
func (c *Client) WebInfo(ctx context.Context) (*Response, error) {
	sess, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, sess, http.MethodPost, EndpointWebInfo, map[string]any{"userID": sess.UserID})
}
