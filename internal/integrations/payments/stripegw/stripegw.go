// Package stripegw implements the hosted checkout on Stripe Checkout Sessions.
package stripegw

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

type Client struct {
	api           *client.API
	webhookSecret string
}

func New(secretKey, webhookSecret string) *Client {
	return NewWithBackends(secretKey, webhookSecret, nil)
}

// NewWithBackends lets tests point the SDK at a local server.
func NewWithBackends(secretKey, webhookSecret string, backends *stripe.Backends) *Client {
	return &Client{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (payments.Session, error) {
	name := req.ProductName
	if name == "" {
		name = "Parcel delivery"
	}
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.CustomerEmail),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(payments.MetadataParcelID, req.ParcelID)
	params.AddMetadata(payments.MetadataTrackingID, req.TrackingID)

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return payments.Session{}, mapError(err, "create checkout session")
	}
	return toSession(s), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (payments.Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return payments.Session{}, mapError(err, "get checkout session")
	}
	return toSession(s), nil
}

func (c *Client) ParseWebhook(payload []byte, signature string) (payments.Session, bool, error) {
	if c.webhookSecret == "" {
		return payments.Session{}, false, errors.Wrap(apperr.NotFound, "webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payments.Session{}, false, errors.Wrap(apperr.Unauthorized, err.Error())
	}

	switch string(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
	default:
		return payments.Session{}, false, nil
	}
	if event.Data == nil {
		return payments.Session{}, false, errors.Wrap(apperr.Invalid, "event has no data")
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return payments.Session{}, false, errors.Wrap(apperr.Invalid, "decode checkout session: "+err.Error())
	}
	return toSession(&s), true, nil
}

func toSession(s *stripe.CheckoutSession) payments.Session {
	out := payments.Session{
		ID:            s.ID,
		URL:           s.URL,
		Status:        string(s.Status),
		PaymentStatus: string(s.PaymentStatus),
		AmountTotal:   s.AmountTotal,
		Currency:      string(s.Currency),
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
	if out.CustomerEmail == "" && s.CustomerDetails != nil {
		out.CustomerEmail = s.CustomerDetails.Email
	}
	if s.PaymentIntent != nil {
		out.TransactionID = s.PaymentIntent.ID
	}
	return out
}

func mapError(err error, op string) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.HTTPStatusCode == http.StatusNotFound:
			return errors.Wrap(apperr.NotFound, op+": "+serr.Msg)
		case serr.HTTPStatusCode == http.StatusBadRequest:
			return errors.Wrap(apperr.Invalid, op+": "+serr.Msg)
		}
		return errors.Wrap(apperr.Upstream, op+": "+serr.Msg)
	}
	return errors.Wrap(apperr.Upstream, op+": "+err.Error())
}
