// Package payments describes the hosted-checkout processor the payment
// workflow talks to.
package payments

import "context"

const (
	MetadataParcelID   = "parcelId"
	MetadataTrackingID = "trackingId"

	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"

	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

type CheckoutRequest struct {
	ParcelID      string
	TrackingID    string
	ProductName   string
	CustomerEmail string
	AmountMinor   int64
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// Session is the processor's view of a checkout session. TransactionID is the
// processor's payment identifier and is empty until the customer paid.
type Session struct {
	ID            string
	URL           string
	Status        string
	PaymentStatus string
	TransactionID string
	AmountTotal   int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

func (s Session) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

type Client interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (Session, error)
	GetCheckoutSession(ctx context.Context, id string) (Session, error)
}

// WebhookParser verifies a signed processor notification. ok is false for
// event types that do not describe a completed checkout.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (s Session, ok bool, err error)
}
