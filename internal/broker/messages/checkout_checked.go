package messages

import "time"

// CheckoutChecked is published by the reconciliation worker after it asked the
// payment processor about one open checkout session.
type CheckoutChecked struct {
	SessionID string    `json:"session_id"`
	CheckedAt time.Time `json:"checked_at"`

	Session *CheckoutSession `json:"session,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Error *string `json:"error,omitempty"`
}

// CheckoutSession is the processor's view of the session at CheckedAt.
type CheckoutSession struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	TransactionID string            `json:"transaction_id,omitempty"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customer_email,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
