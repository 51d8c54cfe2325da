package models

import "time"

const (
	PaymentStatusPaid = "paid"

	CheckoutStatusOpen      = "open"
	CheckoutStatusCompleted = "completed"
	CheckoutStatusExpired   = "expired"
)

// Payment is immutable once recorded; TransactionID is unique.
type Payment struct {
	ID            string    `json:"_id" bson:"_id"`
	ParcelID      string    `json:"parcelId" bson:"parcelId"`
	SessionID     string    `json:"sessionId" bson:"sessionId"`
	TransactionID string    `json:"transactionId" bson:"transactionId"`
	TrackingID    string    `json:"trackingId" bson:"trackingId"`
	Amount        float64   `json:"amount" bson:"amount"`
	Currency      string    `json:"currency" bson:"currency"`
	CustomerEmail string    `json:"customerEmail" bson:"customerEmail"`
	PaymentStatus string    `json:"paymentStatus" bson:"paymentStatus"`
	PaidAt        time.Time `json:"paidAt" bson:"paidAt"`
}

// Checkout is the server-side record of an initiated hosted checkout.
type Checkout struct {
	SessionID      string     `json:"sessionId" bson:"_id"`
	ParcelID       string     `json:"parcelId" bson:"parcelId"`
	TrackingID     string     `json:"trackingId" bson:"trackingId"`
	CustomerEmail  string     `json:"customerEmail" bson:"customerEmail"`
	AmountMinor    int64      `json:"amountMinor" bson:"amountMinor"`
	Currency       string     `json:"currency" bson:"currency"`
	Status         string     `json:"status" bson:"status"`
	CheckFailCount int32      `json:"checkFailCount" bson:"checkFailCount"`
	LastCheckedAt  *time.Time `json:"lastCheckedAt,omitempty" bson:"lastCheckedAt,omitempty"`
	LastError      *string    `json:"lastError,omitempty" bson:"lastError,omitempty"`
	NextCheckAt    time.Time  `json:"nextCheckAt" bson:"nextCheckAt"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// PaymentApplication is everything the store needs to reconcile one paid session.
type PaymentApplication struct {
	ParcelID       string
	SessionID      string
	TransactionID  string
	TrackingID     string
	PaymentStatus  string
	DeliveryStatus string
	AmountMinor    int64
	Currency       string
	CustomerEmail  string
	PaidAt         time.Time
}

type PaymentOutcome struct {
	Payment   *Payment
	Parcel    UpdateResult
	Duplicate bool
}

type CheckoutSchedule struct {
	SessionID   string
	CheckedAt   time.Time
	NextCheckAt time.Time
	Error       *string
}
