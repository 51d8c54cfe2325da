// Package jobs enqueues and processes background email tasks on asynq.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
)

const (
	TypePaymentReceipt = "email:payment_receipt"
	TypeRiderDecision  = "email:rider_decision"

	queueDefault = "default"
)

type PaymentReceiptPayload struct {
	To            string    `json:"to"`
	TrackingID    string    `json:"tracking_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	PaidAt        time.Time `json:"paid_at"`
}

type RiderDecisionPayload struct {
	To     string `json:"to"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

func NewPaymentReceiptTask(p PaymentReceiptPayload) (*asynq.Task, error) {
	return newTask(TypePaymentReceipt, p)
}

func NewRiderDecisionTask(p RiderDecisionPayload) (*asynq.Task, error) {
	return newTask(TypeRiderDecision, p)
}

func newTask(typename string, v any) (*asynq.Task, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %s payload", typename)
	}
	return asynq.NewTask(
		typename,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(queueDefault),
		asynq.Timeout(30*time.Second),
	), nil
}
