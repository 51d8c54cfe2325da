package email

import "context"

type PaymentReceipt struct {
	TrackingID    string
	TransactionID string
	Amount        string
	Currency      string
	PaidAt        string
}

type RiderDecision struct {
	Name   string
	Status string
}

func (c *Client) SendPaymentReceipt(ctx context.Context, to string, r PaymentReceipt) error {
	return c.Send(ctx, to, "Payment received for "+r.TrackingID, TemplatePaymentReceipt, r)
}

func (c *Client) SendRiderDecision(ctx context.Context, to string, d RiderDecision) error {
	return c.Send(ctx, to, "Your rider application was "+d.Status, TemplateRiderDecision, d)
}
