package jobs

import (
	"context"

	"github.com/BearBump/zapshift/internal/models"
	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client turns domain events into email tasks.
type Client struct {
	q enqueuer
}

func NewClient(redisAddr string) *Client {
	return &Client{q: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

func (c *Client) NotifyPaymentReceipt(ctx context.Context, p models.Payment) error {
	if p.CustomerEmail == "" {
		return nil
	}
	task, err := NewPaymentReceiptTask(PaymentReceiptPayload{
		To:            p.CustomerEmail,
		TrackingID:    p.TrackingID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount,
		Currency:      p.Currency,
		PaidAt:        p.PaidAt,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) NotifyRiderDecision(ctx context.Context, app models.RiderApplication) error {
	task, err := NewRiderDecisionTask(RiderDecisionPayload{
		To:     app.Email,
		Name:   app.Name,
		Status: app.Status,
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) Close() error {
	return c.q.Close()
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if _, err := c.q.EnqueueContext(ctx, task); err != nil {
		return errors.Wrapf(err, "enqueue %s", task.Type())
	}
	return nil
}
