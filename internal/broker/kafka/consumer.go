package kafka

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix (e.g. a malformed
// payload). The consumer commits past such messages.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var perm permanentError
	return errors.As(err, &perm)
}

type Consumer struct {
	r messageReader

	attempts int
	delay    time.Duration
	onSkip   func(msg kafka.Message, err error)
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return newConsumerWithReader(kafka.NewReader(cfg))
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, attempts: 5, delay: 500 * time.Millisecond}
}

// WithRetry sets how many times a failing handler is retried in place before
// Consume gives up.
func (c *Consumer) WithRetry(attempts int, delay time.Duration) *Consumer {
	if attempts > 0 {
		c.attempts = attempts
	}
	if delay >= 0 {
		c.delay = delay
	}
	return c
}

// OnSkip is called for every message dropped with a Permanent error.
func (c *Consumer) OnSkip(fn func(msg kafka.Message, err error)) *Consumer {
	c.onSkip = fn
	return c
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume feeds messages to handler until ctx ends or the handler keeps failing.
// Offsets are committed only after the handler succeeded or skipped the message.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}

		if err := c.handle(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler func(key, value []byte) error) error {
	var err error
	for i := 0; i < c.attempts; i++ {
		err = handler(msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			if c.onSkip != nil {
				c.onSkip(msg, perm.err)
			}
			return nil
		}
		if i == c.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
	}
	return err
}
