// Package reconciler finishes checkouts whose redirect never came back: it
// leases due open checkouts, asks the processor for their session and
// publishes what it learned as a checkout.checked message.
package reconciler

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/zapshift/internal/broker/messages"
	gw "github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/services/payments"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Repository interface {
	ClaimDueCheckouts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Checkout, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// RateLimiter counts processor calls per bucket in per-minute windows.
type RateLimiter interface {
	Allow(ctx context.Context, bucket string, limit int64, at time.Time) (bool, int64, error)
}

const rateLimitBucket = "payments"

type Reconciler struct {
	repo     Repository
	gateway  gw.Client
	producer Producer
	rl       RateLimiter
	log      zerolog.Logger

	topic string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64
	throttle           time.Duration
	publishAttempts    int
	publishDelay       time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, gateway gw.Client, producer Producer, rl RateLimiter, topic string) *Reconciler {
	return &Reconciler{
		repo: repo, gateway: gateway, producer: producer, rl: rl, topic: topic,
		log:                zerolog.Nop(),
		planner:            NewPlanner(DefaultPlannerConfig()),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		throttle:           500 * time.Millisecond,
		publishAttempts:    10,
		publishDelay:       150 * time.Millisecond,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func (r *Reconciler) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Reconciler {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	if rlPerMin > 0 {
		r.rateLimitPerMinute = rlPerMin
	}
	return r
}

func (r *Reconciler) WithPlanner(cfg PlannerConfig) *Reconciler {
	r.planner = NewPlanner(cfg)
	return r
}

func (r *Reconciler) WithLogger(l zerolog.Logger) *Reconciler {
	r.log = l.With().Str("component", "reconciler").Logger()
	return r
}

// Trigger forces an immediate cycle. Non-blocking; coalesces with a pending trigger.
func (r *Reconciler) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (r *Reconciler) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalClaimed:   r.totalClaimed.Load(),
		TotalProcessed: r.totalProcessed.Load(),
		TotalErrors:    r.totalErrors.Load(),
		InFlight:       r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Reconciler) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	items, err := r.repo.ClaimDueCheckouts(ctx, now, r.batchSize, r.lease)
	if err != nil {
		r.log.Error().Err(err).Msg("claim due checkouts")
		r.setLastError(err)
		return
	}
	r.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, c := range items {
		sem <- struct{}{}
		wg.Add(1)
		r.inFlight.Add(1)
		go func(c *models.Checkout) {
			defer func() {
				r.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := r.processOne(ctx, c); err != nil {
				r.totalErrors.Add(1)
				r.setLastError(err)
				r.log.Error().Err(err).Str("session_id", c.SessionID).Msg("process checkout")
			}
			r.totalProcessed.Add(1)
		}(c)
	}
	wg.Wait()
}

func (r *Reconciler) processOne(ctx context.Context, c *models.Checkout) error {
	now := time.Now().UTC()

	if r.rl != nil && r.rateLimitPerMinute > 0 {
		allowed, n, err := r.rl.Allow(ctx, rateLimitBucket, r.rateLimitPerMinute, now)
		if err != nil {
			return err
		}
		if !allowed {
			r.log.Warn().Int64("count", n).Msg("payment processor rate limit exceeded")
			time.Sleep(r.throttle)
		}
	}

	msg := messages.CheckoutChecked{
		SessionID: c.SessionID,
		CheckedAt: now,
	}
	sess, err := r.gateway.GetCheckoutSession(ctx, c.SessionID)
	if err != nil {
		e := err.Error()
		msg.Error = &e
		msg.NextCheckAt = now.Add(r.planner.BackoffDelay(c.CheckFailCount + 1))
	} else {
		msg.Session = payments.SessionMessage(sess)
		msg.NextCheckAt = now.Add(r.planner.NextCheckDelay())
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal checkout checked")
	}

	// the broker may still be starting when the worker comes up
	key := []byte(c.SessionID)
	var pubErr error
	for i := 0; i < r.publishAttempts; i++ {
		if pubErr = r.producer.Publish(ctx, r.topic, key, b); pubErr == nil {
			return nil
		}
		time.Sleep(time.Duration(i+1) * r.publishDelay)
	}
	return pubErr
}

func (r *Reconciler) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}
