// Package fake is an in-memory checkout processor for local runs and tests.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/pkg/errors"
)

type FakeClient struct {
	baseURL string
	autoPay bool

	mu       sync.Mutex
	seq      int
	sessions map[string]*payments.Session
}

func New() *FakeClient {
	return &FakeClient{
		baseURL:  "https://checkout.fake.local",
		sessions: make(map[string]*payments.Session),
	}
}

// WithAutoPay makes every session report itself paid on the first lookup,
// so the full reconcile path can be exercised without a browser.
func (f *FakeClient) WithAutoPay(v bool) *FakeClient {
	f.autoPay = v
	return f
}

func (f *FakeClient) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (payments.Session, error) {
	if req.AmountMinor <= 0 {
		return payments.Session{}, errors.Wrap(apperr.Invalid, "amount must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := fmt.Sprintf("cs_fake_%d", f.seq)
	s := &payments.Session{
		ID:            id,
		URL:           f.baseURL + "/pay/" + id,
		Status:        payments.SessionStatusOpen,
		PaymentStatus: payments.PaymentStatusUnpaid,
		AmountTotal:   req.AmountMinor,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
		Metadata: map[string]string{
			payments.MetadataParcelID:   req.ParcelID,
			payments.MetadataTrackingID: req.TrackingID,
		},
	}
	f.sessions[id] = s
	return copySession(s), nil
}

func (f *FakeClient) GetCheckoutSession(ctx context.Context, id string) (payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[id]
	if !ok {
		return payments.Session{}, errors.Wrapf(apperr.NotFound, "checkout session %s", id)
	}
	if f.autoPay && s.Status == payments.SessionStatusOpen {
		f.pay(s)
	}
	return copySession(s), nil
}

// Pay completes a session as if the customer finished the hosted page.
func (f *FakeClient) Pay(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.Wrapf(apperr.NotFound, "checkout session %s", id)
	}
	f.pay(s)
	return nil
}

func (f *FakeClient) Expire(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return errors.Wrapf(apperr.NotFound, "checkout session %s", id)
	}
	s.Status = payments.SessionStatusExpired
	return nil
}

func (f *FakeClient) pay(s *payments.Session) {
	s.Status = payments.SessionStatusComplete
	s.PaymentStatus = payments.PaymentStatusPaid
	s.TransactionID = "pi_fake_" + s.ID[len("cs_fake_"):]
}

func copySession(s *payments.Session) payments.Session {
	out := *s
	out.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	return out
}
