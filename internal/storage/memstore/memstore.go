// Package memstore keeps every collection in process memory. It backs the
// "memory" storage driver and the handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Storage struct {
	mu sync.Mutex

	parcels   map[string]models.Parcel
	payments  map[string]models.Payment
	checkouts map[string]models.Checkout
	users     map[string]models.User
	riders    map[string]models.RiderApplication

	now func() time.Time
}

func New() *Storage {
	return &Storage{
		parcels:   make(map[string]models.Parcel),
		payments:  make(map[string]models.Payment),
		checkouts: make(map[string]models.Checkout),
		users:     make(map[string]models.User),
		riders:    make(map[string]models.RiderApplication),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) Ping(context.Context) error { return nil }

func (s *Storage) Close() {}

func (s *Storage) ListParcels(_ context.Context, f models.ParcelFilter) ([]*models.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Parcel, 0, len(s.parcels))
	for _, p := range s.parcels {
		if f.SenderEmail != "" && p.SenderEmail != f.SenderEmail {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) CreateParcel(_ context.Context, p *models.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.parcels[p.ID]; ok {
		return errors.Wrapf(apperr.Conflict, "parcel %s", p.ID)
	}
	s.parcels[p.ID] = *p
	return nil
}

func (s *Storage) GetParcel(_ context.Context, id string) (*models.Parcel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.parcels[id]
	if !ok {
		return nil, errors.Wrapf(apperr.NotFound, "parcel %s", id)
	}
	return &p, nil
}

func (s *Storage) DeleteParcel(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.parcels[id]; !ok {
		return 0, nil
	}
	delete(s.parcels, id)
	return 1, nil
}

func (s *Storage) CreateCheckout(_ context.Context, c *models.Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.CheckoutStatusOpen
	}
	s.checkouts[c.SessionID] = *c
	return nil
}

func (s *Storage) GetCheckout(_ context.Context, sessionID string) (*models.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[sessionID]
	if !ok {
		return nil, errors.Wrapf(apperr.NotFound, "checkout %s", sessionID)
	}
	return &c, nil
}

func (s *Storage) GetPaymentByTransactionID(_ context.Context, txID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.paymentByTx(txID)
	if !ok {
		return nil, errors.Wrapf(apperr.NotFound, "payment %s", txID)
	}
	return p, nil
}

func (s *Storage) paymentByTx(txID string) (*models.Payment, bool) {
	for _, p := range s.payments {
		if p.TransactionID == txID {
			p := p
			return &p, true
		}
	}
	return nil, false
}

func (s *Storage) ApplyPayment(_ context.Context, a models.PaymentApplication) (*models.PaymentOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.paymentByTx(a.TransactionID); ok {
		return &models.PaymentOutcome{Payment: existing, Duplicate: true}, nil
	}

	res := models.UpdateResult{Acknowledged: true}
	if p, ok := s.parcels[a.ParcelID]; ok {
		res.MatchedCount = 1
		next := p
		next.PaymentStatus = a.PaymentStatus
		next.DeliveryStatus = a.DeliveryStatus
		if a.TrackingID != "" {
			next.TrackingID = a.TrackingID
		}
		if next != p {
			res.ModifiedCount = 1
		}
		s.parcels[a.ParcelID] = next
	}

	pay := models.Payment{
		ID:            uuid.NewString(),
		ParcelID:      a.ParcelID,
		SessionID:     a.SessionID,
		TransactionID: a.TransactionID,
		TrackingID:    a.TrackingID,
		Amount:        float64(a.AmountMinor) / 100,
		Currency:      a.Currency,
		CustomerEmail: a.CustomerEmail,
		PaymentStatus: a.PaymentStatus,
		PaidAt:        a.PaidAt,
	}
	s.payments[pay.ID] = pay

	if c, ok := s.checkouts[a.SessionID]; ok {
		c.Status = models.CheckoutStatusCompleted
		c.UpdatedAt = s.now()
		s.checkouts[a.SessionID] = c
	}

	return &models.PaymentOutcome{Payment: &pay, Parcel: res}, nil
}

func (s *Storage) ListPayments(_ context.Context, email string) ([]*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Payment, 0)
	for _, p := range s.payments {
		if email != "" && p.CustomerEmail != email {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PaidAt.After(out[j].PaidAt) })
	return out, nil
}

func (s *Storage) ScheduleCheckout(_ context.Context, sc models.CheckoutSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[sc.SessionID]
	if !ok || c.Status != models.CheckoutStatusOpen {
		return nil
	}
	checked := sc.CheckedAt
	c.LastCheckedAt = &checked
	c.NextCheckAt = sc.NextCheckAt
	if sc.Error != nil && *sc.Error != "" {
		c.CheckFailCount++
		msg := *sc.Error
		c.LastError = &msg
	} else {
		c.CheckFailCount = 0
		c.LastError = nil
	}
	c.UpdatedAt = s.now()
	s.checkouts[sc.SessionID] = c
	return nil
}

func (s *Storage) ExpireCheckout(_ context.Context, sessionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[sessionID]
	if !ok || c.Status != models.CheckoutStatusOpen {
		return nil
	}
	c.Status = models.CheckoutStatusExpired
	c.LastCheckedAt = &at
	c.UpdatedAt = s.now()
	s.checkouts[sessionID] = c
	return nil
}

func (s *Storage) ClaimDueCheckouts(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Checkout, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]models.Checkout, 0)
	for _, c := range s.checkouts {
		if c.Status == models.CheckoutStatusOpen && !c.NextCheckAt.After(now) {
			due = append(due, c)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].NextCheckAt.Before(due[j].NextCheckAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]*models.Checkout, 0, len(due))
	for _, c := range due {
		c.NextCheckAt = now.Add(lease)
		s.checkouts[c.SessionID] = c
		c := c
		out = append(out, &c)
	}
	return out, nil
}

func (s *Storage) InsertUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.userByEmail(u.Email); ok {
		return errors.Wrapf(apperr.Conflict, "user %s", u.Email)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = *u
	return nil
}

func (s *Storage) userByEmail(email string) (models.User, bool) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return models.User{}, false
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.userByEmail(email)
	if !ok {
		return nil, errors.Wrapf(apperr.NotFound, "user %s", email)
	}
	return &u, nil
}

func (s *Storage) ListUsers(_ context.Context) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		u := u
		out = append(out, &u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) UpdateUserRole(_ context.Context, id, role string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, errors.Wrapf(apperr.NotFound, "user %s", id)
	}
	u.Role = role
	s.users[id] = u
	return &u, nil
}

func (s *Storage) ListRiderApplications(_ context.Context, status string) ([]*models.RiderApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.RiderApplication, 0, len(s.riders))
	for _, r := range s.riders {
		if status != "" && r.Status != status {
			continue
		}
		r := r
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Storage) InsertRiderApplication(_ context.Context, a *models.RiderApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Status == models.RiderStatusPending {
		for _, r := range s.riders {
			if r.Status == models.RiderStatusPending && r.Email == a.Email {
				return errors.Wrapf(apperr.Conflict, "pending rider application for %s", a.Email)
			}
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.riders[a.ID] = *a
	return nil
}

func (s *Storage) DeleteRiderApplication(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.riders[id]; !ok {
		return 0, nil
	}
	delete(s.riders, id)
	return 1, nil
}

func (s *Storage) DecideRiderApplication(_ context.Context, d models.RiderDecision) (*models.RiderDecisionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.riders[d.ApplicationID]
	if !ok {
		return nil, errors.Wrapf(apperr.NotFound, "rider application %s", d.ApplicationID)
	}
	if d.Status == models.RiderStatusPending && app.Status != models.RiderStatusPending {
		for id, r := range s.riders {
			if id != app.ID && r.Status == models.RiderStatusPending && r.Email == app.Email {
				return nil, errors.Wrapf(apperr.Conflict, "pending rider application for %s", app.Email)
			}
		}
	}

	res := &models.RiderDecisionResult{ModifyResult: models.UpdateResult{Acknowledged: true, MatchedCount: 1}}
	if app.Status != d.Status {
		res.ModifyResult.ModifiedCount = 1
	}
	app.Status = d.Status
	s.riders[app.ID] = app
	res.Application = &app

	if d.PromoteTo != "" {
		email := d.Email
		if email == "" {
			email = app.Email
		}
		rr := models.UpdateResult{Acknowledged: true}
		if u, ok := s.userByEmail(email); ok {
			rr.MatchedCount = 1
			if u.Role != d.PromoteTo {
				rr.ModifiedCount = 1
			}
			u.Role = d.PromoteTo
			s.users[u.ID] = u
		}
		res.RoleResult = &rr
	}
	return res, nil
}
