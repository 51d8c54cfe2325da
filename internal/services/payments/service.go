// Package payments drives a parcel from unpaid through hosted checkout to a
// reconciled payment. Every path that learns about a paid session (redirect,
// webhook, worker message) goes through ApplySession.
package payments

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/broker/messages"
	gw "github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Repository interface {
	GetParcel(ctx context.Context, id string) (*models.Parcel, error)
	CreateCheckout(ctx context.Context, c *models.Checkout) error
	GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error)
	ApplyPayment(ctx context.Context, a models.PaymentApplication) (*models.PaymentOutcome, error)
	ListPayments(ctx context.Context, email string) ([]*models.Payment, error)
	ScheduleCheckout(ctx context.Context, s models.CheckoutSchedule) error
	ExpireCheckout(ctx context.Context, sessionID string, at time.Time) error
}

// Notifier is told about newly recorded payments. Failures are logged only.
type Notifier interface {
	NotifyPaymentReceipt(ctx context.Context, p models.Payment) error
}

type Config struct {
	PublicBaseURL string
	Currency      string
	// First reconciliation check for a fresh checkout.
	RecheckAfter time.Duration
}

type CheckoutInput struct {
	ParcelID  string  `json:"parcelId"`
	ProductID string  `json:"productId"`
	Email     string  `json:"email" validate:"omitempty,email"`
	Name      string  `json:"name"`
	Cost      float64 `json:"cost" validate:"gte=0"`
}

type CheckoutResult struct {
	URL string `json:"url"`
}

// ConfirmResult keeps the "trakingId" wire name existing clients read.
type ConfirmResult struct {
	Success       bool                 `json:"success"`
	Message       string               `json:"message"`
	PaymentStatus string               `json:"paymentStatus,omitempty"`
	PaymentResult *models.Payment      `json:"paymentResult,omitempty"`
	TransactionID string               `json:"transactionId,omitempty"`
	TrackingID    string               `json:"trakingId,omitempty"`
	ModifyResult  *models.UpdateResult `json:"modifyResult,omitempty"`
}

const (
	msgRecorded     = "payment recorded"
	msgAlreadyPaid  = "payment already recorded"
	msgNotCompleted = "payment not completed"
)

type Service struct {
	repo     Repository
	gateway  gw.Client
	cfg      Config
	notifier Notifier
	now      func() time.Time
}

func New(repo Repository, gateway gw.Client, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.RecheckAfter <= 0 {
		cfg.RecheckAfter = 5 * time.Minute
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Initiate opens a hosted checkout for the stored parcel cost and returns its URL.
func (s *Service) Initiate(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if in.ParcelID == "" {
		in.ParcelID = in.ProductID
	}
	if in.ParcelID == "" {
		return nil, apperr.Field("parcelId", "is required")
	}
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}

	parcel, err := s.repo.GetParcel(ctx, in.ParcelID)
	if err != nil {
		return nil, err
	}
	// the stored cost is charged; a differing client cost is rejected
	if in.Cost != 0 && math.Abs(in.Cost-parcel.Cost) > 1e-9 {
		return nil, apperr.Field("cost", "does not match the parcel cost")
	}
	amount := int64(math.Round(parcel.Cost * 100))
	if amount <= 0 {
		return nil, apperr.Field("cost", "must be positive")
	}

	email := in.Email
	if email == "" {
		email = parcel.SenderEmail
	}
	name := in.Name
	if name == "" {
		name = parcel.ParcelName
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, gw.CheckoutRequest{
		ParcelID:      parcel.ID,
		TrackingID:    parcel.TrackingID,
		ProductName:   name,
		CustomerEmail: email,
		AmountMinor:   amount,
		Currency:      s.cfg.Currency,
		SuccessURL:    s.cfg.PublicBaseURL + "/dashboard/payment-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.PublicBaseURL + "/dashboard/payment-cancel",
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.repo.CreateCheckout(ctx, &models.Checkout{
		SessionID:     sess.ID,
		ParcelID:      parcel.ID,
		TrackingID:    parcel.TrackingID,
		CustomerEmail: email,
		AmountMinor:   amount,
		Currency:      s.cfg.Currency,
		Status:        models.CheckoutStatusOpen,
		NextCheckAt:   now.Add(s.cfg.RecheckAfter),
		CreatedAt:     now,
	})
	if err != nil {
		// redirect and webhook still reconcile; only the worker loses track
		zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", sess.ID).Msg("record checkout failed")
	}
	return &CheckoutResult{URL: sess.URL}, nil
}

// Confirm reconciles the session the customer was redirected back with.
func (s *Service) Confirm(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	if sessionID == "" {
		return nil, apperr.Field("session_id", "is required")
	}
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.ApplySession(ctx, sess)
}

// ApplySession records a paid session at most once per transaction id.
// Unpaid sessions produce a "not completed" result and no writes.
func (s *Service) ApplySession(ctx context.Context, sess gw.Session) (*ConfirmResult, error) {
	txID := sess.TransactionID
	if txID == "" && sess.Paid() {
		// no-cost sessions carry no payment intent
		txID = sess.ID
	}

	if txID != "" {
		existing, err := s.repo.GetPaymentByTransactionID(ctx, txID)
		switch {
		case err == nil:
			return alreadyPaid(existing), nil
		case !errors.Is(err, apperr.NotFound):
			return nil, err
		}
	}

	if !sess.Paid() {
		return &ConfirmResult{
			Message:       msgNotCompleted,
			PaymentStatus: sess.PaymentStatus,
			TrackingID:    sess.Metadata[gw.MetadataTrackingID],
		}, nil
	}

	parcelID := sess.Metadata[gw.MetadataParcelID]
	if parcelID == "" {
		return nil, errors.Wrapf(apperr.Invalid, "session %s has no parcel reference", sess.ID)
	}
	trackingID := sess.Metadata[gw.MetadataTrackingID]

	out, err := s.repo.ApplyPayment(ctx, models.PaymentApplication{
		ParcelID:       parcelID,
		SessionID:      sess.ID,
		TransactionID:  txID,
		TrackingID:     trackingID,
		PaymentStatus:  sess.PaymentStatus,
		DeliveryStatus: models.DeliveryStatusPendingPickup,
		AmountMinor:    sess.AmountTotal,
		Currency:       sess.Currency,
		CustomerEmail:  sess.CustomerEmail,
		PaidAt:         s.now(),
	})
	if err != nil {
		return nil, err
	}
	if out.Duplicate {
		return alreadyPaid(out.Payment), nil
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", sess.ID).
		Str("transaction_id", txID).
		Str("parcel_id", parcelID).
		Msg("payment recorded")
	s.notify(ctx, *out.Payment)

	modify := out.Parcel
	return &ConfirmResult{
		Success:       true,
		Message:       msgRecorded,
		PaymentStatus: out.Payment.PaymentStatus,
		PaymentResult: out.Payment,
		TransactionID: txID,
		TrackingID:    trackingID,
		ModifyResult:  &modify,
	}, nil
}

// ApplyCheckoutChecked applies what the reconciliation worker learned about
// one open checkout.
func (s *Service) ApplyCheckoutChecked(ctx context.Context, msg messages.CheckoutChecked) error {
	if msg.SessionID == "" {
		return errors.Wrap(apperr.Invalid, "session_id is required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = s.now()
	}
	if msg.NextCheckAt.IsZero() {
		msg.NextCheckAt = msg.CheckedAt.Add(60 * time.Minute)
	}

	if msg.Error != nil && *msg.Error != "" {
		return s.repo.ScheduleCheckout(ctx, models.CheckoutSchedule{
			SessionID:   msg.SessionID,
			CheckedAt:   msg.CheckedAt,
			NextCheckAt: msg.NextCheckAt,
			Error:       msg.Error,
		})
	}
	if msg.Session == nil {
		return errors.Wrap(apperr.Invalid, "message has neither session nor error")
	}

	sess := sessionFromMessage(msg.Session)
	switch {
	case sess.Paid():
		_, err := s.ApplySession(ctx, sess)
		return err
	case sess.Status == gw.SessionStatusExpired:
		return s.repo.ExpireCheckout(ctx, msg.SessionID, msg.CheckedAt)
	default:
		return s.repo.ScheduleCheckout(ctx, models.CheckoutSchedule{
			SessionID:   msg.SessionID,
			CheckedAt:   msg.CheckedAt,
			NextCheckAt: msg.NextCheckAt,
		})
	}
}

// List returns payments newest first; an empty email lists all of them.
func (s *Service) List(ctx context.Context, email string) ([]*models.Payment, error) {
	return s.repo.ListPayments(ctx, strings.TrimSpace(email))
}

func (s *Service) notify(ctx context.Context, p models.Payment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPaymentReceipt(ctx, p); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("transaction_id", p.TransactionID).Msg("enqueue payment receipt failed")
	}
}

func alreadyPaid(p *models.Payment) *ConfirmResult {
	return &ConfirmResult{
		Success:       true,
		Message:       msgAlreadyPaid,
		PaymentStatus: p.PaymentStatus,
		PaymentResult: p,
		TransactionID: p.TransactionID,
		TrackingID:    p.TrackingID,
	}
}

func sessionFromMessage(m *messages.CheckoutSession) gw.Session {
	return gw.Session{
		ID:            m.ID,
		Status:        m.Status,
		PaymentStatus: m.PaymentStatus,
		TransactionID: m.TransactionID,
		AmountTotal:   m.AmountTotal,
		Currency:      m.Currency,
		CustomerEmail: m.CustomerEmail,
		Metadata:      m.Metadata,
	}
}

// SessionMessage converts a processor session for publishing.
func SessionMessage(s gw.Session) *messages.CheckoutSession {
	return &messages.CheckoutSession{
		ID:            s.ID,
		Status:        s.Status,
		PaymentStatus: s.PaymentStatus,
		TransactionID: s.TransactionID,
		AmountTotal:   s.AmountTotal,
		Currency:      s.Currency,
		CustomerEmail: s.CustomerEmail,
		Metadata:      s.Metadata,
	}
}
