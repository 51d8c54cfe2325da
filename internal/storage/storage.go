// Package storage names the method set shared by every store driver.
package storage

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/internal/models"
)

// Repository is the union of the service repositories.
type Repository interface {
	ListParcels(ctx context.Context, f models.ParcelFilter) ([]*models.Parcel, error)
	CreateParcel(ctx context.Context, p *models.Parcel) error
	GetParcel(ctx context.Context, id string) (*models.Parcel, error)
	DeleteParcel(ctx context.Context, id string) (int64, error)

	CreateCheckout(ctx context.Context, c *models.Checkout) error
	GetCheckout(ctx context.Context, sessionID string) (*models.Checkout, error)
	GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error)
	ApplyPayment(ctx context.Context, a models.PaymentApplication) (*models.PaymentOutcome, error)
	ListPayments(ctx context.Context, email string) ([]*models.Payment, error)
	ScheduleCheckout(ctx context.Context, s models.CheckoutSchedule) error
	ExpireCheckout(ctx context.Context, sessionID string, at time.Time) error
	ClaimDueCheckouts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Checkout, error)

	InsertUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, id, role string) (*models.User, error)

	ListRiderApplications(ctx context.Context, status string) ([]*models.RiderApplication, error)
	InsertRiderApplication(ctx context.Context, a *models.RiderApplication) error
	DeleteRiderApplication(ctx context.Context, id string) (int64, error)
	DecideRiderApplication(ctx context.Context, d models.RiderDecision) (*models.RiderDecisionResult, error)
}

type Store interface {
	Repository
	Ping(ctx context.Context) error
	Close()
}
