// Package storagetest holds the behaviour every storage driver must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/storage"
	"github.com/stretchr/testify/require"
)

// Store is the method set every driver implements.
type Store = storage.Repository

// Run exercises st; it must start empty.
func Run(t *testing.T, st Store) {
	t.Run("parcels", func(t *testing.T) { parcels(t, st) })
	t.Run("payments", func(t *testing.T) { payments(t, st) })
	t.Run("checkouts", func(t *testing.T) { checkouts(t, st) })
	t.Run("users", func(t *testing.T) { users(t, st) })
	t.Run("riders", func(t *testing.T) { riders(t, st) })
}

func ts(min int) time.Time {
	return time.Date(2026, 5, 1, 12, min, 0, 0, time.UTC)
}

func parcels(t *testing.T, st Store) {
	ctx := context.Background()

	a := &models.Parcel{ParcelName: "docs", SenderEmail: "a@zap.dev", Cost: 12.5, TrackingID: "ZAP-A-000001", CreatedAt: ts(1)}
	b := &models.Parcel{ParcelName: "box", SenderEmail: "b@zap.dev", Cost: 40, TrackingID: "ZAP-B-000002", CreatedAt: ts(2)}
	require.NoError(t, st.CreateParcel(ctx, a))
	require.NoError(t, st.CreateParcel(ctx, b))
	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)

	all, err := st.ListParcels(ctx, models.ParcelFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, b.ID, all[0].ID)

	mine, err := st.ListParcels(ctx, models.ParcelFilter{SenderEmail: "a@zap.dev"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "docs", mine[0].ParcelName)
	require.Empty(t, mine[0].PaymentStatus)
	require.Empty(t, mine[0].DeliveryStatus)

	got, err := st.GetParcel(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, 12.5, got.Cost)
	require.True(t, ts(1).Equal(got.CreatedAt))

	_, err = st.GetParcel(ctx, "missing")
	require.ErrorIs(t, err, apperr.NotFound)

	n, err := st.DeleteParcel(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = st.DeleteParcel(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}

func payments(t *testing.T, st Store) {
	ctx := context.Background()

	p := &models.Parcel{ParcelName: "pay me", SenderEmail: "payer@zap.dev", Cost: 9.99, TrackingID: "ZAP-P-00000A", CreatedAt: ts(3)}
	require.NoError(t, st.CreateParcel(ctx, p))
	require.NoError(t, st.CreateCheckout(ctx, &models.Checkout{
		SessionID: "cs_pay", ParcelID: p.ID, TrackingID: p.TrackingID, CustomerEmail: "payer@zap.dev",
		AmountMinor: 999, Currency: "usd", Status: models.CheckoutStatusOpen, NextCheckAt: ts(5),
	}))

	_, err := st.GetPaymentByTransactionID(ctx, "pi_1")
	require.ErrorIs(t, err, apperr.NotFound)

	app := models.PaymentApplication{
		ParcelID: p.ID, SessionID: "cs_pay", TransactionID: "pi_1", TrackingID: p.TrackingID,
		PaymentStatus: models.PaymentStatusPaid, DeliveryStatus: models.DeliveryStatusPendingPickup,
		AmountMinor: 999, Currency: "usd", CustomerEmail: "payer@zap.dev", PaidAt: ts(6),
	}
	out, err := st.ApplyPayment(ctx, app)
	require.NoError(t, err)
	require.False(t, out.Duplicate)
	require.Equal(t, int64(1), out.Parcel.MatchedCount)
	require.Equal(t, int64(1), out.Parcel.ModifiedCount)
	require.Equal(t, 9.99, out.Payment.Amount)
	require.NotEmpty(t, out.Payment.ID)

	again, err := st.ApplyPayment(ctx, app)
	require.NoError(t, err)
	require.True(t, again.Duplicate)
	require.Equal(t, out.Payment.ID, again.Payment.ID)

	got, err := st.GetParcel(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	require.Equal(t, models.DeliveryStatusPendingPickup, got.DeliveryStatus)

	c, err := st.GetCheckout(ctx, "cs_pay")
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStatusCompleted, c.Status)

	byTx, err := st.GetPaymentByTransactionID(ctx, "pi_1")
	require.NoError(t, err)
	require.Equal(t, out.Payment.ID, byTx.ID)

	list, err := st.ListPayments(ctx, "payer@zap.dev")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = st.ListPayments(ctx, "nobody@zap.dev")
	require.NoError(t, err)
	require.Empty(t, list)
}

func checkouts(t *testing.T, st Store) {
	ctx := context.Background()

	now := ts(30)
	for _, c := range []*models.Checkout{
		{SessionID: "cs_due", ParcelID: "p1", AmountMinor: 100, Currency: "usd", Status: models.CheckoutStatusOpen, NextCheckAt: now.Add(-time.Minute)},
		{SessionID: "cs_later", ParcelID: "p2", AmountMinor: 100, Currency: "usd", Status: models.CheckoutStatusOpen, NextCheckAt: now.Add(time.Hour)},
		{SessionID: "cs_gone", ParcelID: "p3", AmountMinor: 100, Currency: "usd", Status: models.CheckoutStatusOpen, NextCheckAt: now.Add(-time.Hour)},
	} {
		require.NoError(t, st.CreateCheckout(ctx, c))
	}
	require.NoError(t, st.ExpireCheckout(ctx, "cs_gone", now))

	lease := 2 * time.Minute
	due, err := st.ClaimDueCheckouts(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "cs_due", due[0].SessionID)
	require.WithinDuration(t, now.Add(lease), due[0].NextCheckAt, time.Second)

	// leased rows are not handed out twice
	due, err = st.ClaimDueCheckouts(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, due)

	msg := "processor timeout"
	require.NoError(t, st.ScheduleCheckout(ctx, models.CheckoutSchedule{
		SessionID: "cs_due", CheckedAt: now, NextCheckAt: now.Add(5 * time.Minute), Error: &msg,
	}))
	c, err := st.GetCheckout(ctx, "cs_due")
	require.NoError(t, err)
	require.Equal(t, int32(1), c.CheckFailCount)
	require.NotNil(t, c.LastError)
	require.Equal(t, msg, *c.LastError)

	require.NoError(t, st.ScheduleCheckout(ctx, models.CheckoutSchedule{
		SessionID: "cs_due", CheckedAt: now, NextCheckAt: now.Add(10 * time.Minute),
	}))
	c, err = st.GetCheckout(ctx, "cs_due")
	require.NoError(t, err)
	require.Equal(t, int32(0), c.CheckFailCount)
	require.Nil(t, c.LastError)
	require.WithinDuration(t, now.Add(10*time.Minute), c.NextCheckAt, time.Second)

	c, err = st.GetCheckout(ctx, "cs_gone")
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStatusExpired, c.Status)
}

func users(t *testing.T, st Store) {
	ctx := context.Background()

	u := &models.User{Email: "user@zap.dev", DisplayName: "U", Role: models.RoleUser, CreatedAt: ts(10)}
	require.NoError(t, st.InsertUser(ctx, u))
	require.NotEmpty(t, u.ID)

	err := st.InsertUser(ctx, &models.User{Email: "user@zap.dev", Role: models.RoleUser, CreatedAt: ts(11)})
	require.ErrorIs(t, err, apperr.Conflict)

	require.NoError(t, st.InsertUser(ctx, &models.User{Email: "second@zap.dev", Role: models.RoleUser, CreatedAt: ts(12)}))

	got, err := st.GetUserByEmail(ctx, "user@zap.dev")
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, got.Role)

	_, err = st.GetUserByEmail(ctx, "ghost@zap.dev")
	require.ErrorIs(t, err, apperr.NotFound)

	list, err := st.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "second@zap.dev", list[0].Email)

	upd, err := st.UpdateUserRole(ctx, u.ID, models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, upd.Role)
	require.Equal(t, "user@zap.dev", upd.Email)

	_, err = st.UpdateUserRole(ctx, "missing", models.RoleAdmin)
	require.ErrorIs(t, err, apperr.NotFound)
}

func riders(t *testing.T, st Store) {
	ctx := context.Background()

	require.NoError(t, st.InsertUser(ctx, &models.User{Email: "rider@zap.dev", Role: models.RoleUser, CreatedAt: ts(20)}))

	a := &models.RiderApplication{Email: "rider@zap.dev", Name: "Rahim", Region: "Dhaka", Status: models.RiderStatusPending, CreatedAt: ts(21)}
	require.NoError(t, st.InsertRiderApplication(ctx, a))
	require.NotEmpty(t, a.ID)

	err := st.InsertRiderApplication(ctx, &models.RiderApplication{Email: "rider@zap.dev", Status: models.RiderStatusPending, CreatedAt: ts(22)})
	require.ErrorIs(t, err, apperr.Conflict)

	other := &models.RiderApplication{Email: "other@zap.dev", Status: models.RiderStatusPending, CreatedAt: ts(23)}
	require.NoError(t, st.InsertRiderApplication(ctx, other))

	list, err := st.ListRiderApplications(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, other.ID, list[0].ID)

	// rejection does not touch roles
	res, err := st.DecideRiderApplication(ctx, models.RiderDecision{ApplicationID: other.ID, Status: models.RiderStatusRejected})
	require.NoError(t, err)
	require.Nil(t, res.RoleResult)
	require.Equal(t, models.RiderStatusRejected, res.Application.Status)

	res, err = st.DecideRiderApplication(ctx, models.RiderDecision{
		ApplicationID: a.ID, Status: models.RiderStatusAccepted, PromoteTo: models.RoleRider,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.ModifyResult.ModifiedCount)
	require.NotNil(t, res.RoleResult)
	require.Equal(t, int64(1), res.RoleResult.MatchedCount)

	u, err := st.GetUserByEmail(ctx, "rider@zap.dev")
	require.NoError(t, err)
	require.Equal(t, models.RoleRider, u.Role)

	accepted, err := st.ListRiderApplications(ctx, models.RiderStatusAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)

	// a decided application frees the email for a new pending one
	require.NoError(t, st.InsertRiderApplication(ctx, &models.RiderApplication{Email: "rider@zap.dev", Status: models.RiderStatusPending, CreatedAt: ts(24)}))

	_, err = st.DecideRiderApplication(ctx, models.RiderDecision{ApplicationID: "missing", Status: models.RiderStatusAccepted, PromoteTo: models.RoleRider})
	require.ErrorIs(t, err, apperr.NotFound)

	n, err := st.DeleteRiderApplication(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = st.DeleteRiderApplication(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), n)
}
