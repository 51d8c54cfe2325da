package payments

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/broker/messages"
	gw "github.com/BearBump/zapshift/internal/integrations/payments"
	"github.com/BearBump/zapshift/internal/integrations/payments/fake"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	got []models.Payment
	err error
}

func (n *recordingNotifier) NotifyPaymentReceipt(_ context.Context, p models.Payment) error {
	n.got = append(n.got, p)
	return n.err
}

type env struct {
	st       *memstore.Storage
	gw       *fake.FakeClient
	svc      *Service
	notifier *recordingNotifier
	parcel   *models.Parcel
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := memstore.New()
	parcel := &models.Parcel{
		ParcelName: "docs", SenderEmail: "a@x.com", Cost: 500,
		TrackingID: "ZAP-TEST-ABC123", CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateParcel(context.Background(), parcel))

	g := fake.New()
	n := &recordingNotifier{}
	svc := New(st, g, Config{PublicBaseURL: "https://zap.dev/", Currency: "USD"}).WithNotifier(n)
	return &env{st: st, gw: g, svc: svc, notifier: n, parcel: parcel}
}

func (e *env) initiate(t *testing.T) string {
	t.Helper()
	res, err := e.svc.Initiate(context.Background(), CheckoutInput{
		ParcelID: e.parcel.ID, Email: "a@x.com", Name: "docs", Cost: 500,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.URL)
	id := res.URL[strings.LastIndex(res.URL, "/")+1:]
	return id
}

func TestInitiate_CreatesSessionAndCheckout(t *testing.T) {
	e := newEnv(t)
	sessionID := e.initiate(t)

	sess, err := e.gw.GetCheckoutSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, int64(50000), sess.AmountTotal)
	require.Equal(t, "usd", sess.Currency)
	require.Equal(t, e.parcel.ID, sess.Metadata[gw.MetadataParcelID])
	require.Equal(t, e.parcel.TrackingID, sess.Metadata[gw.MetadataTrackingID])

	c, err := e.st.GetCheckout(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStatusOpen, c.Status)
	require.Equal(t, int64(50000), c.AmountMinor)

	// parcel untouched
	p, err := e.st.GetParcel(context.Background(), e.parcel.ID)
	require.NoError(t, err)
	require.Empty(t, p.PaymentStatus)
}

func TestInitiate_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Initiate(ctx, CheckoutInput{Cost: 500})
	require.ErrorIs(t, err, apperr.Invalid)

	_, err = e.svc.Initiate(ctx, CheckoutInput{ParcelID: "missing", Cost: 500})
	require.ErrorIs(t, err, apperr.NotFound)

	_, err = e.svc.Initiate(ctx, CheckoutInput{ParcelID: e.parcel.ID, Cost: 1})
	require.ErrorIs(t, err, apperr.Invalid)

	// productId is accepted as the parcel reference
	res, err := e.svc.Initiate(ctx, CheckoutInput{ProductID: e.parcel.ID, Cost: 500})
	require.NoError(t, err)
	require.NotEmpty(t, res.URL)
}

func TestConfirm_ScenarioAndIdempotency(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sessionID := e.initiate(t)

	// not paid yet: nothing written
	res, err := e.svc.Confirm(ctx, sessionID)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, msgNotCompleted, res.Message)
	list, _ := e.st.ListPayments(ctx, "")
	require.Empty(t, list)

	require.NoError(t, e.gw.Pay(sessionID))

	res, err = e.svc.Confirm(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, msgRecorded, res.Message)
	require.Equal(t, e.parcel.TrackingID, res.TrackingID)
	require.NotNil(t, res.ModifyResult)
	require.Equal(t, int64(1), res.ModifyResult.ModifiedCount)
	first := res.PaymentResult

	p, err := e.st.GetParcel(ctx, e.parcel.ID)
	require.NoError(t, err)
	require.Equal(t, models.DeliveryStatusPendingPickup, p.DeliveryStatus)
	require.Equal(t, gw.PaymentStatusPaid, p.PaymentStatus)

	c, err := e.st.GetCheckout(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, models.CheckoutStatusCompleted, c.Status)

	again, err := e.svc.Confirm(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, msgAlreadyPaid, again.Message)
	require.Equal(t, first, again.PaymentResult)
	require.Nil(t, again.ModifyResult)

	list, err = e.st.ListPayments(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 500.0, list[0].Amount)
	require.Len(t, e.notifier.got, 1)
}

func TestConfirm_Errors(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Confirm(context.Background(), "")
	require.ErrorIs(t, err, apperr.Invalid)
	_, err = e.svc.Confirm(context.Background(), "cs_unknown")
	require.ErrorIs(t, err, apperr.NotFound)
}

func TestApplySession_NotifierFailureIsIgnored(t *testing.T) {
	e := newEnv(t)
	e.notifier.err = errors.New("redis down")
	res, err := e.svc.ApplySession(context.Background(), gw.Session{
		ID: "cs_x", Status: gw.SessionStatusComplete, PaymentStatus: gw.PaymentStatusPaid,
		TransactionID: "pi_x", AmountTotal: 50000, Currency: "usd",
		Metadata: map[string]string{gw.MetadataParcelID: e.parcel.ID},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
}

func TestApplySession_PaidWithoutParcel(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.ApplySession(context.Background(), gw.Session{
		ID: "cs_x", PaymentStatus: gw.PaymentStatusPaid, TransactionID: "pi_x",
	})
	require.ErrorIs(t, err, apperr.Invalid)
}

func TestApplyCheckoutChecked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sessionID := e.initiate(t)
	now := time.Now().UTC()

	errMsg := "timeout"
	require.NoError(t, e.svc.ApplyCheckoutChecked(ctx, messages.CheckoutChecked{
		SessionID: sessionID, CheckedAt: now, NextCheckAt: now.Add(time.Minute), Error: &errMsg,
	}))
	c, _ := e.st.GetCheckout(ctx, sessionID)
	require.Equal(t, int32(1), c.CheckFailCount)

	sess, _ := e.gw.GetCheckoutSession(ctx, sessionID)
	require.NoError(t, e.svc.ApplyCheckoutChecked(ctx, messages.CheckoutChecked{
		SessionID: sessionID, CheckedAt: now, NextCheckAt: now.Add(10 * time.Minute), Session: SessionMessage(sess),
	}))
	c, _ = e.st.GetCheckout(ctx, sessionID)
	require.Equal(t, int32(0), c.CheckFailCount)
	require.WithinDuration(t, now.Add(10*time.Minute), c.NextCheckAt, time.Second)

	require.NoError(t, e.gw.Pay(sessionID))
	sess, _ = e.gw.GetCheckoutSession(ctx, sessionID)
	require.NoError(t, e.svc.ApplyCheckoutChecked(ctx, messages.CheckoutChecked{
		SessionID: sessionID, CheckedAt: now, Session: SessionMessage(sess),
	}))
	c, _ = e.st.GetCheckout(ctx, sessionID)
	require.Equal(t, models.CheckoutStatusCompleted, c.Status)
	list, _ := e.st.ListPayments(ctx, "a@x.com")
	require.Len(t, list, 1)

	require.ErrorIs(t, e.svc.ApplyCheckoutChecked(ctx, messages.CheckoutChecked{}), apperr.Invalid)
	require.ErrorIs(t, e.svc.ApplyCheckoutChecked(ctx, messages.CheckoutChecked{SessionID: "x"}), apperr.Invalid)
}

func TestApplyCheckoutChecked_Expired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sessionID := e.initiate(t)
	require.NoError(t, e.gw.Expire(sessionID))
	sess, _ := e.gw.GetCheckoutSession(ctx, sessionID)

	require.NoError(t, e.svc.ApplyCheckoutChecked(ctx, messages.CheckoutChecked{
		SessionID: sessionID, CheckedAt: time.Now().UTC(), Session: SessionMessage(sess),
	}))
	c, _ := e.st.GetCheckout(ctx, sessionID)
	require.Equal(t, models.CheckoutStatusExpired, c.Status)
}

type stubParser struct {
	gw.Client
	sess gw.Session
	ok   bool
	err  error
}

func (p stubParser) ParseWebhook([]byte, string) (gw.Session, bool, error) {
	return p.sess, p.ok, p.err
}

func TestHandleWebhook(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.HandleWebhook(ctx, nil, "")
	require.ErrorIs(t, err, apperr.NotFound)

	e.svc.gateway = stubParser{Client: e.gw, ok: false}
	res, err := e.svc.HandleWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	require.Nil(t, res)

	e.svc.gateway = stubParser{Client: e.gw, err: apperr.Unauthorized}
	_, err = e.svc.HandleWebhook(ctx, []byte("{}"), "sig")
	require.ErrorIs(t, err, apperr.Unauthorized)

	e.svc.gateway = stubParser{Client: e.gw, ok: true, sess: gw.Session{
		ID: "cs_hook", PaymentStatus: gw.PaymentStatusPaid, TransactionID: "pi_hook", AmountTotal: 50000,
		Metadata: map[string]string{gw.MetadataParcelID: e.parcel.ID, gw.MetadataTrackingID: e.parcel.TrackingID},
	}}
	res, err = e.svc.HandleWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "pi_hook", res.TransactionID)
}

type failingRepo struct {
	Repository
	err error
}

func (f failingRepo) GetPaymentByTransactionID(context.Context, string) (*models.Payment, error) {
	return nil, f.err
}

func TestApplySession_LookupErrorPropagates(t *testing.T) {
	boom := errors.New("db")
	svc := New(failingRepo{err: boom}, fake.New(), Config{})
	_, err := svc.ApplySession(context.Background(), gw.Session{ID: "cs", TransactionID: "pi"})
	require.ErrorIs(t, err, boom)
}
