package parcels

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/trackingid"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	listIn  models.ParcelFilter
	listOut []*models.Parcel

	created   *models.Parcel
	createErr error

	deleteIn  string
	deleteN   int64
	deleteErr error
}

func (f *fakeRepo) ListParcels(ctx context.Context, filter models.ParcelFilter) ([]*models.Parcel, error) {
	f.listIn = filter
	return f.listOut, nil
}
func (f *fakeRepo) CreateParcel(ctx context.Context, p *models.Parcel) error {
	if f.createErr != nil {
		return f.createErr
	}
	p.ID = "p1"
	f.created = p
	return nil
}
func (f *fakeRepo) GetParcel(ctx context.Context, id string) (*models.Parcel, error) {
	if f.created != nil && f.created.ID == id {
		return f.created, nil
	}
	return nil, apperr.NotFound
}
func (f *fakeRepo) DeleteParcel(ctx context.Context, id string) (int64, error) {
	f.deleteIn = id
	return f.deleteN, f.deleteErr
}

func TestCreate_StampsTrackingIDAndTime(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo)
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	svc.now = func() time.Time { return now }

	p, err := svc.Create(context.Background(), models.ParcelCreateInput{
		ParcelName: "docs", SenderEmail: " a@x.com ", Cost: 500,
	})
	require.NoError(t, err)
	require.Equal(t, "p1", p.ID)
	require.Equal(t, "a@x.com", p.SenderEmail)
	require.True(t, trackingid.Valid(p.TrackingID), p.TrackingID)
	require.Equal(t, now, p.CreatedAt)
	require.Empty(t, p.PaymentStatus)
	require.Empty(t, p.DeliveryStatus)
	require.Same(t, repo.created, p)
}

func TestCreate_Validation(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo)

	_, err := svc.Create(context.Background(), models.ParcelCreateInput{ParcelName: "x", SenderEmail: "bad", Cost: 1})
	require.ErrorIs(t, err, apperr.Invalid)

	_, err = svc.Create(context.Background(), models.ParcelCreateInput{ParcelName: "x", SenderEmail: "a@x.com", Cost: -1})
	require.ErrorIs(t, err, apperr.Invalid)

	_, err = svc.Create(context.Background(), models.ParcelCreateInput{ParcelName: strings.Repeat("x", 201), SenderEmail: "a@x.com"})
	require.ErrorIs(t, err, apperr.Invalid)
	require.Nil(t, repo.created)
}

func TestCreate_OnlySenderAndCost(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo)

	p, err := svc.Create(context.Background(), models.ParcelCreateInput{SenderEmail: "a@x.com", Cost: 500})
	require.NoError(t, err)
	require.Empty(t, p.ParcelName)
	require.True(t, trackingid.Valid(p.TrackingID))

	p, err = svc.Create(context.Background(), models.ParcelCreateInput{SenderEmail: "a@x.com", ParcelType: "fragile"})
	require.NoError(t, err)
	require.Equal(t, "fragile", p.ParcelType)
}

func TestCreate_RepoError(t *testing.T) {
	boom := errors.New("db")
	svc := New(&fakeRepo{createErr: boom})
	_, err := svc.Create(context.Background(), models.ParcelCreateInput{ParcelName: "x", SenderEmail: "a@x.com"})
	require.ErrorIs(t, err, boom)
}

func TestList_PassesFilter(t *testing.T) {
	repo := &fakeRepo{listOut: []*models.Parcel{{ID: "p1"}}}
	out, err := New(repo).List(context.Background(), " a@x.com")
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "a@x.com", repo.listIn.SenderEmail)
}

func TestDelete_AbsentIsZero(t *testing.T) {
	repo := &fakeRepo{}
	res, err := New(repo).Delete(context.Background(), "missing")
	require.NoError(t, err)
	require.True(t, res.Acknowledged)
	require.Equal(t, int64(0), res.DeletedCount)
	require.Equal(t, "missing", repo.deleteIn)

	_, err = New(repo).Delete(context.Background(), "")
	require.ErrorIs(t, err, apperr.Invalid)
}

func TestGet(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo)
	_, err := svc.Get(context.Background(), "p1")
	require.ErrorIs(t, err, apperr.NotFound)

	_, err = svc.Create(context.Background(), models.ParcelCreateInput{ParcelName: "x", SenderEmail: "a@x.com"})
	require.NoError(t, err)
	p, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "x", p.ParcelName)
}
