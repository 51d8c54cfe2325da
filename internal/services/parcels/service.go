// Package parcels creates, lists and deletes parcel records.
package parcels

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/BearBump/zapshift/internal/trackingid"
)

type Repository interface {
	ListParcels(ctx context.Context, f models.ParcelFilter) ([]*models.Parcel, error)
	CreateParcel(ctx context.Context, p *models.Parcel) error
	GetParcel(ctx context.Context, id string) (*models.Parcel, error)
	DeleteParcel(ctx context.Context, id string) (int64, error)
}

type Service struct {
	repo  Repository
	newID func() string
	now   func() time.Time
}

func New(repo Repository) *Service {
	return &Service{
		repo:  repo,
		newID: trackingid.New,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) List(ctx context.Context, senderEmail string) ([]*models.Parcel, error) {
	return s.repo.ListParcels(ctx, models.ParcelFilter{SenderEmail: strings.TrimSpace(senderEmail)})
}

// Create stores a new unpaid parcel with a fresh tracking id.
func (s *Service) Create(ctx context.Context, in models.ParcelCreateInput) (*models.Parcel, error) {
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	p := &models.Parcel{
		ParcelName:       in.ParcelName,
		ParcelType:       in.ParcelType,
		ParcelWeight:     in.ParcelWeight,
		SenderName:       in.SenderName,
		SenderEmail:      strings.TrimSpace(in.SenderEmail),
		SenderRegion:     in.SenderRegion,
		SenderDistrict:   in.SenderDistrict,
		SenderAddress:    in.SenderAddress,
		ReceiverName:     in.ReceiverName,
		ReceiverPhone:    in.ReceiverPhone,
		ReceiverRegion:   in.ReceiverRegion,
		ReceiverDistrict: in.ReceiverDistrict,
		ReceiverAddress:  in.ReceiverAddress,
		Cost:             in.Cost,
		TrackingID:       s.newID(),
		CreatedAt:        s.now(),
	}
	if err := s.repo.CreateParcel(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Parcel, error) {
	if id == "" {
		return nil, apperr.Field("id", "is required")
	}
	return s.repo.GetParcel(ctx, id)
}

// Delete removes at most one parcel; an unknown id is not an error.
func (s *Service) Delete(ctx context.Context, id string) (models.DeleteResult, error) {
	if id == "" {
		return models.DeleteResult{}, apperr.Field("id", "is required")
	}
	n, err := s.repo.DeleteParcel(ctx, id)
	if err != nil {
		return models.DeleteResult{}, err
	}
	return models.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}
