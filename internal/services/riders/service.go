// Package riders handles courier applications and their review.
package riders

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/rs/zerolog"
)

type Repository interface {
	ListRiderApplications(ctx context.Context, status string) ([]*models.RiderApplication, error)
	InsertRiderApplication(ctx context.Context, a *models.RiderApplication) error
	DeleteRiderApplication(ctx context.Context, id string) (int64, error)
	DecideRiderApplication(ctx context.Context, d models.RiderDecision) (*models.RiderDecisionResult, error)
}

// RoleInvalidator forgets a cached role after a promotion.
type RoleInvalidator interface {
	InvalidateRole(ctx context.Context, email string)
}

type Notifier interface {
	NotifyRiderDecision(ctx context.Context, app models.RiderApplication) error
}

type Service struct {
	repo     Repository
	roles    RoleInvalidator
	notifier Notifier
	now      func() time.Time
}

func New(repo Repository, roles RoleInvalidator) *Service {
	return &Service{
		repo:  repo,
		roles: roles,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) List(ctx context.Context, status string) ([]*models.RiderApplication, error) {
	if status != "" && !validStatus(status) {
		return nil, apperr.Field("status", "must be one of: pending accepted rejected")
	}
	return s.repo.ListRiderApplications(ctx, status)
}

// Apply files a pending application. A second pending application for the
// same email is rejected with apperr.Conflict by the store.
func (s *Service) Apply(ctx context.Context, in models.RiderApplyInput) (*models.RiderApplication, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	a := &models.RiderApplication{
		Email:            in.Email,
		Name:             in.Name,
		Phone:            in.Phone,
		Age:              in.Age,
		Region:           in.Region,
		District:         in.District,
		NationalID:       in.NationalID,
		BikeModel:        in.BikeModel,
		BikeRegistration: in.BikeRegistration,
		Status:           models.RiderStatusPending,
		CreatedAt:        s.now(),
	}
	if err := s.repo.InsertRiderApplication(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) Delete(ctx context.Context, id string) (models.DeleteResult, error) {
	if id == "" {
		return models.DeleteResult{}, apperr.Field("id", "is required")
	}
	n, err := s.repo.DeleteRiderApplication(ctx, id)
	if err != nil {
		return models.DeleteResult{}, err
	}
	return models.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

// Decide sets the application status; "accepted" also promotes the user with
// email (or the applicant's email when empty) to rider.
func (s *Service) Decide(ctx context.Context, id, status, email string) (*models.RiderDecisionResult, error) {
	if id == "" {
		return nil, apperr.Field("id", "is required")
	}
	if !validStatus(status) {
		return nil, apperr.Field("status", "must be one of: pending accepted rejected")
	}
	d := models.RiderDecision{ApplicationID: id, Status: status, Email: strings.TrimSpace(email)}
	if status == models.RiderStatusAccepted {
		d.PromoteTo = models.RoleRider
	}

	res, err := s.repo.DecideRiderApplication(ctx, d)
	if err != nil {
		return nil, err
	}

	if d.PromoteTo != "" && s.roles != nil {
		promoted := d.Email
		if promoted == "" {
			promoted = res.Application.Email
		}
		s.roles.InvalidateRole(ctx, promoted)
	}
	if s.notifier != nil && status != models.RiderStatusPending {
		if err := s.notifier.NotifyRiderDecision(ctx, *res.Application); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("application_id", id).Msg("enqueue rider decision failed")
		}
	}
	return res, nil
}

func validStatus(s string) bool {
	switch s {
	case models.RiderStatusPending, models.RiderStatusAccepted, models.RiderStatusRejected:
		return true
	}
	return false
}
