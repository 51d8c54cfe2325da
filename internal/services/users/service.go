// Package users registers users and answers role questions for the
// authorization layer.
package users

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/cache"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type Repository interface {
	InsertUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, id, role string) (*models.User, error)
}

type RegisterResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId,omitempty"`
	Inserted     bool   `json:"inserted"`
	Message      string `json:"message,omitempty"`
}

type Service struct {
	repo    Repository
	cache   cache.BytesCache
	roleTTL time.Duration
	now     func() time.Time
}

// New builds the service; a nil cache or a zero roleTTL disables role caching.
func New(repo Repository, c cache.BytesCache, roleTTL time.Duration) *Service {
	return &Service{
		repo:    repo,
		cache:   c,
		roleTTL: roleTTL,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, in models.UserCreateInput) (*RegisterResult, error) {
	if err := apperr.Validate(in); err != nil {
		return nil, err
	}
	u := &models.User{
		Email:       strings.TrimSpace(in.Email),
		DisplayName: in.DisplayName,
		PhotoURL:    in.PhotoURL,
		Role:        models.RoleUser,
		CreatedAt:   s.now(),
	}
	err := s.repo.InsertUser(ctx, u)
	if errors.Is(err, apperr.Conflict) {
		return &RegisterResult{Acknowledged: true, Message: "user exists"}, nil
	}
	if err != nil {
		return nil, err
	}
	return &RegisterResult{Acknowledged: true, InsertedID: u.ID, Inserted: true}, nil
}

func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

// Role reports the stored role for email, "user" when there is no record.
func (s *Service) Role(ctx context.Context, email string) (string, error) {
	role, err := s.lookupRole(ctx, email)
	if errors.Is(err, apperr.NotFound) {
		return models.RoleUser, nil
	}
	return role, err
}

// RequireRole fails with apperr.Forbidden unless the user stored under email
// holds one of roles. A missing user record is forbidden too.
func (s *Service) RequireRole(ctx context.Context, email string, roles ...string) error {
	if email == "" {
		return errors.Wrap(apperr.Forbidden, "no email on identity")
	}
	role, err := s.lookupRole(ctx, email)
	if errors.Is(err, apperr.NotFound) {
		return errors.Wrapf(apperr.Forbidden, "no user record for %s", email)
	}
	if err != nil {
		return err
	}
	if !slices.Contains(roles, role) {
		return errors.Wrapf(apperr.Forbidden, "role %q not allowed", role)
	}
	return nil
}

func (s *Service) UpdateRole(ctx context.Context, id, role string) (*models.User, error) {
	if id == "" {
		return nil, apperr.Field("id", "is required")
	}
	switch role {
	case models.RoleUser, models.RoleRider, models.RoleAdmin:
	default:
		return nil, apperr.Field("role", "must be one of: user rider admin")
	}
	u, err := s.repo.UpdateUserRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.InvalidateRole(ctx, u.Email)
	return u, nil
}

// InvalidateRole drops the cached role for email.
func (s *Service) InvalidateRole(ctx context.Context, email string) {
	if !s.cacheEnabled() || email == "" {
		return
	}
	if err := s.cache.Del(ctx, roleKey(email)); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("email", email).Msg("role cache invalidation failed")
	}
}

func (s *Service) lookupRole(ctx context.Context, email string) (string, error) {
	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, roleKey(email))
		if err == nil && ok && len(b) > 0 {
			return string(b), nil
		}
	}

	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	if s.cacheEnabled() {
		_ = s.cache.Set(ctx, roleKey(email), []byte(role), s.roleTTL)
	}
	return role, nil
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.roleTTL > 0
}

func roleKey(email string) string {
	return "user:" + strings.ToLower(email) + ":role"
}
