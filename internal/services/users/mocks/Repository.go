package mocks

import (
	"context"

	"github.com/BearBump/zapshift/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockRepository is a testify mock of users.Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) InsertUser(ctx context.Context, u *models.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	var u *models.User
	if v := args.Get(0); v != nil {
		u = v.(*models.User)
	}
	return u, args.Error(1)
}

func (m *MockRepository) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	var out []*models.User
	if v := args.Get(0); v != nil {
		out = v.([]*models.User)
	}
	return out, args.Error(1)
}

func (m *MockRepository) UpdateUserRole(ctx context.Context, id, role string) (*models.User, error) {
	args := m.Called(ctx, id, role)
	var u *models.User
	if v := args.Get(0); v != nil {
		u = v.(*models.User)
	}
	return u, args.Error(1)
}
