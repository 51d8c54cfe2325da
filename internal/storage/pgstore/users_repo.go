package pgstore

import (
	"context"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const userColumns = `id, email, display_name, photo_url, role, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PhotoURL, &u.Role, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Storage) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO users (`+userColumns+`)
VALUES ($1,$2,$3,$4,$5,$6)
`, u.ID, u.Email, u.DisplayName, u.PhotoURL, u.Role, u.CreatedAt.UTC())
	if isDuplicate(err) {
		return errors.Wrapf(apperr.Conflict, "user %s", u.Email)
	}
	return errors.Wrap(err, "insert user")
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(apperr.NotFound, "user %s", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return u, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "select users")
	}
	defer rows.Close()

	out := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) UpdateUserRole(ctx context.Context, id, role string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
UPDATE users SET role = $2 WHERE id = $1
RETURNING `+userColumns, id, role))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(apperr.NotFound, "user %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update user role")
	}
	return u, nil
}
