package pgstore

import (
	"context"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const riderColumns = `
  id, email, name, phone, age, region, district, nid,
  bike_model, bike_registration, status, created_at`

func scanRider(row pgx.Row) (*models.RiderApplication, error) {
	var a models.RiderApplication
	err := row.Scan(
		&a.ID, &a.Email, &a.Name, &a.Phone, &a.Age, &a.Region, &a.District, &a.NationalID,
		&a.BikeModel, &a.BikeRegistration, &a.Status, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Storage) ListRiderApplications(ctx context.Context, status string) ([]*models.RiderApplication, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+riderColumns+`
FROM rider_applications
WHERE ($1 = '' OR status = $1)
ORDER BY created_at DESC
`, status)
	if err != nil {
		return nil, errors.Wrap(err, "select rider applications")
	}
	defer rows.Close()

	out := make([]*models.RiderApplication, 0)
	for rows.Next() {
		a, err := scanRider(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan rider application")
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) InsertRiderApplication(ctx context.Context, a *models.RiderApplication) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO rider_applications (`+riderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`, a.ID, a.Email, a.Name, a.Phone, a.Age, a.Region, a.District, a.NationalID,
		a.BikeModel, a.BikeRegistration, a.Status, a.CreatedAt.UTC())
	if isDuplicate(err) {
		return errors.Wrapf(apperr.Conflict, "pending rider application for %s", a.Email)
	}
	return errors.Wrap(err, "insert rider application")
}

func (s *Storage) DeleteRiderApplication(ctx context.Context, id string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM rider_applications WHERE id = $1`, id)
	if err != nil {
		return 0, errors.Wrap(err, "delete rider application")
	}
	return tag.RowsAffected(), nil
}

// DecideRiderApplication sets the application status and, for a promotion,
// the user's role in the same transaction.
func (s *Storage) DecideRiderApplication(ctx context.Context, d models.RiderDecision) (*models.RiderDecisionResult, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev string
	err = tx.QueryRow(ctx, `SELECT status FROM rider_applications WHERE id = $1 FOR UPDATE`, d.ApplicationID).Scan(&prev)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(apperr.NotFound, "rider application %s", d.ApplicationID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select rider application")
	}

	app, err := scanRider(tx.QueryRow(ctx, `
UPDATE rider_applications SET status = $2 WHERE id = $1
RETURNING`+riderColumns, d.ApplicationID, d.Status))
	if isDuplicate(err) {
		return nil, errors.Wrap(apperr.Conflict, "pending rider application already exists")
	}
	if err != nil {
		return nil, errors.Wrap(err, "update rider application")
	}

	res := &models.RiderDecisionResult{
		Application:  app,
		ModifyResult: models.UpdateResult{Acknowledged: true, MatchedCount: 1},
	}
	if prev != d.Status {
		res.ModifyResult.ModifiedCount = 1
	}

	if d.PromoteTo != "" {
		email := d.Email
		if email == "" {
			email = app.Email
		}
		tag, err := tx.Exec(ctx, `UPDATE users SET role = $2 WHERE lower(email) = lower($1)`, email, d.PromoteTo)
		if err != nil {
			return nil, errors.Wrap(err, "promote user")
		}
		res.RoleResult = &models.UpdateResult{
			Acknowledged:  true,
			MatchedCount:  tag.RowsAffected(),
			ModifiedCount: tag.RowsAffected(),
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return res, nil
}
