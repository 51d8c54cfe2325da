package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const checkoutColumns = `
  session_id, parcel_id, tracking_id, customer_email, amount_minor, currency,
  status, check_fail_count, last_checked_at, last_error, next_check_at,
  created_at, updated_at`

func scanCheckout(row pgx.Row) (*models.Checkout, error) {
	var c models.Checkout
	err := row.Scan(
		&c.SessionID, &c.ParcelID, &c.TrackingID, &c.CustomerEmail, &c.AmountMinor, &c.Currency,
		&c.Status, &c.CheckFailCount, &c.LastCheckedAt, &c.LastError, &c.NextCheckAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Storage) CreateCheckout(ctx context.Context, c *models.Checkout) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.CheckoutStatusOpen
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO checkouts (
  session_id, parcel_id, tracking_id, customer_email, amount_minor, currency,
  status, next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (session_id) DO NOTHING
`, c.SessionID, c.ParcelID, c.TrackingID, c.CustomerEmail, c.AmountMinor, c.Currency,
		c.Status, c.NextCheckAt.UTC(), c.CreatedAt.UTC(), c.UpdatedAt)
	return errors.Wrap(err, "insert checkout")
}

func (s *Storage) GetCheckout(ctx context.Context, sessionID string) (*models.Checkout, error) {
	c, err := scanCheckout(s.db.QueryRow(ctx, `SELECT`+checkoutColumns+` FROM checkouts WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(apperr.NotFound, "checkout %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select checkout")
	}
	return c, nil
}

func (s *Storage) ScheduleCheckout(ctx context.Context, sc models.CheckoutSchedule) error {
	if sc.Error != nil && *sc.Error != "" {
		_, err := s.db.Exec(ctx, `
UPDATE checkouts
SET
  last_checked_at = $2,
  check_fail_count = check_fail_count + 1,
  last_error = $3,
  next_check_at = $4,
  updated_at = now()
WHERE session_id = $1 AND status = 'open'
`, sc.SessionID, sc.CheckedAt.UTC(), *sc.Error, sc.NextCheckAt.UTC())
		return errors.Wrap(err, "schedule checkout (error)")
	}

	_, err := s.db.Exec(ctx, `
UPDATE checkouts
SET
  last_checked_at = $2,
  check_fail_count = 0,
  last_error = NULL,
  next_check_at = $3,
  updated_at = now()
WHERE session_id = $1 AND status = 'open'
`, sc.SessionID, sc.CheckedAt.UTC(), sc.NextCheckAt.UTC())
	return errors.Wrap(err, "schedule checkout (ok)")
}

func (s *Storage) ExpireCheckout(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE checkouts SET status = $2, last_checked_at = $3, updated_at = now()
WHERE session_id = $1 AND status = 'open'
`, sessionID, models.CheckoutStatusExpired, at.UTC())
	return errors.Wrap(err, "expire checkout")
}

// ClaimDueCheckouts picks a batch of open checkouts that are due and leases
// them by pushing next_check_at forward, so another worker skips them.
func (s *Storage) ClaimDueCheckouts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Checkout, error) {
	if limit <= 0 {
		limit = 100
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT`+checkoutColumns+`
FROM checkouts
WHERE next_check_at <= $1
  AND status = $2
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), models.CheckoutStatusOpen, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due checkouts")
	}

	var picked []*models.Checkout
	for rows.Next() {
		c, err := scanCheckout(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan due checkout")
		}
		picked = append(picked, c)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, c := range picked {
		_, err := tx.Exec(ctx, `UPDATE checkouts SET next_check_at = $2, updated_at = now() WHERE session_id = $1`, c.SessionID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease checkout")
		}
		c.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}
