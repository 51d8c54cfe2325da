package pgstore

import (
	"context"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const paymentColumns = `
  id, parcel_id, session_id, transaction_id, tracking_id,
  amount_minor, currency, customer_email, payment_status, paid_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	var minor int64
	err := row.Scan(
		&p.ID, &p.ParcelID, &p.SessionID, &p.TransactionID, &p.TrackingID,
		&minor, &p.Currency, &p.CustomerEmail, &p.PaymentStatus, &p.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	p.Amount = float64(minor) / 100
	return &p, nil
}

func paymentByTx(ctx context.Context, q querier, txID string) (*models.Payment, error) {
	p, err := scanPayment(q.QueryRow(ctx, `SELECT`+paymentColumns+` FROM payments WHERE transaction_id = $1`, txID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(apperr.NotFound, "payment %s", txID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select payment")
	}
	return p, nil
}

func (s *Storage) GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	return paymentByTx(ctx, s.db, txID)
}

// ApplyPayment updates the parcel, records the payment and completes the
// checkout in one transaction. A payment that already exists for the
// transaction id is returned as a duplicate and nothing is written.
func (s *Storage) ApplyPayment(ctx context.Context, a models.PaymentApplication) (*models.PaymentOutcome, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := paymentByTx(ctx, tx, a.TransactionID)
	switch {
	case err == nil:
		return &models.PaymentOutcome{Payment: existing, Duplicate: true}, nil
	case !errors.Is(err, apperr.NotFound):
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
UPDATE parcels
SET
  payment_status = $2,
  delivery_status = $3,
  tracking_id = COALESCE(NULLIF($4, ''), tracking_id)
WHERE id = $1
`, a.ParcelID, a.PaymentStatus, a.DeliveryStatus, a.TrackingID)
	if err != nil {
		return nil, errors.Wrap(err, "update parcel payment")
	}
	res := models.UpdateResult{Acknowledged: true, MatchedCount: tag.RowsAffected(), ModifiedCount: tag.RowsAffected()}

	pay := &models.Payment{
		ID:            uuid.NewString(),
		ParcelID:      a.ParcelID,
		SessionID:     a.SessionID,
		TransactionID: a.TransactionID,
		TrackingID:    a.TrackingID,
		Amount:        float64(a.AmountMinor) / 100,
		Currency:      a.Currency,
		CustomerEmail: a.CustomerEmail,
		PaymentStatus: a.PaymentStatus,
		PaidAt:        a.PaidAt.UTC(),
	}
	_, err = tx.Exec(ctx, `
INSERT INTO payments (`+paymentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, pay.ID, pay.ParcelID, pay.SessionID, pay.TransactionID, pay.TrackingID,
		a.AmountMinor, pay.Currency, pay.CustomerEmail, pay.PaymentStatus, pay.PaidAt)
	if isDuplicate(err) {
		// lost the race against a concurrent apply of the same transaction
		_ = tx.Rollback(ctx)
		existing, err := s.GetPaymentByTransactionID(ctx, a.TransactionID)
		if err != nil {
			return nil, err
		}
		return &models.PaymentOutcome{Payment: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert payment")
	}

	_, err = tx.Exec(ctx, `
UPDATE checkouts SET status = $2, updated_at = now()
WHERE session_id = $1
`, a.SessionID, models.CheckoutStatusCompleted)
	if err != nil {
		return nil, errors.Wrap(err, "complete checkout")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return &models.PaymentOutcome{Payment: pay, Parcel: res}, nil
}

func (s *Storage) ListPayments(ctx context.Context, email string) ([]*models.Payment, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+paymentColumns+`
FROM payments
WHERE ($1 = '' OR customer_email = $1)
ORDER BY paid_at DESC
`, email)
	if err != nil {
		return nil, errors.Wrap(err, "select payments")
	}
	defer rows.Close()

	out := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan payment")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
