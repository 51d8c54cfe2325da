package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS parcels (
  id TEXT PRIMARY KEY,
  parcel_name TEXT NOT NULL DEFAULT '',
  parcel_type TEXT NOT NULL DEFAULT '',
  parcel_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
  sender_name TEXT NOT NULL DEFAULT '',
  sender_email TEXT NOT NULL,
  sender_region TEXT NOT NULL DEFAULT '',
  sender_district TEXT NOT NULL DEFAULT '',
  sender_address TEXT NOT NULL DEFAULT '',
  receiver_name TEXT NOT NULL DEFAULT '',
  receiver_phone TEXT NOT NULL DEFAULT '',
  receiver_region TEXT NOT NULL DEFAULT '',
  receiver_district TEXT NOT NULL DEFAULT '',
  receiver_address TEXT NOT NULL DEFAULT '',
  cost DOUBLE PRECISION NOT NULL,
  tracking_id TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT '',
  delivery_status TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_parcels_sender_email ON parcels(sender_email, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  parcel_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  transaction_id TEXT NOT NULL,
  tracking_id TEXT NOT NULL DEFAULT '',
  amount_minor BIGINT NOT NULL,
  currency TEXT NOT NULL,
  customer_email TEXT NOT NULL DEFAULT '',
  payment_status TEXT NOT NULL,
  paid_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_transaction_id ON payments(transaction_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_customer_email ON payments(customer_email, paid_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS checkouts (
  session_id TEXT PRIMARY KEY,
  parcel_id TEXT NOT NULL,
  tracking_id TEXT NOT NULL DEFAULT '',
  customer_email TEXT NOT NULL DEFAULT '',
  amount_minor BIGINT NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_checked_at TIMESTAMPTZ NULL,
  last_error TEXT NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_checkouts_open_next_check_at ON checkouts(next_check_at) WHERE status = 'open'`,
		`
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  photo_url TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users(lower(email))`,
		`
CREATE TABLE IF NOT EXISTS rider_applications (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  age INT NOT NULL DEFAULT 0,
  region TEXT NOT NULL DEFAULT '',
  district TEXT NOT NULL DEFAULT '',
  nid TEXT NOT NULL DEFAULT '',
  bike_model TEXT NOT NULL DEFAULT '',
  bike_registration TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_rider_applications_created_at ON rider_applications(created_at DESC)`,
		// One pending application per email.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_rider_applications_pending_email ON rider_applications(email) WHERE status = 'pending'`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
