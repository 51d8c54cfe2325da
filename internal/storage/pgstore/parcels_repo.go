package pgstore

import (
	"context"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const parcelColumns = `
  id, parcel_name, parcel_type, parcel_weight,
  sender_name, sender_email, sender_region, sender_district, sender_address,
  receiver_name, receiver_phone, receiver_region, receiver_district, receiver_address,
  cost, tracking_id, payment_status, delivery_status, created_at`

func scanParcel(row pgx.Row) (*models.Parcel, error) {
	var p models.Parcel
	err := row.Scan(
		&p.ID, &p.ParcelName, &p.ParcelType, &p.ParcelWeight,
		&p.SenderName, &p.SenderEmail, &p.SenderRegion, &p.SenderDistrict, &p.SenderAddress,
		&p.ReceiverName, &p.ReceiverPhone, &p.ReceiverRegion, &p.ReceiverDistrict, &p.ReceiverAddress,
		&p.Cost, &p.TrackingID, &p.PaymentStatus, &p.DeliveryStatus, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Storage) ListParcels(ctx context.Context, f models.ParcelFilter) ([]*models.Parcel, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+parcelColumns+`
FROM parcels
WHERE ($1 = '' OR sender_email = $1)
ORDER BY created_at DESC
`, f.SenderEmail)
	if err != nil {
		return nil, errors.Wrap(err, "select parcels")
	}
	defer rows.Close()

	out := make([]*models.Parcel, 0)
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan parcel")
		}
		out = append(out, p)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CreateParcel(ctx context.Context, p *models.Parcel) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO parcels (`+parcelColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
`,
		p.ID, p.ParcelName, p.ParcelType, p.ParcelWeight,
		p.SenderName, p.SenderEmail, p.SenderRegion, p.SenderDistrict, p.SenderAddress,
		p.ReceiverName, p.ReceiverPhone, p.ReceiverRegion, p.ReceiverDistrict, p.ReceiverAddress,
		p.Cost, p.TrackingID, p.PaymentStatus, p.DeliveryStatus, p.CreatedAt.UTC(),
	)
	if isDuplicate(err) {
		return errors.Wrapf(apperr.Conflict, "parcel %s", p.ID)
	}
	return errors.Wrap(err, "insert parcel")
}

func (s *Storage) GetParcel(ctx context.Context, id string) (*models.Parcel, error) {
	p, err := scanParcel(s.db.QueryRow(ctx, `SELECT`+parcelColumns+` FROM parcels WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(apperr.NotFound, "parcel %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select parcel")
	}
	return p, nil
}

func (s *Storage) DeleteParcel(ctx context.Context, id string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM parcels WHERE id = $1`, id)
	if err != nil {
		return 0, errors.Wrap(err, "delete parcel")
	}
	return tag.RowsAffected(), nil
}
