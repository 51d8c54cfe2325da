package mongostore

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Storage) GetPaymentByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	var p models.Payment
	err := s.payments.FindOne(ctx, bson.M{"transactionId": txID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(apperr.NotFound, "payment %s", txID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find payment")
	}
	return &p, nil
}

func (s *Storage) ApplyPayment(ctx context.Context, a models.PaymentApplication) (*models.PaymentOutcome, error) {
	v, err := s.withTx(ctx, func(sc mongo.SessionContext) (any, error) {
		var existing models.Payment
		err := s.payments.FindOne(sc, bson.M{"transactionId": a.TransactionID}).Decode(&existing)
		if err == nil {
			return &models.PaymentOutcome{Payment: &existing, Duplicate: true}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrap(err, "find payment")
		}

		set := bson.M{"paymentStatus": a.PaymentStatus, "deliveryStatus": a.DeliveryStatus}
		if a.TrackingID != "" {
			set["trackingId"] = a.TrackingID
		}
		upd, err := s.parcels.UpdateOne(sc, bson.M{"_id": a.ParcelID}, bson.M{"$set": set})
		if err != nil {
			return nil, errors.Wrap(err, "update parcel payment")
		}

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
		if _, err := s.payments.InsertOne(sc, pay); err != nil {
			return nil, err
		}

		_, err = s.checkouts.UpdateOne(sc,
			bson.M{"_id": a.SessionID},
			bson.M{"$set": bson.M{"status": models.CheckoutStatusCompleted, "updatedAt": time.Now().UTC()}},
		)
		if err != nil {
			return nil, errors.Wrap(err, "complete checkout")
		}

		return &models.PaymentOutcome{
			Payment: pay,
			Parcel: models.UpdateResult{
				Acknowledged:  true,
				MatchedCount:  upd.MatchedCount,
				ModifiedCount: upd.ModifiedCount,
			},
		}, nil
	})
	if mongo.IsDuplicateKeyError(err) {
		existing, err := s.GetPaymentByTransactionID(ctx, a.TransactionID)
		if err != nil {
			return nil, err
		}
		return &models.PaymentOutcome{Payment: existing, Duplicate: true}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "apply payment")
	}
	return v.(*models.PaymentOutcome), nil
}

func (s *Storage) ListPayments(ctx context.Context, email string) ([]*models.Payment, error) {
	filter := bson.M{}
	if email != "" {
		filter["customerEmail"] = email
	}
	cur, err := s.payments.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "paidAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find payments")
	}
	out := make([]*models.Payment, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode payments")
	}
	return out, nil
}
