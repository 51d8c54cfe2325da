package mongostore

import (
	"context"
	"time"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Storage) CreateCheckout(ctx context.Context, c *models.Checkout) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = models.CheckoutStatusOpen
	}
	_, err := s.checkouts.InsertOne(ctx, c)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return errors.Wrap(err, "insert checkout")
}

func (s *Storage) GetCheckout(ctx context.Context, sessionID string) (*models.Checkout, error) {
	var c models.Checkout
	err := s.checkouts.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(apperr.NotFound, "checkout %s", sessionID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find checkout")
	}
	return &c, nil
}

func (s *Storage) ScheduleCheckout(ctx context.Context, sc models.CheckoutSchedule) error {
	filter := bson.M{"_id": sc.SessionID, "status": models.CheckoutStatusOpen}
	now := time.Now().UTC()

	var update bson.M
	if sc.Error != nil && *sc.Error != "" {
		update = bson.M{
			"$set": bson.M{
				"lastCheckedAt": sc.CheckedAt.UTC(),
				"lastError":     *sc.Error,
				"nextCheckAt":   sc.NextCheckAt.UTC(),
				"updatedAt":     now,
			},
			"$inc": bson.M{"checkFailCount": int32(1)},
		}
	} else {
		update = bson.M{
			"$set": bson.M{
				"lastCheckedAt":  sc.CheckedAt.UTC(),
				"checkFailCount": int32(0),
				"nextCheckAt":    sc.NextCheckAt.UTC(),
				"updatedAt":      now,
			},
			"$unset": bson.M{"lastError": ""},
		}
	}
	_, err := s.checkouts.UpdateOne(ctx, filter, update)
	return errors.Wrap(err, "schedule checkout")
}

func (s *Storage) ExpireCheckout(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.checkouts.UpdateOne(ctx,
		bson.M{"_id": sessionID, "status": models.CheckoutStatusOpen},
		bson.M{"$set": bson.M{
			"status":        models.CheckoutStatusExpired,
			"lastCheckedAt": at.UTC(),
			"updatedAt":     time.Now().UTC(),
		}},
	)
	return errors.Wrap(err, "expire checkout")
}

// ClaimDueCheckouts leases due checkouts one at a time; each FindOneAndUpdate
// is atomic, so concurrent workers never receive the same document.
func (s *Storage) ClaimDueCheckouts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Checkout, error) {
	if limit <= 0 {
		limit = 100
	}
	leaseUntil := now.UTC().Add(lease)
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "nextCheckAt", Value: 1}}).
		SetReturnDocument(options.After)

	out := make([]*models.Checkout, 0)
	for len(out) < limit {
		var c models.Checkout
		err := s.checkouts.FindOneAndUpdate(ctx,
			bson.M{"status": models.CheckoutStatusOpen, "nextCheckAt": bson.M{"$lte": now.UTC()}},
			bson.M{"$set": bson.M{"nextCheckAt": leaseUntil, "updatedAt": time.Now().UTC()}},
			opts,
		).Decode(&c)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "claim checkout")
		}
		out = append(out, &c)
	}
	return out, nil
}
