package mongostore

import (
	"context"

	"github.com/BearBump/zapshift/internal/apperr"
	"github.com/BearBump/zapshift/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Storage) ListParcels(ctx context.Context, f models.ParcelFilter) ([]*models.Parcel, error) {
	filter := bson.M{}
	if f.SenderEmail != "" {
		filter["senderEmail"] = f.SenderEmail
	}
	cur, err := s.parcels.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find parcels")
	}
	out := make([]*models.Parcel, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode parcels")
	}
	return out, nil
}

func (s *Storage) CreateParcel(ctx context.Context, p *models.Parcel) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.parcels.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(apperr.Conflict, "parcel %s", p.ID)
	}
	return errors.Wrap(err, "insert parcel")
}

func (s *Storage) GetParcel(ctx context.Context, id string) (*models.Parcel, error) {
	var p models.Parcel
	err := s.parcels.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(apperr.NotFound, "parcel %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find parcel")
	}
	return &p, nil
}

func (s *Storage) DeleteParcel(ctx context.Context, id string) (int64, error) {
	res, err := s.parcels.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, errors.Wrap(err, "delete parcel")
	}
	return res.DeletedCount, nil
}
