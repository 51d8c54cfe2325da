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

func (s *Storage) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(apperr.Conflict, "user %s", u.Email)
	}
	return errors.Wrap(err, "insert user")
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}, options.FindOne().SetCollation(emailCollation)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(apperr.NotFound, "user %s", email)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	cur, err := s.users.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find users")
	}
	out := make([]*models.User, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode users")
	}
	return out, nil
}

func (s *Storage) UpdateUserRole(ctx context.Context, id, role string) (*models.User, error) {
	var u models.User
	err := s.users.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"role": role}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.Wrapf(apperr.NotFound, "user %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update user role")
	}
	return &u, nil
}
