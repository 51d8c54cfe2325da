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

func (s *Storage) ListRiderApplications(ctx context.Context, status string) ([]*models.RiderApplication, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.riders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find rider applications")
	}
	out := make([]*models.RiderApplication, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode rider applications")
	}
	return out, nil
}

func (s *Storage) InsertRiderApplication(ctx context.Context, a *models.RiderApplication) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.riders.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return errors.Wrapf(apperr.Conflict, "pending rider application for %s", a.Email)
	}
	return errors.Wrap(err, "insert rider application")
}

func (s *Storage) DeleteRiderApplication(ctx context.Context, id string) (int64, error) {
	res, err := s.riders.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, errors.Wrap(err, "delete rider application")
	}
	return res.DeletedCount, nil
}

func (s *Storage) DecideRiderApplication(ctx context.Context, d models.RiderDecision) (*models.RiderDecisionResult, error) {
	v, err := s.withTx(ctx, func(sc mongo.SessionContext) (any, error) {
		var before models.RiderApplication
		err := s.riders.FindOneAndUpdate(sc,
			bson.M{"_id": d.ApplicationID},
			bson.M{"$set": bson.M{"status": d.Status}},
			options.FindOneAndUpdate().SetReturnDocument(options.Before),
		).Decode(&before)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrapf(apperr.NotFound, "rider application %s", d.ApplicationID)
		}
		if err != nil {
			return nil, err
		}

		app := before
		app.Status = d.Status
		res := &models.RiderDecisionResult{
			Application:  &app,
			ModifyResult: models.UpdateResult{Acknowledged: true, MatchedCount: 1},
		}
		if before.Status != d.Status {
			res.ModifyResult.ModifiedCount = 1
		}

		if d.PromoteTo != "" {
			email := d.Email
			if email == "" {
				email = app.Email
			}
			upd, err := s.users.UpdateOne(sc,
				bson.M{"email": email},
				bson.M{"$set": bson.M{"role": d.PromoteTo}},
				options.Update().SetCollation(emailCollation),
			)
			if err != nil {
				return nil, errors.Wrap(err, "promote user")
			}
			res.RoleResult = &models.UpdateResult{
				Acknowledged:  true,
				MatchedCount:  upd.MatchedCount,
				ModifiedCount: upd.ModifiedCount,
			}
		}
		return res, nil
	})
	switch {
	case mongo.IsDuplicateKeyError(err):
		return nil, errors.Wrap(apperr.Conflict, "pending rider application already exists")
	case errors.Is(err, apperr.NotFound):
		return nil, err
	case err != nil:
		return nil, errors.Wrap(err, "decide rider application")
	}
	return v.(*models.RiderDecisionResult), nil
}
