// Package mongostore is the MongoDB storage driver. Multi-document writes run
// in session transactions and therefore need a replica set.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collParcels   = "parcels"
	collPayments  = "payment"
	collUsers     = "users"
	collRiders    = "rider"
	collCheckouts = "checkouts"
)

// emailCollation makes email lookups and the unique index case-insensitive.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

type Storage struct {
	client *mongo.Client

	parcels   *mongo.Collection
	payments  *mongo.Collection
	users     *mongo.Collection
	riders    *mongo.Collection
	checkouts *mongo.Collection
}

func New(ctx context.Context, uri, database string) (*Storage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongo")
	}

	db := client.Database(database)
	s := &Storage{
		client:    client,
		parcels:   db.Collection(collParcels),
		payments:  db.Collection(collPayments),
		users:     db.Collection(collUsers),
		riders:    db.Collection(collRiders),
		checkouts: db.Collection(collCheckouts),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *Storage) ensureIndexes(ctx context.Context) error {
	idx := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{s.parcels, []mongo.IndexModel{
			{Keys: bson.D{{Key: "senderEmail", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{s.payments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "transactionId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "customerEmail", Value: 1}, {Key: "paidAt", Value: -1}}},
		}},
		{s.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(emailCollation)},
		}},
		{s.riders, []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("uq_pending_email").
					SetPartialFilterExpression(bson.D{{Key: "status", Value: "pending"}}),
			},
		}},
		{s.checkouts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "nextCheckAt", Value: 1}}},
		}},
	}
	for _, it := range idx {
		if _, err := it.coll.Indexes().CreateMany(ctx, it.models); err != nil {
			return errors.Wrapf(err, "create indexes on %s", it.coll.Name())
		}
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx, nil), "ping mongo")
}

func (s *Storage) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.client.Disconnect(ctx)
}

// withTx runs fn in a session transaction and returns its result.
func (s *Storage) withTx(ctx context.Context, fn func(sc mongo.SessionContext) (any, error)) (any, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return nil, errors.Wrap(err, "start session")
	}
	defer sess.EndSession(ctx)
	return sess.WithTransaction(ctx, fn)
}
