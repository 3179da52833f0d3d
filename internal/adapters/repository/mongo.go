package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/povelc/portfolio/internal/domain/model"
)

const defaultMongoTimeout = 5 * time.Second

// scoreDocument is the stored shape: {playerName, time, createdAt}.
type scoreDocument struct {
	ID         primitive.ObjectID `bson:"_id"`
	PlayerName string             `bson:"playerName"`
	Time       float64            `bson:"time"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func (d scoreDocument) entry() model.ScoreEntry {
	return model.ScoreEntry{
		ID:         d.ID.Hex(),
		PlayerName: d.PlayerName,
		Time:       d.Time,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

// MongoStore keeps score documents in a MongoDB collection.
type MongoStore struct {
	client        *mongo.Client
	coll          *mongo.Collection
	opTimeout     time.Duration
	ensureIndexes bool
}

// OpenMongo connects, pings and returns a store over database.collection.
func OpenMongo(ctx context.Context, uri, database, collection string, opts ...MongoOption) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, unavailable("mongo.connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, unavailable("mongo.ping", err)
	}
	s, err := NewMongoStore(ctx, client.Database(database).Collection(collection), opts...)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.client = client
	return s, nil
}

// NewMongoStore wraps an existing collection. Close does not disconnect its client.
func NewMongoStore(ctx context.Context, coll *mongo.Collection, opts ...MongoOption) (*MongoStore, error) {
	s := &MongoStore{coll: coll, opTimeout: defaultMongoTimeout, ensureIndexes: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.ensureIndexes {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "time", Value: 1}, {Key: "createdAt", Value: 1}},
		})
		if err != nil {
			return nil, unavailable("mongo.index", err)
		}
	}
	return s, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Insert implements Store.Insert.
func (s *MongoStore) Insert(ctx context.Context, e model.ScoreEntry) (model.ScoreEntry, error) {
	defer observe("insert", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := scoreDocument{
		ID:         primitive.NewObjectID(),
		PlayerName: e.PlayerName,
		Time:       e.Time,
		CreatedAt:  e.CreatedAt.UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return model.ScoreEntry{}, unavailable("mongo.insert", err)
	}
	return doc.entry(), nil
}

// Count implements Store.Count.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	defer observe("count", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, unavailable("mongo.count", err)
	}
	return int(n), nil
}

// FindSorted implements Store.FindSorted.
func (s *MongoStore) FindSorted(ctx context.Context, order model.SortOrder, limit int) ([]model.ScoreEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	defer observe("find", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	dir := 1
	if order == model.Descending {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: dir}, {Key: "createdAt", Value: dir}, {Key: "_id", Value: dir}}).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, unavailable("mongo.find", err)
	}
	defer func() { _ = cur.Close(context.Background()) }()

	var docs []scoreDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable("mongo.decode", err)
	}
	out := make([]model.ScoreEntry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.entry())
	}
	return out, nil
}

// DeleteByID implements Store.DeleteByID.
func (s *MongoStore) DeleteByID(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	defer observe("delete", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		return unavailable("mongo.delete", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll implements Store.DeleteAll.
func (s *MongoStore) DeleteAll(ctx context.Context) (int, error) {
	defer observe("delete_all", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, unavailable("mongo.delete_all", err)
	}
	return int(res.DeletedCount), nil
}

// Ping checks connectivity.
func (s *MongoStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.client.Ping(ctx, nil); err != nil {
		return unavailable("mongo.ping", err)
	}
	return nil
}

// Close implements Store.Close.
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}
