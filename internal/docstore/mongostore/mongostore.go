package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gmbtravels/gmbservice/internal/docstore"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultDatabase = "gmb"
	connectTimeout  = 10 * time.Second
)

func init() {
	opener := func(ctx context.Context, params docstore.OpenParams) (docstore.Backend, error) {
		return Open(ctx, params.URI, params.Database)
	}
	docstore.Register("mongodb", opener)
	docstore.Register("mongodb+srv", opener)
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ docstore.Backend = (*Store)(nil)

func Open(ctx context.Context, uri, database string) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Warnf("failed to ping mongo: %s", err)
	}

	return New(client, database), nil
}

// New uses DefaultDatabase when database is empty, the database the deployed service has always used.
func New(client *mongo.Client, database string) *Store {
	if database == "" {
		database = DefaultDatabase
	}
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

func (s *Store) List(ctx context.Context, collection string, dst any) error {
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: 1},
		{Key: "_id", Value: 1},
	})
	cursor, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return fmt.Errorf("find: %w", err)
	}
	if err := cursor.All(ctx, dst); err != nil {
		return fmt.Errorf("decode cursor: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string, dst any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	return err
}

func (s *Store) Insert(ctx context.Context, collection, _ string, doc any) error {
	_, err := s.db.Collection(collection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return docstore.ErrDuplicateID
	}
	return err
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any, dst any) error {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.db.Collection(collection).
		FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": fields}, opts).
		Decode(dst)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return docstore.ErrNotFound
	}
	return err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, bson.D{})
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
