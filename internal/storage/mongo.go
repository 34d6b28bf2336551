package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/himanishpuri/LiveSetlist/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultMongoDB         = "livesetlist"
	DefaultMongoCollection = "song_entries"
	mongoOpTimeout         = 5 * time.Second
)

// MongoStore keeps one document per active entry, keyed by the entry id.
// Deleted documents are moved to a sibling "<collection>_archive".
type MongoStore struct {
	client  *mongo.Client
	coll    *mongo.Collection
	archive *mongo.Collection
}

type archivedDoc struct {
	Record     models.Record `bson:"record"`
	ArchivedAt time.Time     `bson:"archived_at"`
}

func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo store needs a connection uri")
	}
	if database == "" {
		database = DefaultMongoDB
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}

	cctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()
	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	db := client.Database(database)
	return &MongoStore{client: client, coll: db.Collection(collection), archive: db.Collection(collection + "_archive")}, nil
}

func (s *MongoStore) Insert(r models.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %d", ErrDuplicateID, r.ID)
		}
		return fmt.Errorf("inserting entry %d: %w", r.ID, err)
	}
	return nil
}

func (s *MongoStore) UpdateField(id int64, field string, value any) error {
	value, err := normalizeField(field, value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return fmt.Errorf("updating %s on entry %d: %w", field, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return nil
}

func (s *MongoStore) Delete(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	var r models.Record
	err := s.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("deleting entry %d: %w", id, err)
	}
	if _, err := s.archive.InsertOne(ctx, archivedDoc{Record: r, ArchivedAt: time.Now()}); err != nil {
		return fmt.Errorf("archiving entry %d: %w", id, err)
	}
	return nil
}

func (s *MongoStore) Clear() error {
	records, err := s.List()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	if len(records) > 0 {
		now := time.Now()
		docs := make([]any, 0, len(records))
		for _, r := range records {
			docs = append(docs, archivedDoc{Record: r, ArchivedAt: now})
		}
		if _, err := s.archive.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("archiving entries: %w", err)
		}
	}
	if _, err := s.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}
	return nil
}

func (s *MongoStore) List() ([]models.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	out := []models.Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding entries: %w", err)
	}
	return out, nil
}

func (s *MongoStore) ListArchived() ([]models.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	sort := bson.D{{Key: "record._id", Value: 1}, {Key: "archived_at", Value: 1}}
	cur, err := s.archive.Find(ctx, bson.M{}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}
	var docs []archivedDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding archived entries: %w", err)
	}
	out := make([]models.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Record)
	}
	return out, nil
}

func (s *MongoStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
