package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRecorder persists arbitrary JSON-shaped records in a MongoDB
// collection, as an alternative durable backend to the file-based
// AtomicFile/JSONFile protocol above. It mirrors the teacher's repeated
// `features/*/mongo` pattern: a thin client wrapping one collection. No
// component in this module constructs one and no configuration field selects
// it; campaign history is persisted through JSONFile.
type MongoRecorder struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// MongoOptions configures a MongoRecorder.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

const defaultMongoTimeout = 5 * time.Second

// NewMongoRecorder dials MongoDB and returns a MongoRecorder bound to the
// given database/collection. Connection establishment is lazy in the driver;
// this call verifies connectivity with a Ping.
func NewMongoRecorder(ctx context.Context, opts MongoOptions) (*MongoRecorder, error) {
	if opts.URI == "" {
		return nil, errors.New("store: mongo uri is required")
	}
	if opts.Database == "" {
		return nil, errors.New("store: mongo database is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultMongoTimeout
	}
	client, err := mongo.Connect(options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, err
	}
	coll := client.Database(opts.Database).Collection(opts.Collection)
	return &MongoRecorder{coll: coll, timeout: timeout}, nil
}

// Upsert stores doc under key id, replacing any existing document with the
// same _id.
func (r *MongoRecorder) Upsert(ctx context.Context, id string, doc any) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	filter := bson.M{"_id": id}
	update := bson.M{"$set": doc}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	return err
}

// Load decodes the document stored under id into out. It returns
// mongo.ErrNoDocuments when absent so callers can treat it like a cache miss.
func (r *MongoRecorder) Load(ctx context.Context, id string, out any) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
}

// List decodes every document in the collection into the slice pointed to by out.
func (r *MongoRecorder) List(ctx context.Context, out any) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	cur, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

func (r *MongoRecorder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.timeout)
}
