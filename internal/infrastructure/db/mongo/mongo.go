package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoforum/license-service/internal/core/domain"
)

const (
	defaultTimeout = 10 * time.Second
	// defaultOpTimeout bounds a single repository call when no STORE_TIMEOUT is configured.
	defaultOpTimeout = 3 * time.Second
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return client, db, nil
}

// EnsureIndexes creates the unique and lookup indexes every repository relies on.
// Index creation is idempotent, so it runs on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName(idxUsername).SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName(idxEmail).SetUnique(true)},
		},
		licensesCollection: {
			{Keys: bson.D{{Key: "license_key", Value: 1}}, Options: options.Index().SetName(idxLicenseKey).SetUnique(true)},
			{Keys: bson.D{{Key: "owner_id", Value: 1}}, Options: options.Index().SetName("owner")},
			{
				Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "product_id", Value: 1}},
				Options: options.Index().SetName(idxOrderProduct).SetUnique(true).
					SetPartialFilterExpression(bson.M{"order_id": bson.M{"$gt": ""}}),
			},
		},
		topicsCollection: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("recent")},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "topic_id", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("topic_posts")},
		},
		thanksCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "post_id", Value: 1}}, Options: options.Index().SetName("user_post").SetUnique(true)},
		},
	}

	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

func opTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultOpTimeout
	}
	return d
}

// objectID parses a hex id. Malformed ids surface as notFound so callers
// cannot distinguish them from missing documents.
func objectID(id string, notFound error) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return oid, nil
}

// duplicateIndex returns the name of the unique index a duplicate-key error
// violated, or "" when err is not a duplicate-key error.
func duplicateIndex(err error, names ...string) string {
	if !mongo.IsDuplicateKeyError(err) {
		return ""
	}
	msg := err.Error()
	for _, name := range names {
		if strings.Contains(msg, "index: "+name) {
			return name
		}
	}
	return "unknown"
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func storageErr(op string, err error) error {
	return domain.StorageError("mongo "+op, err)
}
