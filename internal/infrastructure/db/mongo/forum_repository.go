package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	topicsCollection = "topics"
	postsCollection  = "posts"
	thanksCollection = "thanks"
)

type MongoForumRepository struct {
	topics  *mongo.Collection
	posts   *mongo.Collection
	thanks  *mongo.Collection
	timeout time.Duration
}

var _ ports.ForumRepository = (*MongoForumRepository)(nil)

func NewForumRepository(db *mongo.Database, timeout time.Duration) *MongoForumRepository {
	return &MongoForumRepository{
		topics:  db.Collection(topicsCollection),
		posts:   db.Collection(postsCollection),
		thanks:  db.Collection(thanksCollection),
		timeout: opTimeout(timeout),
	}
}

type mongoTopic struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	AuthorID   string             `bson:"author_id"`
	Title      string             `bson:"title"`
	Premium    bool               `bson:"premium"`
	Locked     bool               `bson:"locked"`
	ReplyCount int                `bson:"reply_count"`
	CreatedAt  time.Time          `bson:"created_at"`
}

func (m mongoTopic) toDomain() domain.Topic {
	return domain.Topic{
		ID:         m.ID.Hex(),
		AuthorID:   m.AuthorID,
		Title:      m.Title,
		Premium:    m.Premium,
		Locked:     m.Locked,
		ReplyCount: m.ReplyCount,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

type mongoPost struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	TopicID     primitive.ObjectID `bson:"topic_id"`
	AuthorID    string             `bson:"author_id"`
	Content     string             `bson:"content"`
	ThanksCount int                `bson:"thanks_count"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func (m mongoPost) toDomain() domain.Post {
	return domain.Post{
		ID:          m.ID.Hex(),
		TopicID:     m.TopicID.Hex(),
		AuthorID:    m.AuthorID,
		Content:     m.Content,
		ThanksCount: m.ThanksCount,
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

type mongoThank struct {
	UserID    string             `bson:"user_id"`
	PostID    primitive.ObjectID `bson:"post_id"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (r *MongoForumRepository) ListTopics(ctx context.Context, limit int) ([]domain.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.topics.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storageErr("list topics", err)
	}
	defer cur.Close(ctx)

	var docs []mongoTopic
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storageErr("decode topics", err)
	}
	out := make([]domain.Topic, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *MongoForumRepository) FindTopic(ctx context.Context, id string) (*domain.Topic, error) {
	oid, err := objectID(id, domain.ErrTopicNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mt mongoTopic
	if err := r.topics.FindOne(ctx, bson.M{"_id": oid}).Decode(&mt); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrTopicNotFound
		}
		return nil, storageErr("find topic", err)
	}
	t := mt.toDomain()
	return &t, nil
}

func (r *MongoForumRepository) CreateTopic(ctx context.Context, t *domain.Topic) (*domain.Topic, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := mongoTopic{
		AuthorID:   t.AuthorID,
		Title:      t.Title,
		Premium:    t.Premium,
		Locked:     t.Locked,
		ReplyCount: t.ReplyCount,
		CreatedAt:  t.CreatedAt.UTC(),
	}
	res, err := r.topics.InsertOne(ctx, doc)
	if err != nil {
		return nil, storageErr("insert topic", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	created := doc.toDomain()
	return &created, nil
}

func (r *MongoForumRepository) ListPosts(ctx context.Context, topicID string) ([]domain.Post, error) {
	oid, err := objectID(topicID, domain.ErrTopicNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.posts.Find(ctx, bson.M{"topic_id": oid}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, storageErr("list posts", err)
	}
	defer cur.Close(ctx)

	var docs []mongoPost
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storageErr("decode posts", err)
	}
	out := make([]domain.Post, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *MongoForumRepository) FindPost(ctx context.Context, id string) (*domain.Post, error) {
	oid, err := objectID(id, domain.ErrPostNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mp mongoPost
	if err := r.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&mp); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrPostNotFound
		}
		return nil, storageErr("find post", err)
	}
	p := mp.toDomain()
	return &p, nil
}

func (r *MongoForumRepository) CreatePost(ctx context.Context, p *domain.Post) (*domain.Post, error) {
	topicID, err := objectID(p.TopicID, domain.ErrTopicNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := mongoPost{
		TopicID:   topicID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UTC(),
	}
	res, err := r.posts.InsertOne(ctx, doc)
	if err != nil {
		return nil, storageErr("insert post", err)
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)

	if _, err := r.topics.UpdateByID(ctx, topicID, bson.M{"$inc": bson.M{"reply_count": 1}}); err != nil {
		return nil, storageErr("increment reply count", err)
	}
	created := doc.toDomain()
	return &created, nil
}

func (r *MongoForumRepository) AddThank(ctx context.Context, userID, postID string) error {
	oid, err := objectID(postID, domain.ErrPostNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err = r.thanks.InsertOne(ctx, mongoThank{UserID: userID, PostID: oid, CreatedAt: time.Now().UTC()})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyThanked
		}
		return storageErr("insert thank", err)
	}

	res, err := r.posts.UpdateByID(ctx, oid, bson.M{"$inc": bson.M{"thanks_count": 1}})
	if err != nil {
		return storageErr("increment thanks", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrPostNotFound
	}
	return nil
}
