package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/autoforum/license-service/internal/core/domain"
	"github.com/autoforum/license-service/internal/core/ports"
)

const (
	usersCollection = "users"
	idxUsername     = "username_unique"
	idxEmail        = "email_unique"
)

type MongoUserRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ ports.UserRepository = (*MongoUserRepository)(nil)

func NewUserRepository(db *mongo.Database, timeout time.Duration) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection), timeout: opTimeout(timeout)}
}

type mongoUser struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	DisplayName  string             `bson:"display_name,omitempty"`
	Bio          string             `bson:"bio,omitempty"`
	Location     string             `bson:"location,omitempty"`
	Signature    string             `bson:"signature,omitempty"`
	Reputation   int                `bson:"reputation"`
	PostCount    int                `bson:"post_count"`
	Banned       bool               `bson:"banned"`
	LegacyKey    string             `bson:"legacy_key,omitempty"`
	LegacyDigest string             `bson:"legacy_digest,omitempty"`
	JoinedAt     time.Time          `bson:"joined_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func toMongoUser(u *domain.User) mongoUser {
	return mongoUser{
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		DisplayName:  u.DisplayName,
		Bio:          u.Bio,
		Location:     u.Location,
		Signature:    u.Signature,
		Reputation:   u.Reputation,
		PostCount:    u.PostCount,
		Banned:       u.Banned,
		LegacyKey:    u.LegacyKey,
		LegacyDigest: u.LegacyDigest,
		JoinedAt:     u.JoinedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (m mongoUser) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID.Hex(),
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		DisplayName:  m.DisplayName,
		Bio:          m.Bio,
		Location:     m.Location,
		Signature:    m.Signature,
		Reputation:   m.Reputation,
		PostCount:    m.PostCount,
		Banned:       m.Banned,
		LegacyKey:    m.LegacyKey,
		LegacyDigest: m.LegacyDigest,
		JoinedAt:     m.JoinedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := toMongoUser(user)
	doc.Email = strings.ToLower(doc.Email)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		switch duplicateIndex(err, idxUsername, idxEmail) {
		case "":
			return nil, storageErr("insert user", err)
		case idxEmail:
			return nil, domain.ErrEmailTaken
		default:
			return nil, domain.ErrUsernameTaken
		}
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := objectID(id, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoUserRepository) FindByLogin(ctx context.Context, login string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": login},
		bson.M{"email": strings.ToLower(login)},
	}})
}

func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *MongoUserRepository) MigratePassword(ctx context.Context, id, hash string) error {
	oid, err := objectID(id, domain.ErrUserNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"password_hash": hash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"legacy_key": "", "legacy_digest": ""},
	})
	if err != nil {
		return storageErr("migrate password", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if update.DisplayName != nil {
		set["display_name"] = *update.DisplayName
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.Signature != nil {
		set["signature"] = *update.Signature
	}
	if update.Email != nil {
		set["email"] = strings.ToLower(*update.Email)
	}

	u, err := r.updateOne(ctx, id, bson.M{"$set": set})
	if err != nil && duplicateIndex(err, idxEmail) != "" {
		return nil, domain.ErrEmailTaken
	}
	return u, err
}

func (r *MongoUserRepository) SetBanned(ctx context.Context, id string, banned bool) (*domain.User, error) {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"banned": banned, "updated_at": time.Now().UTC()}})
}

func (r *MongoUserRepository) IncrementPostCount(ctx context.Context, id string) error {
	_, err := r.updateOne(ctx, id, bson.M{"$inc": bson.M{"post_count": 1}})
	return err
}

func (r *MongoUserRepository) AdjustReputation(ctx context.Context, id string, delta int) error {
	_, err := r.updateOne(ctx, id, bson.M{"$inc": bson.M{"reputation": delta}})
	return err
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mu mongoUser
	if err := r.coll.FindOne(ctx, filter).Decode(&mu); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storageErr("find user", err)
	}
	return mu.toDomain(), nil
}

// updateOne applies update and returns the resulting document. Duplicate-key
// errors are returned unwrapped so callers can classify them.
func (r *MongoUserRepository) updateOne(ctx context.Context, id string, update bson.M) (*domain.User, error) {
	oid, err := objectID(id, domain.ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var mu mongoUser
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, afterUpdate()).Decode(&mu)
	switch {
	case err == nil:
		return mu.toDomain(), nil
	case isNoDocuments(err):
		return nil, domain.ErrUserNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, err
	default:
		return nil, storageErr(fmt.Sprintf("update user %s", id), err)
	}
}
