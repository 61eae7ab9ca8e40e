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
	licensesCollection = "licenses"
	idxLicenseKey      = "license_key_unique"
	idxOrderProduct    = "order_product_unique"
)

type MongoLicenseRepository struct {
	coll    *mongo.Collection
	timeout time.Duration
}

var _ ports.LicenseRepository = (*MongoLicenseRepository)(nil)

func NewLicenseRepository(db *mongo.Database, timeout time.Duration) *MongoLicenseRepository {
	return &MongoLicenseRepository{coll: db.Collection(licensesCollection), timeout: opTimeout(timeout)}
}

type mongoLicense struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OwnerID     string             `bson:"owner_id"`
	Key         string             `bson:"license_key"`
	ProductID   string             `bson:"product_id"`
	OrderID     string             `bson:"order_id"`
	HWID        string             `bson:"hwid"`
	ResetCount  int                `bson:"reset_count"`
	LastResetAt *time.Time         `bson:"last_reset_at"`
	Status      string             `bson:"status"`
	ExpiresAt   *time.Time         `bson:"expires_at"`
	CreatedAt   time.Time          `bson:"created_at"`
}

func toMongoLicense(l *domain.License) mongoLicense {
	return mongoLicense{
		OwnerID:     l.OwnerID,
		Key:         l.Key,
		ProductID:   l.ProductID,
		OrderID:     l.OrderID,
		HWID:        l.HWID,
		ResetCount:  l.ResetCount,
		LastResetAt: timePtr(l.LastResetAt),
		Status:      string(l.Status),
		ExpiresAt:   timePtr(l.ExpiresAt),
		CreatedAt:   l.CreatedAt.UTC(),
	}
}

func (m mongoLicense) toDomain() *domain.License {
	return &domain.License{
		ID:          m.ID.Hex(),
		OwnerID:     m.OwnerID,
		Key:         m.Key,
		ProductID:   m.ProductID,
		OrderID:     m.OrderID,
		HWID:        m.HWID,
		ResetCount:  m.ResetCount,
		LastResetAt: timePtr(m.LastResetAt),
		Status:      domain.LicenseStatus(m.Status),
		ExpiresAt:   timePtr(m.ExpiresAt),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

func (r *MongoLicenseRepository) Create(ctx context.Context, l *domain.License) (*domain.License, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	doc := toMongoLicense(l)
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		switch duplicateIndex(err, idxLicenseKey, idxOrderProduct) {
		case "":
			return nil, storageErr("insert license", err)
		case idxOrderProduct:
			return nil, domain.ErrConflict
		default:
			return nil, domain.ErrLicenseKeyExists
		}
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *MongoLicenseRepository) FindByID(ctx context.Context, id string) (*domain.License, error) {
	oid, err := objectID(id, domain.ErrLicenseNotFound)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoLicenseRepository) FindByKey(ctx context.Context, key string) (*domain.License, error) {
	return r.findOne(ctx, bson.M{"license_key": key})
}

func (r *MongoLicenseRepository) FindByOwner(ctx context.Context, ownerID string) ([]domain.License, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r *MongoLicenseRepository) FindByOrder(ctx context.Context, orderID string) ([]domain.License, error) {
	return r.find(ctx, bson.M{"order_id": orderID})
}

func (r *MongoLicenseRepository) FindByOrderProduct(ctx context.Context, orderID, productID string) (*domain.License, error) {
	return r.findOne(ctx, bson.M{"order_id": orderID, "product_id": productID})
}

func (r *MongoLicenseRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, bson.M{"license_key": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, storageErr("count license key", err)
	}
	return n > 0, nil
}

func (r *MongoLicenseRepository) Update(ctx context.Context, l *domain.License) (*domain.License, error) {
	oid, err := objectID(l.ID, domain.ErrLicenseNotFound)
	if err != nil {
		return nil, err
	}
	doc := toMongoLicense(l)
	update := bson.M{"$set": bson.M{
		"owner_id":      doc.OwnerID,
		"license_key":   doc.Key,
		"product_id":    doc.ProductID,
		"order_id":      doc.OrderID,
		"hwid":          doc.HWID,
		"reset_count":   doc.ResetCount,
		"last_reset_at": doc.LastResetAt,
		"status":        doc.Status,
		"expires_at":    doc.ExpiresAt,
	}}

	updated, err := r.findOneAndUpdate(ctx, bson.M{"_id": oid}, update)
	if isNoDocuments(err) {
		return nil, domain.ErrLicenseNotFound
	}
	return updated, err
}

func (r *MongoLicenseRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id, domain.ErrLicenseNotFound)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return storageErr("delete license", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrLicenseNotFound
	}
	return nil
}

func (r *MongoLicenseRepository) BindHWID(ctx context.Context, id, hwid string) (*domain.License, error) {
	return r.conditional(ctx, id,
		bson.M{"status": string(domain.LicenseActive), "hwid": ""},
		bson.M{"$set": bson.M{"hwid": hwid}},
	)
}

func (r *MongoLicenseRepository) ResetHWID(ctx context.Context, id string, expectedResets int, at time.Time) (*domain.License, error) {
	return r.conditional(ctx, id,
		bson.M{"status": string(domain.LicenseActive), "reset_count": expectedResets},
		bson.M{
			"$set": bson.M{"hwid": "", "last_reset_at": at.UTC()},
			"$inc": bson.M{"reset_count": 1},
		},
	)
}

func (r *MongoLicenseRepository) ForceReset(ctx context.Context, id string) (*domain.License, error) {
	oid, err := objectID(id, domain.ErrLicenseNotFound)
	if err != nil {
		return nil, err
	}
	updated, err := r.findOneAndUpdate(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"hwid": "", "reset_count": 0}})
	if isNoDocuments(err) {
		return nil, domain.ErrLicenseNotFound
	}
	return updated, err
}

func (r *MongoLicenseRepository) Transition(
	ctx context.Context,
	id string,
	from []domain.LicenseStatus,
	to domain.LicenseStatus,
	expiresAt *time.Time,
) (*domain.License, error) {
	statuses := make(bson.A, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}
	set := bson.M{"status": string(to)}
	if expiresAt != nil {
		set["expires_at"] = expiresAt.UTC()
	}
	return r.conditional(ctx, id, bson.M{"status": bson.M{"$in": statuses}}, bson.M{"$set": set})
}

// conditional applies update only when the document still matches guard.
// A miss is disambiguated: a missing document is ErrLicenseNotFound, a
// document in another state is ErrConflict.
func (r *MongoLicenseRepository) conditional(ctx context.Context, id string, guard, update bson.M) (*domain.License, error) {
	oid, err := objectID(id, domain.ErrLicenseNotFound)
	if err != nil {
		return nil, err
	}
	guard["_id"] = oid

	updated, err := r.findOneAndUpdate(ctx, guard, update)
	if !isNoDocuments(err) {
		return updated, err
	}

	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, domain.ErrConflict
}

// findOneAndUpdate returns mongo.ErrNoDocuments unwrapped so callers can
// decide what a miss means.
func (r *MongoLicenseRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*domain.License, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ml mongoLicense
	err := r.coll.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&ml)
	switch {
	case err == nil:
		return ml.toDomain(), nil
	case isNoDocuments(err):
		return nil, err
	case duplicateIndex(err, idxLicenseKey) == idxLicenseKey:
		return nil, domain.ErrLicenseKeyExists
	case mongo.IsDuplicateKeyError(err):
		return nil, domain.ErrConflict
	default:
		return nil, storageErr("update license", err)
	}
}

func (r *MongoLicenseRepository) findOne(ctx context.Context, filter bson.M) (*domain.License, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ml mongoLicense
	if err := r.coll.FindOne(ctx, filter).Decode(&ml); err != nil {
		if isNoDocuments(err) {
			return nil, domain.ErrLicenseNotFound
		}
		return nil, storageErr("find license", err)
	}
	return ml.toDomain(), nil
}

func (r *MongoLicenseRepository) find(ctx context.Context, filter bson.M) ([]domain.License, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, storageErr("find licenses", err)
	}
	defer cur.Close(ctx)

	var docs []mongoLicense
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storageErr("decode licenses", err)
	}
	out := make([]domain.License, 0, len(docs))
	for _, d := range docs {
		out = append(out, *d.toDomain())
	}
	return out, nil
}
