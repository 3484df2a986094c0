package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/models"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/logger"
)

// ErrExternalIDTaken is returned by Insert when another record already holds
// the external id. The service treats it as "record exists, re-fetch".
var ErrExternalIDTaken = errors.New("external id already taken")

// Fields is a partial update. Nil pointers leave the stored value unchanged.
// The external id is deliberately not updatable through this type.
type Fields struct {
	Email    *string
	Username *string
	FullName *string
}

// Repository defines persistence operations for federated users and roles.
// Lookup misses return (nil, nil); only infrastructure failures are errors.
type Repository interface {
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	// Insert assigns the id and timestamps. The store enforces uniqueness of
	// the external id; a violation surfaces as ErrExternalIDTaken.
	Insert(ctx context.Context, u *models.User) (*models.User, error)
	Update(ctx context.Context, id int64, f Fields) (*models.User, error)
	DeleteByExternalID(ctx context.Context, externalID string) (bool, error)
	DefaultRole(ctx context.Context) (*models.Role, error)
}

// MongoRepository implements Repository on MongoDB collections.
type MongoRepository struct {
	users    *mongo.Collection
	roles    *mongo.Collection
	counters *mongo.Collection
}

// NewMongoRepository builds the repository over the given database and
// creates the unique index on externalId that the create path relies on for
// race tolerance.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (*MongoRepository, error) {
	r := &MongoRepository{
		users:    db.Collection("users"),
		roles:    db.Collection("roles"),
		counters: db.Collection("counters"),
	}
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "externalId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := r.users.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("create externalId index: %w", err)
	}
	return r, nil
}

// nextID returns a monotonically increasing id for the named sequence.
// Ids are never reused: the counter only moves forward, even across deletes.
func (r *MongoRepository) nextID(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("next id for %s: %w", name, err)
	}
	return doc.Seq, nil
}

func (r *MongoRepository) FindByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	// Sorted by _id so that a corrupted store (more than one record for the
	// same external id) still resolves deterministically to the lowest id.
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(2)
	cur, err := r.users.Find(ctx, bson.M{"externalId": externalID}, opts)
	if err != nil {
		return nil, err
	}
	var matches []models.User
	if err := cur.All(ctx, &matches); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	if len(matches) > 1 {
		logger.Errorf("store corruption: multiple users for externalId=%s, using id=%d", externalID, matches[0].ID)
	}
	return &matches[0], nil
}

func (r *MongoRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *MongoRepository) Insert(ctx context.Context, u *models.User) (*models.User, error) {
	id, err := r.nextID(ctx, "users")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := r.users.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrExternalIDTaken
		}
		return nil, err
	}
	return u, nil
}

func (r *MongoRepository) Update(ctx context.Context, id int64, f Fields) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if f.Email != nil {
		set["email"] = *f.Email
	}
	if f.Username != nil {
		set["username"] = *f.Username
	}
	if f.FullName != nil {
		set["fullName"] = *f.FullName
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := r.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *MongoRepository) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	res, err := r.users.DeleteOne(ctx, bson.M{"externalId": externalID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) DefaultRole(ctx context.Context) (*models.Role, error) {
	var role models.Role
	err := r.roles.FindOne(ctx, bson.M{"type": models.DefaultRoleType}).Decode(&role)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// EnsureDefaultRole creates the authenticated role if the collection has none.
// Creation of users still succeeds without it; seeding just keeps the common
// path from running with roleId unset.
func (r *MongoRepository) EnsureDefaultRole(ctx context.Context) (*models.Role, error) {
	role, err := r.DefaultRole(ctx)
	if err != nil || role != nil {
		return role, err
	}
	id, err := r.nextID(ctx, "roles")
	if err != nil {
		return nil, err
	}
	role = &models.Role{ID: id, Type: models.DefaultRoleType, Name: "Authenticated"}
	if _, err := r.roles.InsertOne(ctx, role); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.DefaultRole(ctx)
		}
		return nil, err
	}
	return role, nil
}
