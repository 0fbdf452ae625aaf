// Package mongo stores activities in a MongoDB collection.
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

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
)

// CollectionName is the collection activities live in.
const CollectionName = "activities"

type activityDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	UserID       string             `bson:"userId"`
	ActivityType string             `bson:"activityType"`
	Quantity     float64            `bson:"quantity"`
	Unit         string             `bson:"unit"`
	Date         *time.Time         `bson:"date,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// Repository is a MongoDB-backed domain.ActivityRepository.
type Repository struct {
	coll *mongo.Collection
}

// NewRepository constructs a Repository over db's activities collection.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{coll: db.Collection(CollectionName)}
}

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the owner lookup index.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

// CanonicalID lowercases ObjectID hex strings so ownership compares the
// stored form. Other ids use the domain default.
func (r *Repository) CanonicalID(id string) string {
	trimmed := strings.TrimSpace(id)
	if oid, err := primitive.ObjectIDFromHex(strings.ToLower(trimmed)); err == nil {
		return oid.Hex()
	}
	return domain.CanonicalID(trimmed)
}

// ListByOwner implements domain.ActivityRepository.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Activity, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"userId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	results := make([]domain.Activity, 0)
	for cur.Next(ctx) {
		var doc activityDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		results = append(results, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	doc := fromDomain(activity)
	doc.ID = primitive.NewObjectID()

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Activity{}, err
	}
	return doc.toDomain(), nil
}

// Get implements domain.ActivityRepository. Unknown or malformed ids yield nil, nil.
func (r *Repository) Get(ctx context.Context, activityID string) (*domain.Activity, error) {
	oid, err := primitive.ObjectIDFromHex(activityID)
	if err != nil {
		return nil, nil
	}

	var doc activityDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	a := doc.toDomain()
	return &a, nil
}

// Update implements domain.ActivityRepository.
func (r *Repository) Update(ctx context.Context, activity domain.Activity) error {
	oid, err := primitive.ObjectIDFromHex(activity.ID)
	if err != nil {
		return domain.ErrActivityNotFound
	}

	set := bson.M{
		"activityType": activity.ActivityType,
		"quantity":     activity.Quantity,
		"unit":         activity.Unit,
		"updatedAt":    activity.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if activity.Date != nil {
		set["date"] = *activity.Date
	} else {
		update["$unset"] = bson.M{"date": ""}
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// Delete implements domain.ActivityRepository.
func (r *Repository) Delete(ctx context.Context, activity domain.Activity) error {
	oid, err := primitive.ObjectIDFromHex(activity.ID)
	if err != nil {
		return domain.ErrActivityNotFound
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func fromDomain(a domain.Activity) activityDocument {
	return activityDocument{
		UserID:       a.OwnerID,
		ActivityType: a.ActivityType,
		Quantity:     a.Quantity,
		Unit:         a.Unit,
		Date:         a.Date,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d activityDocument) toDomain() domain.Activity {
	a := domain.Activity{
		ID:           d.ID.Hex(),
		OwnerID:      d.UserID,
		ActivityType: d.ActivityType,
		Quantity:     d.Quantity,
		Unit:         d.Unit,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
	if d.Date != nil {
		date := d.Date.UTC()
		a.Date = &date
	}
	return a
}
