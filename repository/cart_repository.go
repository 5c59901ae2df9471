package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashrajoria/tomeshelf/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartsCollection = "carts"

type MongoCartRepository struct {
	coll *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{coll: db.Collection(cartsCollection)}
}

// EnsureIndexes creates the partial unique index that allows one active cart per owner.
func (r *MongoCartRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
		Options: options.Index().
			SetName("one_active_cart_per_owner").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"status": models.CartActive}),
	})
	if err != nil {
		return fmt.Errorf("create carts index: %w", err)
	}
	return nil
}

func (r *MongoCartRepository) FindActive(ctx context.Context, ownerID primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := r.coll.FindOne(ctx, bson.M{"owner_id": ownerID, "status": models.CartActive}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func (r *MongoCartRepository) Insert(ctx context.Context, cart *models.Cart) error {
	now := time.Now().UTC()
	if cart.ID.IsZero() {
		cart.ID = primitive.NewObjectID()
	}
	cart.Version = 1
	cart.CreatedAt = now
	cart.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, cart)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

func (r *MongoCartRepository) Replace(ctx context.Context, cart *models.Cart) error {
	prev := cart.Version
	cart.Version = prev + 1
	cart.UpdatedAt = time.Now().UTC()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": cart.ID, "version": prev}, cart)
	if err != nil {
		cart.Version = prev
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("replace cart: %w", err)
	}
	if res.MatchedCount == 0 {
		cart.Version = prev
		return ErrConflict
	}
	return nil
}
