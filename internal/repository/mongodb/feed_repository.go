package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// FeedRepository persists feed batches and owns the stock ledger mutations.
type FeedRepository struct {
	coll *mongo.Collection
}

// Insert stores a new batch with remaining quantity equal to total.
func (r *FeedRepository) Insert(ctx context.Context, feed *models.FeedBatch) error {
	now := time.Now().UTC()
	feed.RemainingQuantity = feed.TotalQuantity
	feed.Active = true
	feed.CreatedAt = now
	feed.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, feed)
	if err != nil {
		return fmt.Errorf("insert feed batch: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		feed.ID = oid
	}
	return nil
}

// GetByID fetches a batch scoped to its owning farmer.
func (r *FeedRepository) GetByID(ctx context.Context, id, ownerID primitive.ObjectID) (*models.FeedBatch, error) {
	var feed models.FeedBatch
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "farmerId": ownerID}).Decode(&feed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("feed %s: %w", id.Hex(), models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get feed batch: %w", err)
	}
	return &feed, nil
}

// ListByOwner returns all batches of one farmer, newest first.
func (r *FeedRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.FeedBatch, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{"farmerId": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list feed batches: %w", err)
	}
	var feeds []models.FeedBatch
	if err := cur.All(ctx, &feeds); err != nil {
		return nil, fmt.Errorf("decode feed batches: %w", err)
	}
	return feeds, nil
}

// ConsumeStock atomically deducts quantity from a batch. The filter carries
// the sufficiency check, so two concurrent consumers can never overdraw the
// batch: whichever update matches second sees the already-decremented value.
func (r *FeedRepository) ConsumeStock(ctx context.Context, id, ownerID primitive.ObjectID, quantity float64) (*models.FeedBatch, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("consume quantity must be positive, got %.2f", quantity)
	}

	filter := bson.M{
		"_id":               id,
		"farmerId":          ownerID,
		"active":            true,
		"remainingQuantity": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"remainingQuantity": -quantity},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var feed models.FeedBatch
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&feed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Distinguish a missing batch from one that is merely short on stock.
		if _, getErr := r.GetByID(ctx, id, ownerID); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("feed %s: %w", id.Hex(), models.ErrInsufficientStock)
	}
	if err != nil {
		return nil, fmt.Errorf("consume stock: %w", err)
	}

	if feed.RemainingQuantity == 0 {
		// Idempotent: flipping active on an already-inactive empty batch is a no-op.
		if _, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": id, "remainingQuantity": 0},
			bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}},
		); err != nil {
			return nil, fmt.Errorf("deactivate empty batch: %w", err)
		}
		feed.Active = false
	}

	return &feed, nil
}

// RestoreStock credits quantity back to a batch after a rejection or a
// deletion of a still-pending administration. Callers must have claimed the
// record's stockRestored flag first; the 1:1 pairing with a prior consume is
// what keeps remaining below total.
func (r *FeedRepository) RestoreStock(ctx context.Context, id primitive.ObjectID, quantity float64) error {
	if quantity <= 0 {
		return fmt.Errorf("restore quantity must be positive, got %.2f", quantity)
	}

	update := bson.M{
		"$inc": bson.M{"remainingQuantity": quantity},
		"$set": bson.M{"active": true, "updatedAt": time.Now().UTC()},
	}
	res, err := r.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("feed %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}

// Deactivate retires a batch so no further administrations can draw from it.
func (r *FeedRepository) Deactivate(ctx context.Context, id, ownerID primitive.ObjectID) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "farmerId": ownerID},
		bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("deactivate feed batch: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("feed %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}
