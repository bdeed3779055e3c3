package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// OutboxRepository stores notification side effects awaiting delivery.
type OutboxRepository struct {
	coll *mongo.Collection
}

// Enqueue records a pending side effect.
func (r *OutboxRepository) Enqueue(ctx context.Context, event models.OutboxEvent) error {
	now := time.Now().UTC()
	event.Status = models.OutboxPending
	event.CreatedAt = now
	event.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	return nil
}

// FetchPending returns up to limit pending events, oldest first.
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int64) ([]models.OutboxEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"status": models.OutboxPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox events: %w", err)
	}
	var events []models.OutboxEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode outbox events: %w", err)
	}
	return events, nil
}

// MarkSent finalizes a delivered event.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": models.OutboxSent, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"attempts": 1},
	})
	if err != nil {
		return fmt.Errorf("mark outbox event sent: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure. The event stays pending for retry
// until maxAttempts is reached, then moves to failed for good.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, cause string, maxAttempts int) error {
	var event models.OutboxEvent
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{"lastError": cause, "updatedAt": time.Now().UTC()},
			"$inc": bson.M{"attempts": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&event)
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}

	if event.Attempts >= maxAttempts {
		if _, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": models.OutboxFailed}}); err != nil {
			return fmt.Errorf("finalize failed outbox event: %w", err)
		}
	}
	return nil
}
