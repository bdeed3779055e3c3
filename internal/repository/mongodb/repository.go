package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository bundles the per-collection repositories behind one MongoDB
// connection.
type Repository struct {
	client *mongo.Client

	Feeds           *FeedRepository
	Administrations *AdministrationRepository
	Animals         *AnimalRepository
	Users           *UserRepository
	Audit           *AuditRepository
	Outbox          *OutboxRepository
}

// New connects to MongoDB and wires the collection repositories.
func New(ctx context.Context, uri string, dbName string) (*Repository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)

	return &Repository{
		client:          client,
		Feeds:           &FeedRepository{coll: db.Collection("feeds")},
		Administrations: &AdministrationRepository{coll: db.Collection("feed_administrations")},
		Animals:         &AnimalRepository{coll: db.Collection("animals")},
		Users:           &UserRepository{coll: db.Collection("users")},
		Audit:           &AuditRepository{coll: db.Collection("audit_logs")},
		Outbox:          &OutboxRepository{coll: db.Collection("outbox_events")},
	}, nil
}

// Close closes the MongoDB connection.
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
