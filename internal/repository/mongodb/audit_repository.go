package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// AuditRepository is the append-only compliance log.
type AuditRepository struct {
	coll *mongo.Collection
}

// Append stores one audit entry. There is no update or delete path.
func (r *AuditRepository) Append(ctx context.Context, entry models.AuditLog) error {
	entry.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}
