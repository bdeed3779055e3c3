package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditLog is one append-only compliance record of a mutation.
type AuditLog struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventType       string             `bson:"eventType" json:"eventType"`
	EntityType      string             `bson:"entityType" json:"entityType"`
	EntityID        string             `bson:"entityId" json:"entityId"`
	FarmerID        primitive.ObjectID `bson:"farmerId" json:"farmerId"`
	PerformedBy     primitive.ObjectID `bson:"performedBy" json:"performedBy"`
	PerformedByRole Role               `bson:"performedByRole" json:"performedByRole"`
	DataSnapshot    any                `bson:"dataSnapshot,omitempty" json:"dataSnapshot,omitempty"`
	Changes         map[string]any     `bson:"changes,omitempty" json:"changes,omitempty"`
	Metadata        map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
}
