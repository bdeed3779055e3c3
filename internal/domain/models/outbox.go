package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OutboxKind identifies the side effect an outbox event carries.
type OutboxKind string

const (
	// OutboxConfirmationEmail sends the farmer a creation confirmation with
	// the rendered confirmation document attached.
	OutboxConfirmationEmail OutboxKind = "confirmation_email"
	// OutboxReviewRequestEmail notifies the assigned veterinarian that a
	// medicated administration awaits review.
	OutboxReviewRequestEmail OutboxKind = "review_request_email"
	// OutboxPrescriptionEmail sends the farmer the prescription with the
	// rendered prescription document attached.
	OutboxPrescriptionEmail OutboxKind = "prescription_email"
	// OutboxRejectionEmail informs the farmer of a rejection.
	OutboxRejectionEmail OutboxKind = "rejection_email"
)

// OutboxEventStatus is the delivery state of an outbox event.
type OutboxEventStatus string

const (
	OutboxPending OutboxEventStatus = "pending"
	OutboxSent    OutboxEventStatus = "sent"
	OutboxFailed  OutboxEventStatus = "failed"
)

// OutboxEvent decouples a committed workflow transition from its
// notification side effects. Events are written in the same request that
// performs the transition and drained by the scheduler; a delivery failure
// never rolls the transition back.
type OutboxEvent struct {
	ID               string             `bson:"_id" json:"id"`
	Kind             OutboxKind         `bson:"kind" json:"kind"`
	AdministrationID primitive.ObjectID `bson:"administrationId" json:"administrationId"`
	RecipientID      primitive.ObjectID `bson:"recipientId" json:"recipientId"`
	Status           OutboxEventStatus  `bson:"status" json:"status"`
	Attempts         int                `bson:"attempts" json:"attempts"`
	LastError        string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
