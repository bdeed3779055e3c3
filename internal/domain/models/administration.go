package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdministrationStatus enumerates the workflow states of a feed administration.
type AdministrationStatus string

const (
	// StatusPendingApproval means the record awaits a veterinarian decision.
	StatusPendingApproval AdministrationStatus = "pending_approval"
	// StatusActive means the administration is approved (or needed no approval) and running.
	StatusActive AdministrationStatus = "active"
	// StatusRejected means a veterinarian refused the administration.
	StatusRejected AdministrationStatus = "rejected"
	// StatusCompleted means the farmer closed the administration.
	StatusCompleted AdministrationStatus = "completed"
)

// Deletable reports whether a record in this status may be removed outright.
// Anything past pending must go through the complete path instead.
func (s AdministrationStatus) Deletable() bool {
	return s == StatusPendingApproval
}

// FeedAdministration records one application of a feed batch to a set of
// animals. Stock is deducted from the batch at creation and credited back at
// most once, on rejection or on deletion while still pending.
type FeedAdministration struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	FarmerID          primitive.ObjectID   `bson:"farmerId" json:"farmerId"`
	FeedID            primitive.ObjectID   `bson:"feedId" json:"feedId"`
	AnimalTagIDs      []string             `bson:"animalTagIds" json:"animalTagIds"`
	GroupName         string               `bson:"groupName,omitempty" json:"groupName,omitempty"`
	QuantityUsed      float64              `bson:"feedQuantityUsed" json:"feedQuantityUsed"`
	StartDate         time.Time            `bson:"startDate" json:"startDate"`
	WithdrawalEndDate time.Time            `bson:"withdrawalEndDate,omitempty" json:"withdrawalEndDate,omitempty"`
	EndDate           *time.Time           `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Notes             string               `bson:"notes,omitempty" json:"notes,omitempty"`
	Status            AdministrationStatus `bson:"status" json:"status"`
	Approved          bool                 `bson:"approved" json:"approved"`
	ApprovalDate      *time.Time           `bson:"approvalDate,omitempty" json:"approvalDate,omitempty"`
	ApprovedBy        *primitive.ObjectID  `bson:"approvedBy,omitempty" json:"approvedBy,omitempty"`
	RejectionReason   string               `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	RejectedBy        *primitive.ObjectID  `bson:"rejectedBy,omitempty" json:"rejectedBy,omitempty"`
	StockRestored     bool                 `bson:"stockRestored" json:"stockRestored"`
	EmailError        string               `bson:"emailError,omitempty" json:"emailError,omitempty"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// CreateAdministrationRequest is the payload a farmer submits to start an
// administration.
type CreateAdministrationRequest struct {
	FeedID       string    `json:"feedId" binding:"required"`
	AnimalTagIDs []string  `json:"animalTagIds" binding:"required,min=1"`
	GroupName    string    `json:"groupName"`
	Quantity     float64   `json:"quantity" binding:"required,gt=0"`
	StartDate    time.Time `json:"startDate"`
	Notes        string    `json:"notes"`
}

// UpdateAdministrationRequest carries the mutable fields of a record. Owner
// and feed references are immutable after creation.
type UpdateAdministrationRequest struct {
	Notes     *string `json:"notes"`
	GroupName *string `json:"groupName"`
}

// RejectAdministrationRequest carries the mandatory rejection reason.
type RejectAdministrationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// AdministrationFilter narrows read queries over administrations.
type AdministrationFilter struct {
	FarmerIDs   []primitive.ObjectID
	FeedID      *primitive.ObjectID
	Status      AdministrationStatus
	AnimalTagID string
	From        time.Time
	To          time.Time
}
