package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MRLStatus is an animal's maximum-residue-limit standing at a point in time.
type MRLStatus string

const (
	// MRLStatusSafe means no residue restriction applies.
	MRLStatusSafe MRLStatus = "SAFE"
	// MRLStatusNew marks an animal that was registered but never treated.
	MRLStatusNew MRLStatus = "NEW"
	// MRLStatusActiveWithdrawal means a withdrawal period is still running.
	MRLStatusActiveWithdrawal MRLStatus = "ACTIVE_WITHDRAWAL"
)

// Eligible reports whether an animal in this status may receive medicated feed.
func (s MRLStatus) Eligible() bool {
	return s == MRLStatusSafe || s == MRLStatusNew
}

// Animal is a livestock head identified by its tag.
type Animal struct {
	ID                        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TagID                     string               `bson:"tagId" json:"tagId"`
	FarmerID                  primitive.ObjectID   `bson:"farmerId" json:"farmerId"`
	Species                   string               `bson:"species,omitempty" json:"species,omitempty"`
	IsNew                     bool                 `bson:"isNew" json:"isNew"`
	InWithdrawal              bool                 `bson:"inWithdrawal" json:"inWithdrawal"`
	WithdrawalEndDate         *time.Time           `bson:"withdrawalEndDate,omitempty" json:"withdrawalEndDate,omitempty"`
	ActiveFeedAdministrations []primitive.ObjectID `bson:"activeFeedAdministrations,omitempty" json:"activeFeedAdministrations,omitempty"`
	CreatedAt                 time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt                 time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// AnimalMRLResult pairs an animal with its computed residue status.
type AnimalMRLResult struct {
	TagID   string    `json:"tagId"`
	Status  MRLStatus `json:"mrlStatus"`
	Message string    `json:"reason"`
}

// EligibilityResult is the outcome of screening a set of animals against a
// medicated feed.
type EligibilityResult struct {
	Eligible   []Animal
	Ineligible []AnimalMRLResult
}

// AllEligible reports whether the screening passed for every animal.
func (r EligibilityResult) AllEligible() bool {
	return len(r.Ineligible) == 0
}
