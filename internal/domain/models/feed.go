package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FeedBatch represents one purchased lot of feed, medicated or not. Stock is
// tracked per batch and only ever mutated through the repository's consume
// and restore operations.
type FeedBatch struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FarmerID             primitive.ObjectID `bson:"farmerId" json:"farmerId"`
	Name                 string             `bson:"name" json:"name"`
	PrescriptionRequired bool               `bson:"prescriptionRequired" json:"prescriptionRequired"`
	ActiveIngredient     string             `bson:"activeIngredient,omitempty" json:"activeIngredient,omitempty"`
	Concentration        float64            `bson:"concentration,omitempty" json:"concentration,omitempty"`
	TotalQuantity        float64            `bson:"totalQuantity" json:"totalQuantity"`
	RemainingQuantity    float64            `bson:"remainingQuantity" json:"remainingQuantity"`
	Unit                 string             `bson:"unit" json:"unit"`
	ExpiryDate           time.Time          `bson:"expiryDate" json:"expiryDate"`
	WithdrawalPeriodDays int                `bson:"withdrawalPeriodDays" json:"withdrawalPeriodDays"`
	Active               bool               `bson:"active" json:"active"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Validate checks the batch invariants before it is persisted.
func (f *FeedBatch) Validate() error {
	if f.Name == "" {
		return errors.New("feed name is required")
	}
	if f.TotalQuantity <= 0 {
		return errors.New("total quantity must be positive")
	}
	if f.RemainingQuantity < 0 || f.RemainingQuantity > f.TotalQuantity {
		return fmt.Errorf("remaining quantity %.2f out of range [0, %.2f]", f.RemainingQuantity, f.TotalQuantity)
	}
	if f.Unit == "" {
		return errors.New("unit is required")
	}
	if f.PrescriptionRequired {
		if f.ActiveIngredient == "" {
			return errors.New("medicated feed requires an active ingredient")
		}
		if f.Concentration <= 0 {
			return errors.New("medicated feed requires a positive concentration")
		}
		if f.WithdrawalPeriodDays < 0 {
			return errors.New("withdrawal period must not be negative")
		}
	}
	return nil
}

// CreateFeedRequest is the payload accepted when a farmer registers a batch.
type CreateFeedRequest struct {
	Name                 string    `json:"name" binding:"required"`
	PrescriptionRequired bool      `json:"prescriptionRequired"`
	ActiveIngredient     string    `json:"activeIngredient"`
	Concentration        float64   `json:"concentration"`
	TotalQuantity        float64   `json:"totalQuantity" binding:"required,gt=0"`
	Unit                 string    `json:"unit" binding:"required"`
	ExpiryDate           time.Time `json:"expiryDate"`
	WithdrawalPeriodDays int       `json:"withdrawalPeriodDays"`
}
