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

// AdministrationRepository persists feed administration records. State
// transitions are guarded at the database level: every mark operation filters
// on the expected current status, so a lost race surfaces as ErrNotFound to
// the service layer instead of silently double-applying.
type AdministrationRepository struct {
	coll *mongo.Collection
}

// Insert stores a new administration record.
func (r *AdministrationRepository) Insert(ctx context.Context, rec *models.FeedAdministration) error {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	res, err := r.coll.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("insert administration: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid
	}
	return nil
}

// GetByID fetches a record by id.
func (r *AdministrationRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.FeedAdministration, error) {
	var rec models.FeedAdministration
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("administration %s: %w", id.Hex(), models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get administration: %w", err)
	}
	return &rec, nil
}

// Find returns records matching the filter, newest first.
func (r *AdministrationRepository) Find(ctx context.Context, filter models.AdministrationFilter) ([]models.FeedAdministration, error) {
	query := bson.M{}
	if len(filter.FarmerIDs) > 0 {
		query["farmerId"] = bson.M{"$in": filter.FarmerIDs}
	}
	if filter.FeedID != nil {
		query["feedId"] = *filter.FeedID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.AnimalTagID != "" {
		query["animalTagIds"] = filter.AnimalTagID
	}
	dateRange := bson.M{}
	if !filter.From.IsZero() {
		dateRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		dateRange["$lte"] = filter.To
	}
	if len(dateRange) > 0 {
		query["startDate"] = dateRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}})
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("find administrations: %w", err)
	}
	var recs []models.FeedAdministration
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode administrations: %w", err)
	}
	return recs, nil
}

// MarkApproved transitions pending -> active and stamps the approval fields.
func (r *AdministrationRepository) MarkApproved(ctx context.Context, id, vetID primitive.ObjectID, at time.Time) error {
	return r.markTransition(ctx, id, models.StatusPendingApproval, bson.M{
		"status":       models.StatusActive,
		"approved":     true,
		"approvalDate": at,
		"approvedBy":   vetID,
		"updatedAt":    time.Now().UTC(),
	})
}

// MarkRejected transitions pending -> rejected and records reason and actor.
func (r *AdministrationRepository) MarkRejected(ctx context.Context, id, vetID primitive.ObjectID, reason, notes string) error {
	return r.markTransition(ctx, id, models.StatusPendingApproval, bson.M{
		"status":          models.StatusRejected,
		"rejectionReason": reason,
		"rejectedBy":      vetID,
		"notes":           notes,
		"updatedAt":       time.Now().UTC(),
	})
}

// MarkCompleted transitions active -> completed and stamps the end date.
func (r *AdministrationRepository) MarkCompleted(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.markTransition(ctx, id, models.StatusActive, bson.M{
		"status":    models.StatusCompleted,
		"endDate":   at,
		"updatedAt": time.Now().UTC(),
	})
}

func (r *AdministrationRepository) markTransition(ctx context.Context, id primitive.ObjectID, from models.AdministrationStatus, set bson.M) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("transition administration: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("administration %s not in status %s: %w", id.Hex(), from, models.ErrNotFound)
	}
	return nil
}

// ClaimStockRestore flips stockRestored exactly once. The false-to-true
// compare-and-set is what makes the ledger credit at-most-once across the
// reject and delete paths.
func (r *AdministrationRepository) ClaimStockRestore(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "stockRestored": false},
		bson.M{"$set": bson.M{"stockRestored": true, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("claim stock restore: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// UpdateMutable patches the caller-editable fields only.
func (r *AdministrationRepository) UpdateMutable(ctx context.Context, id primitive.ObjectID, req models.UpdateAdministrationRequest) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if req.Notes != nil {
		set["notes"] = *req.Notes
	}
	if req.GroupName != nil {
		set["groupName"] = *req.GroupName
	}
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update administration: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("administration %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}

// SetEmailError records a side-effect delivery failure on the record.
func (r *AdministrationRepository) SetEmailError(ctx context.Context, id primitive.ObjectID, message string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"emailError": message, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("set email error: %w", err)
	}
	return nil
}

// Delete removes a record. Callers enforce the pending-only rule.
func (r *AdministrationRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete administration: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("administration %s: %w", id.Hex(), models.ErrNotFound)
	}
	return nil
}
