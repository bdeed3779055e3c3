package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// AnimalRepository persists animals and their residue flags.
type AnimalRepository struct {
	coll *mongo.Collection
}

// FindByTagIDs returns the owner's animals matching the given tags. A missing
// tag is the caller's problem to detect via the result length.
func (r *AnimalRepository) FindByTagIDs(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string) ([]models.Animal, error) {
	cur, err := r.coll.Find(ctx, bson.M{"farmerId": ownerID, "tagId": bson.M{"$in": tagIDs}})
	if err != nil {
		return nil, fmt.Errorf("find animals by tag: %w", err)
	}
	var animals []models.Animal
	if err := cur.All(ctx, &animals); err != nil {
		return nil, fmt.Errorf("decode animals: %w", err)
	}
	return animals, nil
}

// ClearNewFlag drops the "new" marker from the given animals. Idempotent.
func (r *AnimalRepository) ClearNewFlag(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"farmerId": ownerID, "tagId": bson.M{"$in": tagIDs}, "isNew": true},
		bson.M{"$set": bson.M{"isNew": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("clear new flag: %w", err)
	}
	return nil
}

// SetWithdrawal flags the animals as in withdrawal until end and links the
// administration that caused it.
func (r *AnimalRepository) SetWithdrawal(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string, end time.Time, administrationID primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"farmerId": ownerID, "tagId": bson.M{"$in": tagIDs}},
		bson.M{
			"$set":      bson.M{"inWithdrawal": true, "withdrawalEndDate": end, "updatedAt": time.Now().UTC()},
			"$addToSet": bson.M{"activeFeedAdministrations": administrationID},
		},
	)
	if err != nil {
		return fmt.Errorf("set withdrawal: %w", err)
	}
	return nil
}

// ClearWithdrawal unlinks an administration from the animals and, where the
// withdrawal period has elapsed, drops the flag.
func (r *AnimalRepository) ClearWithdrawal(ctx context.Context, ownerID primitive.ObjectID, tagIDs []string, administrationID primitive.ObjectID, now time.Time) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"farmerId": ownerID, "tagId": bson.M{"$in": tagIDs}},
		bson.M{"$pull": bson.M{"activeFeedAdministrations": administrationID}},
	)
	if err != nil {
		return fmt.Errorf("unlink administration: %w", err)
	}

	_, err = r.coll.UpdateMany(ctx,
		bson.M{
			"farmerId":          ownerID,
			"tagId":             bson.M{"$in": tagIDs},
			"inWithdrawal":      true,
			"withdrawalEndDate": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{"inWithdrawal": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("clear withdrawal: %w", err)
	}
	return nil
}

// ClearExpiredWithdrawals drops the withdrawal flag from every animal whose
// period has elapsed. Run periodically by the scheduler.
func (r *AnimalRepository) ClearExpiredWithdrawals(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"inWithdrawal": true, "withdrawalEndDate": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"inWithdrawal": false, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("clear expired withdrawals: %w", err)
	}
	return res.ModifiedCount, nil
}

// FindInWithdrawal lists the owner's animals currently under withdrawal.
func (r *AnimalRepository) FindInWithdrawal(ctx context.Context, ownerID primitive.ObjectID) ([]models.Animal, error) {
	cur, err := r.coll.Find(ctx, bson.M{"farmerId": ownerID, "inWithdrawal": true})
	if err != nil {
		return nil, fmt.Errorf("find animals in withdrawal: %w", err)
	}
	var animals []models.Animal
	if err := cur.All(ctx, &animals); err != nil {
		return nil, fmt.Errorf("decode animals: %w", err)
	}
	return animals, nil
}
