package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mamadbah2/amutrack/internal/domain/models"
)

// UserRepository persists accounts and backs the auth middleware's token
// resolution.
type UserRepository struct {
	coll *mongo.Collection
}

// GetByID fetches one user.
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", id.Hex(), models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// ResolveToken maps an opaque bearer token to a caller identity.
func (r *UserRepository) ResolveToken(ctx context.Context, token string) (*models.Identity, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"apiToken": token}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("token: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	return &models.Identity{ID: user.ID, Role: user.Role, Name: user.Name, Email: user.Email}, nil
}

// FarmersForVet lists the farmers supervised by a veterinarian.
func (r *UserRepository) FarmersForVet(ctx context.Context, vetID primitive.ObjectID) ([]models.User, error) {
	cur, err := r.coll.Find(ctx, bson.M{"role": models.RoleFarmer, "assignedVetId": vetID})
	if err != nil {
		return nil, fmt.Errorf("find farmers for vet: %w", err)
	}
	var farmers []models.User
	if err := cur.All(ctx, &farmers); err != nil {
		return nil, fmt.Errorf("decode farmers: %w", err)
	}
	return farmers, nil
}
