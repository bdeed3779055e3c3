package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the coarse access level of an authenticated caller.
type Role string

const (
	RoleFarmer       Role = "farmer"
	RoleVeterinarian Role = "veterinarian"
	RoleRegulator    Role = "regulator"
)

// User is an account able to authenticate against the API. Tokens are
// provisioned out of band.
type User struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name          string              `bson:"name" json:"name"`
	Email         string              `bson:"email" json:"email"`
	Role          Role                `bson:"role" json:"role"`
	AssignedVetID *primitive.ObjectID `bson:"assignedVetId,omitempty" json:"assignedVetId,omitempty"`
	APIToken      string              `bson:"apiToken" json:"-"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
}

// Identity is the resolved caller passed into every workflow operation. It is
// built once by the authentication middleware; services never infer roles
// from request shape.
type Identity struct {
	ID    primitive.ObjectID
	Role  Role
	Name  string
	Email string
}
