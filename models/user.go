// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a rung of the membership ladder or one of the lateral cohorts.
type Role string

const (
	RoleMember      Role = "MEM"
	RoleDivisional  Role = "DIV"
	RoleDistributor Role = "DIST"
	RoleState       Role = "STAT"
	RoleBM          Role = "BM"
	RoleAdmin       Role = "admin"
)

// Roles lists every role tag accepted at the boundary.
var Roles = []Role{RoleMember, RoleDivisional, RoleDistributor, RoleState, RoleBM, RoleAdmin}

// Valid reports whether r is one of the known role tags.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Account status values
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// Payment status values
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
)

// RootReferrer is stored in referredBy when a user has no upstream referrer.
const RootReferrer = "ADMIN001"

// User model
type User struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Email          string             `json:"email" bson:"email"`
	Password       string             `json:"-" bson:"password"`
	PhoneNumber    string             `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Role           Role               `json:"role,omitempty" bson:"role,omitempty"`
	JoinID         string             `json:"joinId,omitempty" bson:"joinId,omitempty"`
	RoleIDs        []string           `json:"roleId" bson:"roleId"`
	ReferredBy     string             `json:"referredBy,omitempty" bson:"referredBy,omitempty"`
	Income         int64              `json:"income" bson:"income"`
	Commission     []CommissionEntry  `json:"commission,omitempty" bson:"commission"`
	Limit          int                `json:"limit" bson:"limit"`
	Status         string             `json:"status" bson:"status"` // "pending", "active"
	PaymentStatus  string             `json:"paymentStatus" bson:"paymentStatus"`
	// ActivationPlan is fixed before the first activation payout and replayed on retry.
	ActivationPlan *DistributionPlan  `json:"-" bson:"activationPlan,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// LatestRoleID returns the user's current addressable role identifier.
func (u *User) LatestRoleID() string {
	if len(u.RoleIDs) == 0 {
		return ""
	}
	return u.RoleIDs[len(u.RoleIDs)-1]
}

// HasRoleID reports whether id was ever assigned to the user.
func (u *User) HasRoleID(id string) bool {
	for _, roleID := range u.RoleIDs {
		if roleID == id {
			return true
		}
	}
	return false
}

// EffectiveLimit returns the user's referral capacity, falling back to def when unset.
func (u *User) EffectiveLimit(def int) int {
	if u.Limit <= 0 {
		return def
	}
	return u.Limit
}

// ActivateParams carries the fields written when a pending user becomes active.
type ActivateParams struct {
	Role       Role
	ReferredBy string
	JoinID     string
	NewRoleID  string
}

// PromoteParams carries the fields written by a role upgrade. FromRole guards the
// write so a concurrent upgrade of the same user cannot skip a tier.
type PromoteParams struct {
	FromRole   Role
	Role       Role
	ReferredBy string
	NewRoleID  string
}

// ReferredUser is the downline projection returned to a referrer.
type ReferredUser struct {
	ID           primitive.ObjectID `json:"id" bson:"_id"`
	Name         string             `json:"name" bson:"name"`
	PhoneNumber  string             `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Status       string             `json:"status" bson:"status"`
	Role         Role               `json:"role,omitempty" bson:"role,omitempty"`
	LatestRoleID string             `json:"latestRoleId" bson:"latestRoleId"`
	Income       int64              `json:"income" bson:"income"`
}

// SignupRequest creates a pending member awaiting payment.
type SignupRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Password    string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// ActivationRequest is sent once the payment gateway has confirmed the order.
type ActivationRequest struct {
	ReferredBy      string `json:"referredBy"`
	PaymentVerified bool   `json:"paymentVerified"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
