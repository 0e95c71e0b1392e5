package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Request status values shared by withdrawals and limit extensions
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

type Withdrawal struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	Amount          int64               `bson:"amount" json:"amount"`
	Status          string              `bson:"status" json:"status"` // e.g., "pending", "approved", "rejected"
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	ProcessedAt     *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	AdminID         *primitive.ObjectID `bson:"adminId,omitempty" json:"adminId,omitempty"`
	AdminNote       string              `bson:"adminNote,omitempty" json:"adminNote,omitempty"`
	UserNote        string              `bson:"userNote,omitempty" json:"userNote,omitempty"`
	RejectionReason string              `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
}

type WithdrawalRequest struct {
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	UserNote string `json:"userNote,omitempty"`
}

// DecisionRequest approves or rejects a pending withdrawal or extension.
type DecisionRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// Decision is what the store records when a request leaves the pending state.
type Decision struct {
	Status          string
	AdminID         *primitive.ObjectID
	AdminNote       string
	RejectionReason string
	At              time.Time
}
