package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Extend is a request to raise a user's referral capacity.
type Extend struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	Status      string              `bson:"status" json:"status"`
	Reason      string              `bson:"reason,omitempty" json:"reason,omitempty"`
	AdminID     *primitive.ObjectID `bson:"adminId,omitempty" json:"adminId,omitempty"`
	AdminNote   string              `bson:"adminNote,omitempty" json:"adminNote,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	ProcessedAt *time.Time          `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

type ExtendRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalUsers         int64          `json:"totalUsers"`
	UsersByRole        map[Role]int64 `json:"usersByRole"`
	TotalIncome        int64          `json:"totalIncome"`
	PendingExtends     int64          `json:"pendingExtends"`
	PendingWithdrawals int64          `json:"pendingWithdrawals"`
}
