package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CommissionEntry is one payout received by a user. DistributionID ties the entry to
// the distribution that produced it, so a repeated distribution never pays twice.
type CommissionEntry struct {
	Amount         int64              `bson:"amount" json:"amount"`
	UserID         primitive.ObjectID `bson:"userId" json:"userId"` // user whose activation generated it
	DistributionID string             `bson:"distributionId,omitempty" json:"distributionId,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// CommissionRecord is a ledger entry joined with its source user.
type CommissionRecord struct {
	Amount                 int64     `bson:"amount" json:"amount"`
	SourceUserName         string    `bson:"sourceUserName" json:"sourceUserName"`
	SourceUserLatestRoleID string    `bson:"sourceUserLatestRoleId" json:"sourceUserLatestRoleId"`
	DistributionID         string    `bson:"distributionId,omitempty" json:"distributionId,omitempty"`
	CreatedAt              time.Time `bson:"createdAt" json:"createdAt"`
}

// Fallbacks used when the source user of a ledger entry no longer resolves.
const (
	DeletedUserName = "A Deleted User"
	UnknownRoleID   = "N/A"
)

// PayoutKind tells where in a distribution a payout came from.
type PayoutKind string

const (
	PayoutChain     PayoutKind = "chain"
	PayoutCohort    PayoutKind = "cohort"
	PayoutRemainder PayoutKind = "remainder"
)

// PayoutEvent is pushed to a recipient when a payout lands.
type PayoutEvent struct {
	Amount         int64              `json:"amount"`
	Kind           PayoutKind         `json:"kind"`
	SourceUserID   primitive.ObjectID `json:"sourceUserId"`
	DistributionID string             `json:"distributionId"`
}

// PlannedPayout is one credit fixed when a distribution is planned.
type PlannedPayout struct {
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Role   Role               `bson:"role" json:"role"`
	Amount int64              `bson:"amount" json:"amount"`
	Kind   PayoutKind         `bson:"kind" json:"kind"`
}

// DistributionPlan lists every credit of a distribution before any of them is written.
// Replaying a stored plan pays the same recipients the same amounts, whatever happened
// to the referral tree in between.
type DistributionPlan struct {
	DistributionID string             `bson:"distributionId" json:"distributionId"`
	SourceUserID   primitive.ObjectID `bson:"sourceUserId" json:"sourceUserId"`
	StartRoleID    string             `bson:"startRoleId" json:"startRoleId"`
	Payouts        []PlannedPayout    `bson:"payouts" json:"payouts"`
	ChainStop      string             `bson:"chainStop" json:"chainStop"`
	SkippedCohort  int                `bson:"skippedCohort,omitempty" json:"skippedCohort,omitempty"`
	SinkMissing    bool               `bson:"sinkMissing,omitempty" json:"sinkMissing,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// Total is the sum of the planned credits.
func (p *DistributionPlan) Total() int64 {
	var total int64
	for _, payout := range p.Payouts {
		total += payout.Amount
	}
	return total
}
