package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
)

// IDPair is the join identifier and the role identifier issued together.
type IDPair struct {
	JoinID string `json:"joinId"`
	RoleID string `json:"roleId"`
}

// IDGenerator builds identifiers of the form <prefix><DDMMYY><seq>. The sequence
// comes from a per-day counter that is incremented atomically, so concurrent callers
// never receive the same value.
type IDGenerator struct {
	seq    SequenceStore
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

func NewIDGenerator(seq SequenceStore, prefix string, logger *zap.Logger) *IDGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IDGenerator{seq: seq, prefix: prefix, now: time.Now, logger: logger}
}

// WithClock replaces the time source, mostly for tests.
func (g *IDGenerator) WithClock(now func() time.Time) *IDGenerator {
	g.now = now
	return g
}

// SequenceKey is the counter document used for the given day.
func SequenceKey(datePart string) string {
	return "user_sequence_" + datePart
}

// Generate issues a fresh {joinId, roleId} pair for role.
func (g *IDGenerator) Generate(ctx context.Context, role models.Role) (IDPair, error) {
	if !role.Valid() {
		return IDPair{}, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, role)
	}

	datePart := g.now().Format("020106")
	next, err := g.seq.Next(ctx, SequenceKey(datePart))
	if err != nil {
		g.logger.Error("sequence increment failed", zap.String("date", datePart), zap.Error(err))
		return IDPair{}, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	if next <= 0 {
		return IDPair{}, fmt.Errorf("%w: sequence returned %d", ErrGenerationFailure, next)
	}

	seqPart := fmt.Sprintf("%04d", next)
	ids := IDPair{
		JoinID: g.prefix + datePart + seqPart,
		RoleID: string(role) + datePart + seqPart,
	}
	g.logger.Debug("generated ids", zap.String("joinId", ids.JoinID), zap.String("roleId", ids.RoleID))
	return ids, nil
}
