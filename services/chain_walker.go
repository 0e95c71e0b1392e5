package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/rmhse/rmhse_backend/models"
)

// StopReason explains why a chain walk ended.
type StopReason string

const (
	StopNone       StopReason = ""
	StopRoot       StopReason = "root"
	StopBroken     StopReason = "broken"
	StopLateral    StopReason = "lateral"
	StopCycle      StopReason = "cycle"
	StopCapReached StopReason = "cap"
	StopError      StopReason = "error"
	// StopTop is reported by the distributor after paying the highest tier.
	StopTop StopReason = "top"
	// StopConsumer is set when the caller stops pulling before the chain ends.
	StopConsumer StopReason = "consumer"
)

// ChainWalker resolves referredBy pointers upward toward the root.
type ChainWalker struct {
	store     UserStore
	hierarchy Hierarchy
	logger    *zap.Logger
}

func NewChainWalker(store UserStore, hierarchy Hierarchy, logger *zap.Logger) *ChainWalker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainWalker{store: store, hierarchy: hierarchy, logger: logger}
}

// Walk starts a lazy walk at startRoleID. The returned chain is consumed once.
func (w *ChainWalker) Walk(ctx context.Context, startRoleID string) *Chain {
	return &Chain{
		ctx:     ctx,
		walker:  w,
		next:    startRoleID,
		visited: make(map[primitive.ObjectID]struct{}),
	}
}

// Chain is a single-use iterator over the referrers of one starting point.
type Chain struct {
	ctx     context.Context
	walker  *ChainWalker
	next    string
	steps   int
	visited map[primitive.ObjectID]struct{}
	reason  StopReason
	err     error
}

// Next resolves the following referrer. It returns false once the walk has stopped;
// Reason and Err tell why.
func (c *Chain) Next() (*models.User, bool) {
	if c.reason != StopNone {
		return nil, false
	}
	w := c.walker

	if w.hierarchy.IsRoot(c.next) {
		return c.stop(StopRoot)
	}
	if c.steps >= w.hierarchy.MaxChainDepth {
		w.logger.Warn("referral chain exceeded max depth, treating as broken",
			zap.String("roleId", c.next), zap.Int("depth", c.steps))
		return c.stop(StopCapReached)
	}
	if err := c.ctx.Err(); err != nil {
		c.err = err
		return c.stop(StopError)
	}

	user, err := w.store.FindByRoleIDInHistory(c.ctx, c.next)
	if err != nil {
		c.err = err
		return c.stop(StopError)
	}
	c.steps++
	if user == nil {
		w.logger.Warn("referrer not found, stopping chain", zap.String("roleId", c.next))
		return c.stop(StopBroken)
	}
	if _, seen := c.visited[user.ID]; seen {
		w.logger.Warn("referral chain loops back, stopping",
			zap.String("roleId", c.next), zap.String("userId", user.ID.Hex()))
		return c.stop(StopCycle)
	}
	c.visited[user.ID] = struct{}{}

	// Cohort members are paid through the flat-rate pass, not the chain.
	if user.Role == w.hierarchy.CohortRole {
		w.logger.Debug("reached cohort member, halting chain", zap.String("userId", user.ID.Hex()))
		return c.stop(StopLateral)
	}

	c.next = user.ReferredBy
	return user, true
}

// Close marks the chain as abandoned by the consumer.
func (c *Chain) Close() {
	if c.reason == StopNone {
		c.reason = StopConsumer
	}
}

// Reason is why the walk ended, or StopNone while it is still running.
func (c *Chain) Reason() StopReason { return c.reason }

// Err is the store or context error that ended the walk, if any.
func (c *Chain) Err() error { return c.err }

// Depth is the number of links resolved so far.
func (c *Chain) Depth() int { return c.steps }

func (c *Chain) stop(reason StopReason) (*models.User, bool) {
	c.reason = reason
	return nil, false
}
