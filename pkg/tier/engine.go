package tier

import (
	"context"
	"fmt"
	"time"

	"euno-analytics-be/internal/pkg/logger"
)

// Engine applies the policy table to live usage. Volume admission goes
// through the UsageStore so the check and the increment happen as one step.
type Engine struct {
	policies Table
	store    UsageStore
	logger   logger.ILogger
	now      func() time.Time
}

type EngineOption func(*Engine)

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(policies Table, store UsageStore, log logger.ILogger, opts ...EngineOption) *Engine {
	if policies == nil {
		policies = DefaultPolicies()
	}
	e := &Engine{
		policies: policies,
		store:    store,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Policies() Table {
	return e.policies
}

// Policy returns the tier and policy a subscription is served under
func (e *Engine) Policy(t Tier, status SubscriptionStatus) (Tier, Policy) {
	return e.policies.Effective(t, status)
}

// Decide evaluates an action against a usage snapshot without touching the store
func (e *Engine) Decide(t Tier, status SubscriptionStatus, usage UsageState, action Action, now time.Time) Decision {
	_, p := e.Policy(t, status)
	return Decide(p, usage, action, now)
}

// Admit checks an action for a user. Queries are counted atomically; a
// denied query is not persisted, so denials never consume quota.
func (e *Engine) Admit(ctx context.Context, userID string, t Tier, status SubscriptionStatus, action Action) (Decision, error) {
	effective, p := e.Policy(t, status)
	now := e.now()

	if action != ActionQuery {
		return Decide(p, UsageState{}, action, now), nil
	}

	var decision Decision
	_, err := e.store.Apply(ctx, userID, func(current UsageState) (UsageState, bool) {
		decision = Decide(p, current, ActionQuery, now)
		if !decision.Allowed {
			return current, false
		}
		return Record(p, current, now), true
	})
	if err != nil {
		return Decision{}, fmt.Errorf("admit query: %w", err)
	}
	if decision.Allowed {
		decision.AdmittedAt = now
	}

	if !decision.Allowed {
		e.logger.Info(logger.ModuleAdmission, "Query denied", map[string]interface{}{
			"user_id":     userID,
			"tier":        effective,
			"reason":      decision.Reason,
			"retry_after": decision.RetryAfterSeconds,
		})
	}
	return decision, nil
}

// Refund gives back a query admitted at admittedAt, for turns that failed
// after admission
func (e *Engine) Refund(ctx context.Context, userID string, t Tier, status SubscriptionStatus, admittedAt time.Time) error {
	_, p := e.Policy(t, status)
	now := e.now()
	_, err := e.store.Apply(ctx, userID, func(current UsageState) (UsageState, bool) {
		return Unrecord(p, current, admittedAt, now), true
	})
	if err != nil {
		return fmt.Errorf("refund query: %w", err)
	}
	return nil
}

// Quota is a read-only view of a user's standing in the current window
type Quota struct {
	Tier      Tier
	Limit     int
	Used      int
	Remaining int
	ResetsAt  time.Time
	Policy    Policy
}

func (e *Engine) Quota(ctx context.Context, userID string, t Tier, status SubscriptionStatus) (Quota, error) {
	effective, p := e.Policy(t, status)
	usage, err := e.store.Peek(ctx, userID)
	if err != nil {
		return Quota{}, fmt.Errorf("read quota: %w", err)
	}
	now := e.now()

	q := Quota{
		Tier:      effective,
		Limit:     p.MaxQueriesPerWindow,
		Remaining: Remaining(p, usage, now),
		ResetsAt:  WindowResetsAt(p, usage, now),
		Policy:    p,
	}
	if q.Remaining != Unlimited {
		q.Used = p.MaxQueriesPerWindow - q.Remaining
	}
	return q, nil
}
