package tier

import "fmt"

type Tier string

const (
	Starter      Tier = "starter"
	Professional Tier = "professional"
	Enterprise   Tier = "enterprise"
)

// Ordered lists tiers from least to most capable
var Ordered = []Tier{Starter, Professional, Enterprise}

func (t Tier) Valid() bool {
	for _, o := range Ordered {
		if o == t {
			return true
		}
	}
	return false
}

func (t Tier) rank() int {
	for i, o := range Ordered {
		if o == t {
			return i
		}
	}
	return -1
}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

type Action string

const (
	ActionQuery                Action = "query"
	ActionChart                Action = "chart"
	ActionForecast             Action = "forecast"
	ActionProactiveSuggestions Action = "proactive_suggestions"
	ActionExtendedThinking     Action = "extended_thinking"
)

// Unlimited disables a numeric cap
const Unlimited = -1

// Policy is the capability record for one tier
type Policy struct {
	MaxQueriesPerWindow       int  `yaml:"max_queries_per_window" json:"max_queries_per_window"`
	WindowLengthSeconds       int  `yaml:"window_length_seconds" json:"window_length_seconds"`
	SpamGuardRequests         int  `yaml:"spam_guard_requests" json:"spam_guard_requests"`
	SpamGuardWindowSeconds    int  `yaml:"spam_guard_window_seconds" json:"spam_guard_window_seconds"`
	MaxResponseWords          int  `yaml:"max_response_words" json:"max_response_words"`
	AllowCharts               bool `yaml:"allow_charts" json:"allow_charts"`
	AllowForecast             bool `yaml:"allow_forecast" json:"allow_forecast"`
	AllowProactiveSuggestions bool `yaml:"allow_proactive_suggestions" json:"allow_proactive_suggestions"`
	AllowExtendedThinking     bool `yaml:"allow_extended_thinking" json:"allow_extended_thinking"`
	MaxConcurrentDataSources  int  `yaml:"max_concurrent_data_sources" json:"max_concurrent_data_sources"`
}

// Allows reports whether a feature action is enabled. Queries are always
// enabled here; their volume is checked by Decide.
func (p Policy) Allows(action Action) bool {
	switch action {
	case ActionQuery:
		return true
	case ActionChart:
		return p.AllowCharts
	case ActionForecast:
		return p.AllowForecast
	case ActionProactiveSuggestions:
		return p.AllowProactiveSuggestions
	case ActionExtendedThinking:
		return p.AllowExtendedThinking
	}
	return false
}

func (p Policy) fixedWindow() bool {
	return p.MaxQueriesPerWindow != Unlimited && p.WindowLengthSeconds > 0
}

func (p Policy) spamGuard() bool {
	return p.SpamGuardRequests > 0 && p.SpamGuardWindowSeconds > 0
}

// Table maps every tier to its policy
type Table map[Tier]Policy

func DefaultPolicies() Table {
	return Table{
		Starter: {
			MaxQueriesPerWindow:      20,
			WindowLengthSeconds:      3600,
			MaxResponseWords:         80,
			MaxConcurrentDataSources: 1,
		},
		Professional: {
			MaxQueriesPerWindow:       120,
			WindowLengthSeconds:       3600,
			MaxResponseWords:          180,
			AllowCharts:               true,
			AllowProactiveSuggestions: true,
			AllowExtendedThinking:     true,
			MaxConcurrentDataSources:  3,
		},
		Enterprise: {
			MaxQueriesPerWindow:       Unlimited,
			WindowLengthSeconds:       3600,
			SpamGuardRequests:         60,
			SpamGuardWindowSeconds:    60,
			MaxResponseWords:          Unlimited,
			AllowCharts:               true,
			AllowForecast:             true,
			AllowProactiveSuggestions: true,
			AllowExtendedThinking:     true,
			MaxConcurrentDataSources:  10,
		},
	}
}

// Effective resolves the tier a user is served under. Lapsed subscriptions
// fall back to starter; unknown tiers are treated as starter.
func (t Table) Effective(tier Tier, status SubscriptionStatus) (Tier, Policy) {
	if status == StatusPastDue || status == StatusCanceled || !tier.Valid() {
		tier = Starter
	}
	return tier, t[tier]
}

// UpgradeTarget returns the least capable tier above current that allows the action
func (t Table) UpgradeTarget(current Tier, action Action) (Tier, bool) {
	for _, candidate := range Ordered {
		if candidate.rank() <= current.rank() {
			continue
		}
		if t[candidate].Allows(action) {
			return candidate, true
		}
	}
	return "", false
}

// UpgradeHint is a user-facing nudge for a feature the current tier lacks
func (t Table) UpgradeHint(current Tier, action Action) string {
	target, ok := t.UpgradeTarget(current, action)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s is available on the %s plan.", actionLabel(action), target)
}

func actionLabel(a Action) string {
	switch a {
	case ActionChart:
		return "Chart generation"
	case ActionForecast:
		return "Forecasting"
	case ActionProactiveSuggestions:
		return "Follow-up suggestions"
	case ActionExtendedThinking:
		return "Extended thinking"
	}
	return "This feature"
}
