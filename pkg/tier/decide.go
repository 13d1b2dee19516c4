package tier

import (
	"fmt"
	"math"
	"time"
)

// UsageState is the per-user counter record. Rollover is lazy: nothing
// resets it in the background, Decide and Record compute it from timestamps.
type UsageState struct {
	QueryCountInWindow int         `json:"query_count_in_window"`
	WindowStartedAt    time.Time   `json:"window_started_at"`
	RecentRequests     []time.Time `json:"recent_requests,omitempty"`
}

type Reason string

const (
	ReasonRateLimited      Reason = "rate_limited"
	ReasonFeatureNotInTier Reason = "feature_not_in_tier"
	ReasonNoDataSource     Reason = "no_data_source"
)

type Decision struct {
	Allowed           bool
	Reason            Reason
	RetryAfterSeconds int
	// Remaining is the quota left once this request is admitted, Unlimited when uncapped
	Remaining int
	// AdmittedAt is set on admitted queries; Refund needs it
	AdmittedAt time.Time
}

// Denial is the error form of a negative decision
type Denial struct {
	Reason            Reason
	RetryAfterSeconds int
}

func (d *Denial) Error() string {
	if d.RetryAfterSeconds > 0 {
		return fmt.Sprintf("request denied: %s (retry after %ds)", d.Reason, d.RetryAfterSeconds)
	}
	return fmt.Sprintf("request denied: %s", d.Reason)
}

// Err returns nil for an admitted decision and a *Denial otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &Denial{Reason: d.Reason, RetryAfterSeconds: d.RetryAfterSeconds}
}

func Deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Decide is a pure admission check. It never mutates usage.
func Decide(p Policy, usage UsageState, action Action, now time.Time) Decision {
	if action != ActionQuery {
		if p.Allows(action) {
			return Decision{Allowed: true, Remaining: Unlimited}
		}
		return Deny(ReasonFeatureNotInTier)
	}

	if p.spamGuard() {
		window := time.Duration(p.SpamGuardWindowSeconds) * time.Second
		recent := recentWithin(usage.RecentRequests, now, window)
		if len(recent) >= p.SpamGuardRequests {
			// the slot frees up when the oldest request in the window ages out
			oldest := recent[len(recent)-p.SpamGuardRequests]
			return Decision{
				Reason:            ReasonRateLimited,
				RetryAfterSeconds: ceilSeconds(oldest.Add(window).Sub(now)),
			}
		}
	}

	if !p.fixedWindow() {
		return Decision{Allowed: true, Remaining: Unlimited}
	}

	count, started := rollover(p, usage, now)
	if count >= p.MaxQueriesPerWindow {
		reset := started.Add(time.Duration(p.WindowLengthSeconds) * time.Second)
		return Decision{
			Reason:            ReasonRateLimited,
			RetryAfterSeconds: ceilSeconds(reset.Sub(now)),
		}
	}
	return Decision{Allowed: true, Remaining: p.MaxQueriesPerWindow - count - 1}
}

// Record returns usage after one admitted query
func Record(p Policy, usage UsageState, now time.Time) UsageState {
	next := UsageState{}
	next.QueryCountInWindow, next.WindowStartedAt = rollover(p, usage, now)
	next.QueryCountInWindow++

	if p.spamGuard() {
		window := time.Duration(p.SpamGuardWindowSeconds) * time.Second
		recent := recentWithin(usage.RecentRequests, now, window)
		next.RecentRequests = append(append([]time.Time{}, recent...), now)
	}
	return next
}

// Unrecord takes back one query recorded at the given time. Once that
// query's window has rolled over there is nothing to give back.
func Unrecord(p Policy, usage UsageState, at, now time.Time) UsageState {
	next := usage
	if p.fixedWindow() {
		count, started := rollover(p, usage, now)
		if count > 0 && !at.Before(started) {
			next.QueryCountInWindow = count - 1
			next.WindowStartedAt = started
		}
	}
	if p.spamGuard() {
		for i := len(usage.RecentRequests) - 1; i >= 0; i-- {
			if usage.RecentRequests[i].Equal(at) {
				next.RecentRequests = append(append([]time.Time{}, usage.RecentRequests[:i]...), usage.RecentRequests[i+1:]...)
				break
			}
		}
	}
	return next
}

// Remaining reports the quota left in the current window without admitting anything
func Remaining(p Policy, usage UsageState, now time.Time) int {
	if !p.fixedWindow() {
		return Unlimited
	}
	count, _ := rollover(p, usage, now)
	if left := p.MaxQueriesPerWindow - count; left > 0 {
		return left
	}
	return 0
}

// WindowResetsAt is when the current fixed window closes; zero when no window is running
func WindowResetsAt(p Policy, usage UsageState, now time.Time) time.Time {
	if !p.fixedWindow() {
		return time.Time{}
	}
	count, started := rollover(p, usage, now)
	if count == 0 {
		return time.Time{}
	}
	return started.Add(time.Duration(p.WindowLengthSeconds) * time.Second)
}

func rollover(p Policy, usage UsageState, now time.Time) (int, time.Time) {
	if usage.WindowStartedAt.IsZero() {
		return 0, now
	}
	end := usage.WindowStartedAt.Add(time.Duration(p.WindowLengthSeconds) * time.Second)
	if !now.Before(end) {
		return 0, now
	}
	return usage.QueryCountInWindow, usage.WindowStartedAt
}

// recentWithin keeps timestamps in (now-window, now], oldest first
func recentWithin(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := make([]time.Time, 0, len(ts))
	for _, t := range ts {
		if t.After(cutoff) && !t.After(now) {
			out = append(out, t)
		}
	}
	return out
}

func ceilSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
