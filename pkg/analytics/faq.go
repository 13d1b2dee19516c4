package analytics

import (
	"fmt"
	"strings"

	"euno-analytics-be/pkg/tier"
)

// describePlan renders a tier's limits from the policy table
func describePlan(t tier.Tier, p tier.Policy) string {
	var parts []string

	switch {
	case p.MaxQueriesPerWindow == tier.Unlimited && p.SpamGuardRequests > 0:
		parts = append(parts, fmt.Sprintf("unlimited questions (up to %d per %d seconds)", p.SpamGuardRequests, p.SpamGuardWindowSeconds))
	case p.MaxQueriesPerWindow == tier.Unlimited:
		parts = append(parts, "unlimited questions")
	default:
		parts = append(parts, fmt.Sprintf("%d questions per %s", p.MaxQueriesPerWindow, window(p.WindowLengthSeconds)))
	}

	if p.MaxResponseWords == tier.Unlimited {
		parts = append(parts, "answers of any length")
	} else {
		parts = append(parts, fmt.Sprintf("answers up to %d words", p.MaxResponseWords))
	}

	parts = append(parts,
		feature("charts", p.AllowCharts),
		feature("forecasting", p.AllowForecast),
		feature("follow-up suggestions", p.AllowProactiveSuggestions),
		feature("extended thinking", p.AllowExtendedThinking),
		fmt.Sprintf("up to %d data sources per question", p.MaxConcurrentDataSources),
	)
	return fmt.Sprintf("The %s plan includes %s.", t, strings.Join(parts, "; "))
}

func feature(name string, on bool) string {
	if on {
		return name + " included"
	}
	return name + " not included"
}

func window(seconds int) string {
	switch {
	case seconds == 3600:
		return "hour"
	case seconds == 86400:
		return "day"
	case seconds%3600 == 0:
		return fmt.Sprintf("%d hours", seconds/3600)
	case seconds%60 == 0:
		return fmt.Sprintf("%d minutes", seconds/60)
	}
	return fmt.Sprintf("%d seconds", seconds)
}

// productAnswer explains the user's current plan and what the next one adds
func productAnswer(table tier.Table, current tier.Tier) string {
	var b strings.Builder
	b.WriteString("You're on the ")
	b.WriteString(string(current))
	b.WriteString(" plan. ")
	b.WriteString(describePlan(current, table[current]))

	for _, t := range tier.Ordered {
		if t == current {
			continue
		}
		if tierAbove(t, current) {
			b.WriteString(" ")
			b.WriteString(describePlan(t, table[t]))
			break
		}
	}
	return b.String()
}

func tierAbove(t, current tier.Tier) bool {
	ti, ci := -1, -1
	for i, o := range tier.Ordered {
		if o == t {
			ti = i
		}
		if o == current {
			ci = i
		}
	}
	return ti > ci
}
