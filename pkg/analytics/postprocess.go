package analytics

import (
	"fmt"
	"math"
	"strings"

	"euno-analytics-be/pkg/reasoning"
	"euno-analytics-be/pkg/schema"
	"euno-analytics-be/pkg/tier"
)

const (
	LevelHigh   = "high"
	LevelMedium = "medium"
	LevelLow    = "low"

	highThreshold = 0.7
	lowThreshold  = 0.4

	// below this many rows an answer cannot be high confidence
	smallSampleRows = 10
	maxFollowUps    = 3
)

// Level buckets a confidence score
func Level(c float64) string {
	switch {
	case c >= highThreshold:
		return LevelHigh
	case c >= lowThreshold:
		return LevelMedium
	default:
		return LevelLow
	}
}

// calibrate clamps the model's score and caps it when the data is thin.
// It returns the adjusted score and the reasons for any reduction.
func calibrate(raw float64, reason string, sources []reasoning.SourceContext) (float64, []string) {
	c := math.Max(0, math.Min(1, raw))
	var reasons []string
	if strings.TrimSpace(reason) != "" {
		reasons = append(reasons, strings.TrimSpace(reason))
	}

	rows := 0
	for _, s := range sources {
		rows += s.RowCount
	}
	if rows < smallSampleRows && c >= highThreshold {
		c = highThreshold - 0.01
		reasons = append(reasons, fmt.Sprintf("based on a small sample of %d rows", rows))
	}
	return c, reasons
}

// WordTarget turns the tier cap and the user's preference into a soft word target.
// Zero means no target.
func WordTarget(p tier.Policy, preference string) int {
	target := p.MaxResponseWords
	if target == tier.Unlimited || target <= 0 {
		target = 0
	}
	if preference == "short" {
		if target == 0 {
			return 60
		}
		return int(math.Max(20, float64(target/2)))
	}
	return target
}

// truncateWords is the fallback when a reply overshoots its target. It cuts
// at the last sentence end inside the budget, or mid-sentence with an ellipsis.
func truncateWords(text string, max int) (string, bool) {
	words := strings.Fields(text)
	if max <= 0 || len(words) <= max {
		return text, false
	}
	cut := strings.Join(words[:max], " ")
	if i := strings.LastIndexAny(cut, ".!?"); i >= len(cut)/2 {
		return cut[:i+1], true
	}
	return strings.TrimRight(cut, ",;: ") + "…", true
}

var genericFollowUps = []string{"anything", "ask me", "any other question", "let me know", "more questions", "help you with"}

// filterFollowUps keeps concrete suggestions that reference the dataset,
// then tops up from schema-derived suggestions
func filterFollowUps(candidates []string, question string, sources []reasoning.SourceContext) []string {
	var out []string
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(question)): true}

	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] || len(out) >= maxFollowUps {
			return
		}
		seen[key] = true
		out = append(out, s)
	}

	for _, c := range candidates {
		lc := " " + strings.ToLower(c) + " "
		if containsAnyWord(lc, genericFollowUps) || !mentionsColumn(c, sources) {
			continue
		}
		add(c)
	}
	for _, s := range schemaFollowUps(sources) {
		add(s)
	}
	return out
}

// schemaFollowUps derives questions that the selected columns can answer
func schemaFollowUps(sources []reasoning.SourceContext) []string {
	var out []string
	for _, s := range sources {
		c := schema.Assess(s.Columns)
		if len(c.Numeric) == 0 {
			continue
		}
		measure := c.Numeric[0]
		var temporal, category string
		for _, col := range s.Columns {
			if col.Type == schema.TypeTemporal && temporal == "" {
				temporal = col.Name
			}
			if col.Type == schema.TypeCategorical && category == "" {
				category = col.Name
			}
		}
		if category != "" {
			out = append(out, fmt.Sprintf("Which %s has the highest %s?", category, measure))
		}
		if temporal != "" {
			out = append(out, fmt.Sprintf("How does %s change over %s?", measure, temporal))
		}
		if category != "" {
			out = append(out, fmt.Sprintf("What is the average %s per %s?", measure, category))
		}
		if len(c.Numeric) > 1 {
			out = append(out, fmt.Sprintf("How does %s relate to %s?", measure, c.Numeric[1]))
		}
	}
	return out
}

func columnList(sources []reasoning.SourceContext) string {
	var names []string
	for _, s := range sources {
		names = append(names, schema.Names(s.Columns)...)
	}
	return strings.Join(names, ", ")
}
