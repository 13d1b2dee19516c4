package analytics

import (
	"errors"
	"fmt"
	"strings"

	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/reasoning"
)

// ErrInsufficientData marks a question the selected data cannot support
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError names the metric and the columns it is missing
type InsufficientDataError struct {
	Metric  string
	Missing []string
}

func (e *InsufficientDataError) Error() string {
	if e.Metric == "" {
		return fmt.Sprintf("%v: missing %s", ErrInsufficientData, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%v: %s needs %s", ErrInsufficientData, e.Metric, strings.Join(e.Missing, ", "))
}

func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}

// columnGroup is satisfied by any column whose normalized name contains one of the aliases
type columnGroup struct {
	label   string
	aliases []string
}

type metricRequirement struct {
	metric   string
	triggers []string
	// direct columns make the metric answerable on their own
	direct []string
	needs  []columnGroup
}

var (
	costGroup    = columnGroup{label: "cost", aliases: []string{"cost", "cogs", "expense"}}
	revenueGroup = columnGroup{label: "price or revenue", aliases: []string{"price", "revenue", "sale", "amount", "total"}}
	ordersGroup  = columnGroup{label: "orders", aliases: []string{"order", "conversion", "purchase", "transaction"}}
	trafficGroup = columnGroup{label: "visits or sessions", aliases: []string{"visit", "session", "traffic", "click", "pageview"}}
)

var metricRequirements = []metricRequirement{
	{
		metric:   "profit margin",
		triggers: []string{"profit", "margin"},
		direct:   []string{"profit", "margin"},
		needs:    []columnGroup{costGroup, revenueGroup},
	},
	{
		metric:   "conversion rate",
		triggers: []string{"conversion rate", "convert", "conversion"},
		direct:   []string{"conversionrate"},
		needs:    []columnGroup{trafficGroup, ordersGroup},
	},
	{
		metric:   "average order value",
		triggers: []string{"average order value", " aov "},
		direct:   []string{"aov", "averageordervalue"},
		needs:    []columnGroup{{label: "order id", aliases: []string{"order"}}, revenueGroup},
	},
	{
		metric:   "churn rate",
		triggers: []string{"churn", "retention"},
		direct:   []string{"churn", "retention"},
		needs: []columnGroup{
			{label: "customer", aliases: []string{"customer", "user", "subscriber", "client"}},
			{label: "cancellation date", aliases: []string{"cancel", "churn", "enddate", "endedat"}},
		},
	},
	{
		metric:   "inventory turnover",
		triggers: []string{"inventory turnover", "stock turnover", "turnover"},
		direct:   []string{"turnover"},
		needs:    []columnGroup{costGroup, {label: "inventory", aliases: []string{"inventory", "stock"}}},
	},
}

// CheckRequirements returns an *InsufficientDataError when the question asks
// for a known metric whose inputs are absent from every selected source
func CheckRequirements(question string, sources []reasoning.SourceContext) error {
	q := " " + strings.ToLower(question) + " "
	names := normalizedColumns(sources)

	for _, req := range metricRequirements {
		if !containsAnyWord(q, req.triggers) {
			continue
		}
		if anyColumnContains(names, req.direct) {
			return nil
		}
		var missing []string
		for _, g := range req.needs {
			if !anyColumnContains(names, g.aliases) {
				missing = append(missing, g.label)
			}
		}
		if len(missing) > 0 {
			return &InsufficientDataError{Metric: req.metric, Missing: missing}
		}
		return nil
	}
	return nil
}

func normalizedColumns(sources []reasoning.SourceContext) []string {
	var names []string
	for _, s := range sources {
		for _, c := range s.Columns {
			names = append(names, correlation.NormalizeName(c.Name))
		}
	}
	return names
}

func anyColumnContains(names, aliases []string) bool {
	for _, n := range names {
		for _, a := range aliases {
			if strings.Contains(n, a) {
				return true
			}
		}
	}
	return false
}

func containsAnyWord(q string, words []string) bool {
	for _, w := range words {
		if strings.Contains(q, w) {
			return true
		}
	}
	return false
}
