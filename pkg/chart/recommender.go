package chart

import (
	"context"
	"strings"

	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/reasoning"
	"euno-analytics-be/pkg/schema"
)

type Type string

const (
	TypeLine Type = "line"
	TypeBar  Type = "bar"
	TypePie  Type = "pie"
	TypeArea Type = "area"
)

func (t Type) Valid() bool {
	switch t {
	case TypeLine, TypeBar, TypePie, TypeArea:
		return true
	}
	return false
}

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Spec is a chart decision plus, once shaped, its data points
type Spec struct {
	Type       Type    `json:"type"`
	XAxis      string  `json:"x_axis"`
	YAxis      string  `json:"y_axis"`
	Reasoning  string  `json:"reasoning"`
	Confidence string  `json:"confidence"`
	Fallback   bool    `json:"fallback"`
	Data       []Point `json:"data,omitempty"`
}

type Point struct {
	X interface{} `json:"x"`
	Y float64     `json:"y"`
}

const (
	pieMaxCategories = 8
	promptSampleRows = 5
)

var (
	trendWords      = []string{"trend", "over time", "growth", "grow", "timeline", "monthly", "weekly", "daily", "yearly", "per month", "per week", "per day", "by month", "by week", "by day", "by year", "history", "evolution", "forecast"}
	breakdownWords  = []string{"breakdown", "share", "percentage", "percent", "proportion", "distribution", "split", "composition", "portion", "% of"}
	comparisonWords = []string{"compare", "comparison", "versus", " vs", "top", "bottom", "rank", "best", "worst", "highest", "lowest", "most", "least"}
)

// Recommender picks a chart for a result set. The reasoning service is asked
// first; any failure or unusable reply falls through to keyword heuristics.
type Recommender struct {
	reasoner reasoning.Reasoner
	logger   logger.ILogger
}

func NewRecommender(r reasoning.Reasoner, log logger.ILogger) *Recommender {
	return &Recommender{reasoner: r, logger: log}
}

// Recommend returns false when the data cannot be charted at all
func (r *Recommender) Recommend(ctx context.Context, question string, rs schema.ResultSet) (Spec, bool) {
	cols := schema.Profile(rs)
	shape := schema.Assess(cols)
	if !shape.Chartable {
		r.logger.Debug(logger.ModuleChart, "Result not chartable", map[string]interface{}{
			"columns": schema.Names(cols),
		})
		return Spec{}, false
	}

	if r.reasoner != nil {
		out, err := r.reasoner.RecommendChart(ctx, reasoning.ChartRequest{
			Question: question,
			RowCount: len(rs.Rows),
			Columns:  cols,
			Sample:   rs.Head(promptSampleRows).Rows,
		})
		if err == nil {
			if spec, ok := validate(out, shape); ok {
				return spec, true
			}
			r.logger.Warn(logger.ModuleChart, "Discarded chart recommendation", map[string]interface{}{
				"type": out.Type, "x_axis": out.XAxis, "y_axis": out.YAxis,
			})
		} else {
			r.logger.Warn(logger.ModuleChart, "Chart reasoning failed, using fallback", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return Fallback(question, rs, shape), true
}

// validate accepts a reasoned recommendation only when its axes exist
// and have the right kind
func validate(out reasoning.ChartOutput, shape schema.Chartability) (Spec, bool) {
	t := Type(out.Type)
	if !t.Valid() || !contains(shape.Dimensions, out.XAxis) || !contains(shape.Numeric, out.YAxis) {
		return Spec{}, false
	}
	confidence := out.Confidence
	switch confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		confidence = ConfidenceMedium
	}
	return Spec{
		Type:       t,
		XAxis:      out.XAxis,
		YAxis:      out.YAxis,
		Reasoning:  out.Reasoning,
		Confidence: confidence,
	}, true
}

// Fallback is the deterministic keyword rule set. It depends only on the
// question text and the result set.
func Fallback(question string, rs schema.ResultSet, shape schema.Chartability) Spec {
	q := " " + strings.ToLower(question) + " "
	spec := Spec{
		XAxis:      shape.Dimensions[0],
		YAxis:      shape.Numeric[0],
		Confidence: ConfidenceLow,
		Fallback:   true,
	}

	switch {
	case containsAny(q, trendWords):
		spec.Type = TypeLine
		spec.Reasoning = "Fallback heuristic: the question asks about change over time, so a line chart is used."
	case containsAny(q, breakdownWords):
		if len(rs.Rows) <= pieMaxCategories {
			spec.Type = TypePie
			spec.Reasoning = "Fallback heuristic: the question asks for a breakdown across few categories, so a pie chart is used."
		} else {
			spec.Type = TypeBar
			spec.Reasoning = "Fallback heuristic: the question asks for a breakdown across many categories, so a bar chart is used."
		}
	case containsAny(q, comparisonWords):
		spec.Type = TypeBar
		spec.Reasoning = "Fallback heuristic: the question compares or ranks values, so a bar chart is used."
	default:
		spec.Type = TypeBar
		spec.Reasoning = "Fallback heuristic: no specific pattern detected, defaulting to a bar chart."
	}
	return spec
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
