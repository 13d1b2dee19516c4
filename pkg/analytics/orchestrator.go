package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/reasoning"
	"euno-analytics-be/pkg/tier"
)

// Request is everything the orchestrator needs for one turn. Admission has
// already happened; Policy only shapes the answer.
type Request struct {
	Question         string
	Sources          []reasoning.SourceContext
	JoinKeys         []correlation.Key
	History          []reasoning.Turn
	Tier             tier.Tier
	Policy           tier.Policy
	LengthPreference string
	ExtendedThinking bool // already gated by the tier
}

type Answer struct {
	Text             string
	Confidence       float64
	ConfidenceLevel  string
	ConfidenceReason string
	FollowUps        []string
	Intent           reasoning.Intent
	MissingColumns   []string
	ChartWarranted   bool
	Degraded         bool
	Truncated        bool
	UpgradeHints     []string
}

const (
	degradedText     = "I couldn't analyze your data right now. Please try again in a moment."
	degradedReason   = "the analysis service did not respond"
	separateAnalysis = "These datasets share no common columns, so each one was analyzed separately."
)

type Orchestrator struct {
	reasoner reasoning.Reasoner
	policies tier.Table
	logger   logger.ILogger
}

func NewOrchestrator(r reasoning.Reasoner, policies tier.Table, log logger.ILogger) *Orchestrator {
	if policies == nil {
		policies = tier.DefaultPolicies()
	}
	return &Orchestrator{reasoner: r, policies: policies, logger: log}
}

// Answer always produces a response. Reasoning failures become a degraded
// answer; nothing from the transport reaches the text.
func (o *Orchestrator) Answer(ctx context.Context, req Request) Answer {
	intent, classification := o.classify(ctx, req)

	var ans Answer
	switch intent {
	case IntentProductFAQ:
		ans = Answer{Text: productAnswer(o.policies, req.Tier), Confidence: 0.95}
	case reasoning.IntentOffTopic:
		ans = o.offTopic(req)
	case reasoning.IntentMissingFields:
		ans = o.missingFields(req, classification)
	case reasoning.IntentNeedsClarification:
		ans = o.clarify(req, classification)
	default:
		intent = reasoning.IntentAnswerable
		ans = o.answer(ctx, req)
	}

	ans.Intent = intent
	ans.ConfidenceLevel = Level(ans.Confidence)
	if !req.Policy.AllowProactiveSuggestions {
		ans.FollowUps = nil
	}

	o.logger.Info(logger.ModuleOrchestrator, "Turn answered", map[string]interface{}{
		"intent":     intent,
		"confidence": ans.Confidence,
		"degraded":   ans.Degraded,
		"truncated":  ans.Truncated,
		"follow_ups": len(ans.FollowUps),
	})
	return ans
}

// classify runs the local rules first and only then asks the reasoning
// service. A failed classification defaults to answerable.
func (o *Orchestrator) classify(ctx context.Context, req Request) (reasoning.Intent, reasoning.Classification) {
	if isProductQuestion(req.Question, req.Sources) {
		return IntentProductFAQ, reasoning.Classification{}
	}

	var insufficient *InsufficientDataError
	if err := CheckRequirements(req.Question, req.Sources); errors.As(err, &insufficient) {
		return reasoning.IntentMissingFields, reasoning.Classification{
			Intent:         reasoning.IntentMissingFields,
			MissingColumns: insufficient.Missing,
			Reason:         insufficient.Metric,
		}
	}

	if isOffTopic(req.Question, req.Sources) {
		return reasoning.IntentOffTopic, reasoning.Classification{}
	}

	c, err := o.reasoner.Classify(ctx, reasoning.ClassifyRequest{
		Question: req.Question,
		Sources:  req.Sources,
		History:  req.History,
	})
	if err != nil {
		o.logger.Warn(logger.ModuleOrchestrator, "Classification failed, assuming answerable", map[string]interface{}{
			"error": err.Error(),
		})
		return reasoning.IntentAnswerable, reasoning.Classification{}
	}
	// a missing-fields verdict without names is not actionable
	if c.Intent == reasoning.IntentMissingFields && len(c.MissingColumns) == 0 {
		return reasoning.IntentAnswerable, c
	}
	return c.Intent, c
}

func (o *Orchestrator) offTopic(req Request) Answer {
	return Answer{
		Text: fmt.Sprintf("I can only answer questions about your connected business data. Try asking about %s.",
			columnList(req.Sources)),
		Confidence:       0,
		ConfidenceReason: "the question is not about the selected data",
	}
}

func (o *Orchestrator) missingFields(req Request, c reasoning.Classification) Answer {
	missing := c.MissingColumns
	metric := c.Reason
	var text string
	if metric != "" {
		text = fmt.Sprintf("To calculate %s I need %s data, which your dataset doesn't include.", metric, joinOr(missing))
	} else {
		text = fmt.Sprintf("Answering this needs %s data, which your dataset doesn't include.", joinOr(missing))
	}
	text += fmt.Sprintf(" Your data has these columns: %s. Add a %s column and ask again.", columnList(req.Sources), missing[0])

	return Answer{
		Text:             text,
		Confidence:       0.2,
		ConfidenceReason: "required columns are missing: " + strings.Join(missing, ", "),
		MissingColumns:   missing,
	}
}

func (o *Orchestrator) clarify(req Request, c reasoning.Classification) Answer {
	text := "Could you be more specific? Tell me which measure and which period or group you're interested in."
	if cols := columnList(req.Sources); cols != "" {
		text += " Your data has: " + cols + "."
	}
	reason := "the question is ambiguous"
	if c.Reason != "" {
		reason = c.Reason
	}
	return Answer{
		Text:             text,
		Confidence:       0.3,
		ConfidenceReason: reason,
		FollowUps:        filterFollowUps(nil, req.Question, req.Sources),
	}
}

func (o *Orchestrator) answer(ctx context.Context, req Request) Answer {
	if totalRows(req.Sources) == 0 {
		return Answer{
			Text:             "Your selected data doesn't contain any rows yet, so there is nothing to analyze. Refresh or re-upload the data source and try again.",
			Confidence:       0.1,
			ConfidenceReason: ErrInsufficientData.Error(),
		}
	}

	target := WordTarget(req.Policy, req.LengthPreference)
	out, err := o.reasoner.Answer(ctx, reasoning.AnswerRequest{
		Question:         req.Question,
		Sources:          req.Sources,
		JoinKeys:         req.JoinKeys,
		History:          req.History,
		MaxWords:         target,
		ExtendedThinking: req.ExtendedThinking,
		AllowForecast:    req.Policy.AllowForecast,
		WantFollowUps:    req.Policy.AllowProactiveSuggestions,
	})
	if err != nil {
		o.logger.Warn(logger.ModuleOrchestrator, "Answer degraded", map[string]interface{}{
			"error":     err.Error(),
			"malformed": errors.Is(err, reasoning.ErrMalformedOutput),
		})
		return Answer{
			Text:             degradedText,
			Confidence:       0.1,
			ConfidenceReason: degradedReason,
			Degraded:         true,
		}
	}

	ans := Answer{ChartWarranted: true}
	text, truncated := truncateWords(out.Answer, target)
	ans.Text = text
	ans.Truncated = truncated

	var reasons []string
	ans.Confidence, reasons = calibrate(out.Confidence, out.ConfidenceReason, req.Sources)
	ans.ConfidenceReason = strings.Join(reasons, "; ")

	var notes []string
	if len(req.Sources) > 1 && len(req.JoinKeys) == 0 {
		notes = append(notes, separateAnalysis)
	}
	if asksForecast(req.Question) && !req.Policy.AllowForecast {
		notes = append(notes, "Forecasting isn't included in your plan, so this answer covers historical data only.")
		if hint := o.policies.UpgradeHint(req.Tier, tier.ActionForecast); hint != "" {
			ans.UpgradeHints = append(ans.UpgradeHints, hint)
		}
	}
	if ans.Confidence < lowThreshold {
		reason := ans.ConfidenceReason
		if reason == "" {
			reason = "the data may not fully cover this question"
			ans.ConfidenceReason = reason
		}
		notes = append(notes, fmt.Sprintf("Confidence is low: %s.", strings.TrimSuffix(reason, ".")))
	}
	if len(notes) > 0 {
		ans.Text = ans.Text + "\n\n" + strings.Join(notes, " ")
	}

	if req.Policy.AllowProactiveSuggestions {
		ans.FollowUps = filterFollowUps(out.FollowUps, req.Question, req.Sources)
	}
	return ans
}

func totalRows(sources []reasoning.SourceContext) int {
	n := 0
	for _, s := range sources {
		n += s.RowCount
	}
	return n
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
