package reasoning

import (
	"context"
	"errors"

	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/schema"
)

type Intent string

const (
	IntentAnswerable         Intent = "answerable"
	IntentNeedsClarification Intent = "needs_clarification"
	IntentOffTopic           Intent = "off_topic"
	IntentMissingFields      Intent = "missing_required_fields"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentAnswerable, IntentNeedsClarification, IntentOffTopic, IntentMissingFields:
		return true
	}
	return false
}

var (
	// ErrUnavailable wraps transport failures after retries are exhausted
	ErrUnavailable = errors.New("reasoning capability unavailable")
	// ErrMalformedOutput means the reply did not parse into the expected structure
	ErrMalformedOutput = errors.New("malformed reasoning output")
)

// Turn is one prior message given to the model as context
type Turn struct {
	Role    string
	Content string
}

// SourceContext is the bounded view of one data source sent with a prompt
type SourceContext struct {
	ID       string
	Name     string
	RowCount int
	Columns  []schema.Column
	Sample   []schema.Row
	Insights schema.Insights
}

type ClassifyRequest struct {
	Question string
	Sources  []SourceContext
	History  []Turn
}

type Classification struct {
	Intent         Intent
	MissingColumns []string
	Reason         string
}

type AnswerRequest struct {
	Question         string
	Sources          []SourceContext
	JoinKeys         []correlation.Key
	History          []Turn
	MaxWords         int // soft target; zero or negative means none
	ExtendedThinking bool
	AllowForecast    bool
	WantFollowUps    bool
}

type AnswerOutput struct {
	Answer           string
	Confidence       float64
	ConfidenceReason string
	FollowUps        []string
}

type ChartRequest struct {
	Question string
	RowCount int
	Columns  []schema.Column
	Sample   []schema.Row
}

type ChartOutput struct {
	Type       string
	XAxis      string
	YAxis      string
	Reasoning  string
	Confidence string
}

// Reasoner is the external reasoning capability. Implementations return
// errors wrapping ErrUnavailable or ErrMalformedOutput.
type Reasoner interface {
	Classify(ctx context.Context, req ClassifyRequest) (Classification, error)
	Answer(ctx context.Context, req AnswerRequest) (AnswerOutput, error)
	RecommendChart(ctx context.Context, req ChartRequest) (ChartOutput, error)
}
