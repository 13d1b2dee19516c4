package reasoning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/llm"
	"euno-analytics-be/pkg/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReply struct {
	reply string
	err   error
}

type fakeProvider struct {
	mu      sync.Mutex
	script  []scriptedReply
	calls   int
	prompts []string
	options []llm.Options
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, history[len(history)-1].Content)
	f.options = append(f.options, llm.Apply(llm.Options{}, opts...))
	i := f.calls
	f.calls++
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i].reply, f.script[i].err
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

func newReasoner(p llm.LLMProvider, retries int) *LLMReasoner {
	return NewLLMReasoner(p, Config{Timeout: time.Second, MaxRetries: retries, InitialBackoff: time.Millisecond}, logger.NewNopLogger())
}

func salesSource() SourceContext {
	rs := schema.NewResultSet([]string{"product", "sales", "date"}, []schema.Row{
		{"product": "Widget", "sales": 1000, "date": "2024-01-05"},
		{"product": "Gadget", "sales": 1500, "date": "2024-01-06"},
		{"product": "Widget", "sales": 2000, "date": "2024-01-07"},
	})
	cols := schema.Profile(rs)
	return SourceContext{ID: "s1", Name: "sales.csv", RowCount: 3, Columns: cols, Sample: rs.Rows, Insights: schema.Summarize(rs, cols)}
}

func TestLLMReasoner_AnswerParsesWrappedJSON(t *testing.T) {
	p := &fakeProvider{script: []scriptedReply{{reply: "Sure!\n```json\n{\"answer\": \"Total sales were 4500.\", \"confidence\": 0.85, \"confidence_reason\": \"\", \"follow_ups\": [\"Which product had the highest sales?\"]}\n```"}}}
	r := newReasoner(p, 2)

	out, err := r.Answer(context.Background(), AnswerRequest{
		Question:      "What were our total sales?",
		Sources:       []SourceContext{salesSource()},
		MaxWords:      180,
		WantFollowUps: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Total sales were 4500.", out.Answer)
	assert.Equal(t, 0.85, out.Confidence)
	assert.Equal(t, []string{"Which product had the highest sales?"}, out.FollowUps)

	require.Len(t, p.prompts, 1)
	prompt := p.prompts[0]
	assert.Contains(t, prompt, "sales: count 3, sum 4500, mean 1500, min 1000, max 2000")
	assert.Contains(t, prompt, "Keep the answer under 180 words.")
	assert.Contains(t, prompt, "Do not forecast")
	assert.True(t, p.options[0].JSONMode)
	assert.Equal(t, 180*2+256, p.options[0].MaxTokens)
}

func TestLLMReasoner_RetriesTransientFailures(t *testing.T) {
	p := &fakeProvider{script: []scriptedReply{
		{err: &llm.StatusError{Provider: "fake", Code: 503}},
		{err: context.DeadlineExceeded},
		{reply: `{"intent": "answerable"}`},
	}}
	r := newReasoner(p, 2)

	c, err := r.Classify(context.Background(), ClassifyRequest{Question: "total sales?", Sources: []SourceContext{salesSource()}})
	require.NoError(t, err)
	assert.Equal(t, IntentAnswerable, c.Intent)
	assert.Equal(t, 3, p.calls)
}

func TestLLMReasoner_GivesUpAfterMaxRetries(t *testing.T) {
	p := &fakeProvider{script: []scriptedReply{{err: &llm.StatusError{Provider: "fake", Code: 502}}}}
	r := newReasoner(p, 2)

	_, err := r.Answer(context.Background(), AnswerRequest{Question: "q"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 3, p.calls)
}

func TestLLMReasoner_DoesNotRetryPermanentFailures(t *testing.T) {
	p := &fakeProvider{script: []scriptedReply{{err: &llm.StatusError{Provider: "fake", Code: 400}}}}
	r := newReasoner(p, 5)

	_, err := r.Classify(context.Background(), ClassifyRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, p.calls)
}

func TestLLMReasoner_DoesNotRetryMalformedOutput(t *testing.T) {
	p := &fakeProvider{script: []scriptedReply{{reply: "I think it's a bar chart"}}}
	r := newReasoner(p, 5)

	_, err := r.RecommendChart(context.Background(), ChartRequest{Question: "q"})
	assert.ErrorIs(t, err, ErrMalformedOutput)
	assert.Equal(t, 1, p.calls)
}

func TestLLMReasoner_AnswerPromptIncludesJoinKeysAndThinking(t *testing.T) {
	p := &fakeProvider{script: []scriptedReply{{reply: `{"answer": "ok", "confidence": "medium"}`}}}
	r := newReasoner(p, 0)

	out, err := r.Answer(context.Background(), AnswerRequest{
		Question: "revenue vs ad spend by day",
		JoinKeys: []correlation.Key{{
			Name:    "date",
			Left:    correlation.ColumnRef{SourceID: "orders", Column: "date"},
			Right:   correlation.ColumnRef{SourceID: "ads", Column: "Date"},
			Overlap: 0.5,
		}},
		ExtendedThinking: true,
		AllowForecast:    true,
		History:          []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.55, out.Confidence)

	prompt := p.prompts[0]
	assert.Contains(t, prompt, "orders.date = ads.Date (value overlap 50%)")
	assert.Contains(t, prompt, "reason step by step")
	assert.Contains(t, prompt, "project from the observed trend")
	assert.Contains(t, prompt, "user: hi\nassistant: hello")
	assert.True(t, strings.Contains(prompt, "Answer as thoroughly"))
	assert.Equal(t, 1024+1024, p.options[0].MaxTokens)
}

func TestParseClassification(t *testing.T) {
	c, err := parseClassification(`{"intent": "Missing_Required_Fields", "missing_columns": ["cost"], "reason": "no cost"}`)
	require.NoError(t, err)
	assert.Equal(t, IntentMissingFields, c.Intent)
	assert.Equal(t, []string{"cost"}, c.MissingColumns)

	_, err = parseClassification(`{"intent": "maybe"}`)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{0.4, 0.4, true},
		{85.0, 0.85, true},
		{"high", 0.8, true},
		{"LOW", 0.25, true},
		{"0.3", 0.3, true},
		{-1.0, 0, false},
		{nil, 0, false},
		{"certain", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseConfidence(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 1e-9, "%v", tt.in)
		}
	}
}

func TestParseChart(t *testing.T) {
	c, err := parseChart(`{"type": "Line", "x_axis": "date", "y_axis": "sales", "reasoning": "trend", "confidence": "High"}`)
	require.NoError(t, err)
	assert.Equal(t, ChartOutput{Type: "line", XAxis: "date", YAxis: "sales", Reasoning: "trend", Confidence: "high"}, c)

	_, err = parseChart(`{"type": "bar"}`)
	assert.ErrorIs(t, err, ErrMalformedOutput)
}
