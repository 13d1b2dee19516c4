// Package reasoningtest provides a scriptable Reasoner for tests.
package reasoningtest

import (
	"context"
	"fmt"
	"sync"

	"euno-analytics-be/pkg/reasoning"
)

// Fake answers from configurable functions. A nil function behaves like an
// unavailable backend.
type Fake struct {
	ClassifyFn func(reasoning.ClassifyRequest) (reasoning.Classification, error)
	AnswerFn   func(reasoning.AnswerRequest) (reasoning.AnswerOutput, error)
	ChartFn    func(reasoning.ChartRequest) (reasoning.ChartOutput, error)

	mu            sync.Mutex
	ClassifyCalls []reasoning.ClassifyRequest
	AnswerCalls   []reasoning.AnswerRequest
	ChartCalls    []reasoning.ChartRequest
}

var _ reasoning.Reasoner = (*Fake)(nil)

// Unavailable returns a Fake whose every call fails
func Unavailable() *Fake {
	return &Fake{}
}

func unavailable(op string) error {
	return fmt.Errorf("%w: %s: backend down", reasoning.ErrUnavailable, op)
}

func (f *Fake) Classify(ctx context.Context, req reasoning.ClassifyRequest) (reasoning.Classification, error) {
	f.mu.Lock()
	f.ClassifyCalls = append(f.ClassifyCalls, req)
	f.mu.Unlock()
	if f.ClassifyFn == nil {
		return reasoning.Classification{}, unavailable("classify")
	}
	return f.ClassifyFn(req)
}

func (f *Fake) Answer(ctx context.Context, req reasoning.AnswerRequest) (reasoning.AnswerOutput, error) {
	f.mu.Lock()
	f.AnswerCalls = append(f.AnswerCalls, req)
	f.mu.Unlock()
	if f.AnswerFn == nil {
		return reasoning.AnswerOutput{}, unavailable("answer")
	}
	return f.AnswerFn(req)
}

func (f *Fake) RecommendChart(ctx context.Context, req reasoning.ChartRequest) (reasoning.ChartOutput, error) {
	f.mu.Lock()
	f.ChartCalls = append(f.ChartCalls, req)
	f.mu.Unlock()
	if f.ChartFn == nil {
		return reasoning.ChartOutput{}, unavailable("recommend_chart")
	}
	return f.ChartFn(req)
}

// Calls returns how many times each method ran
func (f *Fake) Calls() (classify, answer, chart int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ClassifyCalls), len(f.AnswerCalls), len(f.ChartCalls)
}
