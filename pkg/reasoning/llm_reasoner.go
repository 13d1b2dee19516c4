package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"euno-analytics-be/internal/constant"
	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/pkg/llm"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	Timeout        time.Duration // per attempt
	MaxRetries     int           // retries after the first attempt, transient failures only
	InitialBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:        30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
	}
}

// LLMReasoner implements Reasoner on top of a chat model
type LLMReasoner struct {
	provider llm.LLMProvider
	cfg      Config
	logger   logger.ILogger
	tracer   trace.Tracer
}

var _ Reasoner = (*LLMReasoner)(nil)

func NewLLMReasoner(provider llm.LLMProvider, cfg Config, log logger.ILogger) *LLMReasoner {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	return &LLMReasoner{
		provider: provider,
		cfg:      cfg,
		logger:   log,
		tracer:   otel.Tracer("euno/reasoning"),
	}
}

func (r *LLMReasoner) Classify(ctx context.Context, req ClassifyRequest) (Classification, error) {
	reply, err := r.call(ctx, "classify", buildClassifyPrompt(req), llm.WithJSONMode(), llm.WithMaxTokens(256))
	if err != nil {
		return Classification{}, err
	}
	return parseClassification(reply)
}

func (r *LLMReasoner) Answer(ctx context.Context, req AnswerRequest) (AnswerOutput, error) {
	maxTokens := 1024
	if req.MaxWords > 0 {
		// JSON framing and follow-ups ride on top of the answer itself
		maxTokens = req.MaxWords*2 + 256
	}
	if req.ExtendedThinking {
		maxTokens += 1024
	}
	reply, err := r.call(ctx, "answer", buildAnswerPrompt(req), llm.WithJSONMode(), llm.WithMaxTokens(maxTokens))
	if err != nil {
		return AnswerOutput{}, err
	}
	return parseAnswer(reply)
}

func (r *LLMReasoner) RecommendChart(ctx context.Context, req ChartRequest) (ChartOutput, error) {
	reply, err := r.call(ctx, "recommend_chart", buildChartPrompt(req), llm.WithJSONMode(), llm.WithMaxTokens(256))
	if err != nil {
		return ChartOutput{}, err
	}
	return parseChart(reply)
}

// call runs one prompt with a per-attempt timeout. Only transient transport
// failures are retried; content problems surface on the first reply.
func (r *LLMReasoner) call(ctx context.Context, op, prompt string, opts ...llm.Option) (string, error) {
	ctx, span := r.tracer.Start(ctx, "reasoning."+op)
	defer span.End()

	messages := []llm.Message{
		{Role: constant.MessageRoleSystem, Content: constant.ReasoningSystemPrompt},
		{Role: constant.MessageRoleUser, Content: prompt},
	}

	attempts := 0
	started := time.Now()
	operation := func() (string, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		reply, err := r.provider.Chat(attemptCtx, messages, opts...)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil || !llm.IsTransient(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.cfg.InitialBackoff

	reply, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(r.cfg.MaxRetries+1)),
	)

	span.SetAttributes(
		attribute.String("reasoning.op", op),
		attribute.Int("reasoning.attempts", attempts),
	)

	details := map[string]interface{}{
		"op":          op,
		"attempts":    attempts,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reasoning call failed")
		details["error"] = err.Error()
		r.logger.Warn(logger.ModuleReasoning, "Reasoning call failed", details)
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
	}

	details["reply_chars"] = len(reply)
	r.logger.Debug(logger.ModuleReasoning, "Reasoning call completed", details)
	return reply, nil
}
