package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/model"
	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/internal/repository/memory"
	"euno-analytics-be/internal/repository/specification"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/pkg/analytics"
	"euno-analytics-be/pkg/chart"
	"euno-analytics-be/pkg/conversation"
	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/database"
	"euno-analytics-be/pkg/events"
	"euno-analytics-be/pkg/reasoning"
	"euno-analytics-be/pkg/reasoning/reasoningtest"
	"euno-analytics-be/pkg/schema"
	"euno-analytics-be/pkg/tier"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type harness struct {
	uowFactory    unitofwork.RepositoryFactory
	sources       DataSourceProvider
	reasoner      *reasoningtest.Fake
	publisher     *recordingPublisher
	gate          *conversation.MemoryTurnGate
	conversations IConversationService
	analytics     IAnalyticsService
}

// analyst answers totals from the precomputed insights
func analyst() *reasoningtest.Fake {
	return &reasoningtest.Fake{
		ClassifyFn: func(reasoning.ClassifyRequest) (reasoning.Classification, error) {
			return reasoning.Classification{Intent: reasoning.IntentAnswerable}, nil
		},
		AnswerFn: func(req reasoning.AnswerRequest) (reasoning.AnswerOutput, error) {
			s, ok := req.Sources[0].Insights.Summary("sales")
			if !ok {
				return reasoning.AnswerOutput{}, fmt.Errorf("%w: no sales column", reasoning.ErrMalformedOutput)
			}
			return reasoning.AnswerOutput{
				Answer:     fmt.Sprintf("Total sales were %.0f.", s.Sum),
				Confidence: 0.85,
				FollowUps:  []string{"Which product has the highest sales?"},
			}, nil
		},
	}
}

func newHarness(t *testing.T, policies tier.Table) *harness {
	t.Helper()
	db, err := database.NewTestDB(uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.DataSource{}, &model.Conversation{}, &model.Message{}))

	if policies == nil {
		policies = tier.DefaultPolicies()
	}
	log := logger.NewNopLogger()
	h := &harness{
		uowFactory: unitofwork.NewRepositoryFactory(db),
		reasoner:   analyst(),
		publisher:  &recordingPublisher{},
		gate:       conversation.NewMemoryTurnGate(time.Minute),
	}
	h.sources = NewDataSourceProvider(h.uowFactory, memory.NewDataSourceCache(time.Minute))
	h.conversations = NewConversationService(h.uowFactory, h.gate, h.publisher, log)
	h.analytics = NewAnalyticsService(
		h.uowFactory,
		h.sources,
		tier.NewEngine(policies, tier.NewMemoryUsageStore(), log),
		h.gate,
		correlation.NewResolver(correlation.Options{}),
		analytics.NewOrchestrator(h.reasoner, policies, log),
		chart.NewRecommender(h.reasoner, log),
		h.publisher,
		log,
		AnalyticsOptions{},
	)
	return h
}

func (h *harness) user(t *testing.T, subscription tier.Tier, status tier.SubscriptionStatus) uuid.UUID {
	t.Helper()
	u := &entity.User{
		Email:              uuid.NewString() + "@example.com",
		FullName:           "Test User",
		SubscriptionTier:   string(subscription),
		SubscriptionStatus: string(status),
	}
	require.NoError(t, h.uowFactory.NewUnitOfWork(context.Background()).UserRepository().Create(context.Background(), u))
	return u.Id
}

func (h *harness) salesSource(t *testing.T, userId uuid.UUID) uuid.UUID {
	t.Helper()
	rs := schema.NewResultSet([]string{"product", "sales", "date"}, []schema.Row{
		{"product": "Widget", "sales": 1000, "date": "2024-01-05"},
		{"product": "Gadget", "sales": 1500, "date": "2024-01-06"},
		{"product": "Widget", "sales": 2000, "date": "2024-01-07"},
	})
	ds, err := h.sources.Register(context.Background(), userId, "sales.csv", entity.SourceKindFile, rs)
	require.NoError(t, err)
	return ds.Id
}

func ask(question string, sources ...uuid.UUID) *dto.SubmitQuestionRequest {
	return &dto.SubmitQuestionRequest{Question: question, DataSourceIds: sources}
}

func denialOf(t *testing.T, err error) *dto.AdmissionDeniedError {
	t.Helper()
	var denied *dto.AdmissionDeniedError
	require.True(t, errors.As(err, &denied), "expected a denial, got %v", err)
	return denied
}

func TestSubmitQuestion_TotalSales(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	req := ask("What were our total sales?", sourceId)
	req.RequestChart = true
	res, err := h.analytics.SubmitQuestion(ctx, userId, req)
	require.NoError(t, err)

	assert.Contains(t, res.AnswerText, "4500")
	assert.Contains(t, []string{analytics.LevelMedium, analytics.LevelHigh}, res.ConfidenceLevel)
	assert.Equal(t, "professional", res.TierMeta.Tier)
	require.NotNil(t, res.TierMeta.RemainingQuota)
	assert.Equal(t, 119, *res.TierMeta.RemainingQuota)

	require.NotNil(t, res.Chart)
	assert.Equal(t, "bar", res.Chart.Type)
	assert.True(t, res.Chart.Fallback)
	assert.Equal(t, "product", res.Chart.XAxis)
	assert.Equal(t, "sales", res.Chart.YAxis)
	assert.Len(t, res.Chart.Data, 2)

	messages, err := h.conversations.List(ctx, userId, res.ConversationId)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "What were our total sales?", messages[0].Content)
	last := messages[1]
	assert.Equal(t, "assistant", last.Role)
	assert.Equal(t, res.AnswerText, last.Content)
	require.NotNil(t, last.Confidence)
	assert.Equal(t, res.Confidence, *last.Confidence)
	require.NotNil(t, last.Chart)
	assert.Equal(t, "bar", last.Chart.Type)

	assert.Equal(t, []string{events.TypeQuestionAnswered}, h.publisher.types())
}

func TestSubmitQuestion_NoChartWithoutRequest(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	res, err := h.analytics.SubmitQuestion(context.Background(), userId, ask("What were our total sales?", sourceId))
	require.NoError(t, err)
	assert.Nil(t, res.Chart)
	_, _, chartCalls := h.reasoner.Calls()
	assert.Zero(t, chartCalls)
}

func TestSubmitQuestion_StarterGetsNoChart(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Starter, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	req := ask("What were our total sales?", sourceId)
	req.RequestChart = true
	req.ExtendedThinking = true
	res, err := h.analytics.SubmitQuestion(context.Background(), userId, req)
	require.NoError(t, err)

	assert.Nil(t, res.Chart)
	assert.Empty(t, res.SuggestedFollowUps)
	assert.Contains(t, res.TierMeta.UpgradeHints, "Chart generation is available on the professional plan.")
	assert.Contains(t, res.TierMeta.UpgradeHints, "Extended thinking is available on the professional plan.")

	require.Len(t, h.reasoner.AnswerCalls, 1)
	assert.False(t, h.reasoner.AnswerCalls[0].ExtendedThinking)
	assert.Equal(t, 80, h.reasoner.AnswerCalls[0].MaxWords)
}

func TestSubmitQuestion_PastDueServedAsStarter(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusPastDue)
	sourceId := h.salesSource(t, userId)

	req := ask("What were our total sales?", sourceId)
	req.RequestChart = true
	res, err := h.analytics.SubmitQuestion(context.Background(), userId, req)
	require.NoError(t, err)
	assert.Equal(t, "starter", res.TierMeta.Tier)
	assert.Nil(t, res.Chart)
	require.NotNil(t, res.TierMeta.RemainingQuota)
	assert.Equal(t, 19, *res.TierMeta.RemainingQuota)
}

func TestSubmitQuestion_EnterpriseHasNoQuota(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Enterprise, tier.StatusTrialing)
	sourceId := h.salesSource(t, userId)

	res, err := h.analytics.SubmitQuestion(context.Background(), userId, ask("What were our total sales?", sourceId))
	require.NoError(t, err)
	assert.Equal(t, "enterprise", res.TierMeta.Tier)
	assert.Nil(t, res.TierMeta.RemainingQuota)
}

func TestSubmitQuestion_RateLimitDoesNotConsumeQuota(t *testing.T) {
	ctx := context.Background()
	policies := tier.DefaultPolicies()
	starter := policies[tier.Starter]
	starter.MaxQueriesPerWindow = 5
	policies[tier.Starter] = starter

	h := newHarness(t, policies)
	userId := h.user(t, tier.Starter, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	for i := 0; i < 5; i++ {
		_, err := h.analytics.SubmitQuestion(ctx, userId, ask("What were our total sales?", sourceId))
		require.NoError(t, err, "query %d", i+1)
	}

	for i := 0; i < 2; i++ {
		_, err := h.analytics.SubmitQuestion(ctx, userId, ask("What were our total sales?", sourceId))
		denied := denialOf(t, err)
		assert.False(t, denied.Allowed)
		assert.Equal(t, "rate_limited", denied.Reason)
		require.NotNil(t, denied.RetryAfterSeconds)
		assert.Greater(t, *denied.RetryAfterSeconds, 0)
		assert.Equal(t, "The professional plan includes more questions per hour.", denied.UpgradeHint)
	}

	usage, err := h.analytics.Usage(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, 5, usage.Limit)
	assert.Equal(t, 5, usage.Used)
	assert.Equal(t, 0, usage.Remaining)
	assert.NotNil(t, usage.ResetsAt)

	assert.Contains(t, h.publisher.types(), events.TypeQuestionDenied)
	_, answers, _ := h.reasoner.Calls()
	assert.Equal(t, 5, answers)
}

func TestSubmitQuestion_NoDataSource(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	other := h.user(t, tier.Professional, tier.StatusActive)
	foreign := h.salesSource(t, other)

	tests := []struct {
		name    string
		sources []uuid.UUID
	}{
		{name: "empty selection"},
		{name: "unknown id", sources: []uuid.UUID{uuid.New()}},
		{name: "owned by another user", sources: []uuid.UUID{foreign}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.analytics.SubmitQuestion(ctx, userId, ask("What were our total sales?", tt.sources...))
			denied := denialOf(t, err)
			assert.Equal(t, "no_data_source", denied.Reason)
			assert.Nil(t, denied.RetryAfterSeconds)
		})
	}

	usage, err := h.analytics.Usage(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}

func TestSubmitQuestion_TooManySources(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Starter, tier.StatusActive)
	first := h.salesSource(t, userId)
	second := h.salesSource(t, userId)

	_, err := h.analytics.SubmitQuestion(ctx, userId, ask("What were our total sales?", first, second))
	denied := denialOf(t, err)
	assert.Equal(t, "feature_not_in_tier", denied.Reason)
	assert.Equal(t, "Analyzing 2 data sources together is available on the professional plan.", denied.UpgradeHint)
	assert.Equal(t, http.StatusForbidden, denied.HTTPStatus())

	// duplicates collapse to one source
	_, err = h.analytics.SubmitQuestion(ctx, userId, ask("What were our total sales?", first, first))
	require.NoError(t, err)
}

func TestSubmitQuestion_MultiSourceCorrelates(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	first := h.salesSource(t, userId)
	second := h.salesSource(t, userId)

	_, err := h.analytics.SubmitQuestion(context.Background(), userId, ask("What were our total sales?", first, second))
	require.NoError(t, err)
	require.Len(t, h.reasoner.AnswerCalls, 1)
	call := h.reasoner.AnswerCalls[0]
	assert.Len(t, call.Sources, 2)
	assert.NotEmpty(t, call.JoinKeys)
}

func TestSubmitQuestion_HistoryOnSecondTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	first, err := h.analytics.SubmitQuestion(ctx, userId, ask("What were our total sales?", sourceId))
	require.NoError(t, err)

	// the conversation remembers its data sources
	follow := ask("And what were total sales again?")
	follow.ConversationId = &first.ConversationId
	second, err := h.analytics.SubmitQuestion(ctx, userId, follow)
	require.NoError(t, err)
	assert.Equal(t, first.ConversationId, second.ConversationId)

	require.Len(t, h.reasoner.AnswerCalls, 2)
	history := h.reasoner.AnswerCalls[1].History
	require.Len(t, history, 2)
	assert.Equal(t, reasoning.Turn{Role: "user", Content: "What were our total sales?"}, history[0])
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, first.AnswerText, history[1].Content)

	messages, err := h.conversations.List(ctx, userId, first.ConversationId)
	require.NoError(t, err)
	assert.Len(t, messages, 4)

	conversations, err := h.conversations.ListConversations(ctx, userId, "", 0, 0)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "What were our total sales?", conversations[0].Title)
}

func TestSubmitQuestion_UnknownConversation(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	req := ask("What were our total sales?", sourceId)
	missing := uuid.New()
	req.ConversationId = &missing
	_, err := h.analytics.SubmitQuestion(context.Background(), userId, req)
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestSubmitQuestion_TurnInProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	conv, err := h.conversations.Create(ctx, userId, &dto.CreateConversationRequest{DataSourceIds: []uuid.UUID{sourceId}})
	require.NoError(t, err)

	release, err := h.gate.Acquire(ctx, conv.Id.String())
	require.NoError(t, err)

	req := ask("What were our total sales?")
	req.ConversationId = &conv.Id
	_, err = h.analytics.SubmitQuestion(ctx, userId, req)
	assert.ErrorIs(t, err, conversation.ErrTurnInProgress)

	usage, err := h.analytics.Usage(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)

	release()
	_, err = h.analytics.SubmitQuestion(ctx, userId, req)
	require.NoError(t, err)
}

func TestSubmitQuestion_DegradedAnswerStillStored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	h.reasoner.AnswerFn = nil
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	req := ask("What were our total sales?", sourceId)
	req.RequestChart = true
	res, err := h.analytics.SubmitQuestion(ctx, userId, req)
	require.NoError(t, err)
	assert.Equal(t, analytics.LevelLow, res.ConfidenceLevel)
	assert.Empty(t, res.SuggestedFollowUps)
	assert.Nil(t, res.Chart)
	assert.NotContains(t, res.AnswerText, "backend down")

	messages, err := h.conversations.List(ctx, userId, res.ConversationId)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestSubmitQuestion_UnknownUser(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.analytics.SubmitQuestion(context.Background(), uuid.New(), ask("What were our total sales?"))
	assert.ErrorIs(t, err, dto.ErrNotFound)
}

func TestUsage_Enterprise(t *testing.T) {
	h := newHarness(t, nil)
	userId := h.user(t, tier.Enterprise, tier.StatusActive)

	usage, err := h.analytics.Usage(context.Background(), userId)
	require.NoError(t, err)
	assert.Equal(t, "enterprise", usage.Tier)
	assert.Equal(t, tier.Unlimited, usage.Limit)
	assert.Equal(t, tier.Unlimited, usage.Remaining)
}

func TestConversationDelete_WaitsForRunningTurn(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	conv, err := h.conversations.Create(ctx, userId, &dto.CreateConversationRequest{DataSourceIds: []uuid.UUID{sourceId}})
	require.NoError(t, err)

	var deleteErr error
	answer := h.reasoner.AnswerFn
	h.reasoner.AnswerFn = func(req reasoning.AnswerRequest) (reasoning.AnswerOutput, error) {
		deleteErr = h.conversations.Delete(ctx, userId, conv.Id)
		return answer(req)
	}

	req := ask("What were our total sales?")
	req.ConversationId = &conv.Id
	_, err = h.analytics.SubmitQuestion(ctx, userId, req)
	require.NoError(t, err)
	assert.ErrorIs(t, deleteErr, conversation.ErrTurnInProgress)

	messages, err := h.conversations.List(ctx, userId, conv.Id)
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	// once the turn is over the delete goes through and takes the messages with it
	require.NoError(t, h.conversations.Delete(ctx, userId, conv.Id))
	count, err := h.uowFactory.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conv.Id})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmitQuestion_ConversationGoneBeforeSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	sourceId := h.salesSource(t, userId)

	conv, err := h.conversations.Create(ctx, userId, &dto.CreateConversationRequest{DataSourceIds: []uuid.UUID{sourceId}})
	require.NoError(t, err)

	answer := h.reasoner.AnswerFn
	h.reasoner.AnswerFn = func(req reasoning.AnswerRequest) (reasoning.AnswerOutput, error) {
		// removed behind the gate's back, e.g. by an operator
		require.NoError(t, h.uowFactory.NewUnitOfWork(ctx).ConversationRepository().Delete(ctx, conv.Id))
		return answer(req)
	}

	req := ask("What were our total sales?")
	req.ConversationId = &conv.Id
	_, err = h.analytics.SubmitQuestion(ctx, userId, req)
	assert.ErrorIs(t, err, dto.ErrNotFound)

	count, err := h.uowFactory.NewUnitOfWork(ctx).MessageRepository().Count(ctx, specification.ByConversationID{ConversationID: conv.Id})
	require.NoError(t, err)
	assert.Zero(t, count)

	// the failed turn is refunded
	usage, err := h.analytics.Usage(ctx, userId)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
	assert.NotContains(t, h.publisher.types(), events.TypeQuestionAnswered)
}
