package service

import (
	"context"
	"errors"
	"fmt"

	"euno-analytics-be/internal/constant"
	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/internal/repository/specification"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/pkg/analytics"
	"euno-analytics-be/pkg/chart"
	"euno-analytics-be/pkg/conversation"
	"euno-analytics-be/pkg/correlation"
	"euno-analytics-be/pkg/events"
	"euno-analytics-be/pkg/reasoning"
	"euno-analytics-be/pkg/schema"
	"euno-analytics-be/pkg/tier"

	"github.com/google/uuid"
)

type IAnalyticsService interface {
	SubmitQuestion(ctx context.Context, userId uuid.UUID, req *dto.SubmitQuestionRequest) (*dto.SubmitQuestionResponse, error)
	Usage(ctx context.Context, userId uuid.UUID) (*dto.UsageResponse, error)
}

// AnalyticsOptions bound the context sent with each turn
type AnalyticsOptions struct {
	HistoryWindow int // prior messages replayed to the reasoning service
	SampleRows    int // rows per source included in the prompt
}

type analyticsService struct {
	uowFactory   unitofwork.RepositoryFactory
	sources      DataSourceProvider
	tiers        *tier.Engine
	gate         conversation.TurnGate
	resolver     *correlation.Resolver
	orchestrator *analytics.Orchestrator
	charts       *chart.Recommender
	publisher    events.Publisher
	logger       logger.ILogger
	opts         AnalyticsOptions
}

func NewAnalyticsService(
	uowFactory unitofwork.RepositoryFactory,
	sources DataSourceProvider,
	tiers *tier.Engine,
	gate conversation.TurnGate,
	resolver *correlation.Resolver,
	orchestrator *analytics.Orchestrator,
	charts *chart.Recommender,
	publisher events.Publisher,
	log logger.ILogger,
	opts AnalyticsOptions,
) IAnalyticsService {
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 10
	}
	if opts.SampleRows <= 0 {
		opts.SampleRows = 50
	}
	return &analyticsService{
		uowFactory:   uowFactory,
		sources:      sources,
		tiers:        tiers,
		gate:         gate,
		resolver:     resolver,
		orchestrator: orchestrator,
		charts:       charts,
		publisher:    publisher,
		logger:       log,
		opts:         opts,
	}
}

// SubmitQuestion runs one conversational turn. Selection checks and the turn
// gate come before admission, so a rejected request never uses quota.
func (s *analyticsService) SubmitQuestion(ctx context.Context, userId uuid.UUID, req *dto.SubmitQuestionRequest) (*dto.SubmitQuestionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userId, dto.ErrNotFound)
	}
	subscribed := tier.Tier(user.SubscriptionTier)
	status := tier.SubscriptionStatus(user.SubscriptionStatus)
	effective, policy := s.tiers.Policy(subscribed, status)

	// 1. Conversation (lazy: a new one is only stored with its first turn)
	var existing *entity.Conversation
	conversationId := uuid.New()
	if req.ConversationId != nil {
		existing, err = uow.ConversationRepository().FindOne(ctx,
			specification.ByID{ID: *req.ConversationId},
			specification.UserOwnedBy{UserID: userId},
		)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("conversation %s: %w", *req.ConversationId, dto.ErrNotFound)
		}
		conversationId = existing.Id
	}

	// 2. Data source selection
	selection := dedupeIDs(req.DataSourceIds)
	if len(selection) == 0 && existing != nil {
		selection = existing.DataSourceIds
	}
	sources, denied, err := s.loadSources(ctx, userId, selection, effective, policy)
	if err != nil {
		return nil, err
	}
	if denied != nil {
		s.publishDenied(ctx, userId, denied)
		return nil, denied
	}

	// 3. One turn per conversation
	release, err := s.gate.Acquire(ctx, conversationId.String())
	if err != nil {
		return nil, err
	}
	defer release()

	// 4. Volume admission
	decision, err := s.tiers.Admit(ctx, userId.String(), subscribed, status, tier.ActionQuery)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		denied := s.denial(effective, decision, s.quotaHint(effective))
		s.publishDenied(ctx, userId, denied)
		return nil, denied
	}

	// 5. Context
	history, err := s.history(ctx, uow, existing)
	if err != nil {
		return nil, err
	}
	contexts, samples := s.contexts(sources)
	var joinKeys []correlation.Key
	if len(samples) > 1 {
		joinKeys = s.resolver.Resolve(samples)
	}

	var hints []string
	extended := false
	if req.ExtendedThinking {
		if policy.AllowExtendedThinking {
			extended = true
		} else {
			hints = appendHint(hints, s.tiers.Policies().UpgradeHint(effective, tier.ActionExtendedThinking))
		}
	}
	lengthPreference := req.LengthPreference
	if lengthPreference == "" {
		lengthPreference = user.LengthPreference
	}

	// 6. Answer
	ans := s.orchestrator.Answer(ctx, analytics.Request{
		Question:         req.Question,
		Sources:          contexts,
		JoinKeys:         joinKeys,
		History:          history,
		Tier:             effective,
		Policy:           policy,
		LengthPreference: lengthPreference,
		ExtendedThinking: extended,
	})
	for _, h := range ans.UpgradeHints {
		hints = appendHint(hints, h)
	}

	// 7. Chart
	var spec *chart.Spec
	if req.RequestChart {
		chartDecision, err := s.tiers.Admit(ctx, userId.String(), subscribed, status, tier.ActionChart)
		if err != nil {
			return nil, err
		}
		switch {
		case !chartDecision.Allowed:
			hints = appendHint(hints, s.tiers.Policies().UpgradeHint(effective, tier.ActionChart))
		case ans.ChartWarranted:
			spec = s.chart(ctx, req.Question, sources[0])
		}
	}

	// 8. Persist the turn
	metadata := &entity.MessageMetadata{
		Confidence:         ans.Confidence,
		ConfidenceLevel:    ans.ConfidenceLevel,
		SuggestedFollowUps: ans.FollowUps,
		Chart:              spec,
		Intent:             string(ans.Intent),
		Degraded:           ans.Degraded,
	}
	if err := s.persistTurn(ctx, uow, userId, conversationId, existing, selection, req.Question, ans.Text, metadata); err != nil {
		// nothing was stored, so the question does not count
		if refundErr := s.tiers.Refund(ctx, userId.String(), subscribed, status, decision.AdmittedAt); refundErr != nil {
			s.logger.Warn(logger.ModuleAdmission, "Failed to refund query", map[string]interface{}{
				"user_id": userId.String(),
				"error":   refundErr.Error(),
			})
		}
		return nil, err
	}

	s.publish(ctx, events.New(events.TypeQuestionAnswered, map[string]interface{}{
		"user_id":         userId.String(),
		"conversation_id": conversationId.String(),
		"tier":            string(effective),
		"intent":          string(ans.Intent),
		"confidence":      ans.Confidence,
		"degraded":        ans.Degraded,
		"chart":           spec != nil,
		"sources":         len(sources),
	}))

	followUps := ans.FollowUps
	if followUps == nil {
		followUps = []string{}
	}
	res := &dto.SubmitQuestionResponse{
		ConversationId:     conversationId,
		AnswerText:         ans.Text,
		Confidence:         ans.Confidence,
		ConfidenceLevel:    ans.ConfidenceLevel,
		ConfidenceReason:   ans.ConfidenceReason,
		SuggestedFollowUps: followUps,
		Chart:              toChartDTO(spec),
		Intent:             string(ans.Intent),
		MissingColumns:     ans.MissingColumns,
		TierMeta: dto.TierMetaDTO{
			Tier:         string(effective),
			UpgradeHints: hints,
		},
	}
	if decision.Remaining != tier.Unlimited {
		remaining := decision.Remaining
		res.TierMeta.RemainingQuota = &remaining
	}
	return res, nil
}

func (s *analyticsService) Usage(ctx context.Context, userId uuid.UUID) (*dto.UsageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s: %w", userId, dto.ErrNotFound)
	}

	q, err := s.tiers.Quota(ctx, userId.String(), tier.Tier(user.SubscriptionTier), tier.SubscriptionStatus(user.SubscriptionStatus))
	if err != nil {
		return nil, err
	}

	res := &dto.UsageResponse{
		Tier:      string(q.Tier),
		Status:    user.SubscriptionStatus,
		Limit:     q.Limit,
		Used:      q.Used,
		Remaining: q.Remaining,
		Policy:    q.Policy,
	}
	if !q.ResetsAt.IsZero() {
		resetsAt := q.ResetsAt
		res.ResetsAt = &resetsAt
	}
	return res, nil
}

// loadSources resolves the selection to owned data sources. A denial is
// returned separately from infrastructure errors.
func (s *analyticsService) loadSources(ctx context.Context, userId uuid.UUID, ids []uuid.UUID, effective tier.Tier, policy tier.Policy) ([]*entity.DataSource, *dto.AdmissionDeniedError, error) {
	if len(ids) == 0 {
		return nil, &dto.AdmissionDeniedError{Reason: string(tier.ReasonNoDataSource), Tier: string(effective)}, nil
	}
	if policy.MaxConcurrentDataSources != tier.Unlimited && len(ids) > policy.MaxConcurrentDataSources {
		return nil, &dto.AdmissionDeniedError{
			Reason:      string(tier.ReasonFeatureNotInTier),
			Tier:        string(effective),
			UpgradeHint: s.sourcesHint(effective, len(ids)),
		}, nil
	}

	sources, err := s.sources.GetMany(ctx, userId, ids)
	if errors.Is(err, dto.ErrNotFound) {
		return nil, &dto.AdmissionDeniedError{Reason: string(tier.ReasonNoDataSource), Tier: string(effective)}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return sources, nil, nil
}

func (s *analyticsService) history(ctx context.Context, uow unitofwork.UnitOfWork, conv *entity.Conversation) ([]reasoning.Turn, error) {
	if conv == nil {
		return nil, nil
	}
	messages, err := uow.MessageRepository().FindLatest(ctx, conv.Id, s.opts.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	turns := make([]reasoning.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, reasoning.Turn{Role: m.Role, Content: m.Content})
	}
	return turns, nil
}

// contexts builds the prompt view (bounded sample) and the correlation view
// (full stored sample) of every selected source
func (s *analyticsService) contexts(sources []*entity.DataSource) ([]reasoning.SourceContext, []correlation.SourceSample) {
	contexts := make([]reasoning.SourceContext, 0, len(sources))
	samples := make([]correlation.SourceSample, 0, len(sources))
	for _, ds := range sources {
		rs := schema.NewResultSet(ds.Columns, ds.SampleRows)
		contexts = append(contexts, reasoning.SourceContext{
			ID:       ds.Id.String(),
			Name:     ds.Name,
			RowCount: ds.RowCount,
			Columns:  ds.SchemaProfile,
			Sample:   rs.Head(s.opts.SampleRows).Rows,
			Insights: schema.Summarize(rs, ds.SchemaProfile),
		})
		samples = append(samples, correlation.SourceSample{
			SourceID: ds.Id.String(),
			Name:     ds.Name,
			Columns:  ds.SchemaProfile,
			Rows:     ds.SampleRows,
		})
	}
	return contexts, samples
}

func (s *analyticsService) chart(ctx context.Context, question string, ds *entity.DataSource) *chart.Spec {
	rs := schema.NewResultSet(ds.Columns, ds.SampleRows)
	spec, ok := s.charts.Recommend(ctx, question, rs)
	if !ok {
		return nil
	}
	shaped := chart.Shape(spec, rs)
	return &shaped
}

func (s *analyticsService) persistTurn(
	ctx context.Context,
	uow unitofwork.UnitOfWork,
	userId, conversationId uuid.UUID,
	existing *entity.Conversation,
	selection []uuid.UUID,
	question, answer string,
	metadata *entity.MessageMetadata,
) error {
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if existing == nil {
		conv := &entity.Conversation{
			Id:            conversationId,
			UserId:        userId,
			Title:         conversationTitle(question),
			DataSourceIds: selection,
		}
		if err := uow.ConversationRepository().Create(ctx, conv); err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
	} else {
		touched, err := uow.ConversationRepository().Touch(ctx, conversationId)
		if err != nil {
			return err
		}
		// deleted while the answer was being produced
		if !touched {
			return dto.ErrNotFound
		}
	}

	if err := uow.MessageRepository().Append(ctx, &entity.Message{
		ConversationId: conversationId,
		Role:           constant.MessageRoleUser,
		Content:        question,
	}); err != nil {
		return fmt.Errorf("append question: %w", err)
	}
	if err := uow.MessageRepository().Append(ctx, &entity.Message{
		ConversationId: conversationId,
		Role:           constant.MessageRoleAssistant,
		Content:        answer,
		Metadata:       metadata,
	}); err != nil {
		return fmt.Errorf("append answer: %w", err)
	}
	return uow.Commit()
}

func (s *analyticsService) denial(effective tier.Tier, d tier.Decision, hint string) *dto.AdmissionDeniedError {
	res := &dto.AdmissionDeniedError{
		Reason:      string(d.Reason),
		Tier:        string(effective),
		UpgradeHint: hint,
	}
	if d.RetryAfterSeconds > 0 {
		retry := d.RetryAfterSeconds
		res.RetryAfterSeconds = &retry
	}
	return res
}

func (s *analyticsService) quotaHint(current tier.Tier) string {
	policies := s.tiers.Policies()
	limit := policies[current].MaxQueriesPerWindow
	for _, t := range tiersAbove(current) {
		p := policies[t]
		if p.MaxQueriesPerWindow == tier.Unlimited || p.MaxQueriesPerWindow > limit {
			return fmt.Sprintf("The %s plan includes more questions per hour.", t)
		}
	}
	return ""
}

func (s *analyticsService) sourcesHint(current tier.Tier, selected int) string {
	policies := s.tiers.Policies()
	for _, t := range tiersAbove(current) {
		capacity := policies[t].MaxConcurrentDataSources
		if capacity == tier.Unlimited || capacity >= selected {
			return fmt.Sprintf("Analyzing %d data sources together is available on the %s plan.", selected, t)
		}
	}
	return ""
}

func tiersAbove(current tier.Tier) []tier.Tier {
	for i, t := range tier.Ordered {
		if t == current {
			return tier.Ordered[i+1:]
		}
	}
	return nil
}

func appendHint(hints []string, hint string) []string {
	if hint == "" {
		return hints
	}
	for _, h := range hints {
		if h == hint {
			return hints
		}
	}
	return append(hints, hint)
}

func (s *analyticsService) publishDenied(ctx context.Context, userId uuid.UUID, denied *dto.AdmissionDeniedError) {
	data := map[string]interface{}{
		"user_id": userId.String(),
		"tier":    denied.Tier,
		"reason":  denied.Reason,
	}
	if denied.RetryAfterSeconds != nil {
		data["retry_after_seconds"] = *denied.RetryAfterSeconds
	}
	s.publish(ctx, events.New(events.TypeQuestionDenied, data))
}

// publish never fails the turn
func (s *analyticsService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn(logger.ModuleEvents, "Failed to publish event", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
