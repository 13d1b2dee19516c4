package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"euno-analytics-be/internal/constant"
	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/pkg/logger"
	"euno-analytics-be/internal/repository/specification"
	"euno-analytics-be/internal/repository/unitofwork"
	"euno-analytics-be/pkg/chart"
	"euno-analytics-be/pkg/conversation"
	"euno-analytics-be/pkg/events"

	"github.com/google/uuid"
)

type IConversationService interface {
	Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	Append(ctx context.Context, userId, conversationId uuid.UUID, msg *entity.Message) error
	List(ctx context.Context, userId, conversationId uuid.UUID) ([]*dto.MessageResponse, error)
	ListConversations(ctx context.Context, userId uuid.UUID, query string, limit, offset int) ([]*dto.ConversationResponse, error)
	Delete(ctx context.Context, userId, conversationId uuid.UUID) error
}

type conversationService struct {
	uowFactory unitofwork.RepositoryFactory
	gate       conversation.TurnGate
	publisher  events.Publisher
	logger     logger.ILogger
}

// NewConversationService shares the turn gate with the analytics service so a
// conversation cannot be deleted while one of its turns is running.
func NewConversationService(uowFactory unitofwork.RepositoryFactory, gate conversation.TurnGate, publisher events.Publisher, log logger.ILogger) IConversationService {
	return &conversationService{
		uowFactory: uowFactory,
		gate:       gate,
		publisher:  publisher,
		logger:     log,
	}
}

func (s *conversationService) Create(ctx context.Context, userId uuid.UUID, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New conversation"
	}
	conv := &entity.Conversation{
		UserId:        userId,
		Title:         conversationTitle(title),
		DataSourceIds: dedupeIDs(req.DataSourceIds),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ConversationRepository().Create(ctx, conv); err != nil {
		return nil, err
	}
	return toConversationResponse(conv), nil
}

func (s *conversationService) Append(ctx context.Context, userId, conversationId uuid.UUID, msg *entity.Message) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.owned(ctx, uow, userId, conversationId); err != nil {
		return err
	}
	msg.ConversationId = conversationId

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.MessageRepository().Append(ctx, msg); err != nil {
		return err
	}
	touched, err := uow.ConversationRepository().Touch(ctx, conversationId)
	if err != nil {
		return err
	}
	if !touched {
		return dto.ErrNotFound
	}
	return uow.Commit()
}

func (s *conversationService) List(ctx context.Context, userId, conversationId uuid.UUID) ([]*dto.MessageResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.owned(ctx, uow, userId, conversationId); err != nil {
		return nil, err
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.ByConversationID{ConversationID: conversationId},
		specification.OrderBy{Field: "seq"},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.MessageResponse, 0, len(messages))
	for _, m := range messages {
		res = append(res, toMessageResponse(m))
	}
	return res, nil
}

func (s *conversationService) ListConversations(ctx context.Context, userId uuid.UUID, query string, limit, offset int) ([]*dto.ConversationResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	conversations, err := uow.ConversationRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.TitleContains{Query: query},
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		res = append(res, toConversationResponse(c))
	}
	return res, nil
}

func (s *conversationService) Delete(ctx context.Context, userId, conversationId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.owned(ctx, uow, userId, conversationId); err != nil {
		return err
	}

	release, err := s.gate.Acquire(ctx, conversationId.String())
	if err != nil {
		return err
	}
	defer release()

	if err := uow.ConversationRepository().Delete(ctx, conversationId); err != nil {
		return err
	}

	evt := events.New(events.TypeConversationDeleted, map[string]interface{}{
		"user_id":         userId.String(),
		"conversation_id": conversationId.String(),
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error(logger.ModuleEvents, "Failed to publish CONVERSATION_DELETED event", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

func (s *conversationService) owned(ctx context.Context, uow unitofwork.UnitOfWork, userId, conversationId uuid.UUID) (*entity.Conversation, error) {
	conv, err := uow.ConversationRepository().FindOne(ctx,
		specification.ByID{ID: conversationId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationId, dto.ErrNotFound)
	}
	return conv, nil
}

// conversationTitle cuts on a rune boundary
func conversationTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= constant.ConversationTitleMaxLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:constant.ConversationTitleMaxLength-1])) + "…"
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func toConversationResponse(c *entity.Conversation) *dto.ConversationResponse {
	ids := c.DataSourceIds
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return &dto.ConversationResponse{
		Id:            c.Id,
		Title:         c.Title,
		DataSourceIds: ids,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toMessageResponse(m *entity.Message) *dto.MessageResponse {
	res := &dto.MessageResponse{
		Id:        m.Id,
		Seq:       m.Seq,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.Metadata != nil {
		confidence := m.Metadata.Confidence
		res.Confidence = &confidence
		res.SuggestedFollowUps = m.Metadata.SuggestedFollowUps
		res.Chart = toChartDTO(m.Metadata.Chart)
	}
	return res
}

func toChartDTO(spec *chart.Spec) *dto.ChartDTO {
	if spec == nil {
		return nil
	}
	points := make([]dto.ChartPointDTO, 0, len(spec.Data))
	for _, p := range spec.Data {
		points = append(points, dto.ChartPointDTO{X: p.X, Y: p.Y})
	}
	return &dto.ChartDTO{
		Type:       string(spec.Type),
		XAxis:      spec.XAxis,
		YAxis:      spec.YAxis,
		Data:       points,
		Reasoning:  spec.Reasoning,
		Confidence: spec.Confidence,
		Fallback:   spec.Fallback,
	}
}
