package implementation

import (
	"context"
	"time"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/mapper"
	"euno-analytics-be/internal/model"
	"euno-analytics-be/internal/repository/contract"
	"euno-analytics-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewMessageRepository(db *gorm.DB) contract.MessageRepository {
	return &MessageRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

// Append assigns seq = last + 1. A concurrent writer racing for the same
// position fails on the unique (conversation_id, seq) index.
func (r *MessageRepositoryImpl) Append(ctx context.Context, msg *entity.Message) error {
	if msg.Id == uuid.Nil {
		msg.Id = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	var last struct{ Seq *int }
	if err := r.db.WithContext(ctx).Model(&model.Message{}).
		Select("MAX(seq) AS seq").
		Where("conversation_id = ?", msg.ConversationId).
		Scan(&last).Error; err != nil {
		return err
	}
	msg.Seq = 1
	if last.Seq != nil {
		msg.Seq = *last.Seq + 1
	}

	m, err := r.mapper.MessageToModel(msg)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MessageRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	var models []*model.Message
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toEntities(models)
}

func (r *MessageRepositoryImpl) FindLatest(ctx context.Context, conversationId uuid.UUID, n int) ([]*entity.Message, error) {
	var models []*model.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationId).
		Order("seq DESC").
		Limit(n).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(models)-1; i < j; i, j = i+1, j-1 {
		models[i], models[j] = models[j], models[i]
	}
	return r.toEntities(models)
}

func (r *MessageRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.Message{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MessageRepositoryImpl) toEntities(models []*model.Message) ([]*entity.Message, error) {
	entities := make([]*entity.Message, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.MessageToEntity(m)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}
