package mapper

import (
	"encoding/json"
	"time"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/model"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

// Conversation Mappers

func (m *ConversationMapper) ConversationToEntity(c *model.Conversation) (*entity.Conversation, error) {
	if c == nil {
		return nil, nil
	}

	var ids []uuid.UUID
	if len(c.DataSourceIds) > 0 {
		if err := json.Unmarshal(c.DataSourceIds, &ids); err != nil {
			return nil, err
		}
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.Conversation{
		Id:            c.Id,
		UserId:        c.UserId,
		Title:         c.Title,
		DataSourceIds: ids,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func (m *ConversationMapper) ConversationToModel(c *entity.Conversation) (*model.Conversation, error) {
	if c == nil {
		return nil, nil
	}

	ids := c.DataSourceIds
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.Conversation{
		Id:            c.Id,
		UserId:        c.UserId,
		Title:         c.Title,
		DataSourceIds: datatypes.JSON(raw),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// Message Mappers

func (m *ConversationMapper) MessageToEntity(msg *model.Message) (*entity.Message, error) {
	if msg == nil {
		return nil, nil
	}

	var meta *entity.MessageMetadata
	if len(msg.Metadata) > 0 && string(msg.Metadata) != "null" {
		meta = &entity.MessageMetadata{}
		if err := json.Unmarshal(msg.Metadata, meta); err != nil {
			return nil, err
		}
	}

	return &entity.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		Role:           msg.Role,
		Content:        msg.Content,
		Metadata:       meta,
		CreatedAt:      msg.CreatedAt,
	}, nil
}

func (m *ConversationMapper) MessageToModel(msg *entity.Message) (*model.Message, error) {
	if msg == nil {
		return nil, nil
	}

	var meta datatypes.JSON
	if msg.Metadata != nil {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return nil, err
		}
		meta = datatypes.JSON(raw)
	}

	return &model.Message{
		Id:             msg.Id,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		Role:           msg.Role,
		Content:        msg.Content,
		Metadata:       meta,
		CreatedAt:      msg.CreatedAt,
	}, nil
}
