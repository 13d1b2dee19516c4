package contract

import (
	"context"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *entity.Conversation) error
	// Touch bumps updated_at so listings show recent activity first. It
	// reports false when the conversation no longer exists.
	Touch(ctx context.Context, id uuid.UUID) (bool, error)
	// Delete removes the conversation and all of its messages
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Conversation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Conversation, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
