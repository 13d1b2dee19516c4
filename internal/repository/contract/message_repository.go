package contract

import (
	"context"

	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/repository/specification"

	"github.com/google/uuid"
)

// MessageRepository is append-only: there is no Update.
type MessageRepository interface {
	// Append stores the message at the next sequence position of its conversation
	Append(ctx context.Context, msg *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	// FindLatest returns the newest n messages, oldest first
	FindLatest(ctx context.Context, conversationId uuid.UUID, n int) ([]*entity.Message, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
