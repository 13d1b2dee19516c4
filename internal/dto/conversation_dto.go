package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title         string      `json:"title" validate:"max=80"`
	DataSourceIds []uuid.UUID `json:"data_source_ids"`
}

type ConversationResponse struct {
	Id            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	DataSourceIds []uuid.UUID `json:"data_source_ids"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     *time.Time  `json:"updated_at"`
}

type MessageResponse struct {
	Id                 uuid.UUID `json:"id"`
	Seq                int       `json:"seq"`
	Role               string    `json:"role"`
	Content            string    `json:"content"`
	Confidence         *float64  `json:"confidence,omitempty"`
	SuggestedFollowUps []string  `json:"suggested_follow_ups,omitempty"`
	Chart              *ChartDTO `json:"chart,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
