package entity

import (
	"time"

	"euno-analytics-be/pkg/chart"

	"github.com/google/uuid"
)

type Conversation struct {
	Id            uuid.UUID
	UserId        uuid.UUID
	Title         string
	DataSourceIds []uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     *time.Time
}

// Message is immutable once stored. Seq orders messages within a conversation.
type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Seq            int
	Role           string
	Content        string
	Metadata       *MessageMetadata
	CreatedAt      time.Time
}

type MessageMetadata struct {
	Confidence         float64     `json:"confidence"`
	ConfidenceLevel    string      `json:"confidence_level,omitempty"`
	SuggestedFollowUps []string    `json:"suggested_follow_ups,omitempty"`
	Chart              *chart.Spec `json:"chart,omitempty"`
	Intent             string      `json:"intent,omitempty"`
	Degraded           bool        `json:"degraded,omitempty"`
}
