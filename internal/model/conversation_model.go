package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Conversation struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId        uuid.UUID `gorm:"type:uuid;not null;index"`
	Title         string    `gorm:"type:text;not null"`
	DataSourceIds datatypes.JSON
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message rows are append-only; (conversation_id, seq) is unique so two
// writers cannot claim the same position.
type Message struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_conversation_seq,priority:1"`
	Seq            int       `gorm:"not null;uniqueIndex:idx_messages_conversation_seq,priority:2"`
	Role           string    `gorm:"type:varchar(16);not null"`
	Content        string    `gorm:"type:text;not null"`
	Metadata       datatypes.JSON
	CreatedAt      time.Time `gorm:"autoCreateTime"`

	Conversation *Conversation `gorm:"foreignKey:ConversationId;references:Id;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string {
	return "messages"
}
