package repo

import (
	"time"

	"gorm.io/gorm"
)

type knowledgeRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Content   string `gorm:"type:text;not null;uniqueIndex"`
	Embedding []byte `gorm:"type:blob;not null"`
	CreatedAt time.Time
}

func (knowledgeRow) TableName() string { return "knowledge" }

// linkRow.ID doubles as the transcript sequence.
type linkRow struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	ConversationID string `gorm:"type:text;not null;uniqueIndex:idx_conversation_knowledge,priority:1"`
	KnowledgeID    uint   `gorm:"not null;uniqueIndex:idx_conversation_knowledge,priority:2"`
	Source         string `gorm:"type:text;not null"`
	CreatedAt      time.Time
}

func (linkRow) TableName() string { return "conversation_links" }

// Migrate creates or updates the knowledge and conversation_links tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&knowledgeRow{}, &linkRow{})
}
