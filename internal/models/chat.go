package models

import "time"

// Chat message senders
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// ChatMessage is one turn of a user's conversation with the assistant
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"userId"`
	Sender    string    `gorm:"not null" json:"sender"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

// TableName specifies the table name for ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}
