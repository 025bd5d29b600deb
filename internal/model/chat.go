package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role 表示聊天消息的发送方。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatWindow 是一个命名的对话线程。
type ChatWindow struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	LastUpdated time.Time `gorm:"index" json:"last_updated"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ChatWindow) TableName() string {
	return "chat_windows"
}

func (w *ChatWindow) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.LastUpdated.IsZero() {
		w.LastUpdated = time.Now()
	}
	return nil
}

// ChatMessage 代表窗口中的单条消息，只追加不修改。
type ChatMessage struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	WindowID  string    `gorm:"type:uuid;index;not null" json:"window_id"`
	UserID    string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
