package repository

import (
	"context"
	"fmt"
	"smart-journal-go/internal/model"
	"time"

	"gorm.io/gorm"
)

// ChatRepository 定义了聊天窗口与消息的持久化操作。
// 不属于该用户的窗口一律视为不存在，返回 gorm.ErrRecordNotFound。
type ChatRepository interface {
	CreateWindow(ctx context.Context, window *model.ChatWindow) error
	ListWindows(ctx context.Context, userID string) ([]model.ChatWindow, error)
	FindWindow(ctx context.Context, userID, windowID string) (*model.ChatWindow, error)
	RenameWindow(ctx context.Context, userID, windowID, title string) error
	DeleteWindow(ctx context.Context, userID, windowID string) error
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	ListMessages(ctx context.Context, userID, windowID string) ([]model.ChatMessage, error)
	RecentMessages(ctx context.Context, windowID string, limit int) ([]model.ChatMessage, error)
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateWindow(ctx context.Context, window *model.ChatWindow) error {
	if err := r.db.WithContext(ctx).Create(window).Error; err != nil {
		return fmt.Errorf("failed to create chat window: %w", err)
	}
	return nil
}

func (r *chatRepository) ListWindows(ctx context.Context, userID string) ([]model.ChatWindow, error) {
	var windows []model.ChatWindow
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("last_updated DESC").Find(&windows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list chat windows: %w", err)
	}
	return windows, nil
}

func (r *chatRepository) FindWindow(ctx context.Context, userID, windowID string) (*model.ChatWindow, error) {
	var window model.ChatWindow
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", windowID, userID).First(&window).Error; err != nil {
		return nil, err
	}
	return &window, nil
}

func (r *chatRepository) RenameWindow(ctx context.Context, userID, windowID, title string) error {
	res := r.db.WithContext(ctx).Model(&model.ChatWindow{}).
		Where("id = ? AND user_id = ?", windowID, userID).
		Update("title", title)
	if res.Error != nil {
		return fmt.Errorf("failed to rename chat window: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteWindow 先删除窗口内的消息，再删除窗口本身。
func (r *chatRepository) DeleteWindow(ctx context.Context, userID, windowID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var window model.ChatWindow
		if err := tx.Where("id = ? AND user_id = ?", windowID, userID).First(&window).Error; err != nil {
			return err
		}
		if err := tx.Where("window_id = ?", window.ID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete chat messages: %w", err)
		}
		if err := tx.Delete(&window).Error; err != nil {
			return fmt.Errorf("failed to delete chat window: %w", err)
		}
		return nil
	})
}

// AppendMessage 追加一条消息，并刷新窗口的 last_updated。
func (r *chatRepository) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to save chat message: %w", err)
		}
		err := tx.Model(&model.ChatWindow{}).Where("id = ?", msg.WindowID).Update("last_updated", time.Now()).Error
		if err != nil {
			return fmt.Errorf("failed to touch chat window: %w", err)
		}
		return nil
	})
}

func (r *chatRepository) ListMessages(ctx context.Context, userID, windowID string) ([]model.ChatMessage, error) {
	if _, err := r.FindWindow(ctx, userID, windowID); err != nil {
		return nil, err
	}
	var msgs []model.ChatMessage
	if err := r.db.WithContext(ctx).Where("window_id = ?", windowID).Order("created_at ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return msgs, nil
}

// RecentMessages 返回窗口最近的 limit 条消息，按时间从旧到新排列。
func (r *chatRepository) RecentMessages(ctx context.Context, windowID string, limit int) ([]model.ChatMessage, error) {
	var msgs []model.ChatMessage
	err := r.db.WithContext(ctx).Where("window_id = ?", windowID).
		Order("created_at DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent chat messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
