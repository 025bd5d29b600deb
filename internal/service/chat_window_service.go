package service

import (
	"context"
	"errors"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

// maxWindowTitleLen 与 chat_windows.title 的 varchar(255) 一致。
const maxWindowTitleLen = 255

// ChatWindowService 管理聊天窗口及其历史消息。
type ChatWindowService interface {
	CreateWindow(ctx context.Context, userID, title string) (*model.ChatWindow, error)
	ListWindows(ctx context.Context, userID string) ([]model.ChatWindow, error)
	History(ctx context.Context, userID, windowID string) ([]model.ChatMessage, error)
	RenameWindow(ctx context.Context, userID, windowID, title string) error
	DeleteWindow(ctx context.Context, userID, windowID string) error
}

type chatWindowService struct {
	chatRepo  repository.ChatRepository
	publisher EventPublisher
	cfg       config.ChatConfig
}

// NewChatWindowService 创建一个新的 ChatWindowService 实例。
func NewChatWindowService(chatRepo repository.ChatRepository, publisher EventPublisher, cfg config.ChatConfig) ChatWindowService {
	return &chatWindowService{chatRepo: chatRepo, publisher: publisher, cfg: cfg}
}

func (s *chatWindowService) CreateWindow(ctx context.Context, userID, title string) (*model.ChatWindow, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = s.cfg.DefaultTitle
	}
	if utf8.RuneCountInString(title) > maxWindowTitleLen {
		return nil, NewValidationError("title must be at most 255 characters")
	}
	window := &model.ChatWindow{UserID: userID, Title: title}
	if err := s.chatRepo.CreateWindow(ctx, window); err != nil {
		return nil, err
	}
	return window, nil
}

func (s *chatWindowService) ListWindows(ctx context.Context, userID string) ([]model.ChatWindow, error) {
	windows, err := s.chatRepo.ListWindows(ctx, userID)
	if err != nil {
		return nil, err
	}
	if windows == nil {
		windows = []model.ChatWindow{}
	}
	return windows, nil
}

func (s *chatWindowService) History(ctx context.Context, userID, windowID string) ([]model.ChatMessage, error) {
	if !validID(windowID) {
		return nil, ErrWindowNotFound
	}
	msgs, err := s.chatRepo.ListMessages(ctx, userID, windowID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWindowNotFound
	}
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return msgs, nil
}

func (s *chatWindowService) RenameWindow(ctx context.Context, userID, windowID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return NewValidationError("title is required")
	}
	if utf8.RuneCountInString(title) > maxWindowTitleLen {
		return NewValidationError("title must be at most 255 characters")
	}
	if !validID(windowID) {
		return ErrWindowNotFound
	}
	err := s.chatRepo.RenameWindow(ctx, userID, windowID, title)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrWindowNotFound
	}
	return err
}

func (s *chatWindowService) DeleteWindow(ctx context.Context, userID, windowID string) error {
	if !validID(windowID) {
		return ErrWindowNotFound
	}
	err := s.chatRepo.DeleteWindow(ctx, userID, windowID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrWindowNotFound
	}
	if err != nil {
		return err
	}
	publishEvent(ctx, s.publisher, model.JournalEvent{Type: model.EventChatWindowDeleted, UserID: userID, WindowID: windowID})
	return nil
}
