package service

import (
	"context"
	"errors"
	"fmt"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/llm"
	"smart-journal-go/pkg/log"
	"strings"

	"gorm.io/gorm"
)

const (
	chatSystemPrompt = "You are Levi, a warm and supportive journaling companion. " +
		"Help the user reflect on their thoughts and experiences using what they have written in their journal. " +
		"Refer to specific entries when they are relevant, notice patterns gently, and never invent entries that are not listed below."
	titleSystemPrompt = "Generate a very short, concise title (4-6 words max) for a chat conversation that starts with this message. Make it descriptive but brief."

	maxSnippetLen = 1000
	maxTitleLen   = 100
)

// TokenSink 接收流式回复的分块，写入失败表示客户端已断开。
type TokenSink interface {
	WriteToken(token string) error
}

// TokenSinkFunc 把普通函数适配为 TokenSink。
type TokenSinkFunc func(token string) error

func (f TokenSinkFunc) WriteToken(token string) error { return f(token) }

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Converse 执行一轮对话。只有在发出第一个分块之前的错误
	// （参数校验、窗口不存在、窗口忙）才会返回；生成阶段的失败以兜底回复结束。
	Converse(ctx context.Context, user *model.User, windowID, message string, sink TokenSink) error
}

type chatService struct {
	chatRepo  repository.ChatRepository
	entryRepo repository.EntryRepository
	llmClient llm.Client
	turnLock  repository.TurnLock
	publisher EventPublisher
	cfg       config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, entryRepo repository.EntryRepository, llmClient llm.Client,
	turnLock repository.TurnLock, publisher EventPublisher, cfg config.ChatConfig) ChatService {
	if turnLock == nil {
		turnLock = repository.NoopTurnLock{}
	}
	return &chatService{
		chatRepo:  chatRepo,
		entryRepo: entryRepo,
		llmClient: llmClient,
		turnLock:  turnLock,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *chatService) Converse(ctx context.Context, user *model.User, windowID, message string, sink TokenSink) error {
	if strings.TrimSpace(message) == "" {
		return NewValidationError("message must not be empty")
	}
	if strings.TrimSpace(windowID) == "" {
		return NewValidationError("window_id is required")
	}
	if !validID(windowID) {
		return ErrWindowNotFound
	}
	window, err := s.chatRepo.FindWindow(ctx, user.ID, windowID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrWindowNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load chat window: %w", err)
	}

	release, err := s.turnLock.Acquire(ctx, window.ID)
	if errors.Is(err, repository.ErrLockHeld) {
		return ErrTurnInProgress
	}
	if err != nil {
		return fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	defer release()

	// 1. 加载窗口历史（从旧到新）
	history, historyErr := s.chatRepo.RecentMessages(ctx, window.ID, s.cfg.HistoryLimit)
	if historyErr != nil {
		log.Errorf("加载聊天历史失败, windowID=%s: %v", window.ID, historyErr)
		history = nil
	}

	// 2. 先持久化用户消息
	userMsg := &model.ChatMessage{WindowID: window.ID, UserID: user.ID, Role: model.RoleUser, Content: message}
	if err := s.chatRepo.AppendMessage(ctx, userMsg); err != nil {
		return fmt.Errorf("failed to save user message: %w", err)
	}

	// 3. 首轮对话生成标题
	if historyErr == nil && len(history) == 0 {
		s.generateTitle(ctx, user.ID, window.ID, message)
	}

	// 4. 组装上下文
	messages := s.composeMessages(s.buildSystemMessage(ctx, user), history, message)

	// 5. 流式生成，拦截器同时累积完整回复
	answerBuilder := &strings.Builder{}
	interceptor := &sinkInterceptor{sink: sink, writer: answerBuilder}
	streamErr := s.llmClient.StreamChatMessages(ctx, messages, nil, interceptor)

	// 6. 持久化助手回复。请求被取消后仍需写入，使用脱离取消的上下文
	persistCtx := context.WithoutCancel(ctx)
	reply := answerBuilder.String()
	switch {
	case streamErr == nil && strings.TrimSpace(reply) != "":
	case streamErr == nil:
		log.Warnf("LLM 返回空回复, windowID=%s", window.ID)
		reply = s.emitFallback(sink)
	case interceptor.sinkErr != nil || ctx.Err() != nil:
		log.Warnf("客户端在生成过程中断开, windowID=%s, 已生成 %d 字节", window.ID, len(reply))
		if strings.TrimSpace(reply) == "" {
			reply = s.cfg.FallbackMessage
		}
	default:
		log.Errorf("生成聊天回复失败, windowID=%s: %v", window.ID, streamErr)
		reply = s.emitFallback(sink)
	}

	assistantMsg := &model.ChatMessage{WindowID: window.ID, UserID: user.ID, Role: model.RoleAssistant, Content: reply}
	if err := s.chatRepo.AppendMessage(persistCtx, assistantMsg); err != nil {
		// 流已经发出，只记录错误
		log.Errorf("保存助手回复失败, windowID=%s: %v", window.ID, err)
	}

	publishEvent(persistCtx, s.publisher, model.JournalEvent{Type: model.EventChatTurnCompleted, UserID: user.ID, WindowID: window.ID})
	return nil
}

// emitFallback 向客户端发送兜底回复并返回其内容。
func (s *chatService) emitFallback(sink TokenSink) string {
	if err := sink.WriteToken(s.cfg.FallbackMessage); err != nil {
		log.Warnf("发送兜底回复失败: %v", err)
	}
	return s.cfg.FallbackMessage
}

// generateTitle 用首条消息生成窗口标题，失败时保留默认标题。
func (s *chatService) generateTitle(ctx context.Context, userID, windowID, firstMessage string) {
	maxTokens := s.cfg.TitleMaxTokens
	temperature := s.cfg.TitleTemperature
	gen := &llm.GenerationParams{MaxTokens: &maxTokens, Temperature: &temperature}
	raw, err := s.llmClient.Complete(ctx, []llm.Message{
		{Role: string(model.RoleSystem), Content: titleSystemPrompt},
		{Role: string(model.RoleUser), Content: firstMessage},
	}, gen)
	if err != nil {
		log.Warnf("生成聊天标题失败, windowID=%s: %v", windowID, err)
		return
	}
	title := CleanTitle(raw)
	if title == "" {
		return
	}
	if err := s.chatRepo.RenameWindow(ctx, userID, windowID, title); err != nil {
		log.Warnf("保存聊天标题失败, windowID=%s: %v", windowID, err)
	}
}

// CleanTitle 去掉标题两侧的空白与引号，并限制长度。
func CleanTitle(raw string) string {
	title := strings.Trim(strings.TrimSpace(raw), "\"'“”‘’` ")
	if r := []rune(title); len(r) > maxTitleLen {
		title = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	return title
}

// buildSystemMessage 用用户资料与最近的日记构建 system 消息。统计失败时跳过对应部分。
func (s *chatService) buildSystemMessage(ctx context.Context, user *model.User) string {
	var sys strings.Builder
	sys.WriteString(chatSystemPrompt)
	sys.WriteString("\n\n")
	sys.WriteString(fmt.Sprintf("The user's name is %s.\n", user.DisplayName(s.cfg.DefaultName)))

	if total, err := s.entryRepo.Count(ctx, user.ID); err != nil {
		log.Warnf("统计日记数量失败, userID=%s: %v", user.ID, err)
	} else {
		sys.WriteString(fmt.Sprintf("Total journal entries: %d\n", total))
	}
	if first, err := s.entryRepo.EarliestCreatedAt(ctx, user.ID); err != nil {
		log.Warnf("查询首篇日记失败, userID=%s: %v", user.ID, err)
	} else if first != nil {
		sys.WriteString(fmt.Sprintf("Journaling since: %s\n", first.UTC().Format(model.DateLayout)))
	}

	entries, err := s.entryRepo.List(ctx, user.ID, repository.EntryFilter{Limit: s.cfg.RecentEntriesLimit})
	if err != nil {
		log.Warnf("加载最近日记失败, userID=%s: %v", user.ID, err)
		entries = nil
	}
	sys.WriteString("\nMost recent journal entries:\n")
	sys.WriteString(buildEntriesContext(entries))
	return sys.String()
}

func buildEntriesContext(entries []model.JournalEntry) string {
	if len(entries) == 0 {
		return "(the user has not written any entries yet)\n"
	}
	var b strings.Builder
	for i, e := range entries {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, e.CreatedAt.UTC().Format(model.DateLayout)))
		b.WriteString("Entry: ")
		b.WriteString(truncate(e.Entry, maxSnippetLen))
		b.WriteString("\n")
		if e.Analysis != nil {
			b.WriteString(fmt.Sprintf("Mood: %s\nSummary: %s\nKey insight: %s\n", e.Analysis.Mood, e.Analysis.Summary, e.Analysis.KeyInsight))
		}
		b.WriteString("---\n")
	}
	return b.String()
}

func (s *chatService) composeMessages(systemMsg string, history []model.ChatMessage, userInput string) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: systemMsg})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: string(model.RoleUser), Content: userInput})
	return msgs
}

// sinkInterceptor 把分块转发给 sink，同时捕获完整回复。
type sinkInterceptor struct {
	sink    TokenSink
	writer  *strings.Builder
	sinkErr error
}

// WriteChunk 满足 llm.ChunkWriter 接口。
func (w *sinkInterceptor) WriteChunk(chunk string) error {
	w.writer.WriteString(chunk)
	if err := w.sink.WriteToken(chunk); err != nil {
		w.sinkErr = err
		return err
	}
	return nil
}
