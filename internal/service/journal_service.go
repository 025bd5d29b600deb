package service

import (
	"context"
	"errors"
	"fmt"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/log"
	"strings"
	"time"

	"gorm.io/gorm"
)

// 创建日记的结果状态。
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
)

// EventPublisher 发布日记领域事件。
type EventPublisher interface {
	Publish(ctx context.Context, event model.JournalEvent) error
}

// EntryResult 是一篇日记及其分析结果（分析失败时为 nil）。
type EntryResult struct {
	Entry    *model.JournalEntry `json:"entry"`
	Analysis *model.Analysis     `json:"analysis"`
}

// CreateEntryResult 是创建日记接口的返回体。
type CreateEntryResult struct {
	Status  string      `json:"status"`
	Data    EntryResult `json:"data"`
	Message string      `json:"message,omitempty"`
}

// JournalService 定义了日记相关的业务操作。
type JournalService interface {
	AnalyzeEntry(ctx context.Context, content string) (*model.Analysis, error)
	CreateEntry(ctx context.Context, userID, content string) (*CreateEntryResult, error)
	ListEntries(ctx context.Context, userID string, filter repository.EntryFilter) ([]model.JournalEntry, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
	RetryAnalysis(ctx context.Context, userID, entryID string) (*model.Analysis, error)
}

type journalService struct {
	entryRepo repository.EntryRepository
	analyzer  AnalysisService
	publisher EventPublisher
}

// NewJournalService 创建一个新的 JournalService 实例。publisher 可以为 nil。
func NewJournalService(entryRepo repository.EntryRepository, analyzer AnalysisService, publisher EventPublisher) JournalService {
	return &journalService{entryRepo: entryRepo, analyzer: analyzer, publisher: publisher}
}

func (s *journalService) AnalyzeEntry(ctx context.Context, content string) (*model.Analysis, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content must not be empty")
	}
	return s.analyzer.Analyze(ctx, content)
}

// CreateEntry 先保存日记，再分析并保存分析结果。
// 分析或保存分析失败时日记仍然保留，返回 partial_success。
func (s *journalService) CreateEntry(ctx context.Context, userID, content string) (*CreateEntryResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content must not be empty")
	}

	// 1. 保存日记
	entry := &model.JournalEntry{UserID: userID, Entry: content}
	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save journal entry: %w", err)
	}
	log.Infof("日记已保存, userID=%s, entryID=%s", userID, entry.ID)

	result := &CreateEntryResult{Status: StatusSuccess, Data: EntryResult{Entry: entry}}

	// 2. 分析日记
	analysis, err := s.analyzer.Analyze(ctx, content)
	if err != nil {
		log.Warnf("日记分析失败, entryID=%s: %v", entry.ID, err)
		result.Status = StatusPartialSuccess
		result.Message = "Entry saved, but the analysis could not be generated."
		s.publish(ctx, model.JournalEvent{Type: model.EventEntryAnalysisFailed, UserID: userID, EntryID: entry.ID})
		return result, nil
	}
	result.Data.Analysis = analysis

	// 3. 保存分析结果
	record := model.NewJournalAnalysis(entry.ID, *analysis)
	if err := s.entryRepo.SaveAnalysis(ctx, record); err != nil {
		log.Errorf("保存日记分析失败, entryID=%s: %v", entry.ID, err)
		result.Status = StatusPartialSuccess
		result.Message = "Entry saved and analyzed, but the analysis could not be stored."
	} else {
		entry.Analysis = record
	}

	s.publish(ctx, model.JournalEvent{Type: model.EventEntryCreated, UserID: userID, EntryID: entry.ID, Mood: analysis.Mood})
	return result, nil
}

func (s *journalService) ListEntries(ctx context.Context, userID string, filter repository.EntryFilter) ([]model.JournalEntry, error) {
	if filter.From != nil && filter.Until != nil && filter.Until.Before(*filter.From) {
		return nil, NewValidationError("end_date cannot be before start_date")
	}
	entries, err := s.entryRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	return entries, nil
}

func (s *journalService) DeleteEntry(ctx context.Context, userID, entryID string) error {
	if !validID(entryID) {
		return ErrEntryNotFound
	}
	err := s.entryRepo.Delete(ctx, userID, entryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEntryNotFound
	}
	if err != nil {
		return err
	}
	s.publish(ctx, model.JournalEvent{Type: model.EventEntryDeleted, UserID: userID, EntryID: entryID})
	return nil
}

// RetryAnalysis 为没有分析结果的日记重新生成分析。已有分析结果时直接返回。
func (s *journalService) RetryAnalysis(ctx context.Context, userID, entryID string) (*model.Analysis, error) {
	if !validID(entryID) {
		return nil, ErrEntryNotFound
	}
	entry, err := s.entryRepo.Find(ctx, userID, entryID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	if entry.Analysis != nil {
		existing := entry.Analysis.ToAnalysis()
		return &existing, nil
	}

	analysis, err := s.analyzer.Analyze(ctx, entry.Entry)
	if err != nil {
		return nil, err
	}
	if err := s.entryRepo.SaveAnalysis(ctx, model.NewJournalAnalysis(entry.ID, *analysis)); err != nil {
		return nil, fmt.Errorf("failed to store retried analysis: %w", err)
	}
	log.Infof("日记分析重试成功, entryID=%s", entry.ID)
	s.publish(ctx, model.JournalEvent{Type: model.EventEntryAnalyzed, UserID: userID, EntryID: entry.ID, Mood: analysis.Mood})
	return analysis, nil
}

// publish 发布事件，失败只记录日志。
func (s *journalService) publish(ctx context.Context, event model.JournalEvent) {
	publishEvent(ctx, s.publisher, event)
}

func publishEvent(ctx context.Context, publisher EventPublisher, event model.JournalEvent) {
	if publisher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warnf("发布事件 %s 失败: %v", event.Type, err)
	}
}
