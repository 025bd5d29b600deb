// Package pipeline 定义了日记事件的异步处理流程。
package pipeline

import (
	"context"
	"errors"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/service"
	"smart-journal-go/pkg/log"
)

// Processor 消费 entry.analysis_failed 事件，为保存时没有拿到分析结果的日记重新分析。
type Processor struct {
	journal service.JournalService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(journal service.JournalService) *Processor {
	return &Processor{journal: journal}
}

// Handle 处理一条事件。其他类型的事件直接忽略。
func (p *Processor) Handle(ctx context.Context, event model.JournalEvent) error {
	if event.Type != model.EventEntryAnalysisFailed {
		return nil
	}
	if event.UserID == "" || event.EntryID == "" {
		log.Warnf("[Processor] 事件缺少 user_id 或 entry_id, 忽略: %+v", event)
		return nil
	}

	log.Infof("[Processor] 开始重新分析日记, entryID=%s", event.EntryID)
	analysis, err := p.journal.RetryAnalysis(ctx, event.UserID, event.EntryID)
	if errors.Is(err, service.ErrEntryNotFound) {
		// 日记已被删除
		log.Infof("[Processor] 日记不存在, 跳过, entryID=%s", event.EntryID)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("[Processor] 日记分析完成, entryID=%s, mood=%s", event.EntryID, analysis.Mood)
	return nil
}
