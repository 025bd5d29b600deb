package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"smart-journal-go/internal/export"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/log"
	"time"
)

// ObjectStore 是导出文件的对象存储。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	PresignedURL(ctx context.Context, objectName, fileName string, expiry time.Duration) (string, error)
}

// ExportResult 是一次导出的结果。配置了对象存储时 URL 非空、Body 为空。
type ExportResult struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Entries     int       `json:"entries"`
	URL         string    `json:"url,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Body        []byte    `json:"-"`
}

// ExportService 把用户的日记导出为文件。
type ExportService interface {
	Export(ctx context.Context, user *model.User, format string, filter repository.EntryFilter) (*ExportResult, error)
}

type exportService struct {
	journal JournalService
	store   ObjectStore
	expiry  time.Duration
	now     func() time.Time
}

// NewExportService 创建一个新的 ExportService 实例。store 为 nil 时直接返回文件内容。
func NewExportService(journal JournalService, store ObjectStore, expiry time.Duration) ExportService {
	return &exportService{journal: journal, store: store, expiry: expiry, now: time.Now}
}

func (s *exportService) Export(ctx context.Context, user *model.User, format string, filter repository.EntryFilter) (*ExportResult, error) {
	exporter, err := export.NewExporter(format)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	// 1. 按筛选条件加载日记
	entries, err := s.journal.ListEntries(ctx, user.ID, filter)
	if err != nil {
		return nil, err
	}

	// 2. 渲染文件
	now := s.now()
	doc := export.NewDocument(user.DisplayName(user.Email), entries, now)
	var buf bytes.Buffer
	if err := exporter.Export(doc, &buf); err != nil {
		return nil, fmt.Errorf("failed to render export: %w", err)
	}
	result := &ExportResult{
		FileName:    fmt.Sprintf("journal-%s.%s", now.UTC().Format("20060102-150405"), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Entries:     len(entries),
	}
	if s.store == nil {
		result.Body = buf.Bytes()
		return result, nil
	}

	// 3. 上传到对象存储并生成临时下载链接
	objectName := fmt.Sprintf("exports/%s/%s", user.ID, result.FileName)
	if err := s.store.Put(ctx, objectName, bytes.NewReader(buf.Bytes()), int64(buf.Len()), result.ContentType); err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}
	url, err := s.store.PresignedURL(ctx, objectName, result.FileName, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign export: %w", err)
	}
	log.Infof("日记导出已上传, userID=%s, object=%s, entries=%d", user.ID, objectName, len(entries))
	result.URL = url
	result.ExpiresAt = now.Add(s.expiry).UTC()
	return result, nil
}
