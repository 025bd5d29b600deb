package repository

import (
	"context"
	"errors"
	"fmt"
	"smart-journal-go/internal/model"
	"strings"
	"time"

	"gorm.io/gorm"
)

// EntryFilter 描述日记列表的筛选条件。
type EntryFilter struct {
	Search string     // 正文子串匹配（不区分大小写）
	From   *time.Time // created_at >= From
	Until  *time.Time // created_at < Until
	Limit  int        // 0 表示不限制
}

// EntryRepository 定义了日记与分析结果的持久化操作，所有操作都按用户隔离。
type EntryRepository interface {
	Create(ctx context.Context, entry *model.JournalEntry) error
	SaveAnalysis(ctx context.Context, analysis *model.JournalAnalysis) error
	Find(ctx context.Context, userID, entryID string) (*model.JournalEntry, error)
	List(ctx context.Context, userID string, filter EntryFilter) ([]model.JournalEntry, error)
	Delete(ctx context.Context, userID, entryID string) error
	Count(ctx context.Context, userID string) (int64, error)
	EarliestCreatedAt(ctx context.Context, userID string) (*time.Time, error)
}

type entryRepository struct {
	db *gorm.DB
}

// NewEntryRepository 创建一个新的 EntryRepository 实例。
func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) Create(ctx context.Context, entry *model.JournalEntry) error {
	if err := r.db.WithContext(ctx).Omit("Analysis").Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

func (r *entryRepository) SaveAnalysis(ctx context.Context, analysis *model.JournalAnalysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}
	return nil
}

// Find 返回用户的一篇日记及其分析结果，不存在或不属于该用户时返回 gorm.ErrRecordNotFound。
func (r *entryRepository) Find(ctx context.Context, userID, entryID string) (*model.JournalEntry, error) {
	var entry model.JournalEntry
	err := r.db.WithContext(ctx).Preload("Analysis").Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// escapeLike 转义 LIKE 模式中的通配符，使搜索词按字面匹配。
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *entryRepository) List(ctx context.Context, userID string, filter EntryFilter) ([]model.JournalEntry, error) {
	q := r.db.WithContext(ctx).Preload("Analysis").Where("user_id = ?", userID)
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("entry ILIKE ?", "%"+escapeLike(s)+"%")
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.Until != nil {
		q = q.Where("created_at < ?", *filter.Until)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var entries []model.JournalEntry
	if err := q.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// Delete 校验归属后先删除分析结果再删除日记。不属于该用户时返回 gorm.ErrRecordNotFound。
func (r *entryRepository) Delete(ctx context.Context, userID, entryID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry model.JournalEntry
		if err := tx.Where("id = ? AND user_id = ?", entryID, userID).First(&entry).Error; err != nil {
			return err
		}
		if err := tx.Where("entry_id = ?", entry.ID).Delete(&model.JournalAnalysis{}).Error; err != nil {
			return fmt.Errorf("failed to delete analysis: %w", err)
		}
		if err := tx.Delete(&entry).Error; err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		return nil
	})
}

func (r *entryRepository) Count(ctx context.Context, userID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.JournalEntry{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return total, nil
}

// EarliestCreatedAt 返回用户第一篇日记的创建时间，没有日记时返回 nil。
func (r *entryRepository) EarliestCreatedAt(ctx context.Context, userID string) (*time.Time, error) {
	var first model.JournalEntry
	err := r.db.WithContext(ctx).Select("created_at").Where("user_id = ?", userID).Order("created_at ASC").First(&first).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find earliest entry: %w", err)
	}
	return &first.CreatedAt, nil
}
