package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Mood 是日记分析给出的情绪标签，取值范围固定。
type Mood string

const (
	MoodJoyful      Mood = "joyful"
	MoodContent     Mood = "content"
	MoodNeutral     Mood = "neutral"
	MoodAnxious     Mood = "anxious"
	MoodSad         Mood = "sad"
	MoodAngry       Mood = "angry"
	MoodFrustrated  Mood = "frustrated"
	MoodExcited     Mood = "excited"
	MoodGrateful    Mood = "grateful"
	MoodOverwhelmed Mood = "overwhelmed"
)

var allMoods = []Mood{
	MoodJoyful, MoodContent, MoodNeutral, MoodAnxious, MoodSad,
	MoodAngry, MoodFrustrated, MoodExcited, MoodGrateful, MoodOverwhelmed,
}

// Moods 返回全部合法的情绪标签。
func Moods() []Mood {
	return append([]Mood(nil), allMoods...)
}

// ParseMood 将字符串解析为 Mood，不在枚举内时返回错误。
func ParseMood(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range allMoods {
		if v == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("invalid mood %q", s)
}

// Category 是日记分析给出的主题分类，取值范围固定。
type Category string

const (
	CategoryHealth         Category = "health"
	CategoryCareer         Category = "career"
	CategoryRelationships  Category = "relationships"
	CategoryPersonalGrowth Category = "personal_growth"
	CategoryDailyLife      Category = "daily_life"
)

var allCategories = []Category{
	CategoryHealth, CategoryCareer, CategoryRelationships, CategoryPersonalGrowth, CategoryDailyLife,
}

// Categories 返回全部合法的分类。
func Categories() []Category {
	return append([]Category(nil), allCategories...)
}

// ParseCategory 将字符串解析为 Category，不在集合内时返回错误。
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range allCategories {
		if v == c {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid category %q", s)
}

// Analysis 是 LLM 对单篇日记的结构化分析结果。
type Analysis struct {
	Mood       Mood       `json:"mood"`
	Summary    string     `json:"summary"`
	Categories []Category `json:"categories"`
	KeyInsight string     `json:"key_insight"`
}

// JournalEntry 代表用户的一篇日记。
type JournalEntry struct {
	ID        string           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string           `gorm:"type:uuid;index;not null" json:"user_id"`
	Entry     string           `gorm:"type:text;not null" json:"entry"`
	CreatedAt time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	Analysis  *JournalAnalysis `gorm:"foreignKey:EntryID;constraint:OnDelete:CASCADE" json:"analysis"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}

func (e *JournalEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// JournalAnalysis 与 JournalEntry 一对一，创建后不再更新。
type JournalAnalysis struct {
	ID         string                        `gorm:"type:uuid;primaryKey" json:"id"`
	EntryID    string                        `gorm:"type:uuid;uniqueIndex;not null" json:"entry_id"`
	Mood       Mood                          `gorm:"type:varchar(32);not null" json:"mood"`
	Summary    string                        `gorm:"type:text" json:"summary"`
	Categories datatypes.JSONSlice[Category] `gorm:"type:jsonb" json:"categories"`
	KeyInsight string                        `gorm:"type:text" json:"key_insight"`
	CreatedAt  time.Time                     `gorm:"autoCreateTime" json:"created_at"`
}

func (JournalAnalysis) TableName() string {
	return "journal_analyses"
}

func (a *JournalAnalysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// NewJournalAnalysis 根据分析结果构造待持久化的记录。
func NewJournalAnalysis(entryID string, a Analysis) *JournalAnalysis {
	return &JournalAnalysis{
		EntryID:    entryID,
		Mood:       a.Mood,
		Summary:    a.Summary,
		Categories: datatypes.JSONSlice[Category](a.Categories),
		KeyInsight: a.KeyInsight,
	}
}

// ToAnalysis 返回不含持久化字段的分析结果。
func (a *JournalAnalysis) ToAnalysis() Analysis {
	return Analysis{
		Mood:       a.Mood,
		Summary:    a.Summary,
		Categories: []Category(a.Categories),
		KeyInsight: a.KeyInsight,
	}
}
