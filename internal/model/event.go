package model

import "time"

// EventType 标识日记领域事件的类型。
type EventType string

const (
	EventEntryCreated        EventType = "entry.created"
	EventEntryAnalysisFailed EventType = "entry.analysis_failed"
	EventEntryAnalyzed       EventType = "entry.analyzed"
	EventEntryDeleted        EventType = "entry.deleted"
	EventChatTurnCompleted   EventType = "chat.turn_completed"
	EventChatWindowDeleted   EventType = "chat.window_deleted"
)

// JournalEvent 是发布到消息队列的领域事件。
type JournalEvent struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	EntryID    string    `json:"entry_id,omitempty"`
	WindowID   string    `json:"window_id,omitempty"`
	Mood       Mood      `json:"mood,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
