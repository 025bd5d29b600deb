package pipeline

import (
	"context"
	"errors"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/service"
	"testing"
)

type fakeJournal struct {
	service.JournalService
	retry func(ctx context.Context, userID, entryID string) (*model.Analysis, error)
	calls int
}

func (f *fakeJournal) RetryAnalysis(ctx context.Context, userID, entryID string) (*model.Analysis, error) {
	f.calls++
	return f.retry(ctx, userID, entryID)
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	j := &fakeJournal{}
	p := NewProcessor(j)
	for _, typ := range []model.EventType{model.EventEntryCreated, model.EventEntryAnalyzed, model.EventChatTurnCompleted} {
		if err := p.Handle(context.Background(), model.JournalEvent{Type: typ, UserID: "u1", EntryID: "e1"}); err != nil {
			t.Errorf("%s: unexpected error %v", typ, err)
		}
	}
	if j.calls != 0 {
		t.Errorf("expected no retries, got %d", j.calls)
	}
}

func TestHandleRetriesAnalysis(t *testing.T) {
	j := &fakeJournal{retry: func(_ context.Context, userID, entryID string) (*model.Analysis, error) {
		if userID != "u1" || entryID != "e1" {
			t.Errorf("unexpected ids %s/%s", userID, entryID)
		}
		return &model.Analysis{Mood: model.MoodContent}, nil
	}}
	err := NewProcessor(j).Handle(context.Background(), model.JournalEvent{Type: model.EventEntryAnalysisFailed, UserID: "u1", EntryID: "e1"})
	if err != nil || j.calls != 1 {
		t.Fatalf("expected one successful retry, got calls=%d err=%v", j.calls, err)
	}
}

func TestHandleDeletedEntryIsDone(t *testing.T) {
	j := &fakeJournal{retry: func(context.Context, string, string) (*model.Analysis, error) {
		return nil, service.ErrEntryNotFound
	}}
	if err := NewProcessor(j).Handle(context.Background(), model.JournalEvent{Type: model.EventEntryAnalysisFailed, UserID: "u1", EntryID: "gone"}); err != nil {
		t.Fatalf("expected deleted entry to be skipped, got %v", err)
	}
}

func TestHandlePropagatesAnalysisFailure(t *testing.T) {
	j := &fakeJournal{retry: func(context.Context, string, string) (*model.Analysis, error) {
		return nil, service.ErrAnalysisFailed
	}}
	err := NewProcessor(j).Handle(context.Background(), model.JournalEvent{Type: model.EventEntryAnalysisFailed, UserID: "u1", EntryID: "e1"})
	if !errors.Is(err, service.ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}
}
