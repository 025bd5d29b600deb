package service

import (
	"context"
	"errors"
	"io"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/llm"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// fakeLLM 按函数字段返回预设结果。
type fakeLLM struct {
	complete func(messages []llm.Message, gen *llm.GenerationParams) (string, error)
	stream   func(ctx context.Context, messages []llm.Message, w llm.ChunkWriter) error

	mu       sync.Mutex
	streamed [][]llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	if f.complete == nil {
		return "", nil
	}
	return f.complete(messages, gen)
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, _ *llm.GenerationParams, w llm.ChunkWriter) error {
	f.mu.Lock()
	f.streamed = append(f.streamed, messages)
	f.mu.Unlock()
	if f.stream == nil {
		return nil
	}
	return f.stream(ctx, messages, w)
}

// chunks 返回依次写出给定分块的 stream 实现。
func chunks(parts ...string) func(context.Context, []llm.Message, llm.ChunkWriter) error {
	return func(_ context.Context, _ []llm.Message, w llm.ChunkWriter) error {
		for _, p := range parts {
			if err := w.WriteChunk(p); err != nil {
				return err
			}
		}
		return nil
	}
}

// errInvalidUUID 模拟 Postgres 对 uuid 列传入非法值时的报错（SQLSTATE 22P02）。
var errInvalidUUID = errors.New(`ERROR: invalid input syntax for type uuid (SQLSTATE 22P02)`)

func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errInvalidUUID
	}
	return nil
}

// fakeEntryRepo 是 EntryRepository 的内存实现。
type fakeEntryRepo struct {
	mu        sync.Mutex
	entries   []model.JournalEntry
	createErr error
	saveErr   error
	listErr   error
}

func (r *fakeEntryRepo) Create(_ context.Context, entry *model.JournalEntry) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeEntryRepo) SaveAnalysis(_ context.Context, analysis *model.JournalAnalysis) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].ID == analysis.EntryID {
			r.entries[i].Analysis = analysis
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeEntryRepo) Find(_ context.Context, userID, entryID string) (*model.JournalEntry, error) {
	if err := checkUUID(entryID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == entryID && e.UserID == userID {
			cp := e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeEntryRepo) List(_ context.Context, userID string, filter repository.EntryFilter) ([]model.JournalEntry, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.JournalEntry
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.Until != nil && !e.CreatedAt.Before(*filter.Until) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *fakeEntryRepo) Delete(_ context.Context, userID, entryID string) error {
	if err := checkUUID(entryID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == entryID && e.UserID == userID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeEntryRepo) Count(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeEntryRepo) EarliestCreatedAt(_ context.Context, userID string) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first *time.Time
	for _, e := range r.entries {
		if e.UserID != userID {
			continue
		}
		if first == nil || e.CreatedAt.Before(*first) {
			t := e.CreatedAt
			first = &t
		}
	}
	return first, nil
}

// fakeChatRepo 是 ChatRepository 的内存实现。
type fakeChatRepo struct {
	mu        sync.Mutex
	windows   map[string]*model.ChatWindow
	messages  []model.ChatMessage
	appendErr error
	// appendCtxErrs 记录每次 AppendMessage 时上下文的状态。
	appendCtxErrs []error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{windows: map[string]*model.ChatWindow{}}
}

func (r *fakeChatRepo) CreateWindow(_ context.Context, window *model.ChatWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	window.LastUpdated = time.Now()
	cp := *window
	r.windows[window.ID] = &cp
	return nil
}

func (r *fakeChatRepo) ListWindows(_ context.Context, userID string) ([]model.ChatWindow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ChatWindow
	for _, w := range r.windows {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out, nil
}

func (r *fakeChatRepo) FindWindow(_ context.Context, userID, windowID string) (*model.ChatWindow, error) {
	if err := checkUUID(windowID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[windowID]
	if !ok || w.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeChatRepo) RenameWindow(_ context.Context, userID, windowID, title string) error {
	if err := checkUUID(windowID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[windowID]
	if !ok || w.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	w.Title = title
	return nil
}

func (r *fakeChatRepo) DeleteWindow(_ context.Context, userID, windowID string) error {
	if err := checkUUID(windowID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.windows[windowID]
	if !ok || w.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	kept := r.messages[:0]
	for _, m := range r.messages {
		if m.WindowID != windowID {
			kept = append(kept, m)
		}
	}
	r.messages = kept
	delete(r.windows, windowID)
	return nil
}

func (r *fakeChatRepo) AppendMessage(ctx context.Context, msg *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendCtxErrs = append(r.appendCtxErrs, ctx.Err())
	if r.appendErr != nil {
		return r.appendErr
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	if w, ok := r.windows[msg.WindowID]; ok {
		w.LastUpdated = msg.CreatedAt
	}
	return nil
}

func (r *fakeChatRepo) ListMessages(ctx context.Context, userID, windowID string) ([]model.ChatMessage, error) {
	if _, err := r.FindWindow(ctx, userID, windowID); err != nil {
		return nil, err
	}
	return r.windowMessages(windowID), nil
}

func (r *fakeChatRepo) RecentMessages(_ context.Context, windowID string, limit int) ([]model.ChatMessage, error) {
	msgs := r.windowMessages(windowID)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (r *fakeChatRepo) windowMessages(windowID string) []model.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ChatMessage
	for _, m := range r.messages {
		if m.WindowID == windowID {
			out = append(out, m)
		}
	}
	return out
}

// recordingPublisher 记录发布的事件。
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.JournalEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.JournalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// fakeStore 是 ObjectStore 的内存实现。
type fakeStore struct {
	objects map[string][]byte
}

func (s *fakeStore) Put(_ context.Context, objectName string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[objectName] = b
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, objectName, _ string, _ time.Duration) (string, error) {
	return "https://storage.example.com/" + objectName + "?sig=abc", nil
}
