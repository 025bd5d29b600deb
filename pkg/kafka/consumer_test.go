package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"smart-journal-go/internal/model"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// scriptedReader 依次返回预置的消息，读完后阻塞直到 ctx 取消。
type scriptedReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

type handlerFunc func(ctx context.Context, event model.JournalEvent) error

func (f handlerFunc) Handle(ctx context.Context, event model.JournalEvent) error { return f(ctx, event) }

func eventMessage(t *testing.T, offset int64, event model.JournalEvent) kafka.Message {
	t.Helper()
	b, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return kafka.Message{Topic: "journal-events", Offset: offset, Value: b}
}

func noBackoff(int64) time.Duration { return 0 }

func runConsumer(t *testing.T, msgs []kafka.Message, h EventHandler, rdb redis.Cmdable) *scriptedReader {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &scriptedReader{msgs: msgs, cancel: cancel}
	c := newConsumer(r, h, rdb, 3)
	c.backoff = noBackoff
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return r
}

func TestConsumerCommitsHandledAndMalformedMessages(t *testing.T) {
	var seen []model.EventType
	h := handlerFunc(func(_ context.Context, e model.JournalEvent) error {
		seen = append(seen, e.Type)
		return nil
	})
	msgs := []kafka.Message{
		eventMessage(t, 1, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e1"}),
		{Offset: 2, Value: []byte("not json")},
	}

	r := runConsumer(t, msgs, h, nil)
	if len(seen) != 1 || seen[0] != model.EventEntryAnalysisFailed {
		t.Errorf("unexpected handled events %v", seen)
	}
	if len(r.committed) != 2 {
		t.Errorf("expected both offsets committed, got %v", r.committed)
	}
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	var calls []string
	h := handlerFunc(func(_ context.Context, e model.JournalEvent) error {
		calls = append(calls, e.EntryID)
		if e.EntryID == "e1" {
			return errors.New("llm down")
		}
		return nil
	})
	failing := eventMessage(t, 1, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e1"})
	msgs := []kafka.Message{
		failing,
		eventMessage(t, 2, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e2"}),
	}

	r := runConsumer(t, msgs, h, rdb)
	if want := []string{"e1", "e1", "e1", "e2"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("handler calls = %v, want %v", calls, want)
	}
	if want := []int64{1, 2}; !reflect.DeepEqual(r.committed, want) {
		t.Errorf("committed = %v, want %v", r.committed, want)
	}
	if s.Exists(attemptsKey(failing)) {
		t.Error("attempt counter should be cleared once the message is given up")
	}
}

func TestConsumerRecoversAfterTransientFailure(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	calls := 0
	h := handlerFunc(func(context.Context, model.JournalEvent) error {
		calls++
		if calls < 3 {
			return errors.New("timeout")
		}
		return nil
	})
	msg := eventMessage(t, 5, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e1"})

	r := runConsumer(t, []kafka.Message{msg}, h, rdb)
	if calls != 3 {
		t.Errorf("expected 3 handler calls, got %d", calls)
	}
	if len(r.committed) != 1 || r.committed[0] != 5 {
		t.Errorf("expected offset 5 committed once, got %v", r.committed)
	}
	if s.Exists(attemptsKey(msg)) {
		t.Error("expected attempt counter removed after success")
	}
}

func TestConsumerResumesAttemptCountAfterRestart(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	msg := eventMessage(t, 7, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e1"})
	// 上一个进程已经失败了两次
	if err := s.Set(attemptsKey(msg), "2"); err != nil {
		t.Fatal(err)
	}
	calls := 0
	failing := handlerFunc(func(context.Context, model.JournalEvent) error {
		calls++
		return errors.New("llm down")
	})

	r := runConsumer(t, []kafka.Message{msg}, failing, rdb)
	if calls != 1 {
		t.Errorf("expected a single remaining attempt, got %d", calls)
	}
	if len(r.committed) != 1 {
		t.Errorf("expected the message to be given up and committed, got %v", r.committed)
	}
}

func TestConsumerWithoutRedisStillRetries(t *testing.T) {
	calls := 0
	failing := handlerFunc(func(context.Context, model.JournalEvent) error {
		calls++
		return errors.New("llm down")
	})
	msg := eventMessage(t, 3, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e1"})

	r := runConsumer(t, []kafka.Message{msg}, failing, nil)
	if calls != 3 || len(r.committed) != 1 {
		t.Errorf("calls=%d committed=%v", calls, r.committed)
	}
}

func TestConsumerShutdownMidRetryLeavesMessageUncommitted(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msg := eventMessage(t, 11, model.JournalEvent{Type: model.EventEntryAnalysisFailed, EntryID: "e1"})
	r := &scriptedReader{msgs: []kafka.Message{msg}, cancel: cancel}
	calls := 0
	h := handlerFunc(func(context.Context, model.JournalEvent) error {
		calls++
		return errors.New("llm down")
	})
	c := newConsumer(r, h, rdb, 3)
	c.backoff = func(int64) time.Duration {
		cancel()
		return time.Hour
	}

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected retries to stop on shutdown, got %d calls", calls)
	}
	if len(r.committed) != 0 {
		t.Errorf("message must stay uncommitted for redelivery, got %v", r.committed)
	}
	if got, _ := s.Get(attemptsKey(msg)); got != "1" {
		t.Errorf("expected attempt counter 1 to survive shutdown, got %q", got)
	}
}

func TestConsumerClearsAttemptsOnSuccess(t *testing.T) {
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer rdb.Close()

	msg := eventMessage(t, 9, model.JournalEvent{Type: model.EventEntryAnalysisFailed})
	if err := s.Set(attemptsKey(msg), "1"); err != nil {
		t.Fatal(err)
	}
	runConsumer(t, []kafka.Message{msg}, handlerFunc(func(context.Context, model.JournalEvent) error { return nil }), rdb)
	if s.Exists(attemptsKey(msg)) {
		t.Error("expected attempt counter removed after success")
	}
}
