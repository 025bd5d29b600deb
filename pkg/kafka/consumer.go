package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

const attemptsTTL = 24 * time.Hour

// EventHandler 处理一条领域事件。返回错误时消费者会在进程内重试，直到达到最大尝试次数。
type EventHandler interface {
	Handle(ctx context.Context, event model.JournalEvent) error
}

// messageReader 是 kafka.Reader 中消费者用到的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 从事件主题读取 JournalEvent 并交给 handler，处理完成后手动提交 offset。
// 处理失败时按递增间隔重试同一条消息，累计失败次数记录在 Redis 中，
// 进程重启后从已有次数继续计数。达到 maxAttempts 后提交 offset 放弃该消息。
type Consumer struct {
	reader      messageReader
	handler     EventHandler
	rdb         redis.Cmdable
	maxAttempts int64
	backoff     func(attempt int64) time.Duration
}

// NewConsumer 根据配置创建消费者。未配置 brokers 时返回 nil。
func NewConsumer(cfg config.KafkaConfig, handler EventHandler, rdb redis.Cmdable) *Consumer {
	if strings.TrimSpace(cfg.Brokers) == "" {
		return nil
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	c := newConsumer(r, handler, rdb, cfg.MaxAttempts)
	if cfg.RetryBackoffMillis > 0 {
		c.backoff = linearBackoff(time.Duration(cfg.RetryBackoffMillis) * time.Millisecond)
	}
	return c
}

func newConsumer(r messageReader, handler EventHandler, rdb redis.Cmdable, maxAttempts int) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Consumer{
		reader:      r,
		handler:     handler,
		rdb:         rdb,
		maxAttempts: int64(maxAttempts),
		backoff:     linearBackoff(time.Second),
	}
}

func linearBackoff(base time.Duration) func(int64) time.Duration {
	return func(attempt int64) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Run 持续消费直到 ctx 被取消或读取失败。
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()
	log.Info("Kafka 消费者已启动")

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return nil
			}
			return fmt.Errorf("failed to fetch kafka message: %w", err)
		}
		c.handleMessage(ctx, m)
	}
}

// handleMessage 处理一条消息直到成功或用尽尝试次数，然后提交 offset。
// ctx 在重试期间被取消时不提交，消息会在下次启动时重新投递。
func (c *Consumer) handleMessage(ctx context.Context, m kafka.Message) {
	var event model.JournalEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		log.Errorf("无法解析 Kafka 消息: %v, offset=%d", err, m.Offset)
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, m)
		return
	}

	key := attemptsKey(m)
	for attempt := c.priorAttempts(ctx, key) + 1; ; attempt++ {
		err := c.handler.Handle(ctx, event)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}
		log.Errorf("处理事件 %s 失败(第 %d/%d 次), entryID=%s: %v", event.Type, attempt, c.maxAttempts, event.EntryID, err)
		c.recordFailure(ctx, key)
		if attempt >= c.maxAttempts {
			log.Errorf("事件多次处理失败(>=%d)，提交 offset 终止重试, offset=%d", c.maxAttempts, m.Offset)
			break
		}
		if !sleepCtx(ctx, c.backoff(attempt)) {
			return
		}
	}

	if c.rdb != nil {
		_ = c.rdb.Del(ctx, key).Err()
	}
	c.commit(ctx, m)
}

// priorAttempts 返回之前的进程已经记录的失败次数。没有 Redis 或读取失败时视为 0。
func (c *Consumer) priorAttempts(ctx context.Context, key string) int64 {
	if c.rdb == nil {
		return 0
	}
	n, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("读取 Kafka 重试次数失败: %v", err)
		}
		return 0
	}
	return n
}

func (c *Consumer) recordFailure(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, key).Err(); err != nil {
		log.Warnf("记录 Kafka 重试次数失败: %v", err)
		return
	}
	_ = c.rdb.Expire(ctx, key, attemptsTTL).Err()
}

// sleepCtx 等待 d，ctx 先结束时返回 false。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

func attemptsKey(m kafka.Message) string {
	return fmt.Sprintf("kafka:attempts:%s:%d:%d", m.Topic, m.Partition, m.Offset)
}
