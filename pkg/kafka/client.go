// Package kafka 提供了向 Kafka 发布日记领域事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// messageWriter 是 kafka.Writer 中发布者用到的部分。
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher 把 JournalEvent 以 JSON 写入配置的主题，按用户 ID 分区。
// 未配置 brokers 时 Publish 直接返回。
type Publisher struct {
	writer messageWriter
}

// NewPublisher 根据配置创建发布者。
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	if strings.TrimSpace(cfg.Brokers) == "" {
		log.Info("未配置 Kafka brokers，日记事件不会被发布")
		return &Publisher{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(cfg.Brokers, ",")...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	log.Infof("Kafka 生产者初始化成功, topic=%s", cfg.Topic)
	return &Publisher{writer: w}
}

// Publish 发送一条领域事件。
func (p *Publisher) Publish(ctx context.Context, event model.JournalEvent) error {
	if p == nil || p.writer == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}
	return nil
}

// Close 刷新并关闭底层 writer。
func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
