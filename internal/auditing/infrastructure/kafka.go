// Package infrastructure Kafka 审计投递
// 生成摘要：
// 1) 将审计事件以 JSON 投递到 Kafka 主题，供下游通知/归档系统消费
// 2) RequireAll 确认 + 重试退避，保证审计不静默丢失
package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/wyfcoding/fxtreasury/internal/auditing/domain"
)

// KafkaConfig Kafka 审计投递配置
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	MaxRetries   int
	RetryBackoff int // 毫秒
}

// KafkaRecorder Kafka 审计事件投递器
type KafkaRecorder struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewKafkaRecorder 创建 Kafka 审计投递器
func NewKafkaRecorder(cfg KafkaConfig, logger *slog.Logger) *KafkaRecorder {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		AllowAutoTopicCreation: true,
		Compression:            kafka.Gzip,
		RequiredAcks:           kafka.RequireAll, // 等待所有副本确认
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        time.Duration(cfg.RetryBackoff) * time.Millisecond,
		WriteBackoffMax:        time.Duration(cfg.RetryBackoff*10) * time.Millisecond,
	}

	logger.Info("kafka audit recorder created", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &KafkaRecorder{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger,
	}
}

// Record 投递一条审计事件，以事件 ID 为分区键保持单事件有序
func (r *KafkaRecorder) Record(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Topic: r.topic,
		Key:   []byte(event.EventID),
		Value: data,
		Time:  event.OccurredAt,
	}

	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.logger.ErrorContext(ctx, "failed to deliver audit event", "event_id", event.EventID, "error", err)
		return fmt.Errorf("failed to deliver audit event: %w", err)
	}
	return nil
}

// Close 关闭底层 writer
func (r *KafkaRecorder) Close() error {
	return r.writer.Close()
}
