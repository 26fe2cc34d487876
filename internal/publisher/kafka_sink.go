package publisher

import (
	"context"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"wisefido-physio/internal/common/config"
	"wisefido-physio/internal/models"
)

// MessageWriter Kafka 写入能力（*kafka.Writer 满足该接口）
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter 创建 Kafka writer，按 key 哈希分区
func NewKafkaWriter(cfg *config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// KafkaSink 把快照写入 Kafka，key 为序号
type KafkaSink struct {
	writer MessageWriter
}

// NewKafkaSink 创建 Kafka 镜像
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, snap models.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(snap.Seq, 10)),
		Value: payload,
		Time:  snap.At,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// Close 关闭底层 writer
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
