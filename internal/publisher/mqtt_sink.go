package publisher

import (
	"context"
	"fmt"

	"wisefido-physio/internal/models"
)

// MQTTPublisher MQTT 发布能力（*mqtt.Client 满足该接口）
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTSink 把快照发布到 MQTT 主题
type MQTTSink struct {
	client MQTTPublisher
	topic  string
	qos    byte
}

// NewMQTTSink 创建 MQTT 镜像
func NewMQTTSink(client MQTTPublisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, qos: qos}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Write(_ context.Context, snap models.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.client.Publish(s.topic, s.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish snapshot to %s: %w", s.topic, err)
	}
	return nil
}
