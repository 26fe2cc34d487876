package publisher

import (
	"context"
	"encoding/json"
	"time"

	"wisefido-physio/internal/models"
)

// SnapshotWriter 快照镜像目标（Redis / MQTT / Kafka / 自动录制）
type SnapshotWriter interface {
	Name() string
	Write(ctx context.Context, snap models.Snapshot) error
}

// Envelope 镜像消息格式
type Envelope struct {
	Seq  uint64          `json:"seq"`
	At   time.Time       `json:"at"`
	Data models.Snapshot `json:"data"`
}

// Encode 序列化快照为镜像消息
func Encode(snap models.Snapshot) ([]byte, error) {
	return json.Marshal(Envelope{Seq: snap.Seq, At: snap.At.UTC(), Data: snap})
}
