package session

import (
	"context"

	"go.uber.org/zap"

	"wisefido-physio/internal/models"
)

// AutoRecorder 把每个 Snapshot 中指定来源的读数追加到所有 active 会话。
// 实现 publisher.SnapshotWriter，由 Forwarder 驱动。
type AutoRecorder struct {
	manager *Manager
	source  string
	logger  *zap.Logger
}

// NewAutoRecorder 创建自动录制器
func NewAutoRecorder(manager *Manager, source string, logger *zap.Logger) *AutoRecorder {
	return &AutoRecorder{manager: manager, source: source, logger: logger}
}

// Name 名称
func (a *AutoRecorder) Name() string { return "session-autorecord" }

// Write 单个会话失败只记录日志，不影响其他会话
func (a *AutoRecorder) Write(ctx context.Context, snap models.Snapshot) error {
	p, ok := snap.Get(a.source)
	if !ok {
		return nil
	}
	for _, id := range a.manager.ActiveIDs() {
		if _, err := a.manager.Record(ctx, id, p.Reading); err != nil {
			a.logger.Warn("Auto record failed",
				zap.String("session_id", id),
				zap.Uint64("seq", snap.Seq),
				zap.Error(err),
			)
		}
	}
	return nil
}
