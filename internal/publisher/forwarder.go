package publisher

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"wisefido-physio/internal/broadcast"
)

// Source 快照来源（*broadcast.Broadcaster）
type Source interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
	Closed() bool
}

// Forwarder 订阅广播器，把每个快照交给 SnapshotWriter
//
// 写入失败只记录日志。写入过慢被广播器丢弃后会重新订阅（中间的快照丢失）；
// 广播器关闭或 ctx 结束时退出。
type Forwarder struct {
	src    Source
	writer SnapshotWriter
	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewForwarder 创建转发器
func NewForwarder(src Source, writer SnapshotWriter, logger *zap.Logger) *Forwarder {
	return &Forwarder{
		src:    src,
		writer: writer,
		logger: logger.With(zap.String("writer", writer.Name())),
	}
}

// Start 启动转发协程
func (f *Forwarder) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	sub := f.src.Subscribe()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(ctx, sub)
	}()
	f.logger.Info("Forwarder started")
}

// Stop 停止并等待转发协程退出
func (f *Forwarder) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
}

func (f *Forwarder) run(ctx context.Context, sub *broadcast.Subscription) {
	defer func() { f.src.Unsubscribe(sub) }()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.C:
			if !ok {
				if ctx.Err() != nil || f.src.Closed() {
					f.logger.Info("Forwarder stopped")
					return
				}
				f.logger.Warn("Forwarder dropped by broadcaster, resubscribing")
				sub = f.src.Subscribe()
				continue
			}
			if err := f.writer.Write(ctx, snap); err != nil {
				f.logger.Warn("Failed to forward snapshot",
					zap.Uint64("seq", snap.Seq),
					zap.Error(err),
				)
			}
		}
	}
}
