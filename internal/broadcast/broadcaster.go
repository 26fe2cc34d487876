package broadcast

import (
	"sync"

	"wisefido-physio/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscription 订阅句柄，C 在退订或被丢弃时关闭
type Subscription struct {
	ID string
	C  <-chan models.Snapshot

	ch   chan models.Snapshot
	once sync.Once
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broadcaster 将每个快照推送给所有当前订阅者
//
// 推送对每个订阅者都是非阻塞的：缓冲区满的订阅者会被移出集合并关闭通道，
// 不会拖慢其他订阅者。订阅集合由 mu 保护；发送在读锁内进行，
// 关闭通道需要写锁，因此不会向已关闭的通道发送。
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	closed bool
	logger *zap.Logger
}

// New 创建广播器，buffer 为每个订阅者的通道容量
func New(buffer int, logger *zap.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &Broadcaster{
		subs:   make(map[string]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe 注册新订阅者；广播器已关闭时返回已关闭的订阅
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan models.Snapshot, b.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub.close()
		return sub
	}
	b.subs[sub.ID] = sub

	b.logger.Debug("Subscriber joined",
		zap.String("subscriber_id", sub.ID),
		zap.Int("subscribers", len(b.subs)),
	)
	return sub
}

// Unsubscribe 退订，可重复调用，可与 Publish 并发
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub, "unsubscribed")
}

func (b *Broadcaster) removeLocked(sub *Subscription, reason string) {
	if cur, ok := b.subs[sub.ID]; !ok || cur != sub {
		return
	}
	delete(b.subs, sub.ID)
	sub.close()

	b.logger.Debug("Subscriber left",
		zap.String("subscriber_id", sub.ID),
		zap.String("reason", reason),
		zap.Int("subscribers", len(b.subs)),
	)
}

// Publish 向所有当前订阅者推送同一个快照
func (b *Broadcaster) Publish(snap models.Snapshot) {
	var slow []*Subscription

	b.mu.RLock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- snap:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	if len(slow) == 0 {
		return
	}

	b.mu.Lock()
	for _, sub := range slow {
		b.logger.Warn("Dropping slow subscriber",
			zap.String("subscriber_id", sub.ID),
			zap.Uint64("seq", snap.Seq),
		)
		b.removeLocked(sub, "buffer full")
	}
	b.mu.Unlock()
}

// Len 当前订阅者数量
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭所有订阅，之后的 Subscribe 直接返回已关闭的订阅
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = make(map[string]*Subscription)
	b.logger.Info("Broadcaster closed")
}

// Closed 广播器是否已关闭
func (b *Broadcaster) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}
