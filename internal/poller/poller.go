package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wisefido-physio/internal/models"

	"go.uber.org/zap"
)

// Fetcher 单个数据源（provider.Client 满足该接口）
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (*models.Payload, error)
}

// Publisher 快照接收方（broadcast.Broadcaster 满足该接口）
type Publisher interface {
	Publish(snap models.Snapshot)
}

// Poller 固定周期并发拉取所有数据源，每个周期恰好发布一个快照
type Poller struct {
	fetchers []Fetcher
	sources  []string
	pub      Publisher
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	seq uint64
	wg  sync.WaitGroup
}

// DefaultInterval interval 非正数时使用
const DefaultInterval = time.Second

// New 创建轮询器
func New(fetchers []Fetcher, pub Publisher, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sources := make([]string, 0, len(fetchers))
	for _, f := range fetchers {
		sources = append(sources, f.Name())
	}
	return &Poller{
		fetchers: fetchers,
		sources:  sources,
		pub:      pub,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Sources 数据源名称，顺序与构造时一致
func (p *Poller) Sources() []string {
	return append([]string(nil), p.sources...)
}

// Run 阻塞直到 ctx 取消，返回前等待所有在途周期结束
//
// 周期由 ticker 驱动而不是由拉取完成驱动：每个周期在独立 goroutine 中执行，
// 发布通过链式 channel 串行化，保证快照按周期顺序到达订阅者。
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Poller started",
		zap.Duration("interval", p.interval),
		zap.Strings("sources", p.sources),
	)

	prev := make(chan struct{})
	close(prev)

	for {
		select {
		case <-ctx.Done():
			p.wg.Wait()
			p.logger.Info("Poller stopped", zap.Uint64("ticks", atomic.LoadUint64(&p.seq)))
			return nil
		case <-ticker.C:
			seq := atomic.AddUint64(&p.seq, 1)
			done := make(chan struct{})
			p.wg.Add(1)
			go p.tick(ctx, seq, prev, done)
			prev = done
		}
	}
}

func (p *Poller) tick(ctx context.Context, seq uint64, prev <-chan struct{}, done chan<- struct{}) {
	defer p.wg.Done()
	defer close(done)

	snap := p.collect(ctx, seq)

	// 等待上一个周期发布完成
	<-prev
	if ctx.Err() != nil {
		return
	}
	p.pub.Publish(snap)
}

// Collect 并发拉取所有数据源并合并为一个快照（不发布，Seq 为 0）
func (p *Poller) Collect(ctx context.Context) models.Snapshot {
	return p.collect(ctx, 0)
}

// collect 单个数据源失败只会让对应槽位为空，不影响其他数据源
func (p *Poller) collect(ctx context.Context, seq uint64) models.Snapshot {
	results := make([]*models.Payload, len(p.fetchers))

	var wg sync.WaitGroup
	for i, f := range p.fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			payload, err := f.Fetch(ctx)
			if err != nil {
				p.logger.Warn("Sensor fetch failed",
					zap.String("source", f.Name()),
					zap.Uint64("seq", seq),
					zap.Error(err),
				)
				return
			}
			results[i] = payload
		}(i, f)
	}
	wg.Wait()

	snap := models.NewSnapshot(seq, p.now(), p.sources)
	for i, src := range p.sources {
		snap.Payloads[src] = results[i]
	}

	if snap.Empty() {
		p.logger.Warn("All sensor sources failed", zap.Uint64("seq", seq))
	}
	return snap
}
