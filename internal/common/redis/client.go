package redis

import (
	"context"
	"fmt"
	"time"

	"wisefido-physio/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// 镜像写入在转发协程里同步执行，超时要比轮询周期短，避免拖慢订阅
const (
	dialTimeout  = 2 * time.Second
	ioTimeout    = 500 * time.Millisecond
	pingAttempts = 3
)

// NewRedisClient 创建Redis客户端
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolSize:     4,
	})
}

// Ping 确认 Redis 可达，失败时短暂重试（容器编排下 Redis 可能晚于本服务启动）
func Ping(ctx context.Context, client *redis.Client) error {
	var err error
	for i := 0; i < pingAttempts; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("redis ping %s: %w", client.Options().Addr, ctx.Err())
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	return fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
}

// Close 关闭Redis连接（nil 安全）
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
