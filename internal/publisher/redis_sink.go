package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	rediscommon "wisefido-physio/internal/common/redis"
	"wisefido-physio/internal/models"
)

// ErrMiss 最新快照不存在（未写入或已过期）
var ErrMiss = errors.New("cache miss")

// RedisClient RedisSink 用到的命令（*redis.Client 满足该接口）
type RedisClient interface {
	rediscommon.StreamAdder
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisSink 把快照写入 Redis Stream，并缓存最新快照
type RedisSink struct {
	client    RedisClient
	stream    string
	maxLen    int64
	latestKey string
	ttl       time.Duration
}

// NewRedisSink 创建 Redis 镜像
func NewRedisSink(client RedisClient, stream string, maxLen int64, latestKey string, ttl time.Duration) *RedisSink {
	return &RedisSink{
		client:    client,
		stream:    stream,
		maxLen:    maxLen,
		latestKey: latestKey,
		ttl:       ttl,
	}
}

func (s *RedisSink) Name() string { return "redis" }

// Write XADD 到 stream，然后覆盖最新快照
func (s *RedisSink) Write(ctx context.Context, snap models.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if _, err := rediscommon.PublishToStream(ctx, s.client, s.stream, s.maxLen, map[string]interface{}{
		"data":      payload,
		"timestamp": snap.At.UnixMilli(),
		"seq":       snap.Seq,
	}); err != nil {
		return fmt.Errorf("failed to publish snapshot to stream %s: %w", s.stream, err)
	}

	if err := s.client.Set(ctx, s.latestKey, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest snapshot: %w", err)
	}
	return nil
}

// Latest 读取最新快照（Envelope JSON）
func (s *RedisSink) Latest(ctx context.Context) (json.RawMessage, error) {
	val, err := s.client.Get(ctx, s.latestKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return json.RawMessage(val), nil
}
