package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisefido-physio/internal/models"
)

func testSnapshot(seq uint64) models.Snapshot {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := models.NewSnapshot(seq, at, []string{"nordic", "mbient"})
	snap.Payloads["nordic"] = &models.Payload{Source: "nordic", Raw: json.RawMessage(`{"temperature":21}`)}
	return snap
}

type fakeRedis struct {
	mu      sync.Mutex
	xadds   []*redis.XAddArgs
	kv      map[string]string
	ttls    map[string]time.Duration
	xaddErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{kv: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.xaddErr != nil {
		return redis.NewStringResult("", f.xaddErr)
	}
	f.xadds = append(f.xadds, a)
	return redis.NewStringResult("1-0", nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.kv[key] = string(v)
	case string:
		f.kv[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.kv[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisSink_WriteAndLatest(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	sink := NewRedisSink(client, "telemetry:snapshot:stream", 100, "telemetry:snapshot:latest", 30*time.Second)
	assert.Equal(t, "redis", sink.Name())

	_, err := sink.Latest(ctx)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, sink.Write(ctx, testSnapshot(7)))

	require.Len(t, client.xadds, 1)
	args := client.xadds[0]
	assert.Equal(t, "telemetry:snapshot:stream", args.Stream)
	assert.Equal(t, int64(100), args.MaxLen)
	values := args.Values.(map[string]interface{})
	assert.Equal(t, "7", values["seq"])
	assert.Equal(t, "1709294400000", values["timestamp"])
	assert.JSONEq(t,
		`{"seq":7,"at":"2024-03-01T12:00:00Z","data":{"nordic":{"temperature":21},"mbient":null}}`,
		values["data"].(string))
	assert.Equal(t, 30*time.Second, client.ttls["telemetry:snapshot:latest"])

	latest, err := sink.Latest(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, values["data"].(string), string(latest))
}

func TestRedisSink_StreamError(t *testing.T) {
	client := newFakeRedis()
	client.xaddErr = errors.New("READONLY")
	sink := NewRedisSink(client, "s", 0, "latest", time.Second)

	err := sink.Write(context.Background(), testSnapshot(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
	assert.Empty(t, client.kv)
}

type fakeMQTT struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.topic, f.qos, f.payload = topic, qos, payload
	return f.err
}

func TestMQTTSink_Write(t *testing.T) {
	client := &fakeMQTT{}
	sink := NewMQTTSink(client, "physio/telemetry/snapshot", 1)
	assert.Equal(t, "mqtt", sink.Name())

	require.NoError(t, sink.Write(context.Background(), testSnapshot(3)))
	assert.Equal(t, "physio/telemetry/snapshot", client.topic)
	assert.Equal(t, byte(1), client.qos)

	var env struct {
		Seq  uint64                     `json:"seq"`
		Data map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(client.payload, &env))
	assert.Equal(t, uint64(3), env.Seq)
	assert.Equal(t, "null", string(env.Data["mbient"]))

	client.err = errors.New("not connected")
	assert.Error(t, sink.Write(context.Background(), testSnapshot(4)))
}

type fakeKafka struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeKafka) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeKafka) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_Write(t *testing.T) {
	w := &fakeKafka{}
	sink := NewKafkaSink(w)
	assert.Equal(t, "kafka", sink.Name())

	require.NoError(t, sink.Write(context.Background(), testSnapshot(42)))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, testSnapshot(42).At, w.msgs[0].Time)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}
