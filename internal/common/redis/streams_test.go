package redis

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdder struct {
	args []*redis.XAddArgs
}

func (f *fakeAdder) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1700000000000-0", nil)
}

func TestPublishToStream_StringifiesValues(t *testing.T) {
	f := &fakeAdder{}

	id, err := PublishToStream(context.Background(), f, "s", 100, map[string]interface{}{
		"seq":   uint64(7),
		"ok":    true,
		"ratio": 0.5,
		"obj":   map[string]int{"a": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.Len(t, f.args, 1)
	got := f.args[0]
	assert.Equal(t, "s", got.Stream)
	assert.Equal(t, int64(100), got.MaxLen)
	assert.True(t, got.Approx)

	values := got.Values.(map[string]interface{})
	assert.Equal(t, "7", values["seq"])
	assert.Equal(t, "true", values["ok"])
	assert.Equal(t, "0.5", values["ratio"])
	assert.Equal(t, `{"a":1}`, values["obj"])
}

func TestPublishJSONToStream_WrapsData(t *testing.T) {
	f := &fakeAdder{}

	_, err := PublishJSONToStream(context.Background(), f, "s", 0, map[string]string{"k": "v"})
	require.NoError(t, err)

	values := f.args[0].Values.(map[string]interface{})
	assert.Equal(t, `{"k":"v"}`, values["data"])
	assert.NotEmpty(t, values["timestamp"])
	assert.False(t, f.args[0].Approx)
}
