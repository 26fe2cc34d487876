package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T, catalog Catalog) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), catalog, zap.NewNop())
	require.NoError(t, err)
	return m
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestManager_ExerciseSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	info, err := m.Start(ctx, StartOptions{SessionID: "exercise_squat_20240101_001", Kind: KindExercise})
	require.NoError(t, err)
	assert.Equal(t, KindExercise, info.Kind)
	assert.Equal(t, StatusActive, info.Status)

	_, err = m.Record(ctx, info.SessionID, mustReading(t))
	require.NoError(t, err)

	loc, err := m.Stop(ctx, info.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "/sessions/exercise_squat_20240101_001.csv", loc.DownloadURL)

	lines := readLines(t, m.LogPath(info.SessionID))
	require.Len(t, lines, 2)
	assert.Equal(t, strings.TrimSuffix(HeaderLine(KindExercise), "\n"), lines[0])
	cols := strings.Split(lines[1], ",")
	assert.Equal(t, "exercise_squat", cols[1])
	assert.Equal(t, "001", cols[3])

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, info.SessionID, list[0].SessionID)
	assert.Greater(t, list[0].Size, int64(len(HeaderLine(KindExercise))))
}

func TestManager_StartGeneratesID(t *testing.T) {
	m := newTestManager(t, nil)
	m.now = func() time.Time { return time.UnixMilli(1700000000123) }

	info, err := m.Start(context.Background(), StartOptions{})
	require.NoError(t, err)
	assert.Equal(t, "session_1700000000123", info.SessionID)
	assert.Equal(t, KindBasic, info.Kind)

	m.now = func() time.Time { return time.UnixMilli(1700000000456) }
	info, err = m.Start(context.Background(), StartOptions{Metadata: Metadata{PatientName: "Ann"}})
	require.NoError(t, err)
	assert.Equal(t, "exercise_1700000000456", info.SessionID)
	assert.Equal(t, KindExercise, info.Kind)

	lines := readLines(t, m.LogPath("session_1700000000123"))
	assert.Equal(t, []string{strings.TrimSuffix(HeaderLine(KindBasic), "\n")}, lines)
}

func TestManager_StartRejects(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	_, err := m.Start(ctx, StartOptions{SessionID: "../escape"})
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	_, err = m.Start(ctx, StartOptions{SessionID: "dup"})
	require.NoError(t, err)
	_, err = m.Start(ctx, StartOptions{SessionID: "dup"})
	var ce *CreateError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, ErrSessionExists)

	// 已停止会话的日志同样不会被覆盖
	_, err = m.Stop(ctx, "dup")
	require.NoError(t, err)
	_, err = m.Start(ctx, StartOptions{SessionID: "dup"})
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestManager_StartPreservesExistingFile(t *testing.T) {
	m := newTestManager(t, nil)
	path := filepath.Join(m.Dir(), "old.csv")
	require.NoError(t, os.WriteFile(path, []byte("keep me\n"), 0o644))

	_, err := m.Start(context.Background(), StartOptions{SessionID: "old"})
	assert.ErrorIs(t, err, ErrSessionExists)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(b))
}

func TestManager_RecordErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	r := mustReading(t)

	_, err := m.Record(ctx, "missing", r)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Start(ctx, StartOptions{SessionID: "s1"})
	require.NoError(t, err)
	_, err = m.Stop(ctx, "s1")
	require.NoError(t, err)
	_, err = m.Record(ctx, "s1", r)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Start(ctx, StartOptions{SessionID: "s2"})
	require.NoError(t, err)
	require.NoError(t, os.Remove(m.LogPath("s2")))
	_, err = m.Record(ctx, "s2", r)
	var we *LogWriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, "s2", we.SessionID)

	info, ok := m.Get("s2")
	require.True(t, ok)
	assert.Equal(t, StatusActive, info.Status)
}

func TestManager_StopIdempotentAndNotFound(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	_, err := m.Stop(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Start(ctx, StartOptions{SessionID: "s1"})
	require.NoError(t, err)
	first, err := m.Stop(ctx, "s1")
	require.NoError(t, err)
	second, err := m.Stop(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, ok := m.Get("s1")
	require.True(t, ok)
	assert.Equal(t, StatusStopped, info.Status)
	assert.NotNil(t, info.StoppedAt)
	assert.Empty(t, m.ActiveIDs())
}

func TestManager_ConcurrentRecordKeepsRowsWhole(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)
	_, err := m.Start(ctx, StartOptions{SessionID: "busy"})
	require.NoError(t, err)

	r := mustReading(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Record(ctx, "busy", r)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	lines := readLines(t, m.LogPath("busy"))
	require.Len(t, lines, 21)
	want := len(Header(KindBasic))
	for _, line := range lines[1:] {
		rec, err := readLog(strings.NewReader(line))
		require.NoError(t, err)
		require.Len(t, rec, 1)
		assert.Len(t, rec[0], want)
	}
	info, _ := m.Get("busy")
	assert.Equal(t, 20, info.Rows)
}

func TestManager_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		m.now = func() time.Time { return at }
		_, err := m.Start(ctx, StartOptions{SessionID: id})
		require.NoError(t, err)
	}
	// 非 csv 文件和子目录被忽略
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(m.Dir(), "sub.csv"), 0o755))

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c", list[0].SessionID)
	assert.Equal(t, "b", list[1].SessionID)
	assert.Equal(t, "a", list[2].SessionID)
	assert.Equal(t, "/sessions/c.csv", list[0].DownloadURL)
}

type memCatalog struct {
	mu      sync.Mutex
	records map[string]CatalogRecord
}

func newMemCatalog() *memCatalog {
	return &memCatalog{records: make(map[string]CatalogRecord)}
}

func (c *memCatalog) SaveSession(_ context.Context, rec CatalogRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.SessionID] = rec
	return nil
}

func (c *memCatalog) MarkStopped(_ context.Context, id string, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil
	}
	rec.Status = StatusStopped
	rec.StoppedAt = &at
	c.records[id] = rec
	return nil
}

func (c *memCatalog) GetSession(_ context.Context, id string) (*CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func TestManager_RecoversActiveSessionFromCatalog(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	dir := t.TempDir()

	first, err := NewManager(dir, catalog, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Start(ctx, StartOptions{
		SessionID: "P01_20240101_lunge",
		Metadata:  Metadata{PatientName: "Ann"},
	})
	require.NoError(t, err)

	// 模拟进程重启
	second, err := NewManager(dir, catalog, zap.NewNop())
	require.NoError(t, err)
	row, err := second.Record(ctx, "P01_20240101_lunge", mustReading(t))
	require.NoError(t, err)
	assert.Equal(t, "Ann", row.PatientName)
	assert.Equal(t, "lunge", row.ExerciseType)

	_, err = second.Stop(ctx, "P01_20240101_lunge")
	require.NoError(t, err)

	third, err := NewManager(dir, catalog, zap.NewNop())
	require.NoError(t, err)
	_, err = third.Record(ctx, "P01_20240101_lunge", mustReading(t))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type failingCatalog struct{ NopCatalog }

func (failingCatalog) SaveSession(context.Context, CatalogRecord) error {
	return errors.New("db down")
}

func TestManager_CatalogFailureIsBestEffort(t *testing.T) {
	m := newTestManager(t, failingCatalog{})
	_, err := m.Start(context.Background(), StartOptions{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, m.ActiveIDs())
}

func TestManager_ListOrderSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	catalog := newMemCatalog()
	dir := t.TempDir()

	first, err := NewManager(dir, catalog, zap.NewNop())
	require.NoError(t, err)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	first.now = func() time.Time { return base }
	_, err = first.Start(ctx, StartOptions{SessionID: "older"})
	require.NoError(t, err)
	first.now = func() time.Time { return base.Add(time.Minute) }
	_, err = first.Start(ctx, StartOptions{SessionID: "newer"})
	require.NoError(t, err)
	// 追加会推进 mtime，不能影响排序
	_, err = first.Record(ctx, "older", mustReading(t))
	require.NoError(t, err)

	second, err := NewManager(dir, catalog, zap.NewNop())
	require.NoError(t, err)
	list, err := second.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].SessionID)
	assert.Equal(t, "older", list[1].SessionID)
	assert.True(t, list[1].Created.Equal(base))
}

func TestManager_ListOrderFromBirthTimeWithoutCatalog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewManager(dir, nil, zap.NewNop())
	require.NoError(t, err)
	_, err = first.Start(ctx, StartOptions{SessionID: "older"})
	require.NoError(t, err)
	if _, ok := birthTime(first.LogPath("older")); !ok {
		t.Skip("filesystem does not report file birth time")
	}
	time.Sleep(20 * time.Millisecond)
	_, err = first.Start(ctx, StartOptions{SessionID: "newer"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = first.Record(ctx, "older", mustReading(t))
	require.NoError(t, err)

	second, err := NewManager(dir, nil, zap.NewNop())
	require.NoError(t, err)
	list, err := second.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].SessionID)
	assert.Equal(t, "older", list[1].SessionID)
}

func TestManager_Active(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	_, err := m.Active(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Active(ctx, "bad id")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Start(ctx, StartOptions{SessionID: "s1"})
	require.NoError(t, err)
	info, err := m.Active(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, info.Status)

	_, err = m.Stop(ctx, "s1")
	require.NoError(t, err)
	_, err = m.Active(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
