package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-physio/internal/models"
)

// Manager 录制会话管理：每个会话对应 dir 下一个只追加的 CSV 文件
type Manager struct {
	dir     string
	catalog Catalog
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	mu   sync.Mutex // 串行化同一会话的追加
	info Info
}

// NewManager 创建会话管理器（目录不存在时创建）
func NewManager(dir string, catalog Catalog, logger *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("sessions dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sessions dir: %w", err)
	}
	if catalog == nil {
		catalog = NopCatalog{}
	}
	return &Manager{
		dir:      dir,
		catalog:  catalog,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
	}, nil
}

// Dir 日志目录
func (m *Manager) Dir() string { return m.dir }

// LogPath 会话日志文件路径
func (m *Manager) LogPath(id string) string {
	return filepath.Join(m.dir, id+LogExt)
}

// Start 创建会话日志并写入表头
func (m *Manager) Start(ctx context.Context, opts StartOptions) (Info, error) {
	kind := opts.Kind
	if !opts.Metadata.IsZero() {
		kind = KindExercise
	}
	if kind != KindExercise {
		kind = KindBasic
	}

	now := m.now().UTC()
	id := opts.SessionID
	if id == "" {
		prefix := "session"
		if kind == KindExercise {
			prefix = "exercise"
		}
		id = fmt.Sprintf("%s_%d", prefix, now.UnixMilli())
	}
	if !ValidID(id) {
		return Info{}, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok && s.snapshot().Status == StatusActive {
		return Info{}, &CreateError{SessionID: id, Err: ErrSessionExists}
	}
	if err := createLog(m.LogPath(id), kind); err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("%w: %v", ErrSessionExists, err)
		}
		return Info{}, &CreateError{SessionID: id, Err: err}
	}

	info := Info{
		SessionID: id,
		Kind:      kind,
		Metadata:  opts.Metadata,
		Status:    StatusActive,
		StartedAt: now,
		Filename:  id + LogExt,
	}
	m.sessions[id] = &session{info: info}

	if err := m.catalog.SaveSession(ctx, CatalogRecord{
		SessionID: id,
		Kind:      kind,
		Metadata:  opts.Metadata,
		Status:    StatusActive,
		StartedAt: now,
	}); err != nil {
		m.logger.Warn("Failed to save session to catalog",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}

	m.logger.Info("Session started",
		zap.String("session_id", id),
		zap.String("kind", string(kind)),
	)
	return info, nil
}

func createLog(path string, kind Kind) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, err = f.WriteString(HeaderLine(kind))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// 表头没写完整的文件不能留下，否则同名会话无法重新创建
		_ = os.Remove(path)
	}
	return err
}

// Record 向 active 会话追加一行
func (m *Manager) Record(ctx context.Context, id string, r models.Reading) (Row, error) {
	s, err := m.active(ctx, id)
	if err != nil {
		return Row{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.info.Status != StatusActive {
		return Row{}, notFound(id)
	}

	row := newRow(s.info, r, m.now())
	if err := appendLine(m.LogPath(id), row.Line()); err != nil {
		return Row{}, &LogWriteError{SessionID: id, Err: err}
	}
	s.info.Rows++
	return row, nil
}

func appendLine(path, line string) error {
	// 不带 O_CREATE：日志被外部删除时报错而不是悄悄新建一个没有表头的文件
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return err
	}
	_, err = f.WriteString(line)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// active 查找 active 会话；内存中没有时尝试从目录恢复
func (m *Manager) active(ctx context.Context, id string) (*session, error) {
	if !ValidID(id) {
		return nil, notFound(id)
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		if s.snapshot().Status != StatusActive {
			return nil, notFound(id)
		}
		return s, nil
	}

	rec, err := m.catalog.GetSession(ctx, id)
	if err != nil {
		m.logger.Warn("Failed to look up session in catalog",
			zap.String("session_id", id),
			zap.Error(err),
		)
		return nil, notFound(id)
	}
	if rec == nil || rec.Status != StatusActive {
		return nil, notFound(id)
	}
	if _, err := os.Stat(m.LogPath(id)); err != nil {
		return nil, notFound(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s = &session{info: Info{
		SessionID: id,
		Kind:      rec.Kind,
		Metadata:  rec.Metadata,
		Status:    StatusActive,
		StartedAt: rec.StartedAt,
		Filename:  id + LogExt,
	}}
	m.sessions[id] = s
	m.logger.Info("Session recovered from catalog", zap.String("session_id", id))
	return s, nil
}

// Stop 停止会话（幂等），日志文件保持原样
func (m *Manager) Stop(ctx context.Context, id string) (Locator, error) {
	if !ValidID(id) {
		return Locator{}, notFound(id)
	}
	if _, err := os.Stat(m.LogPath(id)); err != nil {
		return Locator{}, notFound(id)
	}

	now := m.now().UTC()
	changed := true

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.mu.Lock()
		if s.info.Status == StatusActive {
			s.info.Status = StatusStopped
			s.info.StoppedAt = &now
		} else {
			changed = false
		}
		s.mu.Unlock()
	}

	if changed {
		if err := m.catalog.MarkStopped(ctx, id, now); err != nil {
			m.logger.Warn("Failed to mark session stopped in catalog",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
		m.logger.Info("Session stopped", zap.String("session_id", id))
	}
	return locatorFor(id), nil
}

// Get 返回内存中会话的副本
func (m *Manager) Get(id string) (Info, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return Info{}, false
	}
	return s.snapshot(), true
}

// ActiveIDs 当前 active 会话 ID（按 ID 排序）
func (m *Manager) ActiveIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s.snapshot().Status == StatusActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Active 返回 active 会话信息；内存中没有时从 catalog 恢复，否则 ErrSessionNotFound
func (m *Manager) Active(ctx context.Context, id string) (Info, error) {
	s, err := m.active(ctx, id)
	if err != nil {
		return Info{}, err
	}
	return s.snapshot(), nil
}

// List 列出目录中所有会话日志，按创建时间最新的在前
func (m *Manager) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions dir: %w", err)
	}

	out := make([]Summary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, LogExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// 列目录和 stat 之间被删除
			continue
		}
		id := strings.TrimSuffix(name, LogExt)
		out = append(out, Summary{
			Filename:    name,
			SessionID:   id,
			Created:     m.createdAt(ctx, id, fi),
			Size:        fi.Size(),
			DownloadURL: DownloadPrefix + name,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].Filename > out[j].Filename
		}
		return out[i].Created.After(out[j].Created)
	})
	return out, nil
}

// createdAt 会话创建时间：内存 > catalog > 文件 birthtime > mtime
// mtime 每次追加都会变，只作兜底
func (m *Manager) createdAt(ctx context.Context, id string, fi fs.FileInfo) time.Time {
	if info, ok := m.Get(id); ok {
		return info.StartedAt
	}
	rec, err := m.catalog.GetSession(ctx, id)
	if err != nil {
		m.logger.Debug("Failed to look up session in catalog",
			zap.String("session_id", id),
			zap.Error(err),
		)
	} else if rec != nil && !rec.StartedAt.IsZero() {
		return rec.StartedAt
	}
	if t, ok := birthTime(m.LogPath(id)); ok {
		return t
	}
	return fi.ModTime()
}

func (s *session) snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := s.info
	if s.info.StoppedAt != nil {
		t := *s.info.StoppedAt
		info.StoppedAt = &t
	}
	return info
}
