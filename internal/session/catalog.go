package session

import (
	"context"
	"time"
)

// CatalogRecord 会话目录中的一条记录
type CatalogRecord struct {
	SessionID string
	Kind      Kind
	Metadata  Metadata
	Status    Status
	StartedAt time.Time
	StoppedAt *time.Time
}

// Catalog 会话元数据的持久化目录（进程重启后用于恢复 active 会话）
type Catalog interface {
	SaveSession(ctx context.Context, rec CatalogRecord) error
	MarkStopped(ctx context.Context, sessionID string, at time.Time) error
	// GetSession 不存在时返回 nil, nil
	GetSession(ctx context.Context, sessionID string) (*CatalogRecord, error)
}

// NopCatalog 不持久化任何内容
type NopCatalog struct{}

func (NopCatalog) SaveSession(context.Context, CatalogRecord) error { return nil }

func (NopCatalog) MarkStopped(context.Context, string, time.Time) error { return nil }

func (NopCatalog) GetSession(context.Context, string) (*CatalogRecord, error) { return nil, nil }
