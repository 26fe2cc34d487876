package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-physio/internal/common/config"

	_ "github.com/lib/pq"
)

// 会话目录只有零星的读写，连接池保持很小
const (
	defaultMaxOpenConns = 4
	defaultMaxIdleConns = 2
	connMaxIdleTime     = 5 * time.Minute
)

// NewPostgresDB 打开连接池并在 ctx 内确认数据库可达
func NewPostgresDB(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen, maxIdle := defaultMaxOpenConns, defaultMaxIdleConns
	if cfg.MaxConns > 0 {
		maxOpen = cfg.MaxConns
	}
	if cfg.MaxIdle > 0 {
		maxIdle = cfg.MaxIdle
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s@%s:%d: %w", cfg.Database, cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// Close 关闭数据库连接（nil 安全）
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
