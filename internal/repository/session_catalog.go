package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"wisefido-physio/internal/session"
)

// PostgresSessionCatalog 会话目录（PostgreSQL）
// 只保存会话元数据，日志内容仍然在 CSV 文件中
type PostgresSessionCatalog struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresSessionCatalog 创建会话目录仓库
func NewPostgresSessionCatalog(db *sql.DB, logger *zap.Logger) *PostgresSessionCatalog {
	return &PostgresSessionCatalog{
		db:     db,
		logger: logger,
	}
}

// 确保实现了接口
var _ session.Catalog = (*PostgresSessionCatalog)(nil)

const createSessionsTable = `
	CREATE TABLE IF NOT EXISTS physio_sessions (
		session_id    TEXT PRIMARY KEY,
		kind          TEXT NOT NULL,
		patient_id    TEXT,
		patient_name  TEXT,
		exercise_type TEXT,
		status        TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		stopped_at    TIMESTAMPTZ
	)
`

// EnsureSchema 建表（幂等）
func (r *PostgresSessionCatalog) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("failed to create physio_sessions table: %w", err)
	}
	return nil
}

// SaveSession 插入或覆盖会话记录
func (r *PostgresSessionCatalog) SaveSession(ctx context.Context, rec session.CatalogRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}

	query := `
		INSERT INTO physio_sessions (
			session_id, kind, patient_id, patient_name, exercise_type,
			status, started_at, stopped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			patient_id = EXCLUDED.patient_id,
			patient_name = EXCLUDED.patient_name,
			exercise_type = EXCLUDED.exercise_type,
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			stopped_at = EXCLUDED.stopped_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.SessionID,
		string(rec.Kind),
		nullString(rec.Metadata.PatientID),
		nullString(rec.Metadata.PatientName),
		nullString(rec.Metadata.ExerciseType),
		string(rec.Status),
		rec.StartedAt,
		nullTime(rec.StoppedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// MarkStopped 标记会话停止；记录不存在时不报错
func (r *PostgresSessionCatalog) MarkStopped(ctx context.Context, sessionID string, at time.Time) error {
	query := `
		UPDATE physio_sessions
		SET status = $2, stopped_at = $3
		WHERE session_id = $1 AND status <> $2
	`
	res, err := r.db.ExecContext(ctx, query, sessionID, string(session.StatusStopped), at)
	if err != nil {
		return fmt.Errorf("failed to mark session stopped: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Debug("No active catalog row to stop", zap.String("session_id", sessionID))
	}
	return nil
}

// GetSession 查询会话记录，不存在时返回 nil, nil
func (r *PostgresSessionCatalog) GetSession(ctx context.Context, sessionID string) (*session.CatalogRecord, error) {
	query := `
		SELECT
			session_id,
			kind,
			patient_id,
			patient_name,
			exercise_type,
			status,
			started_at,
			stopped_at
		FROM physio_sessions
		WHERE session_id = $1
	`

	var rec session.CatalogRecord
	var kind, status string
	var patientID, patientName, exerciseType sql.NullString
	var stoppedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rec.SessionID,
		&kind,
		&patientID,
		&patientName,
		&exerciseType,
		&status,
		&rec.StartedAt,
		&stoppedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rec.Kind = session.Kind(kind)
	rec.Status = session.Status(status)
	rec.Metadata = session.Metadata{
		PatientID:    patientID.String,
		PatientName:  patientName.String,
		ExerciseType: exerciseType.String,
	}
	if stoppedAt.Valid {
		t := stoppedAt.Time
		rec.StoppedAt = &t
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
