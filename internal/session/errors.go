package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound 会话不存在或不处于 active 状态
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists 同名日志文件已存在（日志只追加，不覆盖）
	ErrSessionExists = errors.New("session already exists")
	// ErrInvalidSessionID 会话 ID 含有不允许的字符
	ErrInvalidSessionID = errors.New("invalid session id")
)

// CreateError 创建日志文件或写表头失败，不重试
type CreateError struct {
	SessionID string
	Err       error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("create session %s: %v", e.SessionID, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// LogWriteError 追加行失败，会话仍保持 active
type LogWriteError struct {
	SessionID string
	Err       error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("append to session %s: %v", e.SessionID, e.Err)
}

func (e *LogWriteError) Unwrap() error { return e.Err }

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}
