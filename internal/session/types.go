package session

import (
	"regexp"
	"time"
)

// Kind 日志格式：basic 或 exercise（多出患者和动作列）
type Kind string

const (
	KindBasic    Kind = "basic"
	KindExercise Kind = "exercise"
)

// Status 会话状态：active -> stopped（终态）
type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
)

// LogExt 会话日志文件扩展名
const LogExt = ".csv"

// DownloadPrefix 日志下载路径前缀（由 HTTP 层静态服务）
const DownloadPrefix = "/sessions/"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// ValidID 会话 ID 会作为文件名使用，只允许字母数字和 _ . -
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Metadata 练习会话的患者与动作信息，作为会话的显式字段保存
type Metadata struct {
	PatientID    string `json:"patientId,omitempty"`
	PatientName  string `json:"patientName,omitempty"`
	ExerciseType string `json:"exerciseType,omitempty"`
}

// IsZero 三个字段都为空
func (m Metadata) IsZero() bool {
	return m.PatientID == "" && m.PatientName == "" && m.ExerciseType == ""
}

// StartOptions Start 参数，SessionID 为空时按时间生成
type StartOptions struct {
	SessionID string
	Kind      Kind
	Metadata  Metadata
}

// Info 会话快照（只读副本）
type Info struct {
	SessionID string     `json:"sessionId"`
	Kind      Kind       `json:"kind"`
	Metadata  Metadata   `json:"metadata"`
	Status    Status     `json:"status"`
	StartedAt time.Time  `json:"startTime"`
	StoppedAt *time.Time `json:"stopTime,omitempty"`
	Rows      int        `json:"rows"`
	Filename  string     `json:"filename"`
}

// Locator 停止会话后返回的下载位置
type Locator struct {
	SessionID   string `json:"sessionId"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
}

// Summary 会话列表项（以磁盘文件为准）
type Summary struct {
	Filename    string    `json:"filename"`
	SessionID   string    `json:"sessionId"`
	Created     time.Time `json:"created"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"downloadUrl"`
}

func locatorFor(id string) Locator {
	filename := id + LogExt
	return Locator{
		SessionID:   id,
		Filename:    filename,
		DownloadURL: DownloadPrefix + filename,
	}
}
