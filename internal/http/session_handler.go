package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wisefido-physio/internal/models"
	"wisefido-physio/internal/poller"
	"wisefido-physio/internal/session"
)

const maxSessionBody = 64 << 10

// SessionStore 会话管理（*session.Manager 满足该接口）
type SessionStore interface {
	Start(ctx context.Context, opts session.StartOptions) (session.Info, error)
	Record(ctx context.Context, id string, r models.Reading) (session.Row, error)
	Stop(ctx context.Context, id string) (session.Locator, error)
	Active(ctx context.Context, id string) (session.Info, error)
	List(ctx context.Context) ([]session.Summary, error)
	ExportXLSX(id string) ([]byte, error)
	LogPath(id string) string
}

// SessionHandler 录制会话接口
type SessionHandler struct {
	sessions SessionStore
	source   poller.Fetcher // record 接口实时拉取的数据源
	logger   *zap.Logger
}

func NewSessionHandler(sessions SessionStore, source poller.Fetcher, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		source:   source,
		logger:   logger,
	}
}

type startRequest struct {
	SessionID    string `json:"sessionId"`
	PatientID    string `json:"patientId"`
	PatientName  string `json:"patientName"`
	ExerciseType string `json:"exerciseType"`
}

// Start POST /api/sessions/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := readBodyJSON(r, maxSessionBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.sessions.Start(r.Context(), session.StartOptions{
		SessionID: req.SessionID,
		Kind:      session.KindBasic,
	})
	if err != nil {
		h.fail(w, "Error creating session", req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": info.SessionID,
		"message":   "Recording session created successfully",
	})
}

// StartExercise POST /api/sessions/start-exercise
func (h *SessionHandler) StartExercise(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := readBodyJSON(r, maxSessionBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	info, err := h.sessions.Start(r.Context(), session.StartOptions{
		SessionID: req.SessionID,
		Kind:      session.KindExercise,
		Metadata: session.Metadata{
			PatientID:    req.PatientID,
			PatientName:  req.PatientName,
			ExerciseType: req.ExerciseType,
		},
	})
	if err != nil {
		h.fail(w, "Error creating exercise session", req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": info.SessionID,
		"message":   "Exercise recording session created successfully",
		"metadata": map[string]any{
			"sessionId":    info.SessionID,
			"patientId":    info.Metadata.PatientID,
			"patientName":  info.Metadata.PatientName,
			"exerciseType": info.Metadata.ExerciseType,
			"startTime":    info.StartedAt.Format(time.RFC3339Nano),
			"status":       info.Status,
		},
	})
}

// Record POST /api/sessions/{sessionId}/record：实时拉取一次并追加
func (h *SessionHandler) Record(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	// 会话不存在时直接 404，不去拉取数据源
	if _, err := h.sessions.Active(r.Context(), id); err != nil {
		h.fail(w, "Recording error", id, err)
		return
	}
	p, err := h.source.Fetch(r.Context())
	if err != nil {
		h.fail(w, "Sensor fetch failed", id, err)
		return
	}
	if _, err := h.sessions.Record(r.Context(), id, p.Reading); err != nil {
		h.fail(w, "Recording error", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Exercise data recorded",
		"data":    p.Raw,
	})
}

// Stop POST /api/sessions/{sessionId}/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	loc, err := h.sessions.Stop(r.Context(), id)
	if err != nil {
		h.fail(w, "Session not found", id, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Session stopped successfully",
		"downloadUrl": loc.DownloadURL,
		"sessionId":   loc.SessionID,
	})
}

// List GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.sessions.List(r.Context())
	if err != nil {
		h.fail(w, "Error listing sessions", "", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Export GET /api/sessions/{sessionId}/export.xlsx
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	data, err := h.sessions.ExportXLSX(id)
	if err != nil {
		h.fail(w, "Error exporting session", id, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Download GET /sessions/{file}：只允许会话目录中的 CSV
func (h *SessionHandler) Download(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	id := strings.TrimSuffix(file, session.LogExt)
	if id == file || !session.ValidID(id) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	path := h.sessions.LogPath(id)
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file))
	http.ServeFile(w, r, path)
}

func (h *SessionHandler) fail(w http.ResponseWriter, msg, id string, err error) {
	status := statusFor(err)
	fields := []zap.Field{zap.String("session_id", id), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Info(msg, fields...)
	}
	writeError(w, status, err.Error())
}
