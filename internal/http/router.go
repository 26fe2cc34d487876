package httpapi

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"wisefido-physio/internal/config"
)

// Router 基于 gorilla/mux，外层包 CORS 和 panic 恢复
type Router struct {
	mux     *mux.Router
	handler http.Handler
	logger  *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	r := &Router{
		mux:    mux.NewRouter(),
		logger: logger,
	}
	r.handler = r.wrap(r.mux)
	return r
}

// Handle 注册路由，methods 为空时不限制方法
func (r *Router) Handle(pattern string, h http.HandlerFunc, methods ...string) {
	route := r.mux.HandleFunc(pattern, h)
	if len(methods) > 0 {
		route.Methods(methods...)
	}
}

// Handler 返回带 CORS 和 panic 恢复的最终 handler
func (r *Router) Handler() http.Handler {
	return r.handler
}

func (r *Router) wrap(next http.Handler) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Cache-Control"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zapRecoveryLogger{r.logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(next))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// RegisterHealth 健康检查
func (r *Router) RegisterHealth() {
	r.Handle("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}, http.MethodGet)
}

// RegisterSensorRoutes 传感器代理接口（与原前端路径一致）
func (r *Router) RegisterSensorRoutes(s *SensorHandler) {
	r.Handle("/api/sensor-data", s.SourceData(config.SourceNordic), http.MethodGet)
	r.Handle("/api/sensor-data-mbient", s.SourceData(config.SourceMbient), http.MethodGet)
	r.Handle("/api/sensor-data-combined", s.Combined, http.MethodGet)
	r.Handle("/api/snapshots/latest", s.Latest, http.MethodGet)
}

// RegisterSessionRoutes 录制会话接口和日志下载
func (r *Router) RegisterSessionRoutes(s *SessionHandler) {
	r.Handle("/api/sessions", s.List, http.MethodGet)
	r.Handle("/api/sessions/start", s.Start, http.MethodPost)
	r.Handle("/api/sessions/start-exercise", s.StartExercise, http.MethodPost)
	r.Handle("/api/sessions/{sessionId}/record", s.Record, http.MethodPost)
	r.Handle("/api/sessions/{sessionId}/stop", s.Stop, http.MethodPost)
	r.Handle("/api/sessions/{sessionId}/export.xlsx", s.Export, http.MethodGet)
	r.Handle("/sessions/{file}", s.Download, http.MethodGet)
}

// RegisterStreamRoutes 实时推送（WebSocket / SSE）
func (r *Router) RegisterStreamRoutes(s *StreamHandler) {
	r.Handle("/ws", s.WebSocket, http.MethodGet)
	r.Handle("/api/events", s.Events, http.MethodGet)
}

type zapRecoveryLogger struct {
	logger *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...interface{}) {
	l.logger.Error("Recovered from panic in handler", zap.Any("panic", v))
}
