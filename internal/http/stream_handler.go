package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wisefido-physio/internal/broadcast"
	"wisefido-physio/internal/config"
	"wisefido-physio/internal/window"
)

// EventSensorData 推送事件名（与原前端一致）
const EventSensorData = "sensorData"

// EventDashboard view=dashboard 时的事件名
const EventDashboard = "dashboard"

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Subscriber 快照订阅（*broadcast.Broadcaster 满足该接口）
type Subscriber interface {
	Subscribe() *broadcast.Subscription
	Unsubscribe(sub *broadcast.Subscription)
}

// StreamMessage WebSocket 消息
type StreamMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// StreamHandler 实时推送：每个连接一个订阅，连接结束即退订
type StreamHandler struct {
	subs       Subscriber
	history    int
	pingPeriod time.Duration
	logger     *zap.Logger
}

func NewStreamHandler(subs Subscriber, history int, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		subs:       subs,
		history:    history,
		pingPeriod: wsPingPeriod,
		logger:     logger,
	}
}

// WebSocket GET /ws[?view=dashboard&source=nordic]
func (h *StreamHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	var dash *window.Dashboard
	if r.URL.Query().Get("view") == EventDashboard {
		source := r.URL.Query().Get("source")
		if source == "" {
			source = config.SourceNordic
		}
		if source != config.SourceNordic && source != config.SourceMbient {
			writeError(w, http.StatusBadRequest, "unknown source: "+source)
			return
		}
		var err error
		if dash, err = window.NewDashboard(source, h.history); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写了错误响应
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub := h.subs.Subscribe()
	defer h.subs.Unsubscribe(sub)
	logger := h.logger.With(zap.String("subscriber_id", sub.ID), zap.String("remote", r.RemoteAddr))
	logger.Info("WebSocket client connected")

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writeLoop(conn, sub, dash, stop, logger)
	}()

	// 客户端消息只用于维持读循环（处理 pong / close）
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(stop)
	wg.Wait()
	logger.Info("WebSocket client disconnected")
}

// writeLoop 连接上唯一的写协程（gorilla/websocket 不允许并发写）
func (h *StreamHandler) writeLoop(conn *websocket.Conn, sub *broadcast.Subscription, dash *window.Dashboard, stop <-chan struct{}, logger *zap.Logger) {
	// 写端退出时关闭连接，读循环随之返回
	defer conn.Close()

	ticker := time.NewTicker(h.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("Ping failed", zap.Error(err))
				return
			}
		case snap, ok := <-sub.C:
			if !ok {
				// 被广播器丢弃（消费过慢）或服务关闭
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}
			msg := StreamMessage{Event: EventSensorData, Data: snap}
			if dash != nil {
				dash.Apply(snap)
				msg = StreamMessage{Event: EventDashboard, Data: dash.State()}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug("Write failed", zap.Error(err))
				return
			}
		}
	}
}

// Events GET /api/events：SSE，每个快照一个 sensorData 事件，id 为序号
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := h.subs.Subscribe()
	defer h.subs.Unsubscribe(sub)

	if _, err := fmt.Fprint(w, "retry: 3000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.pingPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				h.logger.Error("Failed to encode snapshot", zap.Uint64("seq", snap.Seq), zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", snap.Seq, EventSensorData, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
