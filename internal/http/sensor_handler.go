package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"wisefido-physio/internal/models"
	"wisefido-physio/internal/poller"
	"wisefido-physio/internal/publisher"
)

// Collector 同步拉取一次所有数据源（*poller.Poller 满足该接口）
type Collector interface {
	Collect(ctx context.Context) models.Snapshot
}

// LatestReader 最新镜像快照（*publisher.RedisSink 满足该接口）
type LatestReader interface {
	Latest(ctx context.Context) (json.RawMessage, error)
}

// SensorHandler 传感器数据代理
type SensorHandler struct {
	fetchers  map[string]poller.Fetcher
	collector Collector
	latest    LatestReader
	logger    *zap.Logger
}

// NewSensorHandler latest 为 nil 表示未启用镜像缓存
func NewSensorHandler(fetchers []poller.Fetcher, collector Collector, latest LatestReader, logger *zap.Logger) *SensorHandler {
	byName := make(map[string]poller.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byName[f.Name()] = f
	}
	return &SensorHandler{
		fetchers:  byName,
		collector: collector,
		latest:    latest,
		logger:    logger,
	}
}

// SourceData 单个数据源的一次实时拉取，返回去掉双重编码后的 JSON 对象
func (h *SensorHandler) SourceData(source string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := h.fetchers[source]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown source: "+source)
			return
		}
		p, err := f.Fetch(r.Context())
		if err != nil {
			h.logger.Warn("Sensor fetch failed",
				zap.String("source", source),
				zap.Error(err),
			)
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeRawJSON(w, http.StatusOK, p.Raw)
	}
}

// Combined 两个数据源并发拉取，失败的为 null
func (h *SensorHandler) Combined(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.collector.Collect(r.Context()))
}

// Latest 镜像缓存中的最新快照
func (h *SensorHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.latest == nil {
		writeError(w, http.StatusNotFound, "snapshot mirror is disabled")
		return
	}
	raw, err := h.latest.Latest(r.Context())
	if err != nil {
		if errors.Is(err, publisher.ErrMiss) {
			writeError(w, http.StatusNotFound, "no snapshot available")
			return
		}
		h.logger.Error("Failed to read latest snapshot", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}
