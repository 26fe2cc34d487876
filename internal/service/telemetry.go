package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-physio/internal/broadcast"
	"wisefido-physio/internal/common/database"
	mqttcommon "wisefido-physio/internal/common/mqtt"
	rediscommon "wisefido-physio/internal/common/redis"
	"wisefido-physio/internal/config"
	httpapi "wisefido-physio/internal/http"
	"wisefido-physio/internal/poller"
	"wisefido-physio/internal/provider"
	"wisefido-physio/internal/publisher"
	"wisefido-physio/internal/repository"
	"wisefido-physio/internal/session"
	"wisefido-physio/internal/window"
)

// TelemetryService 遥测服务：轮询 -> 广播 -> (WebSocket / SSE / 镜像 / 自动录制)
type TelemetryService struct {
	config *config.Config
	logger *zap.Logger

	db         *sql.DB
	redis      *redis.Client
	mqttClient *mqttcommon.Client
	kafkaSink  *publisher.KafkaSink

	broadcaster *broadcast.Broadcaster
	poller      *poller.Poller
	sessions    *session.Manager
	forwarders  []*publisher.Forwarder
	server      *Server

	pollCancel context.CancelFunc
	pollDone   chan struct{}
	serveDone  chan struct{}
}

// NewTelemetryService 创建服务并连接所有启用的外部依赖
func NewTelemetryService(cfg *config.Config, logger *zap.Logger) (*TelemetryService, error) {
	s := &TelemetryService{
		config:      cfg,
		logger:      logger,
		broadcaster: broadcast.New(cfg.Poller.SubscriberBuffer, logger),
	}
	if err := s.init(); err != nil {
		s.closeResources()
		return nil, err
	}
	return s, nil
}

func (s *TelemetryService) init() error {
	cfg := s.config
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 数据源
	fetchers := make([]poller.Fetcher, 0, 2)
	byName := make(map[string]poller.Fetcher, 2)
	for _, p := range cfg.ProviderURLs() {
		c := provider.NewClient(p[0], p[1], cfg.ProviderTimeout(), s.logger)
		fetchers = append(fetchers, c)
		byName[p[0]] = c
	}
	s.poller = poller.New(fetchers, s.broadcaster, cfg.PollInterval(), s.logger)

	// 会话目录
	var catalog session.Catalog = session.NopCatalog{}
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		s.db = db
		pg := repository.NewPostgresSessionCatalog(db, s.logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		catalog = pg
	}

	sessions, err := session.NewManager(cfg.Sessions.Dir, catalog, s.logger)
	if err != nil {
		return err
	}
	s.sessions = sessions

	// 镜像
	var writers []publisher.SnapshotWriter
	var latest httpapi.LatestReader
	if cfg.Redis.Enabled {
		s.redis = rediscommon.NewRedisClient(&cfg.Redis.RedisConfig)
		if err := rediscommon.Ping(ctx, s.redis); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		sink := publisher.NewRedisSink(s.redis, cfg.Redis.Stream, cfg.Redis.StreamMaxLen,
			cfg.Redis.LatestKey, time.Duration(cfg.Redis.LatestTTLSec)*time.Second)
		writers = append(writers, sink)
		latest = sink
	}
	if cfg.MQTT.Enabled {
		client, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, s.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to MQTT: %w", err)
		}
		s.mqttClient = client
		writers = append(writers, publisher.NewMQTTSink(client, cfg.MQTT.Topic, cfg.MQTT.QoS))
	}
	if cfg.Kafka.Enabled {
		s.kafkaSink = publisher.NewKafkaSink(publisher.NewKafkaWriter(&cfg.Kafka.KafkaConfig))
		writers = append(writers, s.kafkaSink)
	}
	if cfg.Sessions.AutoRecord {
		writers = append(writers, session.NewAutoRecorder(sessions, cfg.Sessions.RecordSource, s.logger))
	}
	for _, w := range writers {
		s.forwarders = append(s.forwarders, publisher.NewForwarder(s.broadcaster, w, s.logger))
	}

	// HTTP
	router := httpapi.NewRouter(s.logger)
	router.RegisterHealth()
	router.RegisterSensorRoutes(httpapi.NewSensorHandler(fetchers, s.poller, latest, s.logger))
	router.RegisterSessionRoutes(httpapi.NewSessionHandler(sessions, byName[cfg.Sessions.RecordSource], s.logger))
	router.RegisterStreamRoutes(httpapi.NewStreamHandler(s.broadcaster, window.DefaultHistory, s.logger))
	s.server = NewServer(cfg.HTTP.Addr, router.Handler(), s.logger)

	return nil
}

// Start 启动服务
func (s *TelemetryService) Start(ctx context.Context) error {
	s.logger.Info("Starting telemetry service components",
		zap.Strings("sources", s.poller.Sources()),
		zap.Int("mirrors", len(s.forwarders)),
	)

	if err := s.server.Listen(); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.HTTP.Addr, err)
	}

	for _, f := range s.forwarders {
		f.Start(ctx)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	s.pollDone = make(chan struct{})
	go func() {
		defer close(s.pollDone)
		if err := s.poller.Run(pollCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Poller stopped with error", zap.Error(err))
		}
	}()

	s.serveDone = make(chan struct{})
	go func() {
		defer close(s.serveDone)
		if err := s.server.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.logger.Info("Telemetry service started successfully", zap.String("addr", s.server.Addr()))
	return nil
}

// Addr HTTP 实际监听地址
func (s *TelemetryService) Addr() string {
	return s.server.Addr()
}

// Stop 停止服务：先停轮询和广播（结束长连接），再关闭 HTTP 和外部连接
func (s *TelemetryService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping telemetry service")

	if s.pollCancel != nil {
		s.pollCancel()
		<-s.pollDone
	}

	// 关闭广播器会结束所有 WebSocket / SSE 连接和转发器
	s.broadcaster.Close()

	var firstErr error
	if s.serveDone != nil {
		if err := s.server.Stop(ctx); err != nil {
			s.logger.Error("Error stopping HTTP server", zap.Error(err))
			firstErr = err
		}
		<-s.serveDone
	}

	for _, f := range s.forwarders {
		f.Stop()
	}

	s.closeResources()
	s.logger.Info("Telemetry service stopped")
	return firstErr
}

func (s *TelemetryService) closeResources() {
	if s.kafkaSink != nil {
		if err := s.kafkaSink.Close(); err != nil {
			s.logger.Warn("Error closing kafka writer", zap.Error(err))
		}
		s.kafkaSink = nil
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
		s.mqttClient = nil
	}
	if s.redis != nil {
		rediscommon.Close(s.redis)
		s.redis = nil
	}
	if s.db != nil {
		database.Close(s.db)
		s.db = nil
	}
}
