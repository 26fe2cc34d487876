package service

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{httpServer: s, logger: logger}
}

// Listen 绑定端口（端口占用等错误在启动时同步返回）
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	return nil
}

// Addr 实际监听地址（Listen 之后有效）
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Serve 阻塞直到 Stop；正常关闭返回 http.ErrServerClosed
func (s *Server) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("Starting wisefido-physio HTTP server", zap.String("addr", s.Addr()))
	return s.httpServer.Serve(s.listener)
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping wisefido-physio HTTP server")
	return s.httpServer.Shutdown(ctx)
}
