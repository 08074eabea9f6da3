// Package api 提供只在本机开放的管理 HTTP 接口：健康检查、会话查询、
// 全局关闭、指标统计以及会话事件的 WebSocket 推送。
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"echo-core/internal/constants"
	"echo-core/internal/core/dispose"
	coreerrors "echo-core/internal/core/errors"
	"echo-core/internal/core/events"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/core/metrics"
	"echo-core/internal/core/safe"
	"echo-core/internal/session"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// SessionController 管理 API 需要的会话操作
type SessionController interface {
	Sessions() []session.Info
	Len() int
	ShutdownAll(triggeredBy string) int
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond int
	Burst             int
}

// APIConfig API 配置
type APIConfig struct {
	ListenAddr string
	RateLimit  RateLimitConfig
}

// ManagementAPIServer Management API 服务器，实现 utils.Service
type ManagementAPIServer struct {
	dispose.Dispose

	config    *APIConfig
	sessions  SessionController
	bus       events.EventBus
	logger    corelog.Logger
	router    *mux.Router
	server    *http.Server
	listener  net.Listener
	limiter   *rate.Limiter
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewManagementAPIServer 创建 Management API 服务器
// bus 为空时事件流接口返回 503
func NewManagementAPIServer(
	ctx context.Context,
	config *APIConfig,
	sessions SessionController,
	bus events.EventBus,
	logger corelog.Logger,
) *ManagementAPIServer {
	if logger == nil {
		logger = corelog.Default()
	}
	s := &ManagementAPIServer{
		config:    config,
		sessions:  sessions,
		bus:       bus,
		logger:    logger,
		router:    mux.NewRouter(),
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			// 管理接口只监听本机地址
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if config.RateLimit.Enabled {
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit.RequestsPerSecond), config.RateLimit.Burst)
	}

	s.registerRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.SetCtx(ctx, s.onClose)
	return s
}

// Name 实现 Service 接口
func (s *ManagementAPIServer) Name() string {
	return "management-api"
}

// Handler 返回路由，测试中配合 httptest 使用
func (s *ManagementAPIServer) Handler() http.Handler {
	return s.router
}

// Start 绑定监听地址并在后台提供服务
func (s *ManagementAPIServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "management api failed to listen on %s", s.config.ListenAddr)
	}
	s.listener = listener
	s.logger.WithField(constants.LogFieldAddress, listener.Addr().String()).Info("ManagementAPIServer: started")

	safe.Go("management-api", func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("ManagementAPIServer: serve error")
		}
	})
	return nil
}

// Stop 优雅关闭 HTTP 服务
func (s *ManagementAPIServer) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.Close()
	return err
}

// Addr 实际监听地址；未启动时为 nil
func (s *ManagementAPIServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *ManagementAPIServer) onClose() error {
	if err := s.server.Close(); err != nil && !coreerrors.IsClosedConnError(err) {
		return err
	}
	return nil
}

// registerRoutes 注册所有路由
func (s *ManagementAPIServer) registerRoutes() {
	s.router.MethodNotAllowedHandler = methodNotAllowed()
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/shutdown", s.handleShutdown).Methods(http.MethodPost)
	// 子路由上 mux 对方法不匹配返回 404，这里显式兜底为 405
	api.HandleFunc("/sessions/shutdown", methodNotAllowed(http.MethodPost))
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
}

func (s *ManagementAPIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(map[string]interface{}{
			constants.LogFieldMethod: r.Method,
			constants.LogFieldPath:   r.URL.Path,
		}).Debugf("API request served in %s", time.Since(start))
	})
}

func (s *ManagementAPIServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, coreerrors.ErrRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *ManagementAPIServer) metricsSnapshot() map[string]float64 {
	m := metrics.GetGlobalMetrics()
	if m == nil {
		return map[string]float64{}
	}
	return m.Snapshot()
}
