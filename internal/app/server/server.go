package server

import (
	"context"
	"net"
	"time"

	"echo-core/internal/api"
	"echo-core/internal/constants"
	"echo-core/internal/core/dispose"
	coreerrors "echo-core/internal/core/errors"
	"echo-core/internal/core/events"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/core/metrics"
	"echo-core/internal/protocol"
	"echo-core/internal/session"
	"echo-core/internal/utils"
)

// Server 服务器结构
type Server struct {
	config         *Config
	serviceManager *utils.ServiceManager
	logger         corelog.Logger
	metrics        *metrics.MemoryMetrics
	eventBus       events.EventBus
	sessions       *session.Manager
	handler        *protocol.ConnectionHandler
	listener       *protocol.TCPListener
	apiServer      *api.ManagementAPIServer
}

// Option 服务器可选项
type Option func(*serverOptions)

type serverOptions struct {
	clock          session.Clock
	signalHandling bool
	logger         corelog.Logger
}

// WithClock 替换会话计时器使用的时钟
func WithClock(clock session.Clock) Option {
	return func(o *serverOptions) { o.clock = clock }
}

// WithoutSignalHandling 不监听 SIGINT/SIGTERM，由调用方通过上下文控制退出
func WithoutSignalHandling() Option {
	return func(o *serverOptions) { o.signalHandling = false }
}

// WithLogger 使用给定 Logger，而不是按配置初始化全局日志
func WithLogger(logger corelog.Logger) Option {
	return func(o *serverOptions) { o.logger = logger }
}

// New 创建新服务器
func New(config *Config, parentCtx context.Context, opts ...Option) (*Server, error) {
	options := serverOptions{signalHandling: true}
	for _, opt := range opts {
		opt(&options)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "invalid configuration")
	}

	logger := options.logger
	if logger == nil {
		if err := corelog.Init(&config.Log); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "failed to initialize logger")
		}
		logger = corelog.Default()
	}
	dispose.SetLogger(func(level, format string, args ...interface{}) {
		switch level {
		case constants.LogLevelError:
			logger.Errorf(format, args...)
		case constants.LogLevelWarn:
			logger.Warnf(format, args...)
		default:
			logger.Debugf(format, args...)
		}
	})

	serviceConfig := utils.DefaultServiceConfig()
	serviceConfig.EnableSignalHandling = options.signalHandling
	serviceConfig.Logger = logger

	s := &Server{
		config:         config,
		serviceManager: utils.NewServiceManager(serviceConfig),
		logger:         logger,
	}

	s.metrics = metrics.NewMemoryMetrics(parentCtx)
	if err := metrics.SetGlobalMetrics(s.metrics); err != nil {
		_ = s.metrics.Close()
		return nil, err
	}
	s.eventBus = events.NewEventBus(parentCtx, logger)

	s.sessions = session.NewManager(session.Config{
		IdleTimeout: config.IdleTimeout(),
		Clock:       options.clock,
		Logger:      logger,
		EventBus:    s.eventBus,
	})
	s.handler = protocol.NewConnectionHandler(s.sessions, protocol.HandlerConfig{
		EvictOnClose: config.Session.EvictOnClose,
		Logger:       logger,
	})
	s.listener = protocol.NewTCPListener(parentCtx, config.ListenAddr(), s.handler, logger)

	if config.ManagementAPI.Enabled {
		s.apiServer = api.NewManagementAPIServer(parentCtx, &api.APIConfig{
			ListenAddr: config.ManagementAPI.ListenAddr,
			RateLimit: api.RateLimitConfig{
				Enabled:           config.ManagementAPI.RateLimit.Enabled,
				RequestsPerSecond: config.ManagementAPI.RateLimit.RPS,
				Burst:             config.ManagementAPI.RateLimit.Burst,
			},
		}, s.sessions, s.eventBus, logger)
	}

	if err := s.registerServices(); err != nil {
		s.closeResources()
		return nil, err
	}
	return s, nil
}

// closeResources 释放 New 中已创建但未交给 ServiceManager 管理的资源
func (s *Server) closeResources() {
	if s.apiServer != nil {
		_ = s.apiServer.Dispose.Dispose()
	}
	_ = s.listener.Dispose.Dispose()
	for _, closeFn := range []func() error{s.sessions.Close, s.eventBus.Close, s.metrics.Close} {
		if err := closeFn(); err != nil {
			s.logger.Warnf("Failed to release resource: %v", err)
		}
	}
}

// registerServices 注册服务和关闭时需要释放的资源
// 资源按注册的逆序释放：先关会话，最后关闭日志文件
func (s *Server) registerServices() error {
	if err := s.serviceManager.RegisterService(s.listener); err != nil {
		return err
	}
	if s.apiServer != nil {
		if err := s.serviceManager.RegisterService(s.apiServer); err != nil {
			return err
		}
	}

	resources := []struct {
		name     string
		resource dispose.Disposable
	}{
		{"log", disposeFunc(corelog.Close)},
		{"metrics", disposeFunc(s.metrics.Close)},
		{"event-bus", disposeFunc(s.eventBus.Close)},
		{"sessions", disposeFunc(s.sessions.Close)},
	}
	for _, r := range resources {
		if err := s.serviceManager.RegisterResource(r.name, r.resource); err != nil {
			return err
		}
	}
	return nil
}

type disposeFunc func() error

func (f disposeFunc) Dispose() error { return f() }

// Run 运行服务器，直到收到 SIGINT/SIGTERM
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext 使用指定上下文运行服务器，上下文取消时优雅退出
func (s *Server) RunWithContext(ctx context.Context) error {
	s.logger.Info(constants.MsgStartingServer)
	err := s.serviceManager.RunWithContext(ctx)
	s.logger.Info(constants.MsgServerShutdownCompleted)
	return err
}

// Start 启动所有服务后立即返回
func (s *Server) Start() error {
	s.logger.Info(constants.MsgStartingServer)
	if err := s.serviceManager.StartAllServices(); err != nil {
		return err
	}
	s.logger.WithField(constants.LogFieldAddress, s.listenAddrString()).Info(constants.MsgServerStarted)
	return nil
}

// Stop 停止所有服务并释放资源，与 Start 配对使用
func (s *Server) Stop() error {
	s.logger.Info(constants.MsgShuttingDownServer)
	err := s.serviceManager.Shutdown()
	s.logger.Info(constants.MsgServerShutdownCompleted)
	return err
}

// TriggerShutdown 触发 RunWithContext 退出
func (s *Server) TriggerShutdown() {
	s.serviceManager.TriggerShutdown()
}

// Addr TCP 实际监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// APIAddr 管理 API 实际监听地址，未启用或未启动时为 nil
func (s *Server) APIAddr() net.Addr {
	if s.apiServer == nil {
		return nil
	}
	return s.apiServer.Addr()
}

// Sessions 会话管理器
func (s *Server) Sessions() *session.Manager {
	return s.sessions
}

// WaitForListener 等待 TCP 监听就绪
func (s *Server) WaitForListener(timeout time.Duration) (net.Addr, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if addr := s.Addr(); addr != nil {
			return addr, nil
		}
		time.Sleep(5 * time.Millisecond)
	}
	return nil, coreerrors.New(coreerrors.CodeTimeout, "tcp listener not ready")
}

func (s *Server) listenAddrString() string {
	if addr := s.Addr(); addr != nil {
		return addr.String()
	}
	return s.config.ListenAddr()
}
