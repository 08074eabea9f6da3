package utils

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"echo-core/internal/core/dispose"
	coreerrors "echo-core/internal/core/errors"
	corelog "echo-core/internal/core/log"

	"golang.org/x/sync/errgroup"
)

// ServiceConfig 服务配置
type ServiceConfig struct {
	// 优雅关闭超时时间
	GracefulShutdownTimeout time.Duration
	// 资源释放超时时间
	ResourceDisposeTimeout time.Duration
	// 是否启用信号处理
	EnableSignalHandling bool
	// 自定义资源管理器，为空时新建
	ResourceManager *dispose.ResourceManager
	Logger          corelog.Logger
}

// DefaultServiceConfig 默认服务配置
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		GracefulShutdownTimeout: 10 * time.Second,
		ResourceDisposeTimeout:  5 * time.Second,
		EnableSignalHandling:    true,
	}
}

// Service 服务接口，所有服务都应该实现这个接口
type Service interface {
	// Start 启动服务，不应阻塞
	Start(ctx context.Context) error
	// Stop 停止服务
	Stop(ctx context.Context) error
	// Name 服务名称
	Name() string
}

// ServiceManager 服务管理器
// 按注册顺序启动服务，关闭时并发停止所有服务，再按注册的逆序释放资源
type ServiceManager struct {
	dispose.Dispose

	config       *ServiceConfig
	services     []Service
	names        map[string]struct{}
	resourceMgr  *dispose.ResourceManager
	logger       corelog.Logger
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex

	disposeResult *dispose.DisposeResult
}

// NewServiceManager 创建新的服务管理器
func NewServiceManager(config *ServiceConfig) *ServiceManager {
	if config == nil {
		config = DefaultServiceConfig()
	}
	resourceMgr := config.ResourceManager
	if resourceMgr == nil {
		resourceMgr = dispose.NewResourceManager()
	}
	logger := config.Logger
	if logger == nil {
		logger = corelog.Default()
	}

	sm := &ServiceManager{
		config:       config,
		names:        make(map[string]struct{}),
		resourceMgr:  resourceMgr,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
	sm.SetCtx(context.Background(), nil)
	return sm
}

// RegisterService 注册服务
func (sm *ServiceManager) RegisterService(service Service) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	name := service.Name()
	if _, exists := sm.names[name]; exists {
		return coreerrors.Newf(coreerrors.CodeAlreadyExists, "service %s already registered", name)
	}
	sm.names[name] = struct{}{}
	sm.services = append(sm.services, service)
	sm.logger.Debugf("Service registered: %s", name)
	return nil
}

// ListServices 按注册顺序列出服务名
func (sm *ServiceManager) ListServices() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	names := make([]string, 0, len(sm.services))
	for _, s := range sm.services {
		names = append(names, s.Name())
	}
	return names
}

// RegisterResource 注册关闭时需要释放的资源
func (sm *ServiceManager) RegisterResource(name string, resource dispose.Disposable) error {
	return sm.resourceMgr.Register(name, resource)
}

// StartAllServices 按注册顺序启动所有服务，任一失败时停止已启动的服务
func (sm *ServiceManager) StartAllServices() error {
	sm.mu.RLock()
	services := append([]Service(nil), sm.services...)
	sm.mu.RUnlock()

	sm.logger.Infof("Starting %d services...", len(services))
	for i, service := range services {
		if err := service.Start(sm.Ctx()); err != nil {
			sm.logger.Errorf("Failed to start service %s: %v", service.Name(), err)
			sm.stopServices(services[:i])
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
		sm.logger.Debugf("Service started: %s", service.Name())
	}
	return nil
}

// StopAllServices 并发停止所有服务
func (sm *ServiceManager) StopAllServices() error {
	sm.mu.RLock()
	services := append([]Service(nil), sm.services...)
	sm.mu.RUnlock()

	return sm.stopServices(services)
}

func (sm *ServiceManager) stopServices(services []Service) error {
	sm.logger.Infof("Stopping %d services...", len(services))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sm.config.GracefulShutdownTimeout)
	defer cancel()

	var g errgroup.Group
	for _, service := range services {
		service := service
		g.Go(func() error {
			if err := service.Stop(shutdownCtx); err != nil {
				sm.logger.Errorf("Failed to stop service %s: %v", service.Name(), err)
				return fmt.Errorf("stop %s: %w", service.Name(), err)
			}
			sm.logger.Debugf("Service stopped: %s", service.Name())
			return nil
		})
	}
	return g.Wait()
}

// Run 运行服务管理器，直到收到关闭信号
func (sm *ServiceManager) Run() error {
	return sm.RunWithContext(context.Background())
}

// RunWithContext 使用指定上下文运行服务管理器
func (sm *ServiceManager) RunWithContext(ctx context.Context) error {
	if sm.config.EnableSignalHandling {
		stop := sm.setupSignalHandling()
		defer stop()
	}

	if err := sm.StartAllServices(); err != nil {
		sm.disposeResources()
		return err
	}

	select {
	case <-ctx.Done():
		sm.logger.Info("Context cancelled, initiating shutdown")
	case <-sm.shutdownChan:
		sm.logger.Info("Shutdown requested")
	}

	return sm.gracefulShutdown()
}

// TriggerShutdown 触发关闭，可重复调用
func (sm *ServiceManager) TriggerShutdown() {
	sm.shutdownOnce.Do(func() { close(sm.shutdownChan) })
}

// GetDisposeResult 获取资源释放结果
func (sm *ServiceManager) GetDisposeResult() *dispose.DisposeResult {
	return sm.disposeResult
}

func (sm *ServiceManager) setupSignalHandling() func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigChan:
			sm.logger.Infof("Received signal: %v", sig)
			sm.TriggerShutdown()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

// Shutdown 在不使用 RunWithContext 时手动执行优雅关闭
func (sm *ServiceManager) Shutdown() error {
	return sm.gracefulShutdown()
}

// gracefulShutdown 优雅关闭：先停服务，再释放资源
func (sm *ServiceManager) gracefulShutdown() error {
	sm.logger.Info("Starting graceful shutdown...")

	stopErr := sm.StopAllServices()
	if stopErr != nil {
		sm.logger.Errorf("Service shutdown error: %v", stopErr)
	}

	if err := sm.disposeResources(); err != nil {
		return err
	}
	sm.Close()

	sm.logger.Info("Graceful shutdown completed")
	return stopErr
}

func (sm *ServiceManager) disposeResources() error {
	sm.disposeResult = sm.resourceMgr.DisposeWithTimeout(sm.config.ResourceDisposeTimeout)
	if sm.disposeResult.HasErrors() {
		sm.logger.Errorf("Resource disposal completed with errors: %v", sm.disposeResult.Error())
		return coreerrors.Wrap(sm.disposeResult, coreerrors.CodeCleanupError, "resource disposal failed")
	}
	return nil
}
