package protocol

import (
	"context"
	"net"
	"sync"

	"echo-core/internal/constants"
	"echo-core/internal/core/dispose"
	coreerrors "echo-core/internal/core/errors"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/core/safe"
)

// TCPListener TCP 监听器，为每个接受的连接启动一个处理协程
// 实现 utils.Service
type TCPListener struct {
	dispose.Dispose

	addr     string
	handler  Handler
	logger   corelog.Logger
	mu       sync.RWMutex
	listener net.Listener
	loopDone chan struct{}
	conns    *safe.WaitGroup
}

// NewTCPListener 创建 TCP 监听器
func NewTCPListener(parentCtx context.Context, addr string, handler Handler, logger corelog.Logger) *TCPListener {
	if logger == nil {
		logger = corelog.Default()
	}
	l := &TCPListener{
		addr:    addr,
		handler: handler,
		logger:  logger,
		conns:   safe.NewWaitGroup("tcp-connection"),
	}
	l.SetCtx(parentCtx, l.onClose)
	return l
}

// Name 实现 Service 接口
func (l *TCPListener) Name() string {
	return "tcp-listener"
}

// Start 实现 Service 接口
func (l *TCPListener) Start(ctx context.Context) error {
	return l.ListenFrom(l.addr)
}

// Stop 关闭监听 socket 并等待接受循环退出；不影响已建立的会话
func (l *TCPListener) Stop(ctx context.Context) error {
	if result := l.Dispose.Close(); result.HasErrors() {
		return coreerrors.Wrap(result, coreerrors.CodeNetworkError, "tcp listener cleanup failed")
	}

	l.mu.RLock()
	done := l.loopDone
	l.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListenFrom 绑定地址并启动接受循环
func (l *TCPListener) ListenFrom(listenAddr string) error {
	if listenAddr == "" {
		return coreerrors.New(coreerrors.CodeInvalidParam, "listen address not set")
	}
	if l.IsClosed() {
		return coreerrors.ErrServiceClosed
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "failed to listen on %s", listenAddr)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.listener = listener
	l.loopDone = done
	l.mu.Unlock()

	l.logger.WithField(constants.LogFieldAddress, listener.Addr().String()).Info("TCP listener started")
	go l.acceptLoop(listener, done)
	return nil
}

// Addr 实际绑定的地址；未监听时为 nil
func (l *TCPListener) Addr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Wait 等待所有连接处理协程结束
func (l *TCPListener) Wait() {
	l.conns.Wait()
}

func (l *TCPListener) acceptLoop(listener net.Listener, done chan struct{}) {
	defer close(done)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if l.IsClosed() || coreerrors.IsClosedConnError(err) {
				return
			}
			if isIgnorableError(err) {
				continue
			}
			l.logger.WithError(err).Error("TCP accept error")
			return
		}

		l.logger.WithField(constants.LogFieldAddress, conn.RemoteAddr().String()).Debug("Accepted connection")
		l.conns.Go(func() { l.handler.Handle(conn) })
	}
}

// isIgnorableError 检查是否为可忽略的错误
func isIgnorableError(err error) bool {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	return false
}

func (l *TCPListener) onClose() error {
	l.mu.Lock()
	listener := l.listener
	l.mu.Unlock()

	if listener == nil {
		return nil
	}
	if err := listener.Close(); err != nil && !coreerrors.IsClosedConnError(err) {
		return err
	}
	l.logger.Info("TCP listener closed")
	return nil
}
