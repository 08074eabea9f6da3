// Package protocol 负责 TCP 监听和单个连接的读写循环
package protocol

import (
	"errors"
	"io"
	"net"
	"time"

	"echo-core/internal/constants"
	coreerrors "echo-core/internal/core/errors"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/core/metrics"
	"echo-core/internal/session"

	"golang.org/x/time/rate"
)

// Handler 连接处理器接口，监听器为每个接受的连接调用一次
type Handler interface {
	Handle(conn net.Conn)
}

// HandlerConfig 连接处理器配置
type HandlerConfig struct {
	// EvictOnClose 读循环结束时立即移除会话，而不是等空闲计时器
	EvictOnClose bool
	BufferSize   int
	Logger       corelog.Logger
}

// ConnectionHandler 把连接接到会话管理器上并执行回显
type ConnectionHandler struct {
	sessions     *session.Manager
	interpreter  *session.Interpreter
	evictOnClose bool
	bufferSize   int
	logger       corelog.Logger

	// 写失败日志采样，避免客户端异常断开时刷屏
	writeErrLog rate.Sometimes
}

// NewConnectionHandler 创建连接处理器
func NewConnectionHandler(sessions *session.Manager, cfg HandlerConfig) *ConnectionHandler {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = constants.ReadBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = corelog.Default()
	}
	return &ConnectionHandler{
		sessions:     sessions,
		interpreter:  session.NewInterpreter(),
		evictOnClose: cfg.EvictOnClose,
		bufferSize:   cfg.BufferSize,
		logger:       cfg.Logger,
		writeErrLog:  rate.Sometimes{First: 5, Interval: 10 * time.Second},
	}
}

// Handle 处理一个连接直到对端关闭或连接被会话管理器关闭
func (h *ConnectionHandler) Handle(conn net.Conn) {
	// 所有写入经过 guarded，过期或关闭通知之后不会再有回显
	guarded := session.NewGuardedConn(conn)
	defer guarded.Close()

	s, err := h.sessions.AttachAddr(conn.RemoteAddr(), guarded)
	if err != nil {
		h.logger.WithError(err).Warnf("Rejecting connection from %s", conn.RemoteAddr())
		return
	}
	log := h.logger.WithField(constants.LogFieldIdentity, s.Identity)

	if _, err := guarded.Write([]byte(constants.GreetingMessage)); err != nil {
		h.onWriteError(log, err)
	}

	buf := make([]byte, h.bufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if !h.handleData(s, guarded, buf[:n], log) {
				break
			}
		}
		if err != nil {
			h.onReadError(log, err)
			break
		}
	}

	if h.evictOnClose {
		h.sessions.Detach(s, guarded)
	}
}

// handleData 处理一次读取的数据，返回 false 表示读循环应结束
func (h *ConnectionHandler) handleData(s *session.Session, conn *session.GuardedConn, data []byte, log corelog.Logger) bool {
	// 会话已过期或已被全局关闭，连接随之关闭，不再回显
	if err := h.sessions.Touch(s); err != nil {
		log.WithError(err).Debug("Dropping data for ended session")
		return false
	}

	if h.interpreter.Interpret(data) {
		log.Info("Shutdown command received")
		h.sessions.ShutdownAll(s.Identity)
		return false
	}

	n, err := conn.Write(data)
	if err != nil {
		// 通知已发出、连接已关闭，读循环随之结束
		if coreerrors.IsClosedConnError(err) {
			return false
		}
		h.onWriteError(log, err)
		return true
	}
	h.sessions.RecordEcho(s, n)
	return true
}

func (h *ConnectionHandler) onReadError(log corelog.Logger, err error) {
	if errors.Is(err, io.EOF) || coreerrors.IsClosedConnError(err) {
		log.Debug("Connection closed")
		return
	}
	log.WithError(err).Info("Connection read error")
}

func (h *ConnectionHandler) onWriteError(log corelog.Logger, err error) {
	metrics.IncrementWriteErrors()
	h.writeErrLog.Do(func() {
		log.WithError(err).Warn("Write to client failed")
	})
}
