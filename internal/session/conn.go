package session

import (
	"net"
	"sync"

	coreerrors "echo-core/internal/core/errors"
)

// noticeCloser 原子地写入最后一条消息并关闭连接
type noticeCloser interface {
	WriteAndClose(p []byte) error
}

// GuardedConn 串行化连接上的写入
// WriteAndClose 之后的 Write 一律返回 net.ErrClosed，
// 过期或关闭通知之后不会再出现回显数据
type GuardedConn struct {
	conn    Conn
	mu      sync.Mutex
	closing bool
}

// NewGuardedConn 包装连接
func NewGuardedConn(conn Conn) *GuardedConn {
	return &GuardedConn{conn: conn}
}

// Write 写入数据，连接已进入关闭流程时返回 net.ErrClosed
func (g *GuardedConn) Write(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return 0, net.ErrClosed
	}
	return g.conn.Write(p)
}

// Close 关闭连接，可重复调用
func (g *GuardedConn) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return nil
	}
	g.closing = true
	return g.conn.Close()
}

// WriteAndClose 在同一临界区内写入最后一条消息并关闭连接
func (g *GuardedConn) WriteAndClose(p []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closing {
		return net.ErrClosed
	}
	g.closing = true
	return writeAndClose(g.conn, p)
}

// writeAndClose 写入后总是关闭；优先返回写入错误，忽略重复关闭
func writeAndClose(conn Conn, p []byte) error {
	_, writeErr := conn.Write(p)
	closeErr := conn.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil && !coreerrors.IsClosedConnError(closeErr) {
		return closeErr
	}
	return nil
}
