package errors

import (
	"errors"
	"net"
)

// 预定义哨兵错误（用于 errors.Is 比较）
var (
	ErrRateLimited    = New(CodeRateLimited, "rate limit exceeded")
	ErrServiceClosed  = New(CodeServiceClosed, "service closed")
	ErrSessionExpired = New(CodeSessionExpired, "session expired")
)

// IsClosedConnError 检查是否为对已关闭连接的读写
// 会话被过期或全局关闭后，连接上的读写都会得到这类错误
func IsClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, net.ErrClosed)
}
