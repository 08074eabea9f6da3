// Package session 管理客户端会话：会话存储、空闲超时计时、过期处理、
// 管理命令识别以及全局关闭。
package session

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// Conn 会话关联的连接句柄，只需要写入和关闭
type Conn interface {
	io.Writer
	io.Closer
}

// Session 一个客户端连接槽位，以 "<ip>:<port>" 为键
type Session struct {
	Identity   string
	RemoteIP   string
	RemotePort int
	CreatedAt  time.Time

	// 以下字段由 Manager 的锁保护
	connID     string
	conn       Conn
	timer      Timer
	generation uint64
	lastActive time.Time

	bytesEchoed atomic.Int64
}

// Info 会话只读快照
type Info struct {
	Identity    string    `json:"identity"`
	ConnID      string    `json:"conn_id"`
	RemoteIP    string    `json:"remote_ip"`
	RemotePort  int       `json:"remote_port"`
	Attached    bool      `json:"attached"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	BytesEchoed int64     `json:"bytes_echoed"`
}

func (s *Session) info() Info {
	return Info{
		Identity:    s.Identity,
		ConnID:      s.connID,
		RemoteIP:    s.RemoteIP,
		RemotePort:  s.RemotePort,
		Attached:    s.conn != nil,
		CreatedAt:   s.CreatedAt,
		LastActive:  s.lastActive,
		BytesEchoed: s.bytesEchoed.Load(),
	}
}

// BytesEchoed 返回该会话累计回显的字节数
func (s *Session) BytesEchoed() int64 {
	return s.bytesEchoed.Load()
}

// Identity 格式化会话键
func Identity(ip string, port int) string {
	return fmt.Sprintf("%s:%d", ip, port)
}

// IdentityFromAddr 从远端地址推导会话键、IP 和端口
// 非 TCP 地址（如测试用的管道）退化为整个地址字符串，端口为 0
func IdentityFromAddr(addr net.Addr) (identity, ip string, port int) {
	if addr == nil {
		return Identity("unknown", 0), "unknown", 0
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		ip = tcpAddr.IP.String()
		return Identity(ip, tcpAddr.Port), ip, tcpAddr.Port
	}

	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return Identity(addr.String(), 0), addr.String(), 0
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return Identity(host, 0), host, 0
	}
	return Identity(host, port), host, port
}
