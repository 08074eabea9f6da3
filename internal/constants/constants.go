package constants

import "time"

// 网络相关常量
const (
	// DefaultListenHost 默认监听地址（所有网卡）
	DefaultListenHost = "0.0.0.0"

	// DefaultListenPort 默认 TCP 监听端口
	DefaultListenPort = 4000

	// ReadBufferSize 单次读取缓冲区大小
	ReadBufferSize = 4096

	// DefaultManagementAddr 管理 API 默认监听地址
	DefaultManagementAddr = "127.0.0.1:9000"
)

// 会话相关常量
const (
	// DefaultIdleTimeout 会话空闲超时
	DefaultIdleTimeout = 5000 * time.Millisecond

	// DefaultIdleTimeoutMs 会话空闲超时（毫秒，用于配置文件）
	DefaultIdleTimeoutMs = 5000
)

// 线路协议文本，均以 CRLF 结尾
const (
	GreetingMessage = "Hello!\r\n"
	ExpiredMessage  = "Your session has expired.\r\n"
	GoodbyeMessage  = "This chat has been ended. Goodbye.\r\n"

	// ShutdownCommand 管理命令，必须与单次读取的数据完全一致
	ShutdownCommand = "shutdown\r\n"
)
