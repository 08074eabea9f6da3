package constants

// 日志级别常量
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// 日志字段名常量
const (
	LogFieldIdentity    = "identity"
	LogFieldConnID      = "conn_id"
	LogFieldRemoteIP    = "remote_ip"
	LogFieldRemotePort  = "remote_port"
	LogFieldError       = "error"
	LogFieldSize        = "size"
	LogFieldCount       = "count"
	LogFieldMethod      = "method"
	LogFieldPath        = "path"
	LogFieldTriggeredBy = "triggered_by"
	LogFieldAddress     = "address"
)

// 日志格式常量
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// 日志输出常量
const (
	LogOutputStdout = "stdout"
	LogOutputStderr = "stderr"
	LogOutputFile   = "file"
)

// 通用提示信息常量
const (
	MsgStartingServer          = "Starting echo-core server..."
	MsgServerStarted           = "Echo-core server started successfully"
	MsgShuttingDownServer      = "Shutting down echo-core server..."
	MsgServerShutdownCompleted = "Echo-core server shutdown completed"
	MsgConfigFileNotFound      = "Config file %s not found, using defaults"
	MsgConfigLoadedFrom        = "Configuration loaded from %s"
	MsgFailedToReadConfigFile  = "failed to read config file %s: %w"
	MsgFailedToParseConfigFile = "failed to parse config file %s: %w"
	MsgInvalidConfiguration    = "invalid configuration: %w"
)
