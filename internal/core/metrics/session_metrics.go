package metrics

// 会话级别指标名
const (
	MetricSessionsCreated  = "sessions_created"
	MetricSessionsReused   = "sessions_reused"
	MetricSessionsExpired  = "sessions_expired"
	MetricSessionsClosed   = "sessions_closed"
	MetricSessionsActive   = "sessions_active"
	MetricShutdownCommands = "shutdown_commands"
	MetricSessionsShutdown = "sessions_shutdown"
	MetricBytesEchoed      = "bytes_echoed"
	MetricWriteErrors      = "write_errors"
)

// 以下辅助函数在全局 Metrics 未设置时静默返回

func IncrementSessionsCreated(reused bool) {
	if reused {
		inc(MetricSessionsReused)
		return
	}
	inc(MetricSessionsCreated)
}

func IncrementSessionsExpired() { inc(MetricSessionsExpired) }

func IncrementSessionsClosed() { inc(MetricSessionsClosed) }

func IncrementWriteErrors() { inc(MetricWriteErrors) }

// RecordShutdown 记录一次全局关闭及其断开的会话数
func RecordShutdown(sessions int) {
	m := GetGlobalMetrics()
	if m == nil {
		return
	}
	_ = m.IncrementCounter(MetricShutdownCommands, nil)
	_ = m.AddCounter(MetricSessionsShutdown, float64(sessions), nil)
}

// AddBytesEchoed 累计回显字节数
func AddBytesEchoed(n int) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.AddCounter(MetricBytesEchoed, float64(n), nil)
	}
}

// SetActiveSessions 设置活跃会话数
func SetActiveSessions(count int) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.SetGauge(MetricSessionsActive, float64(count), nil)
	}
}

func inc(name string) {
	if m := GetGlobalMetrics(); m != nil {
		_ = m.IncrementCounter(name, nil)
	}
}
