package dispose

import "sync/atomic"

// dispose 包不直接依赖日志包，日志函数由应用层在初始化时注入
type logFn func(level string, format string, args ...interface{})

var logFunc atomic.Pointer[logFn]

// SetLogger 设置日志函数
func SetLogger(fn func(level string, format string, args ...interface{})) {
	f := logFn(fn)
	logFunc.Store(&f)
}

func logf(level string, format string, args ...interface{}) {
	if fn := logFunc.Load(); fn != nil && *fn != nil {
		(*fn)(level, format, args...)
	}
}

func Debugf(format string, args ...interface{}) { logf("debug", format, args...) }
func Errorf(format string, args ...interface{}) { logf("error", format, args...) }
func Warn(msg string)                           { logf("warn", "%s", msg) }
