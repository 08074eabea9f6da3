package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"echo-core/internal/constants"

	"github.com/sirupsen/logrus"
)

// Config 日志配置
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
	Output string `json:"output" yaml:"output"`
	File   string `json:"file" yaml:"file"`
}

var (
	logFileMu      sync.Mutex
	currentLogFile *os.File
)

// NewFromConfig 根据配置创建 logrus 实例
func NewFromConfig(cfg *Config) (*logrus.Logger, error) {
	l := logrus.New()
	if cfg == nil {
		l.SetOutput(os.Stdout)
		return l, nil
	}

	level := cfg.Level
	if level == "" {
		level = constants.LogLevelInfo
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}
	l.SetLevel(parsed)

	switch cfg.Format {
	case constants.LogFormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "", constants.LogFormatText:
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	out, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	l.SetOutput(out)
	return l, nil
}

// Init 根据配置初始化默认 Logger
func Init(cfg *Config) error {
	l, err := NewFromConfig(cfg)
	if err != nil {
		return err
	}
	SetDefault(NewLogrusLogger(l))
	return nil
}

// openOutput 打开日志输出目标；文件输出会替换上一次打开的文件
func openOutput(cfg *Config) (io.Writer, error) {
	switch cfg.Output {
	case "", constants.LogOutputStdout:
		return os.Stdout, nil
	case constants.LogOutputStderr:
		return os.Stderr, nil
	case constants.LogOutputFile:
		if cfg.File == "" {
			return nil, fmt.Errorf("log file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		logFileMu.Lock()
		if currentLogFile != nil {
			_ = currentLogFile.Close()
		}
		currentLogFile = file
		logFileMu.Unlock()
		return file, nil
	default:
		return nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}
}

// Close 关闭日志文件（如果有）
func Close() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if currentLogFile == nil {
		return nil
	}
	err := currentLogFile.Close()
	currentLogFile = nil
	return err
}
