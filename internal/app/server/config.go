package server

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"echo-core/internal/constants"
	coreerrors "echo-core/internal/core/errors"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/utils"

	"gopkg.in/yaml.v3"
)

// ServerConfig TCP 监听配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	IdleTimeoutMs int  `yaml:"idle_timeout_ms"`
	EvictOnClose  bool `yaml:"evict_on_close"` // 连接关闭时立即移除会话
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	RPS     int  `yaml:"rps"`   // 每秒请求数
	Burst   int  `yaml:"burst"` // 突发容量
}

// ManagementAPIConfig 管理 API 配置
type ManagementAPIConfig struct {
	Enabled    bool            `yaml:"enabled"`
	ListenAddr string          `yaml:"listen_addr"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// Config 应用配置
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Session       SessionConfig       `yaml:"session"`
	Log           corelog.Config      `yaml:"log"`
	ManagementAPI ManagementAPIConfig `yaml:"management_api"`
}

// ListenAddr TCP 监听地址
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// IdleTimeout 会话空闲超时
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMs) * time.Millisecond
}

// LoadConfig 加载配置文件，文件不存在时使用默认配置
func LoadConfig(configPath string) (*Config, error) {
	config := GetDefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		corelog.Warnf(constants.MsgConfigFileNotFound, configPath)
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, coreerrors.Wrap(fmt.Errorf(constants.MsgFailedToReadConfigFile, configPath, err), coreerrors.CodeConfigError, "load config")
		}
		// 在默认值之上解析，未出现的字段保留默认值
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, coreerrors.Wrap(fmt.Errorf(constants.MsgFailedToParseConfigFile, configPath, err), coreerrors.CodeConfigError, "load config")
		}
		corelog.Infof(constants.MsgConfigLoadedFrom, configPath)
	}

	// 环境变量优先级高于配置文件
	ApplyEnvOverrides(config)

	if err := ValidateConfig(config); err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf(constants.MsgInvalidConfiguration, err), coreerrors.CodeConfigError, "load config")
	}
	return config, nil
}

// ValidateConfig 填充缺省值并校验配置
func ValidateConfig(config *Config) error {
	if config.Server.Host == "" {
		config.Server.Host = constants.DefaultListenHost
	}
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", config.Server.Port)
	}

	if config.Session.IdleTimeoutMs == 0 {
		config.Session.IdleTimeoutMs = constants.DefaultIdleTimeoutMs
	}
	if config.Session.IdleTimeoutMs < 0 {
		return fmt.Errorf("session idle_timeout_ms must be positive, got %d", config.Session.IdleTimeoutMs)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return err
	}

	api := &config.ManagementAPI
	if api.ListenAddr == "" {
		api.ListenAddr = constants.DefaultManagementAddr
	}
	if api.Enabled {
		if _, _, err := net.SplitHostPort(api.ListenAddr); err != nil {
			return fmt.Errorf("invalid management_api listen_addr %q: %w", api.ListenAddr, err)
		}
	}
	if api.RateLimit.RPS <= 0 {
		api.RateLimit.RPS = 20
	}
	if api.RateLimit.Burst <= 0 {
		api.RateLimit.Burst = api.RateLimit.RPS * 2
	}
	return nil
}

func validateLogConfig(cfg *corelog.Config) error {
	if cfg.Level == "" {
		cfg.Level = constants.LogLevelInfo
	}
	switch cfg.Level {
	case constants.LogLevelDebug, constants.LogLevelInfo, constants.LogLevelWarn, constants.LogLevelError:
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	if cfg.Format == "" {
		cfg.Format = constants.LogFormatText
	}
	if cfg.Format != constants.LogFormatText && cfg.Format != constants.LogFormatJSON {
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	if cfg.Output == "" {
		cfg.Output = constants.LogOutputStdout
	}
	switch cfg.Output {
	case constants.LogOutputStdout, constants.LogOutputStderr:
	case constants.LogOutputFile:
		// 展开路径（支持 ~ 和相对路径）
		expanded, err := utils.ExpandPath(cfg.File)
		if err != nil {
			return fmt.Errorf("invalid log file path %q: %w", cfg.File, err)
		}
		cfg.File = expanded
	default:
		return fmt.Errorf("invalid log output: %s", cfg.Output)
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: constants.DefaultListenHost,
			Port: constants.DefaultListenPort,
		},
		Session: SessionConfig{
			IdleTimeoutMs: constants.DefaultIdleTimeoutMs,
		},
		Log: corelog.Config{
			Level:  constants.LogLevelInfo,
			Format: constants.LogFormatText,
			Output: constants.LogOutputStdout,
		},
		ManagementAPI: ManagementAPIConfig{
			Enabled:    false,
			ListenAddr: constants.DefaultManagementAddr,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
	}
}
