package server

import (
	"os"
	"strconv"

	corelog "echo-core/internal/core/log"
)

// ApplyEnvOverrides 应用环境变量覆盖配置
// 环境变量优先级高于配置文件；无法解析的值忽略并记录警告
func ApplyEnvOverrides(config *Config) {
	// Server配置
	if v := os.Getenv("ECHO_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("ECHO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		} else {
			corelog.Warnf("Ignoring invalid ECHO_SERVER_PORT=%q", v)
		}
	}

	// Session配置
	if v := os.Getenv("ECHO_IDLE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			config.Session.IdleTimeoutMs = ms
		} else {
			corelog.Warnf("Ignoring invalid ECHO_IDLE_TIMEOUT_MS=%q", v)
		}
	}
	if v := os.Getenv("ECHO_EVICT_ON_CLOSE"); v != "" {
		config.Session.EvictOnClose = parseBool(v)
	}

	// Log配置
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Log.Format = v
	}

	// Management API配置
	if v := os.Getenv("MANAGEMENT_API_ENABLED"); v != "" {
		config.ManagementAPI.Enabled = parseBool(v)
	}
	if v := os.Getenv("MANAGEMENT_API_LISTEN"); v != "" {
		config.ManagementAPI.ListenAddr = v
	}
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}
