package api

import (
	"echo-core/internal/session"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status         string  `json:"status"`
	Version        string  `json:"version"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	ActiveSessions int     `json:"active_sessions"`
}

// SessionListResponse 会话列表响应
type SessionListResponse struct {
	Sessions []session.Info `json:"sessions"`
	Total    int            `json:"total"`
}

// ShutdownResponse 全局关闭响应
type ShutdownResponse struct {
	Sessions int `json:"sessions"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	ActiveSessions int                `json:"active_sessions"`
	Metrics        map[string]float64 `json:"metrics"`
}
