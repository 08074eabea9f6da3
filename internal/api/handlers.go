package api

import (
	"net/http"
	"time"

	"echo-core/internal/core/events"
	"echo-core/internal/version"

	"github.com/gorilla/websocket"
)

const (
	eventStreamBuffer = 64
	wsWriteTimeout    = 5 * time.Second
)

// handleHealth 健康检查
func (s *ManagementAPIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:         "healthy",
		Version:        version.GetShortVersion(),
		UptimeSeconds:  time.Since(s.startTime).Seconds(),
		ActiveSessions: s.sessions.Len(),
	})
}

// handleListSessions 列出所有会话
func (s *ManagementAPIServer) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.Sessions()
	respondJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions, Total: len(sessions)})
}

// handleShutdown 执行全局关闭，等同于客户端发送关闭命令
func (s *ManagementAPIServer) handleShutdown(w http.ResponseWriter, r *http.Request) {
	n := s.sessions.ShutdownAll("management-api")
	respondJSON(w, http.StatusOK, ShutdownResponse{Sessions: n})
}

// handleStats 指标统计
func (s *ManagementAPIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		ActiveSessions: s.sessions.Len(),
		Metrics:        s.metricsSnapshot(),
	})
}

// handleEvents 通过 WebSocket 推送会话生命周期事件
// 客户端消费过慢时丢弃事件，不阻塞事件总线
func (s *ManagementAPIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		respondError(w, http.StatusServiceUnavailable, "event stream not available")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写入了错误响应
		s.logger.WithError(err).Debug("ManagementAPIServer: websocket upgrade failed")
		return
	}
	defer conn.Close()

	stream := make(chan events.Event, eventStreamBuffer)
	var ids []events.SubscriptionID
	defer func() {
		for _, id := range ids {
			s.bus.Unsubscribe(id)
		}
	}()

	for _, eventType := range events.AllTypes {
		id, err := s.bus.Subscribe(eventType, func(e events.Event) error {
			select {
			case stream <- e:
			default:
				s.logger.Debugf("ManagementAPIServer: dropping %s event for slow subscriber", e.Type())
			}
			return nil
		})
		if err != nil {
			s.logger.WithError(err).Warn("ManagementAPIServer: event subscription failed")
			return
		}
		ids = append(ids, id)
	}

	// 读协程只用于感知客户端关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e := <-stream:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				s.logger.WithError(err).Debug("ManagementAPIServer: event stream write failed")
				return
			}
		case <-closed:
			return
		case <-s.Ctx().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
