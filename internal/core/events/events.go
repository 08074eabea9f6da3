package events

import (
	"time"
)

// 事件类型
const (
	TypeSessionCreated    = "SessionCreated"
	TypeSessionExpired    = "SessionExpired"
	TypeSessionClosed     = "SessionClosed"
	TypeShutdownTriggered = "ShutdownTriggered"
)

// AllTypes 所有会话生命周期事件类型
var AllTypes = []string{
	TypeSessionCreated,
	TypeSessionExpired,
	TypeSessionClosed,
	TypeShutdownTriggered,
}

// Event 事件接口
type Event interface {
	Type() string
	Timestamp() time.Time
	Source() string
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventTime   time.Time `json:"event_time"`
	EventSource string    `json:"event_source"`
}

func (e *BaseEvent) Type() string         { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time { return e.EventTime }
func (e *BaseEvent) Source() string       { return e.EventSource }

func newBase(eventType string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventTime:   time.Now(),
		EventSource: "SessionManager",
	}
}

// SessionEvent 单个会话的生命周期事件
type SessionEvent struct {
	BaseEvent
	Identity string `json:"identity"`
	ConnID   string `json:"conn_id"`
	Reused   bool   `json:"reused,omitempty"`
}

// NewSessionCreatedEvent 会话建立（reused 表示复用了已有的会话记录）
func NewSessionCreatedEvent(identity, connID string, reused bool) *SessionEvent {
	return &SessionEvent{BaseEvent: newBase(TypeSessionCreated), Identity: identity, ConnID: connID, Reused: reused}
}

// NewSessionExpiredEvent 会话空闲超时
func NewSessionExpiredEvent(identity, connID string) *SessionEvent {
	return &SessionEvent{BaseEvent: newBase(TypeSessionExpired), Identity: identity, ConnID: connID}
}

// NewSessionClosedEvent 连接关闭后会话被立即移除
func NewSessionClosedEvent(identity, connID string) *SessionEvent {
	return &SessionEvent{BaseEvent: newBase(TypeSessionClosed), Identity: identity, ConnID: connID}
}

// ShutdownEvent 全局关闭事件
type ShutdownEvent struct {
	BaseEvent
	TriggeredBy string `json:"triggered_by"`
	Sessions    int    `json:"sessions"`
}

// NewShutdownTriggeredEvent 创建全局关闭事件
func NewShutdownTriggeredEvent(triggeredBy string, sessions int) *ShutdownEvent {
	return &ShutdownEvent{BaseEvent: newBase(TypeShutdownTriggered), TriggeredBy: triggeredBy, Sessions: sessions}
}
