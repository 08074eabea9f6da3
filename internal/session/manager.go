package session

import (
	"net"
	"sync"
	"time"

	"echo-core/internal/constants"
	coreerrors "echo-core/internal/core/errors"
	"echo-core/internal/core/events"
	"echo-core/internal/core/idgen"
	corelog "echo-core/internal/core/log"
	"echo-core/internal/core/metrics"
)

// Config 会话管理器配置
type Config struct {
	IdleTimeout time.Duration
	Clock       Clock
	Logger      corelog.Logger
	EventBus    events.EventBus
	IDGen       idgen.Generator
}

// Manager 会话管理器
// 存储的增删和计时器的取消/重装都在同一把锁内完成，
// 写通知和关闭连接在锁外进行
type Manager struct {
	mu     sync.Mutex
	store  *Store
	timers *TimerPolicy
	closed bool

	logger corelog.Logger
	bus    events.EventBus
	ids    idgen.Generator
}

// NewManager 创建会话管理器
func NewManager(cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = constants.DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = corelog.Default()
	}
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.NewUUIDGenerator("conn_")
	}
	return &Manager{
		store:  NewStore(),
		timers: NewTimerPolicy(cfg.Clock, cfg.IdleTimeout),
		logger: cfg.Logger,
		bus:    cfg.EventBus,
		ids:    cfg.IDGen,
	}
}

// IdleTimeout 空闲超时时长
func (m *Manager) IdleTimeout() time.Duration {
	return m.timers.Timeout()
}

// Attach 为新接受的连接查找或创建会话并启动空闲计时
func (m *Manager) Attach(identity, ip string, port int, conn Conn) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, coreerrors.ErrServiceClosed
	}
	s, created := m.store.GetOrCreate(identity, ip, port, conn, m.timers.Now())
	s.connID = m.ids.Generate()
	m.timers.Renew(s, m.onTimer)
	connID := s.connID
	active := m.store.Len()
	m.mu.Unlock()

	metrics.IncrementSessionsCreated(!created)
	metrics.SetActiveSessions(active)
	m.publish(events.NewSessionCreatedEvent(identity, connID, !created))

	m.logger.WithFields(map[string]interface{}{
		constants.LogFieldIdentity: identity,
		constants.LogFieldConnID:   connID,
	}).Infof("Session attached (new=%v, active=%d)", created, active)
	return s, nil
}

// AttachAddr 按连接的远端地址调用 Attach
func (m *Manager) AttachAddr(addr net.Addr, conn Conn) (*Session, error) {
	identity, ip, port := IdentityFromAddr(addr)
	return m.Attach(identity, ip, port, conn)
}

// Touch 会话有任何流量时重置空闲计时
// 会话已不在存储中（已过期或已被全局关闭）时返回 ErrSessionExpired，不会重新计时
func (m *Manager) Touch(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isCurrentLocked(s) {
		return coreerrors.ErrSessionExpired
	}
	m.timers.Renew(s, m.onTimer)
	return nil
}

// Expire 立即过期一个会话：从存储移除，如有连接则发送过期通知并关闭
func (m *Manager) Expire(s *Session) {
	m.mu.Lock()
	if !m.isCurrentLocked(s) {
		m.mu.Unlock()
		return
	}
	m.expireLocked(s)
}

// onTimer 计时器回调；代数不匹配说明该计时器已被替换，直接忽略
func (m *Manager) onTimer(s *Session, generation uint64) {
	m.mu.Lock()
	if s.generation != generation || !m.isCurrentLocked(s) {
		m.mu.Unlock()
		return
	}
	m.expireLocked(s)
}

// expireLocked 调用时持有锁，返回前释放
func (m *Manager) expireLocked(s *Session) {
	m.timers.Cancel(s)
	m.store.Remove(s.Identity)
	conn := s.conn
	connID := s.connID
	active := m.store.Len()
	m.mu.Unlock()

	if conn != nil {
		m.notifyAndClose(s, conn, constants.ExpiredMessage)
	}

	metrics.IncrementSessionsExpired()
	metrics.SetActiveSessions(active)
	m.publish(events.NewSessionExpiredEvent(s.Identity, connID))
	m.logger.WithFields(map[string]interface{}{
		constants.LogFieldIdentity: s.Identity,
		constants.LogFieldConnID:   connID,
	}).Info("Session expired after idle timeout")
}

// ShutdownAll 断开所有已知会话并清空存储，返回断开的会话数
// 监听器不受影响，之后的新连接照常建立新会话
func (m *Manager) ShutdownAll(triggeredBy string) int {
	type target struct {
		s    *Session
		conn Conn
	}

	m.mu.Lock()
	sessions := m.store.All()
	targets := make([]target, 0, len(sessions))
	for _, s := range sessions {
		m.timers.Cancel(s)
		targets = append(targets, target{s: s, conn: s.conn})
	}
	m.store.Clear()
	m.mu.Unlock()

	for _, t := range targets {
		if t.conn != nil {
			m.notifyAndClose(t.s, t.conn, constants.GoodbyeMessage)
		}
	}

	metrics.RecordShutdown(len(targets))
	metrics.SetActiveSessions(0)
	m.publish(events.NewShutdownTriggeredEvent(triggeredBy, len(targets)))
	m.logger.WithFields(map[string]interface{}{
		constants.LogFieldTriggeredBy: triggeredBy,
		constants.LogFieldCount:       len(targets),
	}).Warn("Global shutdown: all sessions disconnected")
	return len(targets)
}

// Detach 连接读循环结束后立即移除会话
// 仅当存储中的会话仍挂着该连接时才移除，已被新连接复用的会话保持不变
func (m *Manager) Detach(s *Session, conn Conn) bool {
	m.mu.Lock()
	if !m.isCurrentLocked(s) || s.conn != conn {
		m.mu.Unlock()
		return false
	}
	m.timers.Cancel(s)
	m.store.Remove(s.Identity)
	s.conn = nil
	connID := s.connID
	active := m.store.Len()
	m.mu.Unlock()

	metrics.IncrementSessionsClosed()
	metrics.SetActiveSessions(active)
	m.publish(events.NewSessionClosedEvent(s.Identity, connID))
	m.logger.WithField(constants.LogFieldIdentity, s.Identity).Debug("Session removed on connection close")
	return true
}

// RecordEcho 累计会话回显字节数
func (m *Manager) RecordEcho(s *Session, n int) {
	s.bytesEchoed.Add(int64(n))
	metrics.AddBytesEchoed(n)
}

// Get 按 identity 查找会话
func (m *Manager) Get(identity string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(identity)
}

// Len 当前会话数
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Len()
}

// Sessions 所有会话的快照
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := m.store.All()
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.info())
	}
	return out
}

// Close 停止所有计时器并清空存储，之后 Attach 返回 ErrServiceClosed
// 进程退出时使用，不向客户端发送通知
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, s := range m.store.All() {
		m.timers.Cancel(s)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	}
	m.store.Clear()
	metrics.SetActiveSessions(0)
	return nil
}

func (m *Manager) isCurrentLocked(s *Session) bool {
	current, ok := m.store.Get(s.Identity)
	return ok && current == s
}

// notifyAndClose 写入通知并关闭连接；失败只记录日志
// 连接实现 noticeCloser 时通知和关闭之间不会插入其他写入
func (m *Manager) notifyAndClose(s *Session, conn Conn, message string) {
	var err error
	if nc, ok := conn.(noticeCloser); ok {
		err = nc.WriteAndClose([]byte(message))
	} else {
		err = writeAndClose(conn, []byte(message))
	}
	if err != nil {
		metrics.IncrementWriteErrors()
		m.logWriteError(s, err)
	}
}

func (m *Manager) logWriteError(s *Session, err error) {
	entry := m.logger.WithField(constants.LogFieldIdentity, s.Identity).WithError(err)
	if coreerrors.IsClosedConnError(err) {
		entry.Debug("Notice not delivered, connection already closed")
		return
	}
	entry.Warn("Failed to deliver notice")
}

func (m *Manager) publish(event events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(event); err != nil {
		m.logger.Debugf("Failed to publish %s event: %v", event.Type(), err)
	}
}
