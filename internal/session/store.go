package session

import "time"

// Store 会话存储：identity -> *Session，同一 identity 至多一条记录
// 非并发安全，由 Manager 加锁访问
type Store struct {
	sessions map[string]*Session
}

// NewStore 创建会话存储
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate 返回已有会话并挂上新的连接句柄，否则以 now 为创建时间新建会话（未启动计时器）
// created 表示是否新建
func (st *Store) GetOrCreate(identity, ip string, port int, conn Conn, now time.Time) (s *Session, created bool) {
	if existing, ok := st.sessions[identity]; ok {
		existing.conn = conn
		return existing, false
	}

	s = &Session{
		Identity:   identity,
		RemoteIP:   ip,
		RemotePort: port,
		CreatedAt:  now,
		conn:       conn,
	}
	st.sessions[identity] = s
	return s, true
}

// Get 按 identity 查找会话
func (st *Store) Get(identity string) (*Session, bool) {
	s, ok := st.sessions[identity]
	return s, ok
}

// Remove 删除会话，不存在时无操作
func (st *Store) Remove(identity string) {
	delete(st.sessions, identity)
}

// All 返回所有会话的快照，顺序不定
func (st *Store) All() []*Session {
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}

// Len 会话数
func (st *Store) Len() int {
	return len(st.sessions)
}

// Clear 清空所有会话
func (st *Store) Clear() {
	st.sessions = make(map[string]*Session)
}
