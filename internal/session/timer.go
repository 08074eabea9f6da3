package session

import "time"

// Timer 一次性计时器句柄
type Timer interface {
	// Stop 取消计时器；计时器已触发或已取消时返回 false
	Stop() bool
}

// Clock 计时器工厂，测试中可替换为手动时钟
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
func (realClock) Now() time.Time                            { return time.Now() }

// RealClock 基于 time.AfterFunc 的时钟
func RealClock() Clock {
	return realClock{}
}

// TimerPolicy 空闲超时计时策略：每个会话至多一个未触发的计时器
// 调用方必须持有保护会话的锁
type TimerPolicy struct {
	clock   Clock
	timeout time.Duration
}

// NewTimerPolicy 创建计时策略
func NewTimerPolicy(clock Clock, timeout time.Duration) *TimerPolicy {
	if clock == nil {
		clock = RealClock()
	}
	return &TimerPolicy{clock: clock, timeout: timeout}
}

// Timeout 空闲超时时长
func (p *TimerPolicy) Timeout() time.Duration {
	return p.timeout
}

// Now 当前时间，与计时器使用同一时钟
func (p *TimerPolicy) Now() time.Time {
	return p.clock.Now()
}

// Renew 取消旧计时器并重新计时
// onExpire 收到装填时的代数，已被替换的计时器回调据此识别并忽略
func (p *TimerPolicy) Renew(s *Session, onExpire func(s *Session, generation uint64)) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	generation := s.generation
	s.lastActive = p.clock.Now()
	s.timer = p.clock.AfterFunc(p.timeout, func() {
		onExpire(s, generation)
	})
}

// Cancel 取消会话计时器，并使未来可能到达的回调失效
func (p *TimerPolicy) Cancel(s *Session) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
}
