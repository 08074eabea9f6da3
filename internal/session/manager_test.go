package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"echo-core/internal/constants"
	coreerrors "echo-core/internal/core/errors"
	"echo-core/internal/core/events"
	corelog "echo-core/internal/core/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func newTestManager(t *testing.T) (*Manager, *manualClock) {
	t.Helper()
	clock := newManualClock()
	m := NewManager(Config{
		IdleTimeout: testTimeout,
		Clock:       clock,
		Logger:      corelog.NewTestLogger(t),
	})
	return m, clock
}

func TestManagerExpiresIdleSession(t *testing.T) {
	m, clock := newTestManager(t)
	conn := &fakeConn{}

	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	clock.Advance(testTimeout - time.Millisecond)
	assert.False(t, conn.IsClosed())

	clock.Advance(time.Millisecond)
	assert.True(t, conn.IsClosed())
	assert.Equal(t, constants.ExpiredMessage, conn.String())
	assert.Equal(t, 0, m.Len())

	_, ok := m.Get(s.Identity)
	assert.False(t, ok)
}

func TestManagerTouchDefersExpiry(t *testing.T) {
	m, clock := newTestManager(t)
	conn := &fakeConn{}
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		clock.Advance(4 * time.Second)
		require.NoError(t, m.Touch(s))
		assert.Equal(t, 1, clock.Pending())
	}
	assert.False(t, conn.IsClosed())

	clock.Advance(testTimeout)
	assert.True(t, conn.IsClosed())
	assert.ErrorIs(t, m.Touch(s), coreerrors.ErrSessionExpired, "touch after expiry must not resurrect the session")
	assert.Equal(t, 0, clock.Pending())
}

func TestManagerStaleTimerCallbackIgnored(t *testing.T) {
	m, _ := newTestManager(t)
	conn := &fakeConn{}
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	staleGen := s.generation
	require.NoError(t, m.Touch(s))

	// 模拟已被替换的计时器回调在 Stop 之后仍然到达
	m.onTimer(s, staleGen)
	assert.False(t, conn.IsClosed())
	assert.Equal(t, 1, m.Len())
}

func TestManagerExpireIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)
	conn := &fakeConn{}
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	m.Expire(s)
	m.Expire(s)
	assert.Equal(t, constants.ExpiredMessage, conn.String())
	assert.Equal(t, 0, m.Len())
}

func TestManagerExpireToleratesClosedConn(t *testing.T) {
	m, _ := newTestManager(t)
	conn := &fakeConn{}
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	m.Expire(s)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, conn.String())
}

func TestManagerExpireToleratesWriteError(t *testing.T) {
	m, _ := newTestManager(t)
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	m.Expire(s)
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 0, m.Len())
}

func TestManagerShutdownAll(t *testing.T) {
	m, clock := newTestManager(t)

	const n = 5
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = &fakeConn{}
		_, err := m.Attach(fmt.Sprintf("10.0.0.%d:4000", i), fmt.Sprintf("10.0.0.%d", i), 4000, conns[i])
		require.NoError(t, err)
	}
	require.Equal(t, n, m.Len())

	count := m.ShutdownAll("10.0.0.0:4000")
	assert.Equal(t, n, count)
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, clock.Pending())

	for _, c := range conns {
		assert.Equal(t, constants.GoodbyeMessage, c.String())
		assert.True(t, c.IsClosed())
	}

	// 关闭后计时器到期不应再写入过期通知
	clock.Advance(2 * testTimeout)
	for _, c := range conns {
		assert.Equal(t, constants.GoodbyeMessage, c.String())
	}
}

func TestManagerShutdownAllEmpty(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Equal(t, 0, m.ShutdownAll("nobody"))
}

func TestManagerReattachAfterExpiryCreatesFreshSession(t *testing.T) {
	m, clock := newTestManager(t)
	first, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, &fakeConn{})
	require.NoError(t, err)

	clock.Advance(testTimeout)
	require.Equal(t, 0, m.Len())

	second, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, &fakeConn{})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.ErrorIs(t, m.Touch(first), coreerrors.ErrSessionExpired)
	assert.NoError(t, m.Touch(second))
}

func TestManagerReattachReusesLiveSession(t *testing.T) {
	m, clock := newTestManager(t)
	oldConn := &fakeConn{}
	first, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, oldConn)
	require.NoError(t, err)
	firstConnID := first.connID

	newConn := &fakeConn{}
	second, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, newConn)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.NotEqual(t, firstConnID, second.connID)
	assert.Equal(t, 1, clock.Pending())

	// 旧连接的读循环结束时不得摘掉已被新连接接管的会话
	assert.False(t, m.Detach(first, oldConn))
	assert.Equal(t, 1, m.Len())

	clock.Advance(testTimeout)
	assert.Equal(t, constants.ExpiredMessage, newConn.String())
	assert.Empty(t, oldConn.String())
}

func TestManagerDetach(t *testing.T) {
	m, clock := newTestManager(t)
	conn := &fakeConn{}
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	assert.True(t, m.Detach(s, conn))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, clock.Pending())
	assert.False(t, m.Detach(s, conn))

	clock.Advance(testTimeout)
	assert.Empty(t, conn.String())
}

func TestManagerSessionsSnapshot(t *testing.T) {
	m, _ := newTestManager(t)
	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, &fakeConn{})
	require.NoError(t, err)
	m.RecordEcho(s, 42)

	infos := m.Sessions()
	require.Len(t, infos, 1)
	info := infos[0]
	assert.Equal(t, "1.2.3.4:1000", info.Identity)
	assert.Equal(t, "1.2.3.4", info.RemoteIP)
	assert.Equal(t, 1000, info.RemotePort)
	assert.True(t, info.Attached)
	assert.NotEmpty(t, info.ConnID)
	assert.Equal(t, int64(42), info.BytesEchoed)
}

func TestManagerClose(t *testing.T) {
	m, clock := newTestManager(t)
	conn := &fakeConn{}
	_, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, conn)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.True(t, conn.IsClosed())
	assert.Empty(t, conn.String())
	assert.Equal(t, 0, clock.Pending())
	require.NoError(t, m.Close())

	_, err = m.Attach("1.2.3.4:1001", "1.2.3.4", 1001, &fakeConn{})
	assert.True(t, coreerrors.Is(err, coreerrors.ErrServiceClosed))
}

func TestManagerPublishesEvents(t *testing.T) {
	bus := events.NewEventBus(context.Background(), corelog.NewNopLogger())
	defer bus.Close()

	var mu sync.Mutex
	var seen []string
	for _, typ := range events.AllTypes {
		_, err := bus.Subscribe(typ, func(e events.Event) error {
			mu.Lock()
			seen = append(seen, e.Type())
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	clock := newManualClock()
	m := NewManager(Config{IdleTimeout: testTimeout, Clock: clock, EventBus: bus, Logger: corelog.NewNopLogger()})

	_, err := m.Attach("a:1", "a", 1, &fakeConn{})
	require.NoError(t, err)
	clock.Advance(testTimeout)
	_, err = m.Attach("b:2", "b", 2, &fakeConn{})
	require.NoError(t, err)
	m.ShutdownAll("b:2")

	want := []string{
		events.TypeSessionCreated,
		events.TypeSessionExpired,
		events.TypeSessionCreated,
		events.TypeShutdownTriggered,
	}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(want)
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
}

func TestManagerConcurrentTouchAndShutdown(t *testing.T) {
	m := NewManager(Config{IdleTimeout: 20 * time.Millisecond, Logger: corelog.NewNopLogger()})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		s, err := m.Attach(fmt.Sprintf("c:%d", i), "c", i, &fakeConn{})
		require.NoError(t, err)
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = m.Touch(s)
			}
		}(s)
	}
	m.ShutdownAll("test")
	wg.Wait()

	assert.Equal(t, 0, m.Len())
}

func TestManagerTimestampsUseInjectedClock(t *testing.T) {
	m, clock := newTestManager(t)
	start := clock.Now()

	s, err := m.Attach("1.2.3.4:1000", "1.2.3.4", 1000, &fakeConn{})
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	require.NoError(t, m.Touch(s))

	infos := m.Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, start, infos[0].CreatedAt)
	assert.Equal(t, start.Add(2*time.Second), infos[0].LastActive)
}
