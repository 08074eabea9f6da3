package events

import (
	"context"
	"sync"
	"testing"
	"time"

	corelog "echo-core/internal/core/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishInOrder(t *testing.T) {
	bus := NewEventBus(context.Background(), corelog.NewNopLogger())
	defer bus.Close()

	var mu sync.Mutex
	var got []string
	handler := func(e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(*SessionEvent).Identity)
		return nil
	}
	_, err := bus.Subscribe(TypeSessionCreated, handler)
	require.NoError(t, err)

	for _, id := range []string{"a:1", "b:2", "c:3"} {
		require.NoError(t, bus.Publish(NewSessionCreatedEvent(id, "conn", false)))
	}
	// 未订阅的类型不会投递
	require.NoError(t, bus.Publish(NewSessionExpiredEvent("a:1", "conn")))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, got)
	mu.Unlock()
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(context.Background(), corelog.NewNopLogger())
	defer bus.Close()

	received := make(chan Event, 4)
	id, err := bus.Subscribe(TypeShutdownTriggered, func(e Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(NewShutdownTriggeredEvent("1.1.1.1:1", 2)))
	select {
	case e := <-received:
		assert.Equal(t, 2, e.(*ShutdownEvent).Sessions)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	bus.Unsubscribe(id)
	require.NoError(t, bus.Publish(NewShutdownTriggeredEvent("1.1.1.1:1", 0)))
	select {
	case <-received:
		t.Fatal("event delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBusValidation(t *testing.T) {
	bus := NewEventBus(context.Background(), nil)

	_, err := bus.Subscribe("", func(Event) error { return nil })
	assert.Error(t, err)
	_, err = bus.Subscribe(TypeSessionClosed, nil)
	assert.Error(t, err)

	require.NoError(t, bus.Close())
	assert.Error(t, bus.Publish(NewSessionClosedEvent("x:1", "c")))
	_, err = bus.Subscribe(TypeSessionClosed, func(Event) error { return nil })
	assert.Error(t, err)
}
