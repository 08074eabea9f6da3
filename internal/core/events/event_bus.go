package events

import (
	"context"
	"fmt"
	"sync"

	"echo-core/internal/core/dispose"
	corelog "echo-core/internal/core/log"
)

const defaultQueueSize = 256

// EventHandler 事件处理器
type EventHandler func(event Event) error

// SubscriptionID 订阅标识，用于取消订阅
type SubscriptionID uint64

// EventBus 事件总线接口
type EventBus interface {
	// Publish 发布事件，不阻塞调用方
	Publish(event Event) error
	Subscribe(eventType string, handler EventHandler) (SubscriptionID, error)
	Unsubscribe(id SubscriptionID)
	Close() error
}

type subscription struct {
	id        SubscriptionID
	eventType string
	handler   EventHandler
}

// eventBus 事件总线实现
// 事件进入有界队列，由单个分发协程按发布顺序投递
type eventBus struct {
	dispose.Dispose

	mu     sync.RWMutex
	subs   map[SubscriptionID]*subscription
	nextID SubscriptionID
	queue  chan Event
	logger corelog.Logger
}

// NewEventBus 创建新的事件总线
func NewEventBus(parentCtx context.Context, logger corelog.Logger) EventBus {
	if logger == nil {
		logger = corelog.Default()
	}
	bus := &eventBus{
		subs:   make(map[SubscriptionID]*subscription),
		queue:  make(chan Event, defaultQueueSize),
		logger: logger,
	}
	bus.SetCtx(parentCtx, bus.onClose)
	go bus.dispatchLoop()
	return bus
}

func (bus *eventBus) onClose() error {
	bus.mu.Lock()
	bus.subs = make(map[SubscriptionID]*subscription)
	bus.mu.Unlock()
	bus.logger.Debug("Event bus closed")
	return nil
}

// Publish 发布事件；队列满时丢弃并记录警告
func (bus *eventBus) Publish(event Event) error {
	if bus.IsClosed() {
		return fmt.Errorf("event bus is closed")
	}
	select {
	case bus.queue <- event:
		return nil
	default:
		bus.logger.Warnf("Event queue full, dropping event %s", event.Type())
		return fmt.Errorf("event queue full")
	}
}

// Subscribe 订阅事件
func (bus *eventBus) Subscribe(eventType string, handler EventHandler) (SubscriptionID, error) {
	if bus.IsClosed() {
		return 0, fmt.Errorf("event bus is closed")
	}
	if eventType == "" {
		return 0, fmt.Errorf("event type cannot be empty")
	}
	if handler == nil {
		return 0, fmt.Errorf("event handler cannot be nil")
	}

	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.nextID++
	id := bus.nextID
	bus.subs[id] = &subscription{id: id, eventType: eventType, handler: handler}
	return id, nil
}

// Unsubscribe 取消订阅，未知 id 忽略
func (bus *eventBus) Unsubscribe(id SubscriptionID) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.subs, id)
}

// Close 关闭事件总线
func (bus *eventBus) Close() error {
	result := bus.Dispose.Close()
	if result.HasErrors() {
		return fmt.Errorf("event bus cleanup failed: %s", result.Error())
	}
	return nil
}

func (bus *eventBus) dispatchLoop() {
	for {
		select {
		case <-bus.Ctx().Done():
			return
		case event := <-bus.queue:
			bus.dispatch(event)
		}
	}
}

func (bus *eventBus) dispatch(event Event) {
	bus.mu.RLock()
	handlers := make([]EventHandler, 0, len(bus.subs))
	for _, sub := range bus.subs {
		if sub.eventType == event.Type() {
			handlers = append(handlers, sub.handler)
		}
	}
	bus.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			bus.logger.Errorf("Event handler failed for event %s: %v", event.Type(), err)
		}
	}
}
