package dispose

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// DisposeError 清理过程中的错误信息
type DisposeError struct {
	HandlerIndex int
	ResourceName string
	Err          error
}

func (e *DisposeError) Error() string {
	if e.ResourceName != "" {
		return fmt.Sprintf("cleanup resource[%s] handler[%d] failed: %v", e.ResourceName, e.HandlerIndex, e.Err)
	}
	return fmt.Sprintf("cleanup handler[%d] failed: %v", e.HandlerIndex, e.Err)
}

// DisposeResult 清理结果
type DisposeResult struct {
	Errors []*DisposeError
}

func (r *DisposeResult) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

func (r *DisposeResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Sprintf("dispose cleanup failed with %d errors: %s", len(r.Errors), strings.Join(msgs, "; "))
}

// Disposable 统一的资源释放接口
type Disposable interface {
	Dispose() error
}

// Dispose 资源生命周期基类
// 嵌入后通过 SetCtx 绑定父上下文，父上下文取消或调用 Close 时执行清理回调，且只执行一次
type Dispose struct {
	mu            sync.Mutex
	closed        bool
	ctx           context.Context
	cancel        context.CancelFunc
	handlersMu    sync.Mutex
	cleanHandlers []func() error
}

func (c *Dispose) Ctx() context.Context {
	return c.ctx
}

func (c *Dispose) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close 关闭并返回清理结果，重复调用返回空结果
func (c *Dispose) Close() *DisposeResult {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return &DisposeResult{}
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	return c.runCleanHandlers()
}

// Dispose 实现 Disposable
func (c *Dispose) Dispose() error {
	result := c.Close()
	if result.HasErrors() {
		return result.Errors[0].Err
	}
	return nil
}

func (c *Dispose) runCleanHandlers() *DisposeResult {
	c.handlersMu.Lock()
	handlers := make([]func() error, len(c.cleanHandlers))
	copy(handlers, c.cleanHandlers)
	c.handlersMu.Unlock()

	result := &DisposeResult{}
	for i, handler := range handlers {
		if err := handler(); err != nil {
			result.Errors = append(result.Errors, &DisposeError{HandlerIndex: i, Err: err})
			Errorf("Cleanup handler[%d] failed: %v", i, err)
		}
	}
	return result
}

// AddCleanHandler 添加清理处理器，按添加顺序执行
func (c *Dispose) AddCleanHandler(f func() error) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.cleanHandlers = append(c.cleanHandlers, f)
}

// SetCtx 绑定父上下文与清理回调，只能调用一次
func (c *Dispose) SetCtx(parent context.Context, onClose func() error) {
	if c.ctx != nil {
		Warn("ctx already set")
		return
	}
	if parent == nil {
		parent = context.Background()
	}
	if onClose != nil {
		c.AddCleanHandler(onClose)
	}

	c.ctx, c.cancel = context.WithCancel(parent)
	go func() {
		<-c.ctx.Done()
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.closed = true
		c.mu.Unlock()

		if result := c.runCleanHandlers(); result.HasErrors() {
			Errorf("Context cancellation cleanup failed: %v", result.Error())
		}
	}()
}
