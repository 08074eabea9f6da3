// Package safe 启动带 panic 恢复和计数的 Goroutine
package safe

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	corelog "echo-core/internal/core/log"
)

var (
	activeCount atomic.Int64
	totalCount  atomic.Int64
	panicCount  atomic.Int64
)

// Stats Goroutine 统计信息
type Stats struct {
	Active     int64 // 当前活跃数量
	Total      int64 // 累计创建数量
	PanicCount int64 // panic 次数
}

// GetStats 获取统计信息
func GetStats() Stats {
	return Stats{
		Active:     activeCount.Load(),
		Total:      totalCount.Load(),
		PanicCount: panicCount.Load(),
	}
}

// Go 安全启动 Goroutine，name 用于日志标识
func Go(name string, fn func()) {
	totalCount.Add(1)
	activeCount.Add(1)
	go run(name, fn, nil)
}

func run(name string, fn func(), done func()) {
	defer func() {
		activeCount.Add(-1)
		if r := recover(); r != nil {
			panicCount.Add(1)
			corelog.Errorf("SafeGo[%s]: panic recovered: %v\n%s", name, r, debug.Stack())
		}
		if done != nil {
			done()
		}
	}()
	fn()
}

// WaitGroup 可等待的一组安全 Goroutine
type WaitGroup struct {
	wg   sync.WaitGroup
	name string
}

// NewWaitGroup 创建新的 WaitGroup
func NewWaitGroup(name string) *WaitGroup {
	return &WaitGroup{name: name}
}

// Go 在 WaitGroup 中安全启动 Goroutine
func (w *WaitGroup) Go(fn func()) {
	w.wg.Add(1)
	totalCount.Add(1)
	activeCount.Add(1)
	go run(w.name, fn, w.wg.Done)
}

// Wait 等待所有 Goroutine 完成
func (w *WaitGroup) Wait() {
	w.wg.Wait()
}
