package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"echo-core/internal/core/dispose"
)

// MemoryMetrics 内存指标实现
type MemoryMetrics struct {
	*dispose.ResourceBase

	mu       sync.RWMutex
	counters map[string]float64
	gauges   map[string]float64
}

// NewMemoryMetrics 创建内存指标收集器
func NewMemoryMetrics(parentCtx context.Context) *MemoryMetrics {
	m := &MemoryMetrics{
		ResourceBase: dispose.NewResourceBase("MemoryMetrics"),
		counters:     make(map[string]float64),
		gauges:       make(map[string]float64),
	}
	m.ResourceBase.Initialize(parentCtx)
	return m
}

// IncrementCounter 计数器加一
func (m *MemoryMetrics) IncrementCounter(name string, labels map[string]string) error {
	return m.AddCounter(name, 1, labels)
}

// AddCounter 计数器增加指定值
func (m *MemoryMetrics) AddCounter(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	m.counters[key] += value
	m.mu.Unlock()
	return nil
}

// GetCounter 获取计数器值，不存在时为 0
func (m *MemoryMetrics) GetCounter(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[buildKey(name, labels)], nil
}

// SetGauge 设置 Gauge 值
func (m *MemoryMetrics) SetGauge(name string, value float64, labels map[string]string) error {
	key := buildKey(name, labels)
	m.mu.Lock()
	m.gauges[key] = value
	m.mu.Unlock()
	return nil
}

// GetGauge 获取 Gauge 值，不存在时为 0
func (m *MemoryMetrics) GetGauge(name string, labels map[string]string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[buildKey(name, labels)], nil
}

// Snapshot 返回所有指标的副本
func (m *MemoryMetrics) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.counters)+len(m.gauges))
	for k, v := range m.counters {
		out[k] = v
	}
	for k, v := range m.gauges {
		out[k] = v
	}
	return out
}

// Close 关闭指标收集器
func (m *MemoryMetrics) Close() error {
	if result := m.ResourceBase.Close(); result.HasErrors() {
		return fmt.Errorf("metrics cleanup failed: %s", result.Error())
	}
	return nil
}

// buildKey 构建指标键名，标签按键名排序
func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key = fmt.Sprintf("%s{%s=%s}", key, k, labels[k])
	}
	return key
}
