package metrics

// Metrics 指标收集接口
type Metrics interface {
	IncrementCounter(name string, labels map[string]string) error
	AddCounter(name string, value float64, labels map[string]string) error
	GetCounter(name string, labels map[string]string) (float64, error)

	SetGauge(name string, value float64, labels map[string]string) error
	GetGauge(name string, labels map[string]string) (float64, error)

	// Snapshot 返回所有计数器与 Gauge 的当前值，键为带标签的指标名
	Snapshot() map[string]float64

	Close() error
}
