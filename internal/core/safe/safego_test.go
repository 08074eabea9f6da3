package safe

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoRecoversPanic(t *testing.T) {
	before := GetStats()

	done := make(chan struct{})
	Go("panicker", func() {
		defer close(done)
		panic("boom")
	})
	<-done

	assert.Eventually(t, func() bool {
		return GetStats().PanicCount == before.PanicCount+1
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, GetStats().Total, before.Total+1)
}

func TestWaitGroupWaitsForAll(t *testing.T) {
	wg := NewWaitGroup("workers")
	var count atomic.Int32

	for i := 0; i < 10; i++ {
		wg.Go(func() { count.Add(1) })
	}
	wg.Go(func() { panic("worker failure") })
	wg.Wait()

	assert.Equal(t, int32(10), count.Load())
}
