package dispose

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDisposeCloseRunsHandlersOnce 测试 Close 只执行一次清理
func TestDisposeCloseRunsHandlersOnce(t *testing.T) {
	var calls int32
	d := &Dispose{}
	d.SetCtx(context.Background(), func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	assert.False(t, d.IsClosed())
	result := d.Close()
	assert.False(t, result.HasErrors())
	assert.True(t, d.IsClosed())

	d.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Error(t, d.Ctx().Err())
}

// TestDisposeParentCancel 测试父上下文取消触发清理
func TestDisposeParentCancel(t *testing.T) {
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispose{}
	d.SetCtx(ctx, func() error {
		close(done)
		return nil
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("clean handler not called after parent cancel")
	}
	assert.Eventually(t, d.IsClosed, time.Second, 10*time.Millisecond)
}

// TestDisposeHandlerError 测试清理错误被收集
func TestDisposeHandlerError(t *testing.T) {
	d := &Dispose{}
	d.SetCtx(context.Background(), func() error { return errors.New("boom") })
	d.AddCleanHandler(func() error { return nil })

	result := d.Close()
	require.True(t, result.HasErrors())
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 0, result.Errors[0].HandlerIndex)
	assert.Contains(t, result.Error(), "boom")
}

type recorder struct {
	name  string
	order *[]string
	err   error
}

func (r *recorder) Dispose() error {
	*r.order = append(*r.order, r.name)
	return r.err
}

// TestResourceManagerReverseOrder 测试资源按注册相反顺序释放
func TestResourceManagerReverseOrder(t *testing.T) {
	var order []string
	rm := NewResourceManager()
	require.NoError(t, rm.Register("listener", &recorder{name: "listener", order: &order}))
	require.NoError(t, rm.Register("metrics", &recorder{name: "metrics", order: &order, err: errors.New("fail")}))
	assert.Error(t, rm.Register("metrics", &recorder{name: "metrics", order: &order}))
	assert.Equal(t, []string{"listener", "metrics"}, rm.ListResources())

	result := rm.DisposeWithTimeout(time.Second)
	assert.Equal(t, []string{"metrics", "listener"}, order)
	require.True(t, result.HasErrors())
	assert.Equal(t, "metrics", result.Errors[0].ResourceName)
	assert.Empty(t, rm.ListResources())
}
