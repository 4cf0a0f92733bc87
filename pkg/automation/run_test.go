package automation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHolderIdle(t *testing.T) {
	h := NewHolder()
	assert.Equal(t, RunNone, h.Active())
	assert.False(t, h.Cancel())
	h.Wait() // no run, returns immediately
}

func TestHolderSingleRunLifecycle(t *testing.T) {
	h := NewHolder()

	ctx, finish := h.Begin(context.Background(), RunSync)
	assert.Equal(t, RunSync, h.Active())
	assert.NoError(t, ctx.Err())

	finish()
	assert.Equal(t, RunNone, h.Active())
	assert.Error(t, ctx.Err())
}

func TestHolderCancelThenReplace(t *testing.T) {
	h := NewHolder()

	ctx1, finish1 := h.Begin(context.Background(), RunSync)
	released := make(chan struct{})
	go func() {
		// A well-behaved run releases the holder when its context dies.
		<-ctx1.Done()
		time.Sleep(10 * time.Millisecond) // simulate unwinding
		finish1()
		close(released)
	}()

	// Begin must not return before the prior run has released.
	ctx2, finish2 := h.Begin(context.Background(), RunUnfollow)
	select {
	case <-released:
	default:
		t.Fatal("Begin returned before the prior run released")
	}

	assert.Error(t, ctx1.Err())
	assert.NoError(t, ctx2.Err())
	assert.Equal(t, RunUnfollow, h.Active())
	finish2()
}

func TestHolderCancelAbortsActiveRun(t *testing.T) {
	h := NewHolder()

	ctx, finish := h.Begin(context.Background(), RunUnfollow)
	go func() {
		<-ctx.Done()
		finish()
	}()

	require.True(t, h.Cancel())
	h.Wait()
	assert.Equal(t, RunNone, h.Active())
}

func TestHolderConcurrentBeginsNeverOverlap(t *testing.T) {
	h := NewHolder()

	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		runType := RunSync
		if i%2 == 1 {
			runType = RunUnfollow
		}
		wg.Add(1)
		go func(runType RunType) {
			defer wg.Done()
			ctx, finish := h.Begin(context.Background(), runType)

			// Count runs between Begin returning and finish being called.
			// The holder guarantees the previous run released before Begin
			// returned, so this must never exceed one.
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}

			go func() {
				<-ctx.Done()
				atomic.AddInt32(&active, -1)
				finish()
			}()
		}(runType)
	}
	wg.Wait()

	// One run survives the churn; cancel it and let everything drain.
	require.True(t, h.Cancel())
	h.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
	assert.Equal(t, int32(0), atomic.LoadInt32(&active))
	assert.Equal(t, RunNone, h.Active())
}

func TestHolderFinishIdempotent(t *testing.T) {
	h := NewHolder()

	_, finish := h.Begin(context.Background(), RunSync)
	finish()
	finish() // second call must not panic or close twice
	assert.Equal(t, RunNone, h.Active())
}
