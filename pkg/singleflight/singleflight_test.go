package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoExecutesOnce(t *testing.T) {
	g := New()

	val, err := g.Do(context.Background(), "k", func() (interface{}, error) {
		return "v", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.False(t, g.InFlight("k"))
}

func TestDoConcurrentCallsShareOneExecution(t *testing.T) {
	g := New()
	var calls int64
	release := make(chan struct{})

	// 第一个调用占住 key
	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		val, err := g.Do(context.Background(), "k", func() (interface{}, error) {
			atomic.AddInt64(&calls, 1)
			<-release
			return int64(42), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(42), val)
	}()

	require.Eventually(t, func() bool {
		return g.InFlight("k")
	}, time.Second, time.Millisecond)

	// 后续并发调用全部等待同一次执行
	const waiters = 20
	var wg sync.WaitGroup
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := g.Do(context.Background(), "k", func() (interface{}, error) {
				atomic.AddInt64(&calls, 1)
				return int64(-1), nil
			})
			assert.NoError(t, err)
			assert.Equal(t, int64(42), val)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	<-ownerDone

	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestDoDifferentKeysDoNotBlock(t *testing.T) {
	g := New()
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = g.Do(context.Background(), "slow", func() (interface{}, error) {
			<-release
			return nil, nil
		})
	}()

	require.Eventually(t, func() bool {
		return g.InFlight("slow")
	}, time.Second, time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		val, err := g.Do(context.Background(), "fast", func() (interface{}, error) {
			return "ok", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "ok", val)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("call on another key blocked behind the slow key")
	}
}

func TestDoErrorSharedAndNotSticky(t *testing.T) {
	g := New()
	wantErr := errors.New("backend down")
	var calls int64
	release := make(chan struct{})

	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		_, err := g.Do(context.Background(), "k", func() (interface{}, error) {
			atomic.AddInt64(&calls, 1)
			<-release
			return nil, wantErr
		})
		assert.ErrorIs(t, err, wantErr)
	}()

	require.Eventually(t, func() bool {
		return g.InFlight("k")
	}, time.Second, time.Millisecond)

	waiterDone := make(chan struct{})
	go func() {
		defer close(waiterDone)
		_, err := g.Do(context.Background(), "k", func() (interface{}, error) {
			atomic.AddInt64(&calls, 1)
			return nil, nil
		})
		// 等待方共享同一个错误
		assert.ErrorIs(t, err, wantErr)
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	<-ownerDone
	<-waiterDone
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	// 失败不污染 key，下一次调用重新执行
	val, err := g.Do(context.Background(), "k", func() (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", val)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestDoWaiterContextCancelDoesNotAbortOwner(t *testing.T) {
	g := New()
	release := make(chan struct{})

	ownerDone := make(chan struct{})
	go func() {
		defer close(ownerDone)
		val, err := g.Do(context.Background(), "k", func() (interface{}, error) {
			<-release
			return "owner result", nil
		})
		// 等待方退出不影响进行中的计算
		assert.NoError(t, err)
		assert.Equal(t, "owner result", val)
	}()

	require.Eventually(t, func() bool {
		return g.InFlight("k")
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	waiterDone := make(chan struct{})
	go func() {
		defer close(waiterDone)
		_, err := g.Do(ctx, "k", func() (interface{}, error) {
			return nil, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-waiterDone:
	case <-time.After(time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	close(release)
	<-ownerDone
}

func TestDoPanicBecomesError(t *testing.T) {
	g := New()

	_, err := g.Do(context.Background(), "k", func() (interface{}, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, g.InFlight("k"))

	// panic 之后 key 可以继续使用
	val, err := g.Do(context.Background(), "k", func() (interface{}, error) {
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, val)
}
