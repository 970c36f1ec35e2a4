package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// call 一次进行中的计算，同一个 key 同一时刻至多存在一个
type call struct {
	done chan struct{}
	val  interface{}
	err  error
}

// Group 按 key 合并并发的重复计算
//
// 同一个 key 的并发调用只会真正执行一次 fn，其余调用阻塞等待并共享结果（或错误），
// 用于防止热点缓存失效时对后端存储的重复查询。不同 key 之间互不阻塞。
type Group struct {
	mu    sync.Mutex
	calls map[string]*call
}

// New 创建Group
func New() *Group {
	return &Group{calls: make(map[string]*call)}
}

// Do 执行或等待 key 对应的计算
//
// 1. key 没有进行中的计算时，当前调用立即执行 fn 并登记为进行中。
// 2. 已有进行中的计算时，阻塞等待其完成并返回同一结果；等待方自己的 ctx
//    被取消时返回 ctx 错误，但不影响进行中的计算和其他等待方。
// 3. 计算结束（无论成败）后登记即被移除，后续调用会重新执行 fn，
//    因此一次失败不会污染这个 key。
func (g *Group) Do(ctx context.Context, key string, fn func() (interface{}, error)) (interface{}, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call)
	}
	if c, ok := g.calls[key]; ok {
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	g.calls[key] = c
	g.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.err = fmt.Errorf("singleflight: panic in flight for key %q: %v", key, r)
			}
			g.mu.Lock()
			delete(g.calls, key)
			g.mu.Unlock()
			close(c.done)
		}()
		c.val, c.err = fn()
	}()

	return c.val, c.err
}

// InFlight 查询 key 是否有进行中的计算
func (g *Group) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}
