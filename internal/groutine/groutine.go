// Package groutine starts named goroutines. Names are attached as pprof labels and
// are retrievable from the goroutine's context.
package groutine

import (
	"bytes"
	"context"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts a goroutine with a name.
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(goroutineNameKey).(string); ok {
		return v
	}
	return ""
}

// GetGID returns the numeric goroutine ID (hacky, for debugging).
func GetGID() uint64 {
	b := make([]byte, 64)
	b = b[:runtime.Stack(b, false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	i := bytes.IndexByte(b, ' ')
	if i < 0 {
		return 0
	}
	gid, _ := strconv.ParseUint(string(b[:i]), 10, 64)
	return gid
}

// Group tracks named goroutines so an owner can wait for all of them to exit.
// The zero value is ready to use. Once Wait was called the group is closed and
// starts nothing new.
type Group struct {
	wg     sync.WaitGroup
	active atomic.Int64
	mu     sync.Mutex
	closed bool
	gids   map[uint64]string
}

// Go starts fn as a named goroutine tracked by the group. It returns false, and
// fn never runs, when the group is already closed.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.wg.Add(1)
	g.active.Add(1)
	g.mu.Unlock()

	Go(ctx, name, func(ctx context.Context) {
		gid := GetGID()
		g.mu.Lock()
		if g.gids == nil {
			g.gids = make(map[uint64]string)
		}
		g.gids[gid] = name
		g.mu.Unlock()

		defer func() {
			g.mu.Lock()
			delete(g.gids, gid)
			g.mu.Unlock()
			g.active.Add(-1)
			g.wg.Done()
		}()
		fn(ctx)
	})
	return true
}

// Owns reports whether the calling goroutine was started by the group.
func (g *Group) Owns() bool {
	gid := GetGID()
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.gids[gid]
	return ok
}

// Wait closes the group and blocks until every goroutine it started has returned.
// When called from one of the group's own goroutines it waits for the others only.
func (g *Group) Wait() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	if g.Owns() {
		g.waitOthers()
		return
	}
	g.wg.Wait()
}

func (g *Group) waitOthers() {
	for g.active.Load() > 1 {
		time.Sleep(time.Millisecond)
	}
}
