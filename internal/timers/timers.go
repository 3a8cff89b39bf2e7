// Package timers owns every pending callback of a viewer instance. Callbacks
// never run on the timer goroutine: they are handed to a Dispatch func that
// runs them on the event loop.
package timers

import (
	"sync"
	"time"
)

type Handle uint64

// Dispatch runs fn on the owning event loop.
type Dispatch func(fn func())

type Scheduler interface {
	After(d time.Duration, fn func()) Handle
	Every(d time.Duration, fn func()) Handle
	Cancel(h Handle)
	CancelAll()
	Pending() int
}

type entry struct {
	timer  *time.Timer
	period time.Duration
}

// Registry is the wall-clock Scheduler. A handle is live from After/Every
// until it fires (one-shot), is cancelled, or CancelAll runs; callbacks of
// dead handles are dropped even if their dispatch was already queued.
type Registry struct {
	dispatch Dispatch

	mu     sync.Mutex
	next   Handle
	live   map[Handle]*entry
	closed bool
}

func NewRegistry(dispatch Dispatch) *Registry {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Registry{dispatch: dispatch, live: map[Handle]*entry{}}
}

func (r *Registry) After(d time.Duration, fn func()) Handle {
	return r.schedule(d, 0, fn)
}

func (r *Registry) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		d = time.Millisecond
	}
	return r.schedule(d, d, fn)
}

func (r *Registry) schedule(d, period time.Duration, fn func()) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || fn == nil {
		return 0
	}
	r.next++
	h := r.next
	e := &entry{period: period}
	r.live[h] = e
	e.timer = time.AfterFunc(d, func() { r.fire(h, fn) })
	return h
}

func (r *Registry) fire(h Handle, fn func()) {
	r.mu.Lock()
	e, ok := r.live[h]
	if ok && e.period > 0 {
		e.timer.Reset(e.period)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	r.dispatch(func() {
		r.mu.Lock()
		e, ok := r.live[h]
		if ok && e.period == 0 {
			delete(r.live, h)
		}
		r.mu.Unlock()
		if ok {
			fn()
		}
	})
}

func (r *Registry) Cancel(h Handle) {
	if h == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.live[h]; ok {
		e.timer.Stop()
		delete(r.live, h)
	}
}

func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for h, e := range r.live {
		e.timer.Stop()
		delete(r.live, h)
	}
}

// Close cancels everything and refuses new timers.
func (r *Registry) Close() {
	r.CancelAll()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}
