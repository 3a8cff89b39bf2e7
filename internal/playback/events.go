package playback

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"storyreel/internal/stories"
)

// StoryChange describes the item that just became current. Previous is the
// item before it in the same group; PreviousIndex is -1 when there is none.
type StoryChange struct {
	GroupName     string
	GroupIndex    int
	Item          stories.Item
	ItemIndex     int
	Previous      *stories.Item
	PreviousIndex int
}

type handlers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (h *handlers[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = map[int]func(T){}
	}
	h.next++
	id := h.next
	h.fns[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.fns, id)
		h.mu.Unlock()
	}
}

func (h *handlers[T]) snapshot() []func(T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.fns))
	for id := range h.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, h.fns[id])
	}
	return out
}

// Events is the callback registry of one machine. Handlers run on the event
// loop in subscription order; a panicking handler is logged and skipped.
type Events struct {
	log Logger

	end         handlers[struct{}]
	exit        handlers[struct{}]
	swipeUp     handlers[struct{}]
	groupChange handlers[int]
	storyChange handlers[StoryChange]
}

func NewEvents(log Logger) *Events {
	if log == nil {
		log = discardLogger()
	}
	return &Events{log: log}
}

func (e *Events) OnEnd(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return e.end.add(func(struct{}) { fn() })
}

func (e *Events) OnExit(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return e.exit.add(func(struct{}) { fn() })
}

func (e *Events) OnSwipeUp(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	return e.swipeUp.add(func(struct{}) { fn() })
}

func (e *Events) OnGroupChange(fn func(group int)) func() {
	return e.groupChange.add(fn)
}

func (e *Events) OnStoryChange(fn func(StoryChange)) func() {
	return e.storyChange.add(fn)
}

func (e *Events) emitEnd() { emit(e.log, "end", &e.end, struct{}{}) }
func (e *Events) emitExit() { emit(e.log, "exit", &e.exit, struct{}{}) }
func (e *Events) emitSwipeUp() { emit(e.log, "swipe_up", &e.swipeUp, struct{}{}) }
func (e *Events) emitGroupChange(g int) { emit(e.log, "group_change", &e.groupChange, g) }
func (e *Events) emitStoryChange(c StoryChange) {
	emit(e.log, "story_change", &e.storyChange, c)
}

func emit[T any](log Logger, name string, h *handlers[T], v T) {
	for _, fn := range h.snapshot() {
		call(log, name, fn, v)
	}
}

func call[T any](log Logger, name string, fn func(T), v T) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("emit-handler error", "event", name, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
		}
	}()
	fn(v)
}
