package timers

import "time"

type manualTimer struct {
	at     time.Duration
	period time.Duration
	seq    uint64
	fn     func()
}

// Manual is a virtual-clock Scheduler. Nothing fires until Advance is called,
// and callbacks run inline on the caller's goroutine in due order.
type Manual struct {
	now    time.Duration
	next   Handle
	seq    uint64
	timers map[Handle]*manualTimer
}

func NewManual() *Manual {
	return &Manual{timers: map[Handle]*manualTimer{}}
}

func (m *Manual) After(d time.Duration, fn func()) Handle {
	return m.add(d, 0, fn)
}

func (m *Manual) Every(d time.Duration, fn func()) Handle {
	if d <= 0 {
		d = time.Millisecond
	}
	return m.add(d, d, fn)
}

func (m *Manual) add(d, period time.Duration, fn func()) Handle {
	if fn == nil {
		return 0
	}
	if d < 0 {
		d = 0
	}
	m.next++
	m.seq++
	m.timers[m.next] = &manualTimer{at: m.now + d, period: period, seq: m.seq, fn: fn}
	return m.next
}

func (m *Manual) Cancel(h Handle) { delete(m.timers, h) }

func (m *Manual) CancelAll() {
	for h := range m.timers {
		delete(m.timers, h)
	}
}

func (m *Manual) Pending() int { return len(m.timers) }

// Now is the virtual time elapsed since NewManual.
func (m *Manual) Now() time.Duration { return m.now }

// Dispatch runs fn immediately; it stands in for the event loop in tests.
func (m *Manual) Dispatch(fn func()) { fn() }

// Advance moves the clock forward by d, firing every timer that falls due.
// Timers scheduled by callbacks fire within the same call when they are due.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d
	for {
		h, t := m.due(target)
		if t == nil {
			break
		}
		m.now = t.at
		if t.period > 0 {
			m.seq++
			t.at += t.period
			t.seq = m.seq
		} else {
			delete(m.timers, h)
		}
		t.fn()
	}
	m.now = target
}

func (m *Manual) due(target time.Duration) (Handle, *manualTimer) {
	var (
		bestH Handle
		best  *manualTimer
	)
	for h, t := range m.timers {
		if t.at > target {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			bestH, best = h, t
		}
	}
	return bestH, best
}
