// Package gesture turns raw pointer input into swipes and press-and-hold.
package gesture

import (
	"math"
	"time"

	"storyreel/internal/timers"
)

const (
	SwipeThreshold = 50.0
	HoldDelay      = 500 * time.Millisecond
)

type Point struct {
	X, Y float64
}

type Swipe int

const (
	None Swipe = iota
	Left
	Right
	Up
	Down
)

func (s Swipe) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "none"
	}
}

// Classify compares the press start and end. Movement up to SwipeThreshold on
// both axes is not a swipe; otherwise the dominant axis wins, vertical on ties.
func Classify(start, end Point) Swipe {
	dx, dy := end.X-start.X, end.Y-start.Y
	ax, ay := math.Abs(dx), math.Abs(dy)
	if math.Max(ax, ay) <= SwipeThreshold {
		return None
	}
	if ax > ay {
		if dx > 0 {
			return Right
		}
		return Left
	}
	if dy > 0 {
		return Down
	}
	return Up
}

type Sink interface {
	OnSwipe(Swipe)
	OnHold()
	OnRelease()
}

// Interpreter tracks one pointer. A press that lasts HoldDelay becomes a hold
// and its release is reported instead of a swipe.
type Interpreter struct {
	sched timers.Scheduler
	sink  Sink

	pressed   bool
	holding   bool
	start     Point
	holdTimer timers.Handle
}

func NewInterpreter(sched timers.Scheduler, sink Sink) *Interpreter {
	return &Interpreter{sched: sched, sink: sink}
}

func (in *Interpreter) PressStart(p Point) {
	in.disarm()
	if in.holding {
		in.holding = false
		in.sink.OnRelease()
	}
	in.pressed = true
	in.start = p
	in.holdTimer = in.sched.After(HoldDelay, func() {
		in.holdTimer = 0
		if !in.pressed {
			return
		}
		in.holding = true
		in.sink.OnHold()
	})
}

func (in *Interpreter) PressEnd(p Point) {
	if !in.pressed {
		return
	}
	in.pressed = false
	in.disarm()
	if in.holding {
		in.holding = false
		in.sink.OnRelease()
		return
	}
	if s := Classify(in.start, p); s != None {
		in.sink.OnSwipe(s)
	}
}

// Cancel abandons the current press without classifying it.
func (in *Interpreter) Cancel() {
	in.disarm()
	in.pressed = false
	if in.holding {
		in.holding = false
		in.sink.OnRelease()
	}
}

func (in *Interpreter) Pressed() bool { return in.pressed }
func (in *Interpreter) Holding() bool { return in.holding }

func (in *Interpreter) disarm() {
	in.sched.Cancel(in.holdTimer)
	in.holdTimer = 0
}
