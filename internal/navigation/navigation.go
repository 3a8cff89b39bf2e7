// Package navigation computes positions inside a grouped collection. It holds
// no state; the playback machine owns the current position.
package navigation

import "fmt"

// Sizer is the read-only view of a collection navigation needs.
// *stories.Collection satisfies it.
type Sizer interface {
	Len() int
	Size(group int) int
}

type Position struct {
	Group int
	Item  int
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Group, p.Item)
}

type Direction int

const (
	Next Direction = iota
	Previous
)

func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// End is the past-the-end sentinel for s.
func End(s Sizer) Position {
	return Position{Group: s.Len(), Item: 0}
}

func (p Position) AtEnd(s Sizer) bool {
	return p.Group >= s.Len()
}

// GroupChange is called with the new group index when a move crosses into a
// different group. It is never called for the sentinel.
type GroupChange func(group int)

func Advance(s Sizer, pos Position, onGroupChange GroupChange) Position {
	if pos.AtEnd(s) {
		return pos
	}
	size := s.Size(pos.Group)
	if size == 0 || pos.Item >= size-1 {
		return moveTo(s, pos, Position{Group: pos.Group + 1}, onGroupChange)
	}
	return Position{Group: pos.Group, Item: pos.Item + 1}
}

func Retreat(s Sizer, pos Position, onGroupChange GroupChange) Position {
	item := pos.Item
	if pos.AtEnd(s) || s.Size(pos.Group) == 0 {
		item = 0
	}
	if item > 0 {
		return Position{Group: pos.Group, Item: item - 1}
	}
	if pos.Group <= 0 {
		return Position{}
	}
	prev := pos.Group - 1
	if prev >= s.Len() {
		prev = s.Len() - 1
	}
	last := s.Size(prev) - 1
	if last < 0 {
		last = 0
	}
	return moveTo(s, pos, Position{Group: prev, Item: last}, onGroupChange)
}

// JumpGroup moves to the first item of the neighbouring group. Next from the
// last group yields the sentinel; Previous from the first group restarts it.
func JumpGroup(s Sizer, pos Position, dir Direction, onGroupChange GroupChange) Position {
	if dir == Previous {
		g := pos.Group - 1
		if g < 0 {
			g = 0
		}
		if g >= s.Len() {
			g = s.Len() - 1
		}
		return moveTo(s, pos, Position{Group: g}, onGroupChange)
	}
	if pos.AtEnd(s) {
		return pos
	}
	return moveTo(s, pos, Position{Group: pos.Group + 1}, onGroupChange)
}

func moveTo(s Sizer, from, to Position, onGroupChange GroupChange) Position {
	if to.Group != from.Group && !to.AtEnd(s) && onGroupChange != nil {
		onGroupChange(to.Group)
	}
	return to
}
