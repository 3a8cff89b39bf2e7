package ui

import (
	"context"
	"image"

	"storyreel/internal/gesture"
	"storyreel/internal/navigation"
	"storyreel/internal/playback"
	"storyreel/internal/stories"
)

// Viewer is the playback surface the shell renders and drives.
// *playback.Machine implements it.
type Viewer interface {
	gesture.Target
	Start()
	Reset()
	SetFocused(focused bool)
	Position() navigation.Position
	State() playback.State
	ProgressValue(i int) float64
	Current() (stories.Item, bool)
	Collection() *stories.Collection
	Options() stories.Options
	IsSwiping() (navigation.Direction, bool)
	IsContentError() bool
	IsEnded() bool
	AudioEnabled() bool
	Background() playback.Background
}

// Previews resolves decoded image previews by source.
type Previews interface {
	Preview(src string) (*image.RGBA, bool)
}

// VideoStatus describes what the player is doing for the status line.
type VideoStatus struct {
	Source  string
	Playing bool
	Muted   bool
}

type VideoReporter interface {
	VideoStatus() VideoStatus
}

type View interface {
	Run(ctx context.Context) error
	Stop()
	Dispatch(fn func())
	Mount(c stories.Component) error
	FlashStatus(msg string)
	RequestQuit()
}

var _ Viewer = (*playback.Machine)(nil)
