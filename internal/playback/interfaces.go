package playback

import (
	"context"
	"errors"
	"io"
	"time"

	"storyreel/internal/stories"

	clog "github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
)

// ErrAutoplayBlocked is returned by a Player when an unmuted play was refused
// by the autoplay policy. The machine retries once muted.
var ErrAutoplayBlocked = errors.New("autoplay blocked")

// Logger is satisfied by *log.Logger from charmbracelet/log.
type Logger interface {
	Debug(msg interface{}, keyvals ...interface{})
	Info(msg interface{}, keyvals ...interface{})
	Warn(msg interface{}, keyvals ...interface{})
	Error(msg interface{}, keyvals ...interface{})
}

func discardLogger() Logger {
	return clog.New(io.Discard)
}

type Request struct {
	Item        stories.Item
	Source      string
	CrossOrigin stories.CrossOrigin
}

// Palette is the dominant colour of the top and bottom half of an image.
type Palette struct {
	Top    colorful.Color
	Bottom colorful.Color
}

type ImageResult struct {
	Palette *Palette
}

type VideoMetadata struct {
	Duration time.Duration
}

type PlayRequest struct {
	Item   stories.Item
	Source string
	Muted  bool
}

// Loader prepares image and video items. Callbacks must be delivered on the
// event loop that drives the machine, exactly once per call.
type Loader interface {
	IsCached(src string) bool
	LoadImage(ctx context.Context, req Request, done func(ImageResult, error))
	LoadVideoMetadata(ctx context.Context, req Request, done func(VideoMetadata, error))
}

// Slot displays custom content. Mount replaces whatever was mounted before.
type Slot interface {
	Mount(c stories.Component) error
}

// Player controls video output. done is delivered on the event loop.
type Player interface {
	PauseAll(seekToStart bool)
	Play(ctx context.Context, req PlayRequest, done func(error))
	SetMuted(muted bool)
}

type nopLoader struct{}

func (nopLoader) IsCached(string) bool { return true }
func (nopLoader) LoadImage(_ context.Context, _ Request, done func(ImageResult, error)) {
	done(ImageResult{}, nil)
}
func (nopLoader) LoadVideoMetadata(_ context.Context, _ Request, done func(VideoMetadata, error)) {
	done(VideoMetadata{}, nil)
}

type nopSlot struct{}

func (nopSlot) Mount(stories.Component) error { return nil }

type nopPlayer struct{}

func (nopPlayer) PauseAll(bool) {}
func (nopPlayer) Play(_ context.Context, _ PlayRequest, done func(error)) {
	done(nil)
}
func (nopPlayer) SetMuted(bool) {}
