package media

import (
	"context"
	"io"

	"storyreel/internal/playback"
	"storyreel/internal/timers"

	clog "github.com/charmbracelet/log"
)

// Loader adapts ImageLoader and a Prober to playback.Loader. Work runs on its
// own goroutine and results are delivered through dispatch.
type Loader struct {
	images   *ImageLoader
	probe    Prober
	dispatch timers.Dispatch
	log      *clog.Logger
}

func NewLoader(images *ImageLoader, probe Prober, dispatch timers.Dispatch, log *clog.Logger) *Loader {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	if probe == nil {
		probe = &FFProbe{}
	}
	if log == nil {
		log = clog.New(io.Discard)
	}
	return &Loader{images: images, probe: probe, dispatch: dispatch, log: log}
}

func (l *Loader) Images() *ImageLoader { return l.images }

func (l *Loader) IsCached(src string) bool {
	return l.images.IsCached(src)
}

func (l *Loader) LoadImage(ctx context.Context, req playback.Request, done func(playback.ImageResult, error)) {
	go func() {
		d, err := l.images.Load(ctx, req.Source)
		if err != nil {
			l.log.Debug("media.image_failed", "source", req.Source, "err", err)
			l.dispatch(func() { done(playback.ImageResult{}, err) })
			return
		}
		palette := d.Palette
		l.dispatch(func() { done(playback.ImageResult{Palette: &palette}, nil) })
	}()
}

func (l *Loader) LoadVideoMetadata(ctx context.Context, req playback.Request, done func(playback.VideoMetadata, error)) {
	go func() {
		dur, err := l.probe.Duration(ctx, req.Source)
		if err != nil {
			l.dispatch(func() { done(playback.VideoMetadata{}, err) })
			return
		}
		l.dispatch(func() { done(playback.VideoMetadata{Duration: dur}, nil) })
	}()
}
