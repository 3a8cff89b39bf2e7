package media

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"storyreel/internal/playback"

	clog "github.com/charmbracelet/log"
)

var ErrAutoplayBlocked = playback.ErrAutoplayBlocked

// Prober reports the duration of a video source. A zero duration means the
// length is unknown.
type Prober interface {
	Duration(ctx context.Context, src string) (time.Duration, error)
}

// FFProbe reads durations with the ffprobe binary. Without the binary every
// duration is unknown.
type FFProbe struct {
	Path string

	once      sync.Once
	available bool
}

func (f *FFProbe) binary() string {
	if f.Path != "" {
		return f.Path
	}
	return "ffprobe"
}

func (f *FFProbe) Available() bool {
	f.once.Do(func() {
		_, err := exec.LookPath(f.binary())
		f.available = err == nil
	})
	return f.available
}

func (f *FFProbe) Duration(ctx context.Context, src string) (time.Duration, error) {
	if !f.Available() {
		return 0, nil
	}
	cmd := exec.CommandContext(ctx, f.binary(), "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", src)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", src, err)
	}
	return parseSeconds(string(out))
}

func parseSeconds(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" {
		return 0, nil
	}
	var secs float64
	if _, err := fmt.Sscanf(s, "%f", &secs); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if secs <= 0 {
		return 0, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// PlayerStatus is what the headless player is currently showing.
type PlayerStatus struct {
	Source  string
	Playing bool
	Muted   bool
}

// HeadlessPlayer tracks video playback state without producing output. The
// terminal cannot render video frames, so the UI shows the status instead.
type HeadlessPlayer struct {
	// AllowUnmutedAutoplay mirrors a browser autoplay policy. When false an
	// unmuted Play fails with ErrAutoplayBlocked.
	AllowUnmutedAutoplay bool

	log    *clog.Logger
	status PlayerStatus
	muted  bool
}

func NewHeadlessPlayer(log *clog.Logger, allowUnmuted bool) *HeadlessPlayer {
	if log == nil {
		log = clog.New(io.Discard)
	}
	return &HeadlessPlayer{AllowUnmutedAutoplay: allowUnmuted, log: log}
}

func (p *HeadlessPlayer) PauseAll(seekToStart bool) {
	p.status.Playing = false
	if seekToStart {
		p.status.Source = ""
	}
}

// Play is called on the event loop and reports its result synchronously.
func (p *HeadlessPlayer) Play(ctx context.Context, req playback.PlayRequest, done func(error)) {
	if err := ctx.Err(); err != nil {
		done(err)
		return
	}
	muted := req.Muted || p.muted
	if !muted && !p.AllowUnmutedAutoplay {
		p.log.Debug("media.autoplay_blocked", "source", req.Source)
		done(ErrAutoplayBlocked)
		return
	}
	p.status = PlayerStatus{Source: req.Source, Playing: true, Muted: muted}
	done(nil)
}

func (p *HeadlessPlayer) SetMuted(muted bool) {
	p.muted = muted
	p.status.Muted = muted
}

func (p *HeadlessPlayer) Status() PlayerStatus {
	return p.status
}
