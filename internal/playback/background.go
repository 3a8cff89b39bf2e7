package playback

import (
	"time"

	"storyreel/internal/stories"
	"storyreel/internal/timers"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	FrameInterval = 33 * time.Millisecond
	BlendFactor   = 0.03

	convergedDistance = 1.0 / 255
)

// Background is the two-stop tint drawn behind the current item.
type Background struct {
	Top    colorful.Color
	Bottom colorful.Color
}

type backdrop struct {
	current Background
	target  Background
	frame   timers.Handle
}

func (m *Machine) resetBackground() {
	m.stopBackground()
	tint := stories.ParseColor(m.opts.Background)
	m.bg.current = Background{Top: tint, Bottom: tint}
	m.bg.target = m.bg.current
}

func (m *Machine) stopBackground() {
	m.sched.Cancel(m.bg.frame)
	m.bg.frame = 0
}

// applyPalette starts blending towards p. Custom items and a disabled gradient
// keep the flat tint.
func (m *Machine) applyPalette(item stories.Item, p *Palette) {
	if p == nil || !m.opts.Gradient() || item.Kind() == stories.KindCustom {
		return
	}
	m.bg.target = Background{Top: p.Top, Bottom: p.Bottom}
	if m.bg.frame == 0 && m.state != Paused && m.state != Holding {
		m.bg.frame = m.sched.Every(FrameInterval, m.blendFrame)
	}
}

func (m *Machine) blendFrame() {
	cur, tgt := &m.bg.current, m.bg.target
	cur.Top = cur.Top.BlendRgb(tgt.Top, BlendFactor).Clamped()
	cur.Bottom = cur.Bottom.BlendRgb(tgt.Bottom, BlendFactor).Clamped()
	if cur.Top.DistanceRgb(tgt.Top) < convergedDistance && cur.Bottom.DistanceRgb(tgt.Bottom) < convergedDistance {
		m.bg.current = tgt
		m.stopBackground()
	}
}
