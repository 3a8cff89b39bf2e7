// Package playback drives a story collection: it owns the current position,
// the progress timer and every other pending callback of one viewer.
//
// A Machine is not safe for concurrent use. All calls, timer callbacks and
// collaborator callbacks must run on one event loop.
package playback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyreel/internal/navigation"
	"storyreel/internal/stories"
	"storyreel/internal/timers"
)

const (
	TickInterval      = 50 * time.Millisecond
	DefaultDuration   = 5 * time.Second
	SettleDelay       = 500 * time.Millisecond
	SwipeDelay        = 600 * time.Millisecond
	ErrorAdvanceDelay = 3 * time.Second
	FullProgress      = 100.0
)

type State int

const (
	Playing State = iota
	Paused
	Holding
	Buffering
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Holding:
		return "holding"
	case Buffering:
		return "buffering"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrClosed = errors.New("playback: machine closed")

// ContentError is a failed load or play of the current item.
type ContentError struct {
	Position navigation.Position
	Item     stories.Item
	Err      error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("%s item %s at %v: %v", e.Item.Kind(), e.Item.ID, e.Position, e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }

type Deps struct {
	Scheduler timers.Scheduler
	Loader    Loader
	Slot      Slot
	Player    Player
	Logger    Logger
	Events    *Events
}

type Machine struct {
	sched  timers.Scheduler
	loader Loader
	slot   Slot
	player Player
	log    Logger
	events *Events

	ctx        context.Context
	cancel     context.CancelFunc
	loadCancel context.CancelFunc

	coll *stories.Collection
	opts stories.Options
	pos  navigation.Position

	state         State
	buffering     bool
	progress      float64
	frozen        float64
	transitioning bool
	swiping       bool
	swipeDir      navigation.Direction
	contentErr    *ContentError
	ended         bool
	started       bool
	closed        bool
	audio         bool
	focusPaused   bool

	gen          uint64
	emitted      navigation.Position
	emittedValid bool

	progressTimer timers.Handle
	errorTimer    timers.Handle
	settleTimer   timers.Handle
	swipeTimer    timers.Handle
	bg            backdrop
}

func New(deps Deps) *Machine {
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	if deps.Scheduler == nil {
		deps.Scheduler = timers.NewRegistry(nil)
	}
	if deps.Loader == nil {
		deps.Loader = nopLoader{}
	}
	if deps.Slot == nil {
		deps.Slot = nopSlot{}
	}
	if deps.Player == nil {
		deps.Player = nopPlayer{}
	}
	if deps.Events == nil {
		deps.Events = NewEvents(deps.Logger)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		sched:  deps.Scheduler,
		loader: deps.Loader,
		slot:   deps.Slot,
		player: deps.Player,
		log:    deps.Logger,
		events: deps.Events,
		ctx:    ctx,
		cancel: cancel,
		opts:   stories.DefaultOptions(),
		audio:  true,
	}
}

func (m *Machine) Events() *Events { return m.events }

// Initialize installs c and opts (merged over the defaults) and rewinds to the
// start position. Nothing plays until Start.
func (m *Machine) Initialize(c *stories.Collection, opts stories.Options) error {
	if m.closed {
		return ErrClosed
	}
	if c.Len() == 0 {
		return &stories.ValidationError{Rule: stories.RuleEmptyCollection, Group: -1, Item: -1, Detail: "collection must contain at least one group"}
	}
	for g := 0; g < c.Len(); g++ {
		if c.Size(g) == 0 {
			return &stories.ValidationError{Rule: stories.RuleEmptyGroup, Group: g, Item: -1, Detail: "group must contain at least one story"}
		}
	}
	merged := stories.DefaultOptions().Merge(opts)
	if err := merged.CheckStart(c); err != nil {
		return err
	}
	m.halt()
	m.coll = c
	m.opts = merged
	m.rewind()
	m.log.Debug("playback.initialize", "groups", c.Len(), "items", c.ItemCount(), "start", m.pos)
	return nil
}

// Start begins the first item. Later calls are no-ops.
func (m *Machine) Start() {
	if m.closed || m.coll == nil || m.started {
		return
	}
	m.started = true
	m.StartItemProgress()
}

func (m *Machine) rewind() {
	m.pos = navigation.Position{Group: m.opts.StartGroup, Item: m.opts.StartItem}
	m.state = Playing
	m.buffering = false
	m.progress = 0
	m.frozen = 0
	m.transitioning = false
	m.swiping = false
	m.contentErr = nil
	m.ended = false
	m.focusPaused = false
	m.emittedValid = false
	m.resetBackground()
}

// halt cancels every timer and load owned by the machine.
func (m *Machine) halt() {
	for _, h := range []*timers.Handle{&m.progressTimer, &m.errorTimer, &m.settleTimer, &m.swipeTimer, &m.bg.frame} {
		m.sched.Cancel(*h)
		*h = 0
	}
	m.cancelLoad()
}

func (m *Machine) cancelLoad() {
	if m.loadCancel != nil {
		m.loadCancel()
		m.loadCancel = nil
	}
}

func (m *Machine) stopProgress() {
	m.sched.Cancel(m.progressTimer)
	m.progressTimer = 0
}

func (m *Machine) cancelErrorTimer() {
	m.sched.Cancel(m.errorTimer)
	m.errorTimer = 0
}

func (m *Machine) live(gen uint64) bool {
	return !m.closed && m.gen == gen
}

// StartItemProgress prepares the current item and, once it is ready, starts
// the progress timer. Results of loads started for an earlier item are
// dropped.
func (m *Machine) StartItemProgress() {
	if m.closed || m.coll == nil || m.ended || m.pos.AtEnd(m.coll) {
		return
	}
	m.stopProgress()
	m.cancelErrorTimer()
	m.cancelLoad()
	m.contentErr = nil
	m.buffering = true
	m.gen++

	item, ok := m.coll.Item(m.pos.Group, m.pos.Item)
	if !ok {
		m.OnContentError(fmt.Errorf("no item at %v", m.pos))
		return
	}
	m.emitStoryChange(item)

	ctx, cancel := context.WithCancel(m.ctx)
	m.loadCancel = cancel
	item.Content.Accept(&preparer{m: m, ctx: ctx, gen: m.gen, item: item})
}

// preparer dispatches on the content kind of the item being started.
type preparer struct {
	m    *Machine
	ctx  context.Context
	gen  uint64
	item stories.Item
}

func (p *preparer) VisitImage(c stories.Image) {
	m, gen := p.m, p.gen
	req := Request{Item: p.item, Source: c.Source, CrossOrigin: c.CrossOrigin}
	if m.loader.IsCached(c.Source) {
		m.loaded(gen, DefaultDuration)
		m.loader.LoadImage(p.ctx, req, func(res ImageResult, err error) {
			if err == nil && m.live(gen) {
				m.applyPalette(p.item, res.Palette)
			}
		})
		return
	}
	m.loader.LoadImage(p.ctx, req, func(res ImageResult, err error) {
		if !m.live(gen) {
			m.log.Debug("playback.stale_load", "source", c.Source)
			return
		}
		if err != nil {
			m.OnContentError(&ContentError{Position: m.pos, Item: p.item, Err: err})
			return
		}
		m.loaded(gen, DefaultDuration)
		m.applyPalette(p.item, res.Palette)
	})
}

func (p *preparer) VisitVideo(c stories.Video) {
	m, gen := p.m, p.gen
	req := Request{Item: p.item, Source: c.Source, CrossOrigin: c.CrossOrigin}
	m.loader.LoadVideoMetadata(p.ctx, req, func(md VideoMetadata, err error) {
		if !m.live(gen) {
			m.log.Debug("playback.stale_load", "source", c.Source)
			return
		}
		if err != nil {
			m.OnContentError(&ContentError{Position: m.pos, Item: p.item, Err: err})
			return
		}
		d := md.Duration
		if d <= 0 {
			d = DefaultDuration
		}
		m.loaded(gen, d)
		if m.state == Playing {
			m.play(p.ctx, gen, p.item, c.Source)
		}
	})
}

func (p *preparer) VisitCustom(c stories.Custom) {
	if err := p.m.slot.Mount(c.Component); err != nil {
		p.m.OnContentError(&ContentError{Position: p.m.pos, Item: p.item, Err: err})
		return
	}
	p.m.loaded(p.gen, DefaultDuration)
}

func (m *Machine) loaded(gen uint64, d time.Duration) {
	if !m.live(gen) {
		return
	}
	m.buffering = false
	m.contentErr = nil
	if m.state == Playing {
		m.startProgressTimer(d)
	}
}

func (m *Machine) startProgressTimer(d time.Duration) {
	m.stopProgress()
	step := FullProgress / (float64(d) / float64(TickInterval))
	m.progressTimer = m.sched.Every(TickInterval, func() { m.tick(step) })
}

func (m *Machine) tick(step float64) {
	if m.buffering {
		return
	}
	m.progress += step
	if m.progress >= FullProgress {
		m.progress = FullProgress
		m.stopProgress()
		m.Navigate(navigation.Next)
	}
}

func (m *Machine) play(ctx context.Context, gen uint64, item stories.Item, src string) {
	muted := !m.audio
	m.player.Play(ctx, PlayRequest{Item: item, Source: src, Muted: muted}, func(err error) {
		if err == nil || !m.live(gen) {
			return
		}
		if muted || !errors.Is(err, ErrAutoplayBlocked) {
			m.OnContentError(&ContentError{Position: m.pos, Item: item, Err: err})
			return
		}
		m.log.Info("playback.autoplay_muted", "source", src)
		m.audio = false
		m.player.Play(ctx, PlayRequest{Item: item, Source: src, Muted: true}, func(err error) {
			if err == nil || !m.live(gen) {
				return
			}
			m.OnContentError(&ContentError{Position: m.pos, Item: item, Err: err})
		})
	})
}

// Navigate moves one item in dir. It is dropped while a transition is in
// flight and once the end has been reached.
func (m *Machine) Navigate(dir navigation.Direction) {
	if m.closed || m.coll == nil || m.ended || m.transitioning {
		return
	}
	m.leaveItem()
	m.transitioning = true
	m.settleTimer = m.sched.After(SettleDelay, func() {
		m.settleTimer = 0
		m.transitioning = false
	})

	from := m.pos
	if dir == navigation.Previous {
		m.pos = navigation.Retreat(m.coll, m.pos, m.events.emitGroupChange)
	} else {
		m.pos = navigation.Advance(m.coll, m.pos, m.events.emitGroupChange)
	}
	m.log.Debug("playback.navigate", "dir", dir, "from", from, "to", m.pos)
	m.resetBackground()
	if m.pos.AtEnd(m.coll) {
		m.finish()
		return
	}
	m.progress = 0
	m.frozen = 0
	if m.state != Paused {
		m.state = Playing
	}
	m.StartItemProgress()
}

func (m *Machine) leaveItem() {
	m.stopProgress()
	m.cancelErrorTimer()
	m.cancelLoad()
	m.stopBackground()
	m.player.PauseAll(true)
}

func (m *Machine) finish() {
	m.ended = true
	m.buffering = false
	m.stopProgress()
	m.log.Info("playback.end", "groups", m.coll.Len())
	m.events.emitEnd()
}

// SwipeGroup jumps to the neighbouring group after the swipe animation. It
// shares the transition guard with Navigate.
func (m *Machine) SwipeGroup(dir navigation.Direction) {
	if m.closed || m.coll == nil || m.ended || m.transitioning {
		return
	}
	m.transitioning = true
	m.swiping = true
	m.swipeDir = dir
	m.swipeTimer = m.sched.After(SwipeDelay, func() {
		m.swipeTimer = 0
		m.commitSwipe(dir)
	})
}

func (m *Machine) commitSwipe(dir navigation.Direction) {
	m.swiping = false
	m.leaveItem()
	from := m.pos
	m.pos = navigation.JumpGroup(m.coll, m.pos, dir, m.events.emitGroupChange)
	m.log.Debug("playback.swipe_group", "dir", dir, "from", from, "to", m.pos)
	m.resetBackground()
	if m.pos.AtEnd(m.coll) {
		m.transitioning = false
		m.finish()
		return
	}
	m.progress = 0
	m.frozen = 0
	m.settleTimer = m.sched.After(SettleDelay, func() {
		m.settleTimer = 0
		m.transitioning = false
		m.StartItemProgress()
	})
}

// Hold freezes the current item until Release.
func (m *Machine) Hold() {
	if m.closed || m.coll == nil || m.ended || m.state == Holding {
		return
	}
	m.frozen = m.progress
	m.state = Holding
	m.stopProgress()
	m.stopBackground()
	m.player.PauseAll(false)
}

// Release leaves Holding and restarts the item's timer from zero. Progress
// made before the hold is not resumed.
func (m *Machine) Release() {
	if m.closed || m.state != Holding {
		return
	}
	m.state = Playing
	m.progress = 0
	m.frozen = 0
	m.StartItemProgress()
}

func (m *Machine) TogglePause() {
	if m.closed || m.coll == nil || m.ended {
		return
	}
	m.focusPaused = false
	if m.state == Paused || m.state == Holding {
		m.resume()
		return
	}
	m.pause()
}

func (m *Machine) pause() {
	m.state = Paused
	m.stopProgress()
	m.stopBackground()
	m.player.PauseAll(false)
}

func (m *Machine) resume() {
	m.state = Playing
	m.StartItemProgress()
}

// SetFocused pauses while the viewer is not visible. Regaining focus only
// resumes a pause that focus loss caused.
func (m *Machine) SetFocused(focused bool) {
	if m.closed || m.coll == nil || m.ended {
		return
	}
	if !focused {
		if m.state == Playing && !m.focusPaused {
			m.pause()
			m.focusPaused = true
		}
		return
	}
	if m.focusPaused {
		m.focusPaused = false
		if m.state == Paused {
			m.resume()
		}
	}
}

// OnContentError marks the current item as failed and advances after
// ErrorAdvanceDelay.
func (m *Machine) OnContentError(err error) {
	if m.closed || m.coll == nil || m.ended {
		return
	}
	var ce *ContentError
	if !errors.As(err, &ce) {
		item, _ := m.coll.Item(m.pos.Group, m.pos.Item)
		ce = &ContentError{Position: m.pos, Item: item, Err: err}
	}
	m.contentErr = ce
	m.buffering = false
	m.stopProgress()
	m.log.Warn("media.load_failed", "group", m.pos.Group, "item", m.pos.Item, "err", ce.Err)
	m.cancelErrorTimer()
	m.errorTimer = m.sched.After(ErrorAdvanceDelay, func() {
		m.errorTimer = 0
		m.Navigate(navigation.Next)
	})
}

func (m *Machine) ToggleAudio() {
	if m.closed {
		return
	}
	m.audio = !m.audio
	m.player.SetMuted(!m.audio)
}

// Exit stops the progress timer and signals exit listeners.
func (m *Machine) Exit() {
	if m.closed {
		return
	}
	m.stopProgress()
	m.events.emitExit()
}

func (m *Machine) SwipeUp() {
	if m.closed {
		return
	}
	m.events.emitSwipeUp()
}

// Reset rewinds a machine, terminal or not, to the configured start.
func (m *Machine) Reset() {
	if m.closed || m.coll == nil {
		return
	}
	m.halt()
	m.player.PauseAll(true)
	m.rewind()
	if m.started {
		m.StartItemProgress()
	}
}

// Reconfigure replaces the options. Position is kept; the start indices are
// checked against the current collection and used by the next Reset.
func (m *Machine) Reconfigure(opts stories.Options) error {
	if m.closed {
		return ErrClosed
	}
	merged := stories.DefaultOptions().Merge(opts)
	if m.coll != nil {
		if err := merged.CheckStart(m.coll); err != nil {
			return err
		}
	}
	m.opts = merged
	m.resetBackground()
	return nil
}

// Close cancels every pending timer and load. The machine ignores all calls
// afterwards.
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.halt()
	m.sched.CancelAll()
	m.closed = true
	m.cancel()
	m.player.PauseAll(false)
	m.log.Debug("playback.close")
}

func (m *Machine) emitStoryChange(item stories.Item) {
	if m.emittedValid && m.emitted == m.pos {
		return
	}
	m.emitted, m.emittedValid = m.pos, true
	g, _ := m.coll.Group(m.pos.Group)
	sc := StoryChange{
		GroupName:     g.Name,
		GroupIndex:    m.pos.Group,
		Item:          item,
		ItemIndex:     m.pos.Item,
		PreviousIndex: -1,
	}
	if m.pos.Item > 0 && m.pos.Item <= len(g.Items) {
		prev := g.Items[m.pos.Item-1]
		sc.Previous = &prev
		sc.PreviousIndex = m.pos.Item - 1
	}
	m.events.emitStoryChange(sc)
}

// ProgressValue is the bar fill (0-100) of item i in the current group.
func (m *Machine) ProgressValue(i int) float64 {
	if m.coll == nil {
		return 0
	}
	if m.ended || m.pos.AtEnd(m.coll) {
		return FullProgress
	}
	switch {
	case i < m.pos.Item:
		return FullProgress
	case i == m.pos.Item:
		if m.state == Holding {
			return m.frozen
		}
		return m.progress
	default:
		return 0
	}
}

func (m *Machine) Position() navigation.Position { return m.pos }

func (m *Machine) State() State {
	if m.buffering && m.state == Playing {
		return Buffering
	}
	return m.state
}

func (m *Machine) IsTransitioning() bool { return m.transitioning }

// IsSwiping reports the direction of a pending group swipe.
func (m *Machine) IsSwiping() (navigation.Direction, bool) { return m.swipeDir, m.swiping }

func (m *Machine) IsContentError() bool { return m.contentErr != nil }

// ContentErr is the failure of the current item, nil when it loaded.
func (m *Machine) ContentErr() error {
	if m.contentErr == nil {
		return nil
	}
	return m.contentErr
}

func (m *Machine) IsEnded() bool { return m.ended }
func (m *Machine) IsClosed() bool { return m.closed }

func (m *Machine) Current() (stories.Item, bool) {
	if m.coll == nil {
		return stories.Item{}, false
	}
	return m.coll.Item(m.pos.Group, m.pos.Item)
}

func (m *Machine) Collection() *stories.Collection { return m.coll }
func (m *Machine) Options() stories.Options { return m.opts }
func (m *Machine) AudioEnabled() bool { return m.audio }
func (m *Machine) Background() Background { return m.bg.current }
