package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"storyreel/internal/navigation"
	"storyreel/internal/stories"
	"storyreel/internal/timers"

	"github.com/lucasb-eyer/go-colorful"
)

type fakeLoader struct {
	cached   bool
	palette  *Palette
	images   []func(ImageResult, error)
	videos   []func(VideoMetadata, error)
	video    VideoMetadata
	videoErr error
	instant  bool
}

func (f *fakeLoader) IsCached(string) bool { return f.cached }

func (f *fakeLoader) LoadImage(_ context.Context, _ Request, done func(ImageResult, error)) {
	if f.cached || f.instant {
		done(ImageResult{Palette: f.palette}, nil)
		return
	}
	f.images = append(f.images, done)
}

func (f *fakeLoader) LoadVideoMetadata(_ context.Context, _ Request, done func(VideoMetadata, error)) {
	if f.instant {
		done(f.video, f.videoErr)
		return
	}
	f.videos = append(f.videos, done)
}

type fakePlayer struct {
	plays  []PlayRequest
	pauses []bool
	muted  bool
	fail   func(PlayRequest) error
}

func (p *fakePlayer) PauseAll(seek bool) { p.pauses = append(p.pauses, seek) }
func (p *fakePlayer) SetMuted(m bool) { p.muted = m }

func (p *fakePlayer) Play(_ context.Context, req PlayRequest, done func(error)) {
	p.plays = append(p.plays, req)
	var err error
	if p.fail != nil {
		err = p.fail(req)
	}
	done(err)
}

type fakeSlot struct {
	mounted []stories.Component
	err     error
}

func (s *fakeSlot) Mount(c stories.Component) error {
	if s.err != nil {
		return s.err
	}
	s.mounted = append(s.mounted, c)
	return nil
}

type textComponent string

func (c textComponent) Render(int, int) (string, error) { return string(c), nil }

type harness struct {
	m      *Machine
	clock  *timers.Manual
	loader *fakeLoader
	player *fakePlayer
	slot   *fakeSlot

	stories []StoryChange
	groups  []int
	ends    int
}

func newHarness(t *testing.T, c *stories.Collection, opts stories.Options, loader *fakeLoader) *harness {
	t.Helper()
	h := &harness{clock: timers.NewManual(), loader: loader, player: &fakePlayer{}, slot: &fakeSlot{}}
	h.m = New(Deps{Scheduler: h.clock, Loader: loader, Slot: h.slot, Player: h.player})
	h.m.Events().OnStoryChange(func(sc StoryChange) { h.stories = append(h.stories, sc) })
	h.m.Events().OnGroupChange(func(g int) { h.groups = append(h.groups, g) })
	h.m.Events().OnEnd(func() { h.ends++ })
	if err := h.m.Initialize(c, opts); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return h
}

func imageCollection(t *testing.T, sizes ...int) *stories.Collection {
	t.Helper()
	groups := make([]stories.Group, len(sizes))
	for g, n := range sizes {
		groups[g].Name = fmt.Sprintf("group-%d", g)
		for i := 0; i < n; i++ {
			groups[g].Items = append(groups[g].Items, stories.Item{
				ID:      fmt.Sprintf("g%d-i%d", g, i),
				Content: stories.Image{Source: fmt.Sprintf("img-%d-%d.png", g, i)},
			})
		}
	}
	c, err := stories.NewCollection(groups)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return c
}

func (h *harness) advance(d time.Duration) { h.clock.Advance(d) }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestInitializeRejectsInvalidInput(t *testing.T) {
	m := New(Deps{Scheduler: timers.NewManual()})
	var verr *stories.ValidationError
	if err := m.Initialize(nil, stories.Options{}); !errors.As(err, &verr) || verr.Rule != stories.RuleEmptyCollection {
		t.Fatalf("expected empty_collection, got %v", err)
	}
	c := imageCollection(t, 2)
	if err := m.Initialize(c, stories.Options{StartItem: 5}); !errors.As(err, &verr) || verr.Rule != stories.RuleStartOutOfRange {
		t.Fatalf("expected start_out_of_range, got %v", err)
	}
	if err := m.Initialize(c, stories.Options{StartItem: 1}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if m.Position() != (navigation.Position{Group: 0, Item: 1}) || m.State() != Playing {
		t.Fatalf("unexpected start %v %v", m.Position(), m.State())
	}
	if m.Options().Width != stories.DefaultWidth {
		t.Fatalf("defaults not merged: %+v", m.Options())
	}
}

func TestAutoAdvanceAfterDefaultDuration(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.advance(4950 * time.Millisecond)
	if h.m.Position() != (navigation.Position{}) {
		t.Fatalf("advanced early to %v", h.m.Position())
	}
	if !near(h.m.ProgressValue(0), 99) {
		t.Fatalf("progress = %v", h.m.ProgressValue(0))
	}
	h.advance(50 * time.Millisecond)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) {
		t.Fatalf("expected (0,1), got %v", h.m.Position())
	}
	if h.m.ProgressValue(0) != FullProgress || h.m.ProgressValue(1) != 0 {
		t.Fatalf("bars: %v %v", h.m.ProgressValue(0), h.m.ProgressValue(1))
	}
}

func TestBufferingFreezesProgress(t *testing.T) {
	loader := &fakeLoader{}
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, loader)
	h.m.Start()
	h.advance(time.Second)
	if h.m.State() != Buffering || h.m.ProgressValue(0) != 0 {
		t.Fatalf("state=%v progress=%v", h.m.State(), h.m.ProgressValue(0))
	}
	loader.images[0](ImageResult{}, nil)
	if h.m.State() != Playing {
		t.Fatalf("expected playing after load, got %v", h.m.State())
	}
	h.advance(500 * time.Millisecond)
	if !near(h.m.ProgressValue(0), 10) {
		t.Fatalf("progress = %v", h.m.ProgressValue(0))
	}
}

func TestProgressMonotonicWhilePlaying(t *testing.T) {
	h := newHarness(t, imageCollection(t, 1), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	last := 0.0
	for i := 0; i < 99; i++ {
		h.advance(TickInterval)
		p := h.m.ProgressValue(0)
		if p < last {
			t.Fatalf("progress went back from %v to %v", last, p)
		}
		last = p
	}
}

func TestRestartDoesNotDoubleTick(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.m.StartItemProgress()
	h.m.StartItemProgress()
	h.advance(500 * time.Millisecond)
	if !near(h.m.ProgressValue(0), 10) {
		t.Fatalf("expected 10 ticks worth of progress, got %v", h.m.ProgressValue(0))
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("expected a single pending timer, got %d", h.clock.Pending())
	}
}

func TestNavigateDuringTransitionIsDropped(t *testing.T) {
	h := newHarness(t, imageCollection(t, 4), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.m.Navigate(navigation.Next)
	for i := 0; i < 5; i++ {
		h.m.Navigate(navigation.Next)
		h.m.Navigate(navigation.Previous)
	}
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) || !h.m.IsTransitioning() {
		t.Fatalf("position %v transitioning=%v", h.m.Position(), h.m.IsTransitioning())
	}
	h.advance(SettleDelay)
	if h.m.IsTransitioning() {
		t.Fatalf("transition flag not cleared")
	}
	h.m.Navigate(navigation.Next)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 2}) {
		t.Fatalf("expected (0,2), got %v", h.m.Position())
	}
}

func TestContentErrorAdvancesExactlyOnce(t *testing.T) {
	loader := &fakeLoader{}
	h := newHarness(t, imageCollection(t, 3), stories.Options{}, loader)
	h.m.Start()
	loader.images[0](ImageResult{}, errors.New("404"))
	if !h.m.IsContentError() {
		t.Fatalf("expected content error")
	}
	var ce *ContentError
	if !errors.As(h.m.ContentErr(), &ce) || ce.Item.ID != "g0-i0" {
		t.Fatalf("unexpected content error %v", h.m.ContentErr())
	}
	h.advance(ErrorAdvanceDelay - time.Millisecond)
	if h.m.Position() != (navigation.Position{}) {
		t.Fatalf("advanced before the grace period: %v", h.m.Position())
	}
	h.advance(time.Millisecond)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) {
		t.Fatalf("expected (0,1), got %v", h.m.Position())
	}
	h.advance(10 * time.Second)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) {
		t.Fatalf("advanced twice: %v", h.m.Position())
	}
	if h.m.IsContentError() {
		t.Fatalf("error flag not cleared for the next item")
	}
	if len(h.stories) != 2 {
		t.Fatalf("expected 2 story changes, got %d", len(h.stories))
	}
}

func TestRepeatedContentErrorKeepsOneTimer(t *testing.T) {
	h := newHarness(t, imageCollection(t, 3), stories.Options{}, &fakeLoader{})
	h.m.Start()
	h.m.OnContentError(errors.New("a"))
	h.advance(time.Second)
	h.m.OnContentError(errors.New("b"))
	h.advance(ErrorAdvanceDelay)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) {
		t.Fatalf("expected one advance, got %v", h.m.Position())
	}
}

func TestHoldFreezesAndReleaseRestarts(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.advance(time.Second)
	h.m.Hold()
	if h.m.State() != Holding || !near(h.m.ProgressValue(0), 20) {
		t.Fatalf("state=%v progress=%v", h.m.State(), h.m.ProgressValue(0))
	}
	h.advance(10 * time.Second)
	if !near(h.m.ProgressValue(0), 20) || h.m.Position() != (navigation.Position{}) {
		t.Fatalf("hold did not freeze: progress=%v pos=%v", h.m.ProgressValue(0), h.m.Position())
	}
	if len(h.player.pauses) == 0 {
		t.Fatalf("media not paused on hold")
	}
	h.m.Release()
	if h.m.State() != Playing || h.m.ProgressValue(0) != 0 {
		t.Fatalf("release: state=%v progress=%v", h.m.State(), h.m.ProgressValue(0))
	}
	h.advance(time.Second)
	if !near(h.m.ProgressValue(0), 20) {
		t.Fatalf("progress after release = %v", h.m.ProgressValue(0))
	}
}

func TestTogglePause(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.advance(time.Second)
	h.m.TogglePause()
	h.advance(10 * time.Second)
	if h.m.State() != Paused || !near(h.m.ProgressValue(0), 20) {
		t.Fatalf("state=%v progress=%v", h.m.State(), h.m.ProgressValue(0))
	}
	h.m.TogglePause()
	h.advance(4 * time.Second)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) {
		t.Fatalf("expected resume to finish the item, got %v", h.m.Position())
	}
}

func TestNavigateWhilePausedPreparesOnly(t *testing.T) {
	groups := []stories.Group{{Name: "a", Items: []stories.Item{
		stories.NewImage("a.png"),
		stories.NewCustom("note", textComponent("hello")),
	}}}
	c, err := stories.NewCollection(groups)
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	h := newHarness(t, c, stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.m.TogglePause()
	h.m.Navigate(navigation.Next)
	if len(h.slot.mounted) != 1 {
		t.Fatalf("custom content not mounted while paused")
	}
	h.advance(20 * time.Second)
	if h.m.State() != Paused || h.m.Position() != (navigation.Position{Group: 0, Item: 1}) || h.m.ProgressValue(1) != 0 {
		t.Fatalf("state=%v pos=%v progress=%v", h.m.State(), h.m.Position(), h.m.ProgressValue(1))
	}
}

func TestMountFailureIsContentError(t *testing.T) {
	c, _ := stories.NewCollection([]stories.Group{{Name: "a", Items: []stories.Item{stories.NewCustom("note", textComponent("x"))}}})
	h := newHarness(t, c, stories.Options{}, &fakeLoader{})
	h.slot.err = errors.New("slot gone")
	h.m.Start()
	if !h.m.IsContentError() {
		t.Fatalf("expected content error")
	}
	h.advance(ErrorAdvanceDelay)
	if !h.m.IsEnded() || h.ends != 1 {
		t.Fatalf("expected end after the only item failed, ended=%v ends=%d", h.m.IsEnded(), h.ends)
	}
}

func TestEndFiresOnceAndIsTerminal(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.advance(20 * time.Second)
	if !h.m.IsEnded() || h.ends != 1 {
		t.Fatalf("ended=%v ends=%d", h.m.IsEnded(), h.ends)
	}
	if !h.m.Position().AtEnd(h.m.Collection()) {
		t.Fatalf("expected sentinel, got %v", h.m.Position())
	}
	changes := len(h.stories)
	h.m.Navigate(navigation.Previous)
	h.m.StartItemProgress()
	h.advance(20 * time.Second)
	if h.ends != 1 || len(h.stories) != changes || h.clock.Pending() != 0 {
		t.Fatalf("terminal machine moved: ends=%d stories=%d pending=%d", h.ends, len(h.stories), h.clock.Pending())
	}
	if h.m.ProgressValue(0) != FullProgress {
		t.Fatalf("ended bars should be full")
	}
	h.m.Reset()
	if h.m.IsEnded() || h.m.Position() != (navigation.Position{}) {
		t.Fatalf("reset: ended=%v pos=%v", h.m.IsEnded(), h.m.Position())
	}
	h.advance(20 * time.Second)
	if h.ends != 2 {
		t.Fatalf("expected a second end after reset, got %d", h.ends)
	}
}

func TestEventsPayloads(t *testing.T) {
	h := newHarness(t, imageCollection(t, 3, 2), stories.Options{StartItem: 2}, &fakeLoader{cached: true})
	h.m.Start()
	first := h.stories[0]
	if first.GroupName != "group-0" || first.ItemIndex != 2 || first.PreviousIndex != 1 || first.Previous.ID != "g0-i1" {
		t.Fatalf("unexpected first change %+v", first)
	}
	h.m.Navigate(navigation.Next)
	if len(h.groups) != 1 || h.groups[0] != 1 {
		t.Fatalf("group changes %v", h.groups)
	}
	sc := h.stories[len(h.stories)-1]
	if sc.GroupIndex != 1 || sc.ItemIndex != 0 || sc.Previous != nil || sc.PreviousIndex != -1 || sc.Item.ID != "g1-i0" {
		t.Fatalf("unexpected change %+v", sc)
	}
	h.advance(SettleDelay)
	h.m.Navigate(navigation.Previous)
	if len(h.groups) != 2 || h.groups[1] != 0 || h.m.Position() != (navigation.Position{Group: 0, Item: 2}) {
		t.Fatalf("groups=%v pos=%v", h.groups, h.m.Position())
	}
}

func TestHandlerPanicDoesNotAbortNavigation(t *testing.T) {
	h := newHarness(t, imageCollection(t, 3), stories.Options{}, &fakeLoader{cached: true})
	after := 0
	h.m.Events().OnStoryChange(func(StoryChange) { panic("render failed") })
	h.m.Events().OnStoryChange(func(StoryChange) { after++ })
	h.m.Start()
	h.m.Navigate(navigation.Next)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) || after != 2 {
		t.Fatalf("pos=%v later handler calls=%d", h.m.Position(), after)
	}
	if h.m.State() != Playing {
		t.Fatalf("state %v", h.m.State())
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t, imageCollection(t, 1), stories.Options{}, &fakeLoader{cached: true})
	calls := 0
	off := h.m.Events().OnEnd(func() { calls++ })
	off()
	h.m.Start()
	h.advance(10 * time.Second)
	if calls != 0 || h.ends != 1 {
		t.Fatalf("calls=%d ends=%d", calls, h.ends)
	}
}

func TestSwipeGroup(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.m.SwipeGroup(navigation.Next)
	if dir, ok := h.m.IsSwiping(); !ok || dir != navigation.Next {
		t.Fatalf("expected swiping next")
	}
	h.m.Navigate(navigation.Next)
	if h.m.Position() != (navigation.Position{}) {
		t.Fatalf("navigate during swipe moved to %v", h.m.Position())
	}
	h.advance(SwipeDelay)
	if _, ok := h.m.IsSwiping(); ok || h.m.Position() != (navigation.Position{Group: 1}) || !h.m.IsTransitioning() {
		t.Fatalf("after commit: pos=%v transitioning=%v", h.m.Position(), h.m.IsTransitioning())
	}
	if len(h.groups) != 1 || h.groups[0] != 1 {
		t.Fatalf("group changes %v", h.groups)
	}
	changes := len(h.stories)
	h.advance(SettleDelay)
	if h.m.IsTransitioning() || len(h.stories) != changes+1 {
		t.Fatalf("item not started after settle: transitioning=%v stories=%d", h.m.IsTransitioning(), len(h.stories))
	}
	h.m.SwipeGroup(navigation.Next)
	h.advance(SwipeDelay)
	if !h.m.IsEnded() || h.ends != 1 {
		t.Fatalf("swipe past last group should end, ended=%v", h.m.IsEnded())
	}
}

func TestSwipePreviousFromFirstGroupRestartsIt(t *testing.T) {
	h := newHarness(t, imageCollection(t, 3, 2), stories.Options{StartItem: 2}, &fakeLoader{cached: true})
	h.m.Start()
	h.m.SwipeGroup(navigation.Previous)
	h.advance(SwipeDelay + SettleDelay)
	if h.m.Position() != (navigation.Position{}) || len(h.groups) != 0 {
		t.Fatalf("pos=%v groups=%v", h.m.Position(), h.groups)
	}
}

func videoCollection(t *testing.T) *stories.Collection {
	t.Helper()
	c, err := stories.NewCollection([]stories.Group{{Name: "v", Items: []stories.Item{stories.NewVideo("a.mp4"), stories.NewVideo("b.mp4")}}})
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return c
}

func TestVideoUsesMediaDuration(t *testing.T) {
	loader := &fakeLoader{instant: true, video: VideoMetadata{Duration: 2 * time.Second}}
	h := newHarness(t, videoCollection(t), stories.Options{}, loader)
	h.m.Start()
	h.advance(time.Second)
	if !near(h.m.ProgressValue(0), 50) {
		t.Fatalf("progress = %v", h.m.ProgressValue(0))
	}
	if len(h.player.plays) != 1 || h.player.plays[0].Muted {
		t.Fatalf("plays %+v", h.player.plays)
	}
}

func TestVideoWithoutDurationUsesDefault(t *testing.T) {
	loader := &fakeLoader{instant: true}
	h := newHarness(t, videoCollection(t), stories.Options{}, loader)
	h.m.Start()
	h.advance(time.Second)
	if !near(h.m.ProgressValue(0), 20) {
		t.Fatalf("progress = %v", h.m.ProgressValue(0))
	}
}

func TestAutoplayFallsBackToMuted(t *testing.T) {
	loader := &fakeLoader{instant: true, video: VideoMetadata{Duration: 2 * time.Second}}
	h := newHarness(t, videoCollection(t), stories.Options{}, loader)
	h.player.fail = func(req PlayRequest) error {
		if !req.Muted {
			return fmt.Errorf("play: %w", ErrAutoplayBlocked)
		}
		return nil
	}
	h.m.Start()
	if len(h.player.plays) != 2 || !h.player.plays[1].Muted {
		t.Fatalf("plays %+v", h.player.plays)
	}
	if h.m.AudioEnabled() || h.m.IsContentError() {
		t.Fatalf("audio=%v error=%v", h.m.AudioEnabled(), h.m.IsContentError())
	}
	h.advance(SettleDelay)
	h.m.Navigate(navigation.Next)
	if last := h.player.plays[len(h.player.plays)-1]; !last.Muted {
		t.Fatalf("next video should start muted")
	}
}

func TestMutedRetryFailureIsContentError(t *testing.T) {
	loader := &fakeLoader{instant: true}
	h := newHarness(t, videoCollection(t), stories.Options{}, loader)
	h.player.fail = func(req PlayRequest) error {
		if !req.Muted {
			return ErrAutoplayBlocked
		}
		return errors.New("decoder crashed")
	}
	h.m.Start()
	if !h.m.IsContentError() {
		t.Fatalf("expected content error")
	}
	h.advance(ErrorAdvanceDelay)
	if h.m.Position() != (navigation.Position{Group: 0, Item: 1}) {
		t.Fatalf("expected auto-advance, got %v", h.m.Position())
	}
}

func TestToggleAudio(t *testing.T) {
	h := newHarness(t, videoCollection(t), stories.Options{}, &fakeLoader{instant: true})
	h.m.ToggleAudio()
	if h.m.AudioEnabled() || !h.player.muted {
		t.Fatalf("audio=%v muted=%v", h.m.AudioEnabled(), h.player.muted)
	}
	h.m.ToggleAudio()
	if !h.m.AudioEnabled() || h.player.muted {
		t.Fatalf("audio=%v muted=%v", h.m.AudioEnabled(), h.player.muted)
	}
}

func TestStaleLoadIsDropped(t *testing.T) {
	loader := &fakeLoader{}
	h := newHarness(t, imageCollection(t, 3), stories.Options{}, loader)
	h.m.Start()
	h.m.Navigate(navigation.Next)
	loader.images[0](ImageResult{}, errors.New("late failure"))
	if h.m.IsContentError() || h.m.State() != Buffering {
		t.Fatalf("stale result applied: error=%v state=%v", h.m.IsContentError(), h.m.State())
	}
	loader.images[1](ImageResult{}, nil)
	if h.m.State() != Playing {
		t.Fatalf("current load ignored: %v", h.m.State())
	}
}

func TestFocus(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, &fakeLoader{cached: true})
	h.m.Start()
	h.m.SetFocused(false)
	if h.m.State() != Paused {
		t.Fatalf("focus loss should pause, got %v", h.m.State())
	}
	h.m.SetFocused(true)
	if h.m.State() != Playing {
		t.Fatalf("focus gain should resume, got %v", h.m.State())
	}

	h.m.TogglePause()
	h.m.SetFocused(false)
	h.m.SetFocused(true)
	if h.m.State() != Paused {
		t.Fatalf("explicit pause overridden by focus, got %v", h.m.State())
	}
}

func TestBackgroundBlendsTowardsPalette(t *testing.T) {
	red := colorful.Color{R: 1}
	loader := &fakeLoader{cached: true, palette: &Palette{Top: red, Bottom: red}}
	h := newHarness(t, imageCollection(t, 2), stories.Options{}, loader)
	tint := stories.ParseColor(stories.DefaultBackground)
	if h.m.Background().Top != tint {
		t.Fatalf("expected flat tint before start")
	}
	h.m.Start()
	h.advance(time.Second)
	bg := h.m.Background()
	if bg.Top.DistanceRgb(red) >= tint.DistanceRgb(red) {
		t.Fatalf("background did not move towards the palette: %v", bg.Top.Hex())
	}
	h.m.Navigate(navigation.Next)
	if h.m.Background().Top != tint {
		t.Fatalf("navigation should reset the tint")
	}
	h.advance(500 * time.Millisecond)
	if h.m.Background().Top.DistanceRgb(red) >= tint.DistanceRgb(red) {
		t.Fatalf("new item should blend again")
	}
}

func TestGradientDisabledKeepsTint(t *testing.T) {
	off := false
	loader := &fakeLoader{cached: true, palette: &Palette{Top: colorful.Color{R: 1}, Bottom: colorful.Color{B: 1}}}
	h := newHarness(t, imageCollection(t, 1), stories.Options{Background: "#102030", GradientBackground: &off}, loader)
	h.m.Start()
	h.advance(time.Second)
	if got := h.m.Background().Top.Hex(); got != "#102030" {
		t.Fatalf("background = %s", got)
	}
}

func TestCloseDrainsEveryTimer(t *testing.T) {
	loader := &fakeLoader{cached: true, palette: &Palette{Top: colorful.Color{R: 1}, Bottom: colorful.Color{G: 1}}}
	h := newHarness(t, imageCollection(t, 3, 2), stories.Options{}, loader)
	h.m.Start()
	h.m.Navigate(navigation.Next)
	h.m.OnContentError(errors.New("boom"))
	h.advance(SettleDelay)
	h.m.SwipeGroup(navigation.Next)
	extra := 0
	h.clock.After(time.Hour, func() { extra++ })
	if h.clock.Pending() < 3 {
		t.Fatalf("expected several pending timers, got %d", h.clock.Pending())
	}
	pos := h.m.Position()
	h.m.Close()
	if h.clock.Pending() != 0 {
		t.Fatalf("pending timers after close: %d", h.clock.Pending())
	}
	h.advance(2 * time.Hour)
	h.m.Navigate(navigation.Next)
	h.m.TogglePause()
	h.m.Start()
	if h.m.Position() != pos || extra != 0 || h.clock.Pending() != 0 {
		t.Fatalf("machine acted after close: pos=%v extra=%d", h.m.Position(), extra)
	}
	if err := h.m.Initialize(imageCollection(t, 1), stories.Options{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReconfigure(t *testing.T) {
	h := newHarness(t, imageCollection(t, 2, 3), stories.Options{}, &fakeLoader{cached: true})
	if err := h.m.Reconfigure(stories.Options{StartGroup: 4}); err == nil {
		t.Fatalf("expected start_out_of_range")
	}
	if err := h.m.Reconfigure(stories.Options{StartGroup: 1, StartItem: 2, Background: "#000"}); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if h.m.Position() != (navigation.Position{}) {
		t.Fatalf("reconfigure moved position to %v", h.m.Position())
	}
	h.m.Start()
	h.m.Reset()
	if h.m.Position() != (navigation.Position{Group: 1, Item: 2}) {
		t.Fatalf("reset ignored new start: %v", h.m.Position())
	}
	if h.m.Background().Top.Hex() != "#000000" {
		t.Fatalf("tint not applied: %s", h.m.Background().Top.Hex())
	}
}
