package ui

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"storyreel/internal/gesture"
	"storyreel/internal/navigation"
	"storyreel/internal/playback"
	"storyreel/internal/stories"
	"storyreel/internal/timers"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/harmonica"
	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
)

type applyMsg struct {
	fn func(*Root)
}

type startMsg struct{}
type animateMsg time.Time

type shellKeyMap struct {
	gesture.KeyMap
	Help    key.Binding
	Restart key.Binding
}

func (k shellKeyMap) ShortHelp() []key.Binding {
	return append(k.KeyMap.ShortHelp(), k.Help)
}

func (k shellKeyMap) FullHelp() [][]key.Binding {
	return append(k.KeyMap.FullHelp(), []key.Binding{k.Restart, k.Help})
}

type Options struct {
	Theme       string
	Title       string
	MotionLevel string
	CellWidth   int
	CellHeight  int
	Previews    Previews
	Video       VideoReporter
	Logger      *clog.Logger
	Keys        gesture.KeyMap
}

// Root is the bubbletea model of the viewer. Everything that touches the
// playback machine runs inside Update, so timers and loaders hand their work
// to Dispatch.
type Root struct {
	theme       Theme
	title       string
	motionLevel string
	cellW       int
	cellH       int
	previews    Previews
	video       VideoReporter
	logger      *clog.Logger

	mu      sync.Mutex
	program *tea.Program
	running bool

	viewer     Viewer
	dispatcher *gesture.Dispatcher
	interp     *gesture.Interpreter
	keys       shellKeyMap

	cols     int
	rows     int
	layout   LayoutMode
	contentW int
	contentH int

	started     bool
	onStart     func()
	quitting    bool
	statusFlash string
	mounted     stories.Component

	help     help.Model
	bar      progress.Model
	spin     spinner.Model
	spring   harmonica.Spring
	slidePos float64
	slideVel float64

	images         previewCache
	lastInputEvent string
}

func New(opts Options) *Root {
	logger := opts.Logger
	if logger == nil {
		logger = clog.New(io.Discard)
	}
	theme := ThemeForVariant(normalizeStyleVariant(opts.Theme))
	motion := normalizeMotionLevel(opts.MotionLevel)

	spring := harmonica.NewSpring(harmonica.FPS(60), 8.0, 0.85)
	if motion == "reduced" {
		spring = harmonica.NewSpring(harmonica.FPS(30), 9.0, 0.95)
	}

	h := help.New()
	h.Styles = help.DefaultDarkStyles()

	bar := progress.New(
		progress.WithColors(theme.BarFull),
		progress.WithFillCharacters('━', '━'),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = theme.BarEmpty

	keys := opts.Keys
	if len(keys.Next.Keys()) == 0 {
		keys = gesture.DefaultKeyMap()
	}
	if opts.CellWidth <= 0 {
		opts.CellWidth = 8
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = 16
	}

	return &Root{
		theme:       theme,
		title:       opts.Title,
		motionLevel: motion,
		cellW:       opts.CellWidth,
		cellH:       opts.CellHeight,
		previews:    opts.Previews,
		video:       opts.Video,
		logger:      logger,
		cols:        80,
		rows:        24,
		contentW:    40,
		contentH:    20,
		help:        h,
		bar:         bar,
		spin: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(theme.Accent),
		),
		spring: spring,
		keys: shellKeyMap{
			KeyMap:  keys,
			Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
			Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		},
		images: previewCache{entries: map[previewKey][]string{}},
	}
}

// Attach connects the shell to a viewer. Gestures share the viewer's timer
// scheduler so Close on the machine also drops a pending hold.
func (r *Root) Attach(v Viewer, sched timers.Scheduler) {
	r.viewer = v
	r.dispatcher = gesture.NewDispatcher(v, r.keys.KeyMap)
	r.interp = gesture.NewInterpreter(sched, r.dispatcher)
}

// OnStart registers fn to run on the event loop once the viewer has started.
func (r *Root) OnStart(fn func()) {
	r.onStart = fn
}

func (r *Root) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return startMsg{} },
		func() tea.Msg { return r.spin.Tick() },
	)
}

func (r *Root) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("update", rec, msg)
			model = r
			cmd = nil
		}
	}()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.cols = msg.Width
		r.rows = msg.Height
		r.layout = DetermineLayoutMode(r.cols, r.rows)
		r.help.SetWidth(msg.Width)
	case startMsg:
		if r.viewer != nil && !r.started {
			r.started = true
			r.viewer.Start()
			if r.onStart != nil {
				r.onStart()
			}
		}
	case applyMsg:
		if msg.fn != nil {
			msg.fn(r)
		}
	case animateMsg:
		target := r.slideTarget()
		r.slidePos, r.slideVel = r.spring.Update(r.slidePos, r.slideVel, target)
		if r.shouldAnimate(target) {
			return r, r.finish(animateTickCmd())
		}
		r.slidePos, r.slideVel = target, 0
	case spinner.TickMsg:
		var cmd tea.Cmd
		r.spin, cmd = r.spin.Update(msg)
		return r, r.finish(cmd)
	case tea.FocusMsg:
		if r.viewer != nil {
			r.viewer.SetFocused(true)
		}
	case tea.BlurMsg:
		if r.viewer != nil {
			r.viewer.SetFocused(false)
		}
	case tea.MouseClickMsg:
		r.handleMouseClick(msg)
	case tea.MouseReleaseMsg:
		r.handleMouseRelease(msg)
	case tea.KeyPressMsg:
		r.handleKey(msg)
	}
	return r, r.finish(r.animateIfNeeded())
}

// finish appends tea.Quit once a quit was requested during this update.
func (r *Root) finish(cmd tea.Cmd) tea.Cmd {
	if r.quitting {
		return tea.Batch(cmd, tea.Quit)
	}
	return cmd
}

func (r *Root) View() (view tea.View) {
	defer func() {
		if rec := recover(); rec != nil {
			r.onModelPanic("view", rec, nil)
			width := max(1, r.cols)
			view = tea.NewView(r.theme.Fail.Width(width).Render(trimForWidth("UI recovered from a rendering panic. Check logs.", width-1)))
		}
	}()

	v := tea.NewView(r.render())
	v.AltScreen = true
	v.MouseMode = tea.MouseModeCellMotion
	v.ReportFocus = true
	v.WindowTitle = r.windowTitle()
	return v
}

func (r *Root) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	p := tea.NewProgram(r, tea.WithContext(ctx))
	r.program = p
	r.running = true
	r.mu.Unlock()

	_, err := p.Run()

	r.mu.Lock()
	r.program = nil
	r.running = false
	r.mu.Unlock()
	return err
}

func (r *Root) Stop() {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Quit()
	}
}

// RequestQuit ends the program after the current update. It must be called
// from inside the event loop, for example from a viewer event handler.
func (r *Root) RequestQuit() {
	r.quitting = true
}

func (r *Root) QuitRequested() bool { return r.quitting }

// SetStatus replaces the status line from inside the event loop.
func (r *Root) SetStatus(msg string) {
	r.statusFlash = msg
}

func (r *Root) FlashStatus(msg string) {
	r.apply(func(m *Root) {
		m.statusFlash = msg
	})
}

// Dispatch runs fn on the event loop. Before Run it runs fn directly.
func (r *Root) Dispatch(fn func()) {
	if fn == nil {
		return
	}
	r.apply(func(*Root) { fn() })
}

func (r *Root) apply(fn func(*Root)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	p := r.program
	running := r.running
	r.mu.Unlock()
	if !running || p == nil {
		fn(r)
		return
	}
	p.Send(applyMsg{fn: fn})
}

// Mount implements playback.Slot. The component is rendered once at the
// current content size so a broken component is reported as a content error.
func (r *Root) Mount(c stories.Component) error {
	if c == nil {
		return fmt.Errorf("mount: nil component")
	}
	if _, err := c.Render(r.contentW, r.contentH); err != nil {
		r.mounted = nil
		return fmt.Errorf("mount: %w", err)
	}
	r.mounted = c
	return nil
}

func (r *Root) handleKey(msg tea.KeyPressMsg) {
	r.recordInputEvent(fmt.Sprintf("key:%v mod:%v text:%q", msg.Code, msg.Mod, msg.Text))
	if r.viewer == nil {
		if key.Matches(msg, r.keys.Quit) {
			r.quitting = true
		}
		return
	}

	switch {
	case key.Matches(msg, r.keys.Help):
		r.help.ShowAll = !r.help.ShowAll
		return
	case key.Matches(msg, r.keys.Restart) && r.viewer.IsEnded():
		r.statusFlash = ""
		r.viewer.Reset()
		return
	}

	switch r.dispatcher.Key(msg) {
	case gesture.KeyQuit:
		r.quitting = true
	case gesture.KeyHandled:
		r.statusFlash = ""
	}
}

func (r *Root) cellPoint(m tea.Mouse) gesture.Point {
	return gesture.Point{X: float64(m.X * r.cellW), Y: float64(m.Y * r.cellH)}
}

func (r *Root) handleMouseClick(msg tea.MouseClickMsg) {
	m := msg.Mouse()
	r.recordInputEvent(fmt.Sprintf("mouse_click:%d,%d button:%v", m.X, m.Y, m.Button))
	if r.interp == nil || m.Button != tea.MouseLeft {
		return
	}
	r.interp.PressStart(r.cellPoint(m))
}

func (r *Root) handleMouseRelease(msg tea.MouseReleaseMsg) {
	m := msg.Mouse()
	r.recordInputEvent(fmt.Sprintf("mouse_release:%d,%d", m.X, m.Y))
	if r.interp == nil || !r.interp.Pressed() {
		return
	}
	r.interp.PressEnd(r.cellPoint(m))
}

func (r *Root) render() string {
	cols, rows := max(1, r.cols), max(1, r.rows)
	mode := DetermineLayoutMode(cols, rows)
	r.layout = mode
	if mode == LayoutTooSmall {
		msg := r.theme.Fail.Render(fmt.Sprintf("Terminal too small (%dx%d)", cols, rows))
		return lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, msg)
	}
	if r.viewer == nil {
		return lipgloss.Place(cols, rows, lipgloss.Center, lipgloss.Center, r.theme.Muted.Render("no stories loaded"))
	}

	footer := ""
	avail := rows
	if mode == LayoutFull {
		footer = r.footer()
		avail -= lipgloss.Height(footer)
	}
	opts := r.viewer.Options()
	pw, ph := panelSize(opts.Width, opts.Height, r.cellW, r.cellH, cols, avail)

	var panel string
	if r.viewer.IsEnded() {
		panel = r.renderEnded(pw, ph)
	} else {
		panel = r.slide(r.renderPanel(pw, ph), pw)
	}
	out := lipgloss.Place(cols, avail, lipgloss.Center, lipgloss.Center, panel)
	if footer != "" {
		out += "\n" + lipgloss.PlaceHorizontal(cols, lipgloss.Center, footer)
	}
	return out
}

func (r *Root) renderPanel(w, h int) string {
	bodyH := max(1, h-2)
	r.contentW, r.contentH = w, bodyH

	lines := make([]string, 0, h)
	lines = append(lines, r.progressBars(w), r.headerLine(w))
	body := r.renderContent(w, bodyH)
	body = lipgloss.Place(w, bodyH, lipgloss.Center, lipgloss.Center, body)
	lines = append(lines, strings.Split(body, "\n")...)
	if len(lines) > h {
		lines = lines[:h]
	}

	bg := r.viewer.Background()
	for i, line := range lines {
		t := 0.0
		if len(lines) > 1 {
			t = float64(i) / float64(len(lines)-1)
		}
		c := bg.Top.BlendRgb(bg.Bottom, t).Clamped()
		lines[i] = lipgloss.NewStyle().Background(c).Width(w).MaxWidth(w).Render(line)
	}
	return strings.Join(lines, "\n")
}

func (r *Root) progressBars(w int) string {
	c := r.viewer.Collection()
	pos := r.viewer.Position()
	n := c.Size(pos.Group)
	if n == 0 {
		return ""
	}
	seg := max(1, (w-(n-1))/n)
	parts := make([]string, n)
	for i := range n {
		bar := r.bar
		bar.SetWidth(seg)
		if i == pos.Item {
			bar.FullColor = r.theme.BarCurrent
		}
		parts[i] = bar.ViewAs(r.viewer.ProgressValue(i) / playback.FullProgress)
	}
	return strings.Join(parts, " ")
}

func (r *Root) headerLine(w int) string {
	pos := r.viewer.Position()
	name := ""
	if g, ok := r.viewer.Collection().Group(pos.Group); ok {
		name = g.Name
	}
	if name == "" {
		name = fmt.Sprintf("Group %d", pos.Group+1)
	}
	counter := fmt.Sprintf("%d/%d", pos.Item+1, r.viewer.Collection().Size(pos.Group))
	left := r.theme.GroupName.Render(name) + " " + r.theme.Counter.Render(counter)

	var badges []string
	switch r.viewer.State() {
	case playback.Paused:
		badges = append(badges, r.theme.Paused.Render("paused"))
	case playback.Holding:
		badges = append(badges, r.theme.Accent.Render("hold"))
	case playback.Buffering:
		badges = append(badges, r.spin.View())
	}
	if item, ok := r.viewer.Current(); ok && item.Kind() == stories.KindVideo {
		if r.viewer.AudioEnabled() {
			badges = append(badges, r.theme.Muted.Render("♪"))
		} else {
			badges = append(badges, r.theme.Muted.Render("muted"))
		}
	}
	right := strings.Join(badges, " ")
	gap := w - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return ansi.Truncate(left, w, "…")
	}
	return left + strings.Repeat(" ", gap) + right
}

func (r *Root) renderContent(w, h int) string {
	if r.viewer.IsContentError() {
		return r.theme.Fail.Render("This story could not be loaded") + "\n" + r.theme.Muted.Render("skipping…")
	}
	item, ok := r.viewer.Current()
	if !ok {
		return ""
	}
	switch c := item.Content.(type) {
	case stories.Image:
		if r.previews != nil {
			if img, ok := r.previews.Preview(c.Source); ok {
				return r.images.render(c.Source, img, w, h)
			}
		}
		return r.spin.View() + " " + r.theme.Muted.Render("loading")
	case stories.Video:
		return r.videoCard(c, w)
	case stories.Custom:
		if r.mounted == nil {
			return ""
		}
		out, err := r.mounted.Render(w, h)
		if err != nil {
			return r.theme.Fail.Render(trimForWidth(err.Error(), w))
		}
		return out
	}
	return ""
}

func (r *Root) videoCard(c stories.Video, w int) string {
	state := "stopped"
	if r.video != nil {
		st := r.video.VideoStatus()
		switch {
		case st.Playing && st.Muted:
			state = "playing (muted)"
		case st.Playing:
			state = "playing"
		}
	}
	lines := []string{
		r.theme.Accent.Render("▶ video"),
		r.theme.Body.Render(trimForWidth(c.Source, max(1, w-4))),
		r.theme.Muted.Render(state),
	}
	return r.theme.Frame.Render(strings.Join(lines, "\n"))
}

func (r *Root) renderEnded(w, h int) string {
	card := r.theme.Ended.Render("That's everything.\n\n" + r.theme.Muted.Render("r restart · q quit"))
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, card)
}

func (r *Root) footer() string {
	lines := []string{r.help.View(r.keys)}
	if r.statusFlash != "" {
		lines = append(lines, r.theme.Status.Render(r.statusFlash))
	}
	return strings.Join(lines, "\n")
}

func (r *Root) windowTitle() string {
	if r.title == "" {
		return "storyreel"
	}
	return "storyreel · " + r.title
}

func (r *Root) slideTarget() float64 {
	if r.viewer == nil {
		return 0
	}
	dir, swiping := r.viewer.IsSwiping()
	switch {
	case !swiping:
		return 0
	case dir == navigation.Next:
		return -1
	default:
		return 1
	}
}

// slide shifts the panel horizontally by the current spring offset.
func (r *Root) slide(panel string, w int) string {
	offset := int(math.Round(r.slidePos * float64(w)))
	if offset == 0 {
		return panel
	}
	lines := strings.Split(panel, "\n")
	for i, line := range lines {
		if offset > 0 {
			line = ansi.Truncate(strings.Repeat(" ", offset)+line, w, "")
		} else {
			line = ansi.TruncateLeft(line, -offset, "")
		}
		if pad := w - ansi.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func (r *Root) animateIfNeeded() tea.Cmd {
	if r.shouldAnimate(r.slideTarget()) {
		return animateTickCmd()
	}
	return nil
}

func (r *Root) shouldAnimate(target float64) bool {
	if r.motionLevel == "off" {
		r.slidePos, r.slideVel = target, 0
		return false
	}
	return math.Abs(r.slidePos-target) > 0.001 || math.Abs(r.slideVel) > 0.001
}

func animateTickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return animateMsg(t) })
}

type previewKey struct {
	src  string
	w, h int
}

// previewCache keeps half-block renderings of decoded previews per size.
type previewCache struct {
	entries map[previewKey][]string
}

func (c *previewCache) render(src string, img *image.RGBA, w, h int) string {
	k := previewKey{src: src, w: w, h: h}
	if rows, ok := c.entries[k]; ok {
		return strings.Join(rows, "\n")
	}
	if len(c.entries) > 64 {
		clear(c.entries)
	}
	rows := halfBlocks(img, w, h)
	c.entries[k] = rows
	return strings.Join(rows, "\n")
}

func trimForWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(strings.ReplaceAll(ansi.Strip(s), "\n", " "))
	if len(r) <= width {
		return string(r)
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

func normalizeMotionLevel(v string) string {
	switch strings.TrimSpace(v) {
	case "off", "reduced", "full":
		return strings.TrimSpace(v)
	default:
		return "full"
	}
}

func (r *Root) recordInputEvent(event string) {
	r.lastInputEvent = trimForWidth(strings.TrimSpace(event), 160)
}

func (r *Root) onModelPanic(where string, recovered any, msg tea.Msg) {
	if r.statusFlash == "" {
		r.statusFlash = "Recovered UI panic"
	}
	msgType := ""
	if msg != nil {
		msgType = fmt.Sprintf("%T", msg)
	}
	r.logger.Error("ui.panic_recovered",
		"where", where,
		"panic", fmt.Sprintf("%v", recovered),
		"message_type", msgType,
		"layout", r.layout,
		"cols", r.cols,
		"rows", r.rows,
		"last_input", r.lastInputEvent,
		"stack", string(debug.Stack()),
	)
}

var _ tea.Model = (*Root)(nil)
var _ View = (*Root)(nil)
var _ playback.Slot = (*Root)(nil)
