package gesture

import (
	"storyreel/internal/navigation"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
)

// Target is the viewer API gestures and keys drive. *playback.Machine
// implements it.
type Target interface {
	Navigate(dir navigation.Direction)
	SwipeGroup(dir navigation.Direction)
	TogglePause()
	ToggleAudio()
	Hold()
	Release()
	Exit()
	SwipeUp()
}

type KeyMap struct {
	Next     key.Binding
	Previous key.Binding
	Pause    key.Binding
	Audio    key.Binding
	Exit     key.Binding
	Quit     key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next")),
		Previous: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "previous")),
		Pause:    key.NewBinding(key.WithKeys("space"), key.WithHelp("space", "pause")),
		Audio:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "audio")),
		Exit:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "exit")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Previous, k.Next, k.Pause, k.Audio, k.Exit, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Previous, k.Next, k.Pause}, {k.Audio, k.Exit, k.Quit}}
}

type KeyResult int

const (
	KeyIgnored KeyResult = iota
	KeyHandled
	KeyQuit
)

// Dispatcher routes classified gestures and key presses to a Target. It is
// the Sink of an Interpreter.
type Dispatcher struct {
	target Target
	keys   KeyMap
}

func NewDispatcher(target Target, keys KeyMap) *Dispatcher {
	return &Dispatcher{target: target, keys: keys}
}

func (d *Dispatcher) Keys() KeyMap { return d.keys }

func (d *Dispatcher) OnSwipe(s Swipe) {
	switch s {
	case Left:
		d.target.SwipeGroup(navigation.Next)
	case Right:
		d.target.SwipeGroup(navigation.Previous)
	case Down:
		d.target.Exit()
	case Up:
		d.target.SwipeUp()
	}
}

func (d *Dispatcher) OnHold() { d.target.Hold() }
func (d *Dispatcher) OnRelease() { d.target.Release() }

// Key handles one key press. Space is always consumed.
func (d *Dispatcher) Key(msg tea.KeyPressMsg) KeyResult {
	switch {
	case key.Matches(msg, d.keys.Quit):
		return KeyQuit
	case key.Matches(msg, d.keys.Next):
		d.target.Navigate(navigation.Next)
	case key.Matches(msg, d.keys.Previous):
		d.target.Navigate(navigation.Previous)
	case key.Matches(msg, d.keys.Pause):
		d.target.TogglePause()
	case key.Matches(msg, d.keys.Audio):
		d.target.ToggleAudio()
	case key.Matches(msg, d.keys.Exit):
		d.target.Exit()
	default:
		return KeyIgnored
	}
	return KeyHandled
}
