package media

import (
	"errors"
	"strings"
	"sync"

	"storyreel/internal/stories"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
)

// Markdown renders a markdown body with glamour. The output is cached for the
// last wrap width.
type Markdown struct {
	Body  string
	Style string

	mu    sync.Mutex
	width int
	last  string
}

func NewMarkdown(props map[string]string) (stories.Component, error) {
	body := props["body"]
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("markdown needs a non-empty body prop")
	}
	style := props["style"]
	if style == "" {
		style = "dark"
	}
	return &Markdown{Body: body, Style: style}, nil
}

func (m *Markdown) Render(width, height int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if width < 10 {
		width = 10
	}
	if m.last != "" && m.width == width {
		return clip(m.last, height), nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.Style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(m.Body)
	if err != nil {
		return "", err
	}
	m.last = strings.Trim(out, "\n")
	m.width = width
	return clip(m.last, height), nil
}

// Text is a plain wrapped paragraph.
type Text struct {
	Body string
}

func NewText(props map[string]string) (stories.Component, error) {
	if props["body"] == "" {
		return nil, errors.New("text needs a body prop")
	}
	return Text{Body: props["body"]}, nil
}

func (t Text) Render(width, height int) (string, error) {
	if width <= 0 {
		return "", nil
	}
	return clip(ansi.Wordwrap(t.Body, width, ""), height), nil
}

func clip(s string, height int) string {
	if height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

// Registry returns the components a collection file can name.
func Registry() stories.Registry {
	return stories.Registry{
		"markdown": NewMarkdown,
		"text":     NewText,
	}
}
