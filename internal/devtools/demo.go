package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"storyreel/internal/stories"

	"github.com/lucasb-eyer/go-colorful"
)

type Scenario struct {
	Name        string
	Title       string
	Description string
	Options     stories.Options
	groups      func(assets string) []stories.GroupRecord
}

// Manager builds deterministic demo collections. Image assets are generated
// into dir on first use so demos never touch the network.
type Manager struct {
	dir string
}

func NewManager(dir string) *Manager { return &Manager{dir: dir} }

const DefaultScenario = "mixed"

var scenarios = map[string]Scenario{
	"mixed": {
		Name:        "mixed",
		Title:       "storyreel demo",
		Description: "images, markdown and text across three groups",
		groups:      mixedGroups,
	},
	"markdown": {
		Name:        "markdown",
		Title:       "release notes",
		Description: "one group of markdown stories",
		groups:      markdownGroups,
	},
	"errors": {
		Name:        "errors",
		Title:       "broken media",
		Description: "missing image and video sources between two good stories",
		groups:      errorGroups,
	},
	"single": {
		Name:        "single",
		Title:       "one story",
		Description: "a single image story",
		Options:     stories.Options{Background: "#102030"},
		groups:      func(assets string) []stories.GroupRecord {
			return []stories.GroupRecord{{ID: "only", Name: "Only", Items: []stories.ItemRecord{
				imageRecord("only-1", assets, "dusk.png"),
			}}}
		},
	},
}

func (m *Manager) Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a requested demo name to a scenario, falling back to the
// default one for unknown names.
func (m *Manager) Resolve(name string) Scenario {
	if s, ok := scenarios[strings.TrimSpace(strings.ToLower(name))]; ok {
		return s
	}
	return scenarios[DefaultScenario]
}

func (m *Manager) Build(name string, reg stories.Registry) (stories.Document, error) {
	s := m.Resolve(name)
	assets := filepath.Join(m.dir, "assets")
	if err := WriteAssets(assets); err != nil {
		return stories.Document{}, err
	}
	c, err := stories.FromRecords(s.groups(assets), reg)
	if err != nil {
		return stories.Document{}, fmt.Errorf("demo %s: %w", s.Name, err)
	}
	return stories.Document{Title: s.Title, Options: s.Options, Collection: c}, nil
}

// SetState records the current demo state for external tooling.
func (m *Manager) SetState(ctx context.Context, state string, rendered bool) error {
	_ = ctx
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return err
	}
	payload := map[string]any{
		"state":      state,
		"rendered":   rendered,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(payload)
	return os.WriteFile(filepath.Join(m.dir, "dev_state.json"), b, 0o644)
}

type gradient struct {
	name     string
	top, bot string
}

var gradients = []gradient{
	{"dawn.png", "#f9d976", "#f39f86"},
	{"noon.png", "#74ebd5", "#acb6e5"},
	{"dusk.png", "#41295a", "#2f0743"},
	{"moss.png", "#a8e063", "#56ab2f"},
	{"ember.png", "#f12711", "#f5af19"},
}

// WriteAssets renders the demo gradients as png files into dir. Existing files
// are kept.
func WriteAssets(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create demo assets: %w", err)
	}
	for _, g := range gradients {
		path := filepath.Join(dir, g.name)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeGradient(path, g.top, g.bot, 96, 160); err != nil {
			return err
		}
	}
	return nil
}

func writeGradient(path, top, bottom string, w, h int) error {
	a, err := colorful.Hex(top)
	if err != nil {
		return err
	}
	b, err := colorful.Hex(bottom)
	if err != nil {
		return err
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		r, g, bl := a.BlendLab(b, float64(y)/float64(h-1)).Clamped().RGB255()
		c := color.RGBA{R: r, G: g, B: bl, A: 0xff}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write demo asset: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode demo asset: %w", err)
	}
	return f.Close()
}

func imageRecord(id, assets, name string) stories.ItemRecord {
	return stories.ItemRecord{ID: id, Kind: stories.KindImage, Source: filepath.Join(assets, name)}
}

func markdownRecord(id, body string) stories.ItemRecord {
	return stories.ItemRecord{ID: id, Kind: stories.KindCustom, Component: "markdown", Props: map[string]string{"body": body}}
}

func mixedGroups(assets string) []stories.GroupRecord {
	return []stories.GroupRecord{
		{ID: "sky", Name: "Sky", Items: []stories.ItemRecord{
			imageRecord("sky-1", assets, "dawn.png"),
			imageRecord("sky-2", assets, "noon.png"),
			imageRecord("sky-3", assets, "dusk.png"),
		}},
		{ID: "notes", Name: "Notes", Items: []stories.ItemRecord{
			markdownRecord("notes-1", "# Hold to pause\n\nClick and hold anywhere to freeze the story. Let go to carry on."),
			{ID: "notes-2", Kind: stories.KindCustom, Component: "text", Props: map[string]string{
				"body": "Use the arrow keys to step through stories. Drag sideways to jump between groups, or drag up to swipe up.",
			}},
		}},
		{ID: "garden", Name: "Garden", Items: []stories.ItemRecord{
			imageRecord("garden-1", assets, "moss.png"),
			imageRecord("garden-2", assets, "ember.png"),
		}},
	}
}

func markdownGroups(string) []stories.GroupRecord {
	return []stories.GroupRecord{{ID: "release", Name: "Release", Items: []stories.ItemRecord{
		markdownRecord("release-1", "# v0.3\n\n* swipe between groups\n* background tint from images"),
		markdownRecord("release-2", "## Keys\n\n| key | action |\n|---|---|\n| → | next |\n| ← | previous |\n| space | pause |"),
		markdownRecord("release-3", "## Thanks\n\nThat's all for this release."),
	}}}
}

func errorGroups(assets string) []stories.GroupRecord {
	return []stories.GroupRecord{{ID: "broken", Name: "Broken", Items: []stories.ItemRecord{
		imageRecord("broken-1", assets, "dawn.png"),
		imageRecord("broken-2", assets, "missing.png"),
		{ID: "broken-3", Kind: stories.KindVideo, Source: filepath.Join(assets, "missing.mp4")},
		imageRecord("broken-4", assets, "noon.png"),
	}}}
}
