package stories

import (
	"regexp"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultWidth      = 338
	DefaultHeight     = 600
	DefaultBackground = "#1b1b1b"
)

type Options struct {
	Width              int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height             int    `yaml:"height,omitempty" json:"height,omitempty"`
	StartGroup         int    `yaml:"start_group,omitempty" json:"start_group,omitempty"`
	StartItem          int    `yaml:"start_item,omitempty" json:"start_item,omitempty"`
	Background         string `yaml:"background,omitempty" json:"background,omitempty"`
	GradientBackground *bool  `yaml:"gradient_background,omitempty" json:"gradient_background,omitempty"`
}

func DefaultOptions() Options {
	gradient := true
	return Options{
		Width:              DefaultWidth,
		Height:             DefaultHeight,
		Background:         DefaultBackground,
		GradientBackground: &gradient,
	}
}

// Merge overlays the set fields of o on top of base.
func (base Options) Merge(o Options) Options {
	out := base
	if o.Width > 0 {
		out.Width = o.Width
	}
	if o.Height > 0 {
		out.Height = o.Height
	}
	if o.StartGroup != 0 {
		out.StartGroup = o.StartGroup
	}
	if o.StartItem != 0 {
		out.StartItem = o.StartItem
	}
	if o.Background != "" {
		out.Background = o.Background
	}
	if o.GradientBackground != nil {
		v := *o.GradientBackground
		out.GradientBackground = &v
	}
	return out
}

func (o Options) Gradient() bool {
	return o.GradientBackground == nil || *o.GradientBackground
}

// CheckStart reports a start_out_of_range error when the start indices do not
// address an item of c.
func (o Options) CheckStart(c *Collection) error {
	if o.StartGroup < 0 || o.StartGroup >= c.Len() {
		return &ValidationError{Rule: RuleStartOutOfRange, Group: o.StartGroup, Item: -1, Detail: "start group does not exist"}
	}
	if o.StartItem < 0 || o.StartItem >= c.Size(o.StartGroup) {
		return &ValidationError{Rule: RuleStartOutOfRange, Group: o.StartGroup, Item: o.StartItem, Detail: "start item does not exist"}
	}
	return nil
}

var rgbPattern = regexp.MustCompile(`^rgb\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*\)$`)

// ParseColor accepts #rgb, #rrggbb and rgb(r, g, b). Anything else is black.
func ParseColor(s string) colorful.Color {
	if c, err := colorful.Hex(expandShortHex(s)); err == nil {
		return c
	}
	m := rgbPattern.FindStringSubmatch(s)
	if m == nil {
		return colorful.Color{}
	}
	var ch [3]float64
	for i := range ch {
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n > 255 {
			return colorful.Color{}
		}
		ch[i] = float64(n) / 255
	}
	return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}
}

func expandShortHex(s string) string {
	if len(s) != 4 || s[0] != '#' {
		return s
	}
	return string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
}
