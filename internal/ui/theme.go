package ui

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

type Theme struct {
	Header     lipgloss.Style
	Status     lipgloss.Style
	GroupName  lipgloss.Style
	Counter    lipgloss.Style
	Body       lipgloss.Style
	Frame      lipgloss.Style
	Accent     lipgloss.Style
	Fail       lipgloss.Style
	Paused     lipgloss.Style
	Muted      lipgloss.Style
	Ended      lipgloss.Style
	BarFull    color.Color
	BarEmpty   color.Color
	BarCurrent color.Color
}

func DefaultTheme() Theme {
	return ThemeForVariant("dusk")
}

func ThemeForVariant(variant string) Theme {
	switch variant {
	case "daylight":
		return daylightTheme()
	case "retro":
		return retroTheme()
	default:
		return duskTheme()
	}
}

func duskTheme() Theme {
	snow := lipgloss.Color("#F5F7FA")
	haze := lipgloss.Color("#A7B0C0")
	coral := lipgloss.Color("#FF7A8A")
	gold := lipgloss.Color("#FFD166")
	night := lipgloss.Color("#11141C")

	return Theme{
		Header: lipgloss.NewStyle().
			Foreground(snow).
			Padding(0, 1),
		Status: lipgloss.NewStyle().
			Foreground(haze).
			Padding(0, 1),
		GroupName: lipgloss.NewStyle().
			Foreground(snow).
			Bold(true),
		Counter: lipgloss.NewStyle().
			Foreground(haze),
		Body: lipgloss.NewStyle().
			Foreground(snow),
		Frame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3A4256")),
		Accent: lipgloss.NewStyle().
			Foreground(gold).
			Bold(true),
		Fail: lipgloss.NewStyle().
			Foreground(coral).
			Bold(true),
		Paused: lipgloss.NewStyle().
			Background(gold).
			Foreground(night).
			Padding(0, 1),
		Muted: lipgloss.NewStyle().
			Foreground(haze),
		Ended: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(gold).
			Foreground(snow).
			Padding(1, 2),
		BarFull:    snow,
		BarEmpty:   lipgloss.Color("#4A5063"),
		BarCurrent: snow,
	}
}

func daylightTheme() Theme {
	ink := lipgloss.Color("#1F2430")
	slate := lipgloss.Color("#5C6475")
	rose := lipgloss.Color("#C2415B")
	sky := lipgloss.Color("#2F6FD0")
	paper := lipgloss.Color("#FBFAF7")

	return Theme{
		Header:    lipgloss.NewStyle().Foreground(ink).Padding(0, 1),
		Status:    lipgloss.NewStyle().Foreground(slate).Padding(0, 1),
		GroupName: lipgloss.NewStyle().Foreground(ink).Bold(true),
		Counter:   lipgloss.NewStyle().Foreground(slate),
		Body:      lipgloss.NewStyle().Foreground(ink),
		Frame: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#C9CED8")),
		Accent: lipgloss.NewStyle().Foreground(sky).Bold(true),
		Fail:   lipgloss.NewStyle().Foreground(rose).Bold(true),
		Paused: lipgloss.NewStyle().Background(sky).Foreground(paper).Padding(0, 1),
		Muted:  lipgloss.NewStyle().Foreground(slate),
		Ended: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(sky).
			Foreground(ink).
			Padding(1, 2),
		BarFull:    ink,
		BarEmpty:   lipgloss.Color("#D5D9E0"),
		BarCurrent: sky,
	}
}

func retroTheme() Theme {
	lime := lipgloss.Color("#9CF5A2")
	amber := lipgloss.Color("#E5D47A")
	red := lipgloss.Color("#FF6B6B")
	deep := lipgloss.Color("#07150A")
	moss := lipgloss.Color("#73A17A")

	return Theme{
		Header:    lipgloss.NewStyle().Foreground(lime).Padding(0, 1),
		Status:    lipgloss.NewStyle().Foreground(moss).Padding(0, 1),
		GroupName: lipgloss.NewStyle().Foreground(amber).Bold(true),
		Counter:   lipgloss.NewStyle().Foreground(moss),
		Body:      lipgloss.NewStyle().Foreground(lime),
		Frame: lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("#1F5C2F")),
		Accent: lipgloss.NewStyle().Foreground(lime).Bold(true),
		Fail:   lipgloss.NewStyle().Foreground(red).Bold(true),
		Paused: lipgloss.NewStyle().Background(amber).Foreground(deep).Padding(0, 1),
		Muted:  lipgloss.NewStyle().Foreground(moss),
		Ended: lipgloss.NewStyle().
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(amber).
			Foreground(lime).
			Padding(1, 2),
		BarFull:    lime,
		BarEmpty:   lipgloss.Color("#1F5C2F"),
		BarCurrent: amber,
	}
}

func normalizeStyleVariant(v string) string {
	switch v {
	case "dusk", "daylight", "retro":
		return v
	default:
		return "dusk"
	}
}
