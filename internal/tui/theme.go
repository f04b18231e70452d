package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fmueller/voxnote/internal/prefs"
	"github.com/fmueller/voxnote/internal/status"
)

type palette struct {
	text      string
	muted     string
	accent    string
	recording string
	success   string
	warning   string
	err       string
	barEmpty  string
}

var (
	lightPalette = palette{text: "235", muted: "244", accent: "25", recording: "160", success: "28", warning: "130", err: "124", barEmpty: "252"}
	darkPalette  = palette{text: "252", muted: "242", accent: "75", recording: "196", success: "42", warning: "214", err: "203", barEmpty: "238"}
)

type styles struct {
	title    lipgloss.Style
	text     lipgloss.Style
	muted    lipgloss.Style
	key      lipgloss.Style
	disabled lipgloss.Style
	notice   lipgloss.Style
	result   lipgloss.Style
	barFull  lipgloss.Style
	barEmpty lipgloss.Style
	status   map[status.Kind]lipgloss.Style
}

func stylesFor(theme prefs.Theme) styles {
	p := lightPalette
	if theme == prefs.ThemeDark {
		p = darkPalette
	}

	color := func(c string) lipgloss.Style {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
	}

	return styles{
		title:    color(p.accent).Bold(true),
		text:     color(p.text),
		muted:    color(p.muted),
		key:      color(p.text).Bold(true),
		disabled: color(p.muted).Faint(true),
		notice:   color(p.warning),
		result:   color(p.text).PaddingLeft(2),
		barFull:  color(p.accent),
		barEmpty: color(p.barEmpty),
		status: map[status.Kind]lipgloss.Style{
			status.KindInfo:      color(p.text),
			status.KindBusy:      color(p.accent),
			status.KindRecording: color(p.recording).Bold(true),
			status.KindSuccess:   color(p.success),
			status.KindError:     color(p.err).Bold(true),
		},
	}
}
