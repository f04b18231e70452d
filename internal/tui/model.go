// Package tui renders the controller in a Bubble Tea program. The model
// keeps only presentation state; everything shown comes from status.Project.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fmueller/voxnote/internal/prefs"
	"github.com/fmueller/voxnote/internal/session"
	"github.com/fmueller/voxnote/internal/status"
	"github.com/fmueller/voxnote/internal/whisper"
)

const (
	tickInterval = 200 * time.Millisecond
	barWidth     = 24
	meterWidth   = 24
	maxWidth     = 80
)

type Controller interface {
	Dispatch(ev session.Event)
	Snapshot() session.Snapshot
	Updates() <-chan session.Snapshot
}

type ThemeStore interface {
	Theme() prefs.Theme
	SetTheme(theme prefs.Theme) error
}

type snapshotMsg session.Snapshot
type tickMsg time.Time

type Model struct {
	ctrl   Controller
	themes ThemeStore
	now    func() time.Time

	theme    prefs.Theme
	styles   styles
	snap     session.Snapshot
	level    float64
	width    int
	themeErr string
}

func New(ctrl Controller, themes ThemeStore) Model {
	theme := prefs.ThemeLight
	if themes != nil {
		theme = themes.Theme()
	}
	return Model{
		ctrl:   ctrl,
		themes: themes,
		now:    time.Now,
		theme:  theme,
		styles: stylesFor(theme),
		snap:   ctrl.Snapshot(),
	}
}

// Run blocks until the user quits or ctx ends.
func Run(ctx context.Context, ctrl Controller, themes ThemeStore) error {
	program := tea.NewProgram(New(ctrl, themes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.ctrl.Updates()), tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case snapshotMsg:
		m.snap = session.Snapshot(msg)
		if m.snap.State == session.StateRecording {
			m.level = m.level*0.6 + m.snap.Level*0.4
		} else {
			m.level = 0
		}
		return m, waitForSnapshot(m.ctrl.Updates())

	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	display := status.Project(m.snap, m.now())

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case " ", "r":
		if display.RecordEnabled || !m.snap.HasModel() {
			m.ctrl.Dispatch(session.ToggleRecording{})
		}
	case "m":
		if display.ModelSelectEnabled {
			m.ctrl.Dispatch(session.LoadModel{Size: whisper.NextSize(m.snap.Model)})
		}
	case "l":
		m.ctrl.Dispatch(session.SetLanguage{Language: session.NextLanguage(m.snap.Language)})
	case "c":
		m.ctrl.Dispatch(session.CopyResult{})
	case "t":
		m.toggleTheme()
	}
	return m, nil
}

func (m *Model) toggleTheme() {
	next := m.theme.Toggle()
	m.theme = next
	m.styles = stylesFor(next)
	m.themeErr = ""
	if m.themes == nil {
		return
	}
	if err := m.themes.SetTheme(next); err != nil {
		m.themeErr = "Theme not saved: " + err.Error()
	}
}

func (m Model) View() string {
	d := status.Project(m.snap, m.now())
	s := m.styles
	width := m.width
	if width <= 0 || width > maxWidth {
		width = maxWidth
	}

	var lines []string
	lines = append(lines, s.title.Render("voxnote"), "")
	lines = append(lines, s.status[d.Kind].Render(statusIcon(d.Kind)+" "+d.StatusText))

	if d.ProgressVisible {
		lines = append(lines, m.renderBar(d.ProgressPercent, barWidth)+s.muted.Render(fmt.Sprintf(" %3d%%", d.ProgressPercent)))
	}
	if m.snap.State == session.StateRecording {
		lines = append(lines, s.muted.Render("level ")+m.renderMeter(m.level))
	}

	lines = append(lines, "", m.renderSelectors(d))

	lines = append(lines, "")
	if strings.TrimSpace(d.Result) != "" {
		lines = append(lines, s.result.Width(width-2).Render(d.Result))
	} else {
		lines = append(lines, s.muted.Render("  No transcription yet"))
	}

	if d.Notice != "" {
		lines = append(lines, "", s.notice.Render(d.Notice))
	}
	if m.themeErr != "" {
		lines = append(lines, s.notice.Render(m.themeErr))
	}

	lines = append(lines, "", m.renderHelp(d))
	return strings.Join(lines, "\n") + "\n"
}

func (m Model) renderSelectors(d status.Display) string {
	s := m.styles
	model := s.text.Render(d.Model)
	if !d.ModelSelectEnabled {
		model = s.disabled.Render(d.Model + " (locked)")
	}
	return strings.Join([]string{
		s.muted.Render("model ") + model,
		s.muted.Render("language ") + s.text.Render(d.Language),
		s.muted.Render("theme ") + s.text.Render(string(m.theme)),
	}, s.muted.Render("  |  "))
}

func (m Model) renderHelp(d status.Display) string {
	s := m.styles
	item := func(key, label string, enabled bool) string {
		if !enabled {
			return s.disabled.Render(key + " " + label)
		}
		return s.key.Render(key) + s.muted.Render(" "+label)
	}
	return strings.Join([]string{
		item("space", strings.ToLower(d.RecordLabel), d.RecordEnabled),
		item("m", "model", d.ModelSelectEnabled),
		item("l", "language", true),
		item("c", "copy", d.CopyEnabled),
		item("t", "theme", true),
		item("q", "quit", true),
	}, s.muted.Render(" • "))
}

func (m Model) renderBar(percent, width int) string {
	percent = min(max(percent, 0), 100)
	filled := percent * width / 100
	return m.styles.barFull.Render(strings.Repeat("█", filled)) +
		m.styles.barEmpty.Render(strings.Repeat("░", width-filled))
}

// renderMeter scales speech-level RMS (roughly 0 to 0.25) onto the meter.
func (m Model) renderMeter(level float64) string {
	filled := int(level * 4 * meterWidth)
	filled = min(max(filled, 0), meterWidth)
	style := m.styles.barFull
	if filled > meterWidth*3/4 {
		style = m.styles.status[status.KindRecording]
	}
	return style.Render(strings.Repeat("▮", filled)) +
		m.styles.barEmpty.Render(strings.Repeat("▯", meterWidth-filled))
}

func statusIcon(kind status.Kind) string {
	switch kind {
	case status.KindRecording:
		return "●"
	case status.KindBusy:
		return "◌"
	case status.KindSuccess:
		return "✓"
	case status.KindError:
		return "✗"
	default:
		return "○"
	}
}

var _ tea.Model = Model{}
