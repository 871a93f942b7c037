package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-sonify/sonify"
	"go-sonify/theme"
	"go-sonify/widgets"
)

const (
	refreshRate = 100 * time.Millisecond
	seekStep    = 0.05
	barPrefix   = 2 // "  " before the progress bar
	minBarWidth = 20
)

// layoutBounds holds cached layout info
type layoutBounds struct {
	barRow   int
	barLeft  int
	barWidth int
}

// muter is implemented by tracks that can be silenced from the UI
type muter interface {
	Muted() bool
	SetMuted(bool)
}

// columner is implemented by tracks sonifying a named column
type columner interface {
	Column() string
}

type Model struct {
	Transport *sonify.Transport
	Theme     *theme.Theme
	Title     string

	selected int
	width    int
	status   string
	quitting bool
	bounds   *layoutBounds
}

type UpdateMsg struct{}

type TickMsg time.Time

func NewModel(t *sonify.Transport, th *theme.Theme, title string) Model {
	return Model{
		Transport: t,
		Theme:     th,
		Title:     title,
		width:     80,
		bounds:    &layoutBounds{},
	}
}

func ListenForUpdates(t *sonify.Transport) tea.Cmd {
	return func() tea.Msg {
		<-t.Updates()
		return UpdateMsg{}
	}
}

// Tick redraws the position while notes are sparse
func Tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForUpdates(m.Transport), Tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && msg.Y == m.bounds.barRow {
			if pos, ok := widgets.SeekFromColumn(msg.X, m.bounds.barLeft, m.bounds.barWidth); ok {
				m.report(m.Transport.Seek(pos))
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case UpdateMsg:
		return m, ListenForUpdates(m.Transport)

	case TickMsg:
		return m, Tick()
	}

	return m, nil
}

func (m Model) handleKey(key string) (tea.Model, tea.Cmd) {
	t := m.Transport
	m.status = ""

	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		if t.State() != sonify.Stopped {
			t.Stop()
		}
		return m, tea.Quit

	case " ", "p":
		if t.State() == sonify.Playing {
			m.report(t.Pause())
		} else {
			m.report(t.Play())
		}

	case "s":
		m.report(t.Stop())

	case "left", "h":
		m.seekBy(-seekStep)

	case "right", "l":
		m.seekBy(seekStep)

	case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.report(t.Seek(float64(key[0]-'0') / 10))

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}

	case "down", "j":
		if m.selected < len(t.Tracks())-1 {
			m.selected++
		}

	case "M":
		t.SetMuted(!t.Muted())

	case "m":
		tracks := t.Tracks()
		if m.selected < len(tracks) {
			if mt, ok := tracks[m.selected].(muter); ok {
				mt.SetMuted(!mt.Muted())
			}
		}
	}
	return m, nil
}

func (m *Model) seekBy(delta float64) {
	pos, ok := m.Transport.Position()
	if !ok {
		m.report(m.Transport.Seek(0))
		return
	}
	m.report(m.Transport.Seek(max(0, min(1, pos+delta))))
}

// report shows transport misuse in the status line
func (m *Model) report(err error) {
	switch {
	case err == nil:
		m.status = ""
	case errors.Is(err, sonify.ErrInvalidTransition), errors.Is(err, sonify.ErrInvalidPosition):
		m.status = err.Error()
	default:
		m.status = "error: " + err.Error()
	}
}

func formatTime(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func (m Model) stateLabel(s sonify.State) string {
	sym := m.Theme.Symbols
	switch s {
	case sonify.Playing:
		return lipgloss.NewStyle().Foreground(m.Theme.Active()).Render(fmt.Sprintf("%c %s", sym.Play, s))
	case sonify.Paused:
		return lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render(fmt.Sprintf("%c %s", sym.Pause, s))
	}
	return lipgloss.NewStyle().Foreground(m.Theme.Muted()).Render(fmt.Sprintf("%c %s", sym.Stop, s))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	t := m.Transport
	st := t.Stats()
	total := t.Clock().TotalDuration()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())

	header := headerStyle.Render("go-sonify") + "  " + m.stateLabel(st.State) + "  " +
		fgStyle.Render(fmt.Sprintf("%s / %s", formatTime(time.Duration(st.Position*float64(total))), formatTime(total)))
	if m.Title != "" {
		header += "  " + dimStyle.Render(m.Title)
	}
	if t.Muted() {
		header += "  " + lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render("MUTED")
	}

	barWidth := max(minBarWidth, m.width-barPrefix-8)
	bar := strings.Repeat(" ", barPrefix) +
		widgets.RenderProgress(st.Position, barWidth, widgets.BarRunes{
			Full:  m.Theme.Symbols.BarFull,
			Empty: m.Theme.Symbols.BarEmpty,
			Head:  m.Theme.Symbols.BarHead,
		}, m.Theme.Accent(), m.Theme.Surface()) +
		fgStyle.Render(fmt.Sprintf(" %3.0f%%", st.Position*100))

	stats := "  " + dimStyle.Render("buffer ") +
		widgets.RenderMeter(st.Buffered, st.Capacity, 20, m.Theme.FG(), m.Theme.Surface()) +
		dimStyle.Render(fmt.Sprintf("   played %d  late %d  skipped %d", st.Dispatched, st.Late, st.Skipped))

	var tracks strings.Builder
	all := t.Tracks()
	for i, tr := range all {
		cursor := "  "
		if i == m.selected {
			cursor = headerStyle.Render("> ")
		}
		sym := m.Theme.Symbols.TrackOn
		style := lipgloss.NewStyle().Foreground(m.Theme.TrackColor(i, len(all)))
		if mt, ok := tr.(muter); ok && mt.Muted() {
			sym = m.Theme.Symbols.TrackMuted
			style = dimStyle
		}
		name := fmt.Sprintf("track %d", tr.Channel())
		if c, ok := tr.(columner); ok {
			name = c.Column()
		}
		line := fmt.Sprintf("%c ch%-2d %-16s program %s", sym, tr.Channel()+1, name, tr.Resource())
		tracks.WriteString(cursor + style.Render(line) + "\n")
	}
	if len(all) == 0 {
		tracks.WriteString(dimStyle.Render("  no tracks") + "\n")
	}

	help := dimStyle.Render(widgets.RenderKeyHelp([]widgets.KeySection{
		{Keys: []widgets.KeyBinding{
			{Key: "space", Desc: "play/pause"},
			{Key: "s", Desc: "stop"},
			{Key: "←/→", Desc: "seek"},
			{Key: "0-9", Desc: "jump"},
			{Key: "↑/↓", Desc: "track"},
			{Key: "m", Desc: "mute"},
			{Key: "M", Desc: "mute all"},
			{Key: "q", Desc: "quit"},
		}},
	}))

	// Compute layout bounds for mouse seeking
	m.bounds.barRow = 1 + lipgloss.Height(header) + 1
	m.bounds.barLeft = barPrefix
	m.bounds.barWidth = barWidth

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(bar)
	out.WriteString("\n")
	out.WriteString(stats)
	out.WriteString("\n\n")
	out.WriteString(tracks.String())
	out.WriteString("\n")
	out.WriteString(help)

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render(m.status))
	}

	return out.String()
}
