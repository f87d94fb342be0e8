// Package tui renders a live view of the hub hierarchy: the spawn forest and
// the collaboration graph, fed by the server's event stream.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"collab-hub/internal/hierarchy"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	edgeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
)

type Options struct {
	// StreamURL is the hub's /stream endpoint.
	StreamURL string
}

type envelopeMsg struct{ env hierarchy.Envelope }

type streamDoneMsg struct{ err error }

type model struct {
	stream *stream

	width  int
	height int

	viewport viewport.Model
	spinner  spinner.Model
	keys     keyMap
	help     help.Model

	showHelp  bool
	showEdges bool

	snapshot    hierarchy.Snapshot
	seq         uint64
	received    bool
	lastUpdated time.Time
	errMsg      string
}

func Run(opts Options) error {
	st := newStream(opts.StreamURL)
	defer st.close()

	spin := spinner.New()
	spin.Spinner = spinner.Line
	spin.Style = dimStyle

	m := model{
		stream:    st,
		viewport:  viewport.New(0, 0),
		spinner:   spin,
		keys:      defaultKeyMap,
		help:      help.New(),
		showEdges: true,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.stream.connect(), m.stream.next(), m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = m.bodyHeight()
		m.refreshContent()
		return m, nil
	case envelopeMsg:
		m.snapshot = msg.env.Snapshot
		m.seq = msg.env.Seq
		m.received = true
		m.lastUpdated = time.Now()
		m.errMsg = ""
		m.refreshContent()
		return m, m.stream.next()
	case streamDoneMsg:
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if !m.received {
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.viewport.Height = m.bodyHeight()
			return m, nil
		case key.Matches(msg, m.keys.Edges):
			m.showEdges = !m.showEdges
			m.refreshContent()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	header := headerStyle.Render("Collab Hub - hierarchy watch")
	status := m.statusLine()
	body := m.viewport.View()
	if !m.received && m.errMsg == "" {
		body = dimStyle.Render(m.spinner.View() + " waiting for first snapshot...")
	}
	errLine := ""
	if m.errMsg != "" {
		errLine = errStyle.Render("stream: " + m.errMsg)
	}
	footer := footerStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp()))
	if m.showHelp {
		footer = footerStyle.Render(m.help.FullHelpView(m.keys.FullHelp()))
	}
	parts := []string{header, status}
	if errLine != "" {
		parts = append(parts, errLine)
	}
	parts = append(parts, "", body, "", footer)
	return strings.Join(parts, "\n")
}

func (m model) statusLine() string {
	if !m.received {
		return dimStyle.Render("connecting")
	}
	line := fmt.Sprintf("seq %d | %d root(s) | %d edge(s) | updated %s",
		m.seq, len(m.snapshot.Roots), len(m.snapshot.CollaborationEdges),
		m.lastUpdated.Format("15:04:05"))
	return dimStyle.Render(line)
}

func (m *model) refreshContent() {
	m.viewport.SetContent(renderSnapshot(m.snapshot, m.showEdges))
}

// bodyHeight leaves room for the header, status, blank separators and footer.
func (m model) bodyHeight() int {
	h := m.height - 6
	if m.showHelp {
		h -= 2
	}
	if h < 3 {
		h = 3
	}
	return h
}
