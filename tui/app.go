package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/creastat/feedback-assistant/conversation"
	"github.com/creastat/feedback-assistant/transport"
	"github.com/creastat/feedback-assistant/view"
)

const (
	passageLimit = 160
	// header, spinner, suggestions, bordered input, help
	chromeHeight = 8
)

// Controller is the part of *conversation.Controller the chat screen drives.
type Controller interface {
	Snapshot() conversation.Snapshot
	SetInput(string)
	SubmitInput() bool
	SetSourceFilter(transport.SourceFilter)
	Changes() <-chan struct{}
	Close() error
}

type changedMsg struct{}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Model is the bubbletea chat screen.
type Model struct {
	ctrl     Controller
	input    textinput.Model
	spinner  spinner.Model
	viewport viewport.Model
	renderer *view.Renderer
	style    string

	view    view.Model
	prevLen int
	width   int
	height  int
}

// NewModel creates the chat screen for ctrl. style selects the glamour style;
// empty picks one from the terminal.
func NewModel(ctrl Controller, style string) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about customer feedback..."
	ti.CharLimit = 2000
	ti.Prompt = "> "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	m := Model{
		ctrl:     ctrl,
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(80, 20),
		renderer: view.NewRenderer(76, style),
		style:    style,
		width:    80,
		height:   20 + chromeHeight,
	}
	m.input.SetValue(ctrl.Snapshot().Input)
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForChange(m.ctrl.Changes()))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(3, msg.Height-chromeHeight)
		m.input.Width = max(10, msg.Width-8)
		m.renderer = view.NewRenderer(max(20, msg.Width-6), m.style)
		m.prevLen = 0
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.ctrl.Changes())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		_ = m.ctrl.Close()
		return m, tea.Quit

	case "enter":
		m.ctrl.SetInput(m.input.Value())
		if m.ctrl.SubmitInput() {
			m.input.Reset()
		}
		m.refresh()
		return m, nil

	case "ctrl+f":
		m.ctrl.SetSourceFilter(view.FilterFor(!m.view.DocsOnly))
		m.refresh()
		return m, nil

	case "f1", "alt+1":
		return m.applySuggestion(0), nil
	case "f2", "alt+2":
		return m.applySuggestion(1), nil
	case "f3", "alt+3":
		return m.applySuggestion(2), nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if !m.view.InputEnabled {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) applySuggestion(i int) Model {
	suggestions := view.Suggestions()
	if i >= len(suggestions) {
		return m
	}
	view.ApplySuggestion(m.ctrl, suggestions[i])
	m.input.SetValue(suggestions[i].Prompt)
	m.input.CursorEnd()
	m.refresh()
	return m
}

func (m *Model) refresh() {
	snap := m.ctrl.Snapshot()
	m.view = view.Project(snap, m.prevLen)
	m.prevLen = len(snap.Messages)

	m.viewport.SetContent(m.renderTranscript())
	if m.view.ScrollToLatest {
		m.viewport.GotoBottom()
	}
	if m.view.InputEnabled {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for i, e := range m.view.Entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderEntry(e))
	}
	return b.String()
}

func (m Model) renderEntry(e view.Entry) string {
	if e.Align == view.AlignRight {
		label := userLabelStyle.Render(e.Label)
		bubble := userBubbleStyle.MaxWidth(max(20, m.width*3/4)).Render(m.renderer.Render(e))
		block := lipgloss.JoinVertical(lipgloss.Right, label, bubble)
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block)
	}

	parts := []string{assistantLabelStyle.Render(e.Label), m.renderer.Render(e)}
	if len(e.Passages) > 0 {
		parts = append(parts, passageHeaderStyle.Render(fmt.Sprintf("Sources (%d)", len(e.Passages))))
		for _, p := range e.Passages {
			parts = append(parts, passageStyle.Render("• "+view.TruncatePassage(p, passageLimit)))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) View() string {
	var b strings.Builder

	filter := filterOffStyle.Render("[ ] uploaded documents only")
	if m.view.DocsOnly {
		filter = filterOnStyle.Render("[x] uploaded documents only")
	}
	b.WriteString(titleStyle.Render("Feedback Assistant") + " " + filter + "\n")
	b.WriteString(m.viewport.View() + "\n")

	if m.view.Loading {
		b.WriteString(m.spinner.View() + " Thinking...\n")
	} else {
		b.WriteString("\n")
	}

	var hints []string
	for i, s := range m.view.Suggestions {
		hints = append(hints, suggestionKeyStyle.Render(fmt.Sprintf("F%d", i+1))+" "+suggestionStyle.Render(s.Label))
	}
	b.WriteString(strings.Join(hints, "   ") + "\n")

	b.WriteString(inputBorderStyle.Width(max(20, m.width-4)).Render(m.input.View()) + "\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("enter send · ctrl+f toggle documents · pgup/pgdown scroll · esc quit · ~%d tokens", m.view.Tokens)))
	return b.String()
}

// Loading reports whether a query is in flight as of the last refresh.
func (m Model) Loading() bool {
	return m.view.Loading
}
