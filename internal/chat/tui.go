package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// AskTimeout bounds one prompt round trip.
const AskTimeout = 5 * time.Minute

// Asker answers prompts; *Conversation implements it.
type Asker interface {
	Ask(ctx context.Context, text string) (Reply, error)
}

type role int

const (
	roleUser role = iota
	roleAgent
	roleError
)

type entry struct {
	role    role
	content string
}

type replyMsg Reply

type errorMsg struct{ err error }

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#3B82F6")).Padding(0, 1)
	descStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	userStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6")).MarginTop(1)
	agentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981")).MarginTop(1)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	inputStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#10B981")).Padding(0, 1)
	footStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Model is the bubbletea model of the chat window.
type Model struct {
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	history []entry
	loading bool
	ready   bool
	width   int
}

// NewModel returns the chat model talking to asker.
func NewModel(asker Asker) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about weather or cocktails... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))

	return Model{
		asker:    asker,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		renderer: renderer,
		width:    80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if !m.loading {
				return m.submit()
			}
		}

		if !m.loading {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 6
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-8, 3)
		m.renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(max(msg.Width-4, 20)))
		m.ready = true
		m.refresh()

	case replyMsg:
		m.loading = false
		r := entry{role: roleAgent, content: msg.Text}
		if msg.Failed {
			r.role = roleError
		}
		m.history = append(m.history, r)
		m.refresh()

	case errorMsg:
		m.loading = false
		m.history = append(m.history, entry{role: roleError, content: fmt.Sprintf("An error occurred: %v", msg.err)})
		m.refresh()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	m.input.Reset()
	m.history = append(m.history, entry{role: roleUser, content: text})
	m.loading = true
	m.refresh()

	return m, m.ask(text)
}

func (m Model) ask(text string) tea.Cmd {
	asker := m.asker

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), AskTimeout)
		defer cancel()

		reply, err := asker.Ask(ctx, text)
		if err != nil {
			return errorMsg{err: err}
		}

		return replyMsg(reply)
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m Model) renderHistory() string {
	var sb strings.Builder

	for _, e := range m.history {
		switch e.role {
		case roleUser:
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(e.content + "\n\n")
		case roleAgent:
			sb.WriteString(agentStyle.Render("Host Agent") + "\n")
			sb.WriteString(m.renderMarkdown(e.content) + "\n")
		case roleError:
			sb.WriteString(agentStyle.Render("Host Agent") + "\n")
			sb.WriteString(errorStyle.Render(e.content) + "\n\n")
		}
	}

	return sb.String()
}

// renderMarkdown falls back to the raw text when glamour fails or panics.
func (m Model) renderMarkdown(content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()

	if m.renderer == nil || content == "" {
		return content
	}

	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}

	return rendered
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := titleStyle.Render(Title) + "\n" + descStyle.Render(Description)

	body := m.viewport.View()
	if m.loading {
		body += "\n" + m.spinner.View() + " Thinking..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		inputStyle.Render(m.input.View()),
		footStyle.Render("Enter: send • Esc/Ctrl+C: quit"),
	)
}

// Run starts the chat window and blocks until the user quits.
func Run(asker Asker, opts ...tea.ProgramOption) error {
	_, err := tea.NewProgram(NewModel(asker), append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...).Run()
	return err
}
