// Package tui is the interactive chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/kotae/internal/models"
)

// Backend is the chat-facing subset of kotae, served locally or over HTTP.
type Backend interface {
	Ask(ctx context.Context, question string) (models.Answer, error)
	Load(ctx context.Context, path string) (*models.IngestResult, error)
}

type turn struct {
	question string
	answer   string
	failed   bool
	system   bool
}

type answerMsg struct {
	question string
	answer   models.Answer
	err      error
}

type loadedMsg struct {
	path   string
	result *models.IngestResult
	err    error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	backend  Backend
	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	summary  string
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model. summary is shown under the title.
func New(ctx context.Context, backend Backend, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /load <file>, or /quit"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		backend:  backend,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready.",
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles input, window, and backend events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header, summary, status, input box
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.pending = false
		if msg.err != nil {
			m.turns = append(m.turns, turn{question: msg.question, answer: msg.err.Error(), failed: true})
			m.status = "Request failed."
		} else {
			m.turns = append(m.turns, turn{question: msg.question, answer: msg.answer.Text, failed: !msg.answer.Ready()})
			m.status = fmt.Sprintf("Answered from %d chunk(s).", len(msg.answer.Sources))
		}
		m.refresh()
		return m, nil

	case loadedMsg:
		m.pending = false
		if msg.err != nil {
			m.turns = append(m.turns, turn{system: true, failed: true, answer: "Load failed: " + msg.err.Error()})
			m.status = "Load failed."
		} else {
			m.turns = append(m.turns, turn{system: true, answer: fmt.Sprintf("Loaded %s (%d chunks).", msg.path, msg.result.Chunks)})
			m.status = "Document loaded."
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.pending {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.Reset()
			return m.submit(line)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	switch {
	case line == "/quit" || line == "/exit":
		return m, tea.Quit
	case strings.HasPrefix(line, "/load"):
		path := strings.TrimSpace(strings.TrimPrefix(line, "/load"))
		if path == "" {
			m.status = "Usage: /load <file>"
			return m, nil
		}
		m.pending = true
		m.status = "Loading " + path + "..."
		return m, m.loadCmd(path)
	default:
		m.pending = true
		m.status = "Thinking..."
		return m, m.askCmd(line)
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		ans, err := backend.Ask(ctx, question)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

func (m Model) loadCmd(path string) tea.Cmd {
	ctx, backend := m.ctx, m.backend
	return func() tea.Msg {
		res, err := backend.Load(ctx, path)
		return loadedMsg{path: path, result: res, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("kotae")
	summary := summaryStyle.Render(m.summary)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return summaryStyle.Render("No questions yet.")
	}
	width := m.viewport.Width - 4
	if width < 10 {
		width = 10
	}
	wrap := lipgloss.NewStyle().Width(width)
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n")
		}
		if !t.system {
			b.WriteString(questionStyle.Render("Q: "))
			b.WriteString(wrap.Render(t.question))
			b.WriteString("\n")
		}
		style := answerStyle
		if t.failed {
			style = errorStyle
		}
		b.WriteString(style.Width(width).Render(t.answer))
		b.WriteString("\n")
	}
	return b.String()
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	summaryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	answerStyle     = lipgloss.NewStyle()
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Run starts the chat program and blocks until the user quits.
func Run(ctx context.Context, backend Backend, summary string) error {
	p := tea.NewProgram(New(ctx, backend, summary), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
