// Package tui is the terminal client: ask questions against ingested PDFs.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kailas-cloud/pdfrag/internal/domain"
)

// DefaultQueryTimeout bounds one question round trip.
const DefaultQueryTimeout = 2 * time.Minute

// Answerer is the retrieval pipeline as seen by the UI.
type Answerer interface {
	Search(ctx context.Context, query string, k int) (domain.Answer, error)
}

// answerMsg carries a finished query back into Update.
type answerMsg struct {
	query  string
	answer domain.Answer
	err    error
}

// Model is the Bubble Tea model for the question loop.
type Model struct {
	answers  Answerer
	k        int
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	summary  string
	status   string
	answer   domain.Answer
	asked    string
	cursor   int // -1 shows the answer, otherwise a chunk index
	pending  bool
	ready    bool
}

// New creates a model. summary is shown under the title, k is passed to every query.
func New(answers Answerer, summary string, k int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		answers:  answers,
		k:        k,
		timeout:  DefaultQueryTimeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		summary:  summary,
		status:   "Ready. Up/Down cycles through the chunks behind an answer.",
		cursor:   -1,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window resizes and finished queries.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // title+summary, status, query box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil

	case answerMsg:
		m.pending = false
		m.cursor = -1
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = domain.Answer{}
		} else {
			m.status = fmt.Sprintf("Answered %q from %d chunks", msg.query, len(msg.answer.ChunksUsed))
			m.answer = msg.answer
			m.asked = msg.query
		}
		m.viewport.SetContent(m.renderResult())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.pending {
				return m, nil
			}
			m.pending = true
			m.status = "Searching..."
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, m.ask(q))
		case tea.KeyDown:
			if n := len(m.answer.ChunksUsed); n > 0 {
				m.cursor = (m.cursor+2)%(n+1) - 1
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		case tea.KeyUp:
			if n := len(m.answer.ChunksUsed); n > 0 {
				m.cursor = (m.cursor+n+1)%(n+1) - 1
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the query off the UI goroutine.
func (m Model) ask(query string) tea.Cmd {
	answers, k, timeout := m.answers, m.k, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		answer, err := answers.Search(ctx, query, k)
		return answerMsg{query: query, answer: answer, err: err}
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("PDF RAG")
	summary := summaryStyle.Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResult() string {
	if m.asked == "" {
		return "No answers yet."
	}
	if m.cursor < 0 {
		return labelStyle.Render("Q: "+m.asked) + "\n\n" + m.answer.Answer
	}
	title := fmt.Sprintf("Chunk %d/%d", m.cursor+1, len(m.answer.ChunksUsed))
	return labelStyle.Render(title) + "\n\n" + m.answer.ChunksUsed[m.cursor]
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
