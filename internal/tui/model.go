package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"docchat/internal/chat"
	"docchat/internal/domain"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	Ask(ctx context.Context, question string) (*chat.Answer, error)
}

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

type chatMessage struct {
	role    string
	text    string // markdown for assistant messages
	sources string
}

type answerStartedMsg struct{ answer *chat.Answer }

type answerChunkMsg struct {
	text string
	ok   bool // false once the stream is drained
}

type askFailedMsg struct{ err error }

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service     ChatPort
	input       textinput.Model
	viewport    viewport.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	history     []chatMessage
	suggestions []string
	suggestIdx  int

	answer      *chat.Answer
	cancel      context.CancelFunc
	pending     string
	sourcesLine string

	waiting   bool // retrieval in flight
	streaming bool // answer chunks arriving
	ready     bool
	status    string
}

// New creates a new TUI model instance.
func New(service ChatPort, suggestions []string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents..."
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	vp := viewport.New(0, 0)
	return Model{
		service:     service,
		input:       ti,
		viewport:    vp,
		spinner:     sp,
		suggestions: suggestions,
		status:      "Ask a question, or press Tab for a suggestion.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and stream events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around transcript and input boxes, two header
		// lines, the status line and one spacer
		tw, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-tw)
		m.viewport.Height = max(3, vh-th)
		m.input.Width = max(20, msg.Width-8)
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(20, m.viewport.Width-2)),
		)
		m.viewport.SetContent(m.transcript())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			m.stopAnswer()
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.waiting || m.streaming {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.history = append(m.history, chatMessage{role: roleUser, text: q})
			m.input.SetValue("")
			m.waiting = true
			m.status = ""
			m.viewport.SetContent(m.transcript())
			m.viewport.GotoBottom()
			ctx, cancel := context.WithCancel(context.Background())
			m.cancel = cancel
			return m, tea.Batch(m.spinner.Tick, askCmd(ctx, m.service, q))
		case "tab":
			if len(m.suggestions) > 0 && !m.waiting && !m.streaming && m.canCycleSuggestion() {
				m.input.SetValue(m.suggestions[m.suggestIdx%len(m.suggestions)])
				m.input.CursorEnd()
				m.suggestIdx++
				return m, nil
			}
		case "esc":
			if m.waiting || m.streaming {
				m.stopAnswer()
				m.status = "Cancelled."
				if m.waiting {
					m.waiting = false
				}
				return m, nil
			}
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerStartedMsg:
		if m.cancel == nil {
			// already cancelled while retrieving
			return m, nil
		}
		m.waiting = false
		m.streaming = true
		m.answer = msg.answer
		m.sourcesLine = formatSources(msg.answer.Matches)
		m.status = "Streaming answer. Esc cancels."
		m.viewport.SetContent(m.transcript())
		m.viewport.GotoBottom()
		return m, waitForChunk(msg.answer)

	case answerChunkMsg:
		if m.answer == nil {
			return m, nil
		}
		if msg.ok {
			m.pending += msg.text
			m.viewport.SetContent(m.transcript())
			m.viewport.GotoBottom()
			return m, waitForChunk(m.answer)
		}
		m.finishAnswer()
		return m, nil

	case askFailedMsg:
		m.stopAnswer()
		m.waiting = false
		if errors.Is(msg.err, context.Canceled) {
			m.status = "Cancelled."
		} else {
			m.status = "Error: " + msg.err.Error()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// finishAnswer moves the streamed text into the transcript once the chunk
// channel closes.
func (m *Model) finishAnswer() {
	err := m.answer.Err()
	entry := chatMessage{role: roleAssistant, text: m.pending, sources: m.sourcesLine}
	switch {
	case err == nil:
		m.status = "Done. Ask another question."
	case errors.Is(err, context.Canceled):
		m.status = "Cancelled."
		entry.text = strings.TrimSpace(entry.text)
		if entry.text != "" {
			entry.text += "\n\n(cancelled)"
		}
	default:
		m.status = "Error: " + err.Error()
	}
	if strings.TrimSpace(entry.text) != "" {
		m.history = append(m.history, entry)
	}
	m.pending = ""
	m.sourcesLine = ""
	m.answer = nil
	m.streaming = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *Model) stopAnswer() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// canCycleSuggestion reports whether Tab may replace the input: only when it
// is empty or still holds the suggestion the previous Tab inserted. Typed
// text is never overwritten.
func (m Model) canCycleSuggestion() bool {
	v := m.input.Value()
	if v == "" {
		return true
	}
	if m.suggestIdx == 0 {
		return false
	}
	return v == m.suggestions[(m.suggestIdx-1)%len(m.suggestions)]
}

// View renders the TUI layout and chat transcript.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Knowledge Base Chat")
	hint := hintStyle.Render("Enter: send  Tab: suggestions  Esc: cancel  Ctrl+C: quit")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.statusLine())
	return header + "\n" + hint + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) statusLine() string {
	if m.waiting {
		return m.spinner.View() + "Searching knowledge base..."
	}
	return m.status
}

func (m Model) transcript() string {
	var b strings.Builder
	for _, msg := range m.history {
		switch msg.role {
		case roleUser:
			b.WriteString(userStyle.Render("You") + "\n" + msg.text + "\n\n")
		case roleAssistant:
			if msg.sources != "" {
				b.WriteString(sourceStyle.Render(msg.sources) + "\n")
			}
			b.WriteString(assistantStyle.Render("Assistant") + "\n" + m.renderMarkdown(msg.text) + "\n")
		}
	}
	if m.waiting || m.streaming {
		if m.sourcesLine != "" {
			b.WriteString(sourceStyle.Render(m.sourcesLine) + "\n")
		}
		if m.streaming {
			b.WriteString(assistantStyle.Render("Assistant") + "\n" + m.pending)
		}
	}
	if b.Len() == 0 {
		return "No messages yet."
	}
	return b.String()
}

// renderMarkdown pretty-prints finished answers; streamed text stays raw
// until the stream completes.
func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// formatSources lists the retrieved pages backing an answer, deduplicated
// and in retrieval order.
func formatSources(matches []domain.Match) string {
	if len(matches) == 0 {
		return ""
	}
	seen := make(map[string]struct{}, len(matches))
	parts := make([]string, 0, len(matches))
	for _, match := range matches {
		key := fmt.Sprintf("%s p.%d", match.Record.Doc, match.Record.Page)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		parts = append(parts, key)
	}
	return "Sources: " + strings.Join(parts, ", ")
}

func askCmd(ctx context.Context, service ChatPort, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := service.Ask(ctx, question)
		if err != nil {
			return askFailedMsg{err: err}
		}
		return answerStartedMsg{answer: answer}
	}
}

// waitForChunk blocks until the next streamed chunk and re-arms itself from
// Update, one command per chunk.
func waitForChunk(answer *chat.Answer) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-answer.Chunks()
		return answerChunkMsg{text: chunk, ok: ok}
	}
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	hintStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	sourceStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	spinnerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
