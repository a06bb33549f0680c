package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragcore/internal/assembler"
	"ragcore/internal/lexical"
	"ragcore/internal/service"
)

// Retriever is the TUI-facing subset of the retrieval engine.
type Retriever interface {
	Retrieve(ctx context.Context, query string) service.Result
	Stats() service.Stats
}

// resultMsg carries a finished query back into the update loop.
type resultMsg struct {
	query  string
	result service.Result
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	engine    Retriever
	input     textinput.Model
	viewport  viewport.Model
	result    service.Result
	summary   string
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a new TUI model instance.
func New(engine Retriever) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{engine: engine, input: ti, viewport: vp, summary: summarize(engine.Stats()), status: "Loaded. Type to search."}
}

func summarize(st service.Stats) string {
	index := "lexical only"
	if st.IndexReady {
		index = fmt.Sprintf("%s index, %d dims", st.Embedder, st.Dimension)
	}
	return fmt.Sprintf("%d chunks in %d sections, %s, strategy %s, top_k %d, threshold %.2f",
		st.Chunks, st.Sections, index, st.Strategy, st.TopK, st.ScoreThreshold)
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) retrieve(q string) tea.Cmd {
	return func() tea.Msg {
		return resultMsg{query: q, result: m.engine.Retrieve(context.Background(), q)}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + summary
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case resultMsg:
		m.busy = false
		m.result = msg.result
		m.cursor = 0
		m.lastQuery = msg.query
		m.summary = summarize(m.engine.Stats())
		m.status = fmt.Sprintf("%s: %d chunks via %s search in %s",
			msg.query, len(msg.result.Context.Attributions), msg.result.Retrieval.Strategy, msg.result.Elapsed.Round(time.Millisecond))
		if msg.result.Context.Empty() {
			m.status = fmt.Sprintf("%s: no grounding found (%s)", msg.query, msg.result.Retrieval.Strategy)
		}
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Searching..."
				return m, m.retrieve(q)
			}
		case "down":
			if n := len(m.result.Context.Attributions); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := len(m.result.Context.Attributions); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Retrieval Console")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

// renderCurrentResult shows the selected attributed chunk followed by the
// assembled context exactly as a generator would receive it.
func (m Model) renderCurrentResult() string {
	attrs := m.result.Context.Attributions
	if len(attrs) == 0 {
		if m.lastQuery == "" {
			return "No results yet."
		}
		return "No grounding available; a generator would answer without context."
	}
	a := attrs[m.cursor]
	title := fmt.Sprintf("Chunk %d/%d  [%s]  id=%d  score=%.3f", m.cursor+1, len(attrs), a.Section, a.ChunkID, a.Score)
	var body string
	for _, sc := range m.result.Retrieval.Chunks {
		if sc.Chunk.ID == a.ChunkID {
			body = highlightBestSentence(sc.Chunk.Text, m.lastQuery)
			break
		}
	}
	ctxTitle := contextTitleStyle.Render(fmt.Sprintf("Context (%d chars)", len(m.result.Context.Text)))
	sources := contextTitleStyle.Render(assembler.AttributionText(attrs))
	return title + "\n\n" + body + "\n\n" + ctxTitle + "\n" + m.result.Context.Text + "\n\n" + sources
}

var (
	resultBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	contextTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Underline(true)
	sentenceRe        = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := lexical.Tokenize(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range lexical.Tokenize(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
