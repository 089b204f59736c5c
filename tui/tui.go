package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/statecore/cli"
)

// maxScrollback bounds the number of output lines kept for re-wrapping.
const maxScrollback = 2000

// rawLine is an unstyled output line. Lines are kept raw so they can be
// re-wrapped and re-styled when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // echoed input
	isSystem bool // meta-command output
}

type keyMap struct {
	Quit        key.Binding
	Submit      key.Binding
	Complete    key.Binding
	HistoryPrev key.Binding
	HistoryNext key.Binding
	Scroll      key.Binding
}

var keys = keyMap{
	Quit:        key.NewBinding(key.WithKeys("ctrl+c")),
	Submit:      key.NewBinding(key.WithKeys("enter")),
	Complete:    key.NewBinding(key.WithKeys("tab")),
	HistoryPrev: key.NewBinding(key.WithKeys("up")),
	HistoryNext: key.NewBinding(key.WithKeys("down")),
	Scroll:      key.NewBinding(key.WithKeys("pgup", "pgdown", "ctrl+u", "ctrl+d")),
}

// Model is the Bubble Tea model for the statecore console.
type Model struct {
	session *cli.Session
	ctx     context.Context

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine

	width    int
	height   int
	ready    bool
	quitting bool
}

// outputMsg carries session output into the Update loop.
type outputMsg struct {
	input    string   // echoed input, empty for the banner
	lines    []string
	isSystem bool
}

// New creates a TUI model driving the given session.
func New(ctx context.Context, s *cli.Session) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		session: s,
		ctx:     ctx,
		input:   ti,
		history: NewHistory(100),
	}
}

// Run starts the Bubble Tea program. Command history is kept in a file
// next to the session's save directory.
func Run(ctx context.Context, s *cli.Session) error {
	m := New(ctx, s)
	histPath := filepath.Join(filepath.Dir(s.SaveDir), "history")
	if err := LoadHistoryFile(m.history, histPath); err != nil {
		s.Log.Warn().Err(err).Str("path", histPath).Msg("could not read command history")
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()

	if serr := SaveHistoryFile(m.history, histPath); serr != nil {
		s.Log.Warn().Err(serr).Str("path", histPath).Msg("could not write command history")
	}
	return err
}

// Init prints the banner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		rs := m.session.Engine.Ruleset()
		lines := []string{
			fmt.Sprintf("%s %s (%d stats, %d resources, %d rules)", rs.Name, rs.Version, len(rs.Stats), len(rs.Resources), len(rs.Rules)),
			"",
		}
		if n := len(m.session.Engine.GetAllCharacters()); n > 0 {
			lines = append(lines, fmt.Sprintf("%d character(s) loaded. Type list to see them.", n))
		} else {
			lines = append(lines, "No characters yet. Try: create Aria")
		}
		lines = append(lines, "Type help for commands. Tab completes commands, names and rules.")
		return outputMsg{lines: lines}
	}
}

// Update handles key presses, resizes and session output.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}

	case outputMsg:
		m = m.appendOutput(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	vpHeight := max(height-2, 1) // status bar and input line

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.viewport.KeyMap = viewportKeyMap()
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.refreshViewport()
}

// handleKey reports whether it consumed the key; unconsumed keys go to the
// text input.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit, true

	case key.Matches(msg, keys.Submit):
		next, cmd := m.handleEnter()
		return next, cmd, true

	case key.Matches(msg, keys.Complete):
		m.input.SetValue(complete(m.input.Value(), m.completionWords()))
		m.input.CursorEnd()
		return m, nil, true

	case key.Matches(msg, keys.HistoryPrev):
		if prev, ok := m.history.Prev(); ok {
			m.input.SetValue(prev)
			m.input.CursorEnd()
		}
		return m, nil, true

	case key.Matches(msg, keys.HistoryNext):
		next, ok := m.history.Next()
		if !ok {
			next = ""
		}
		m.input.SetValue(next)
		m.input.CursorEnd()
		return m, nil, true

	case key.Matches(msg, keys.Scroll):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}
	return m, nil, false
}

// handleEnter runs the submitted line through the session.
func (m Model) handleEnter() (Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	res := m.session.Exec(m.ctx, input)
	m = m.appendOutput(outputMsg{input: input, lines: res.Output, isSystem: res.System})
	if res.Quit {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// appendOutput adds one command's output, followed by a blank separator.
func (m Model) appendOutput(msg outputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: msg.input, isInput: true})
	}
	for _, line := range msg.lines {
		// Trace lines can follow meta output but are styled as trace.
		rl := rawLine{text: line, isSystem: msg.isSystem && !strings.HasPrefix(line, "[trace]")}
		if !rl.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}
	m.rawLines = append(m.rawLines, rawLine{})

	if over := len(m.rawLines) - maxScrollback; over > 0 {
		m.rawLines = m.rawLines[over:]
	}
	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles every raw line at the current width.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	width := max(m.width, 10)

	styled := make([]string, 0, len(m.rawLines))
	for _, rl := range m.rawLines {
		switch {
		case rl.text == "":
			styled = append(styled, "")
		case rl.isInput:
			styled = append(styled, styledPlayerInput(wordWrap(rl.text, width-2)))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wordWrap(rl.text, width-2)))
		default:
			styled = append(styled, renderLineKind(wordWrap(rl.text, width), rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindLabeled:
		return styledLabeled(line)
	case kindApplied:
		return styleApplied.Render(line)
	case kindSkipped:
		return styleSkipped.Render(line)
	case kindAilment:
		return styleAilment.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return stylePlain.Render(line)
	}
}

// wordWrap wraps each line of text at word boundaries. Words longer than
// width are split.
func wordWrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	paragraphs := strings.Split(text, "\n")
	for i, p := range paragraphs {
		paragraphs[i] = wrapParagraph(p, width)
	}
	return strings.Join(paragraphs, "\n")
}

func wrapParagraph(p string, width int) string {
	if len(p) <= width {
		return p
	}
	var b strings.Builder
	lineLen := 0
	for _, word := range strings.Fields(p) {
		for len(word) > width {
			if lineLen > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(word[:width])
			word = word[width:]
			lineLen = width
		}
		switch {
		case lineLen == 0:
		case lineLen+1+len(word) > width:
			b.WriteByte('\n')
			lineLen = 0
		default:
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}
	return b.String()
}

// View renders the viewport, status bar and input line.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}
	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// viewportKeyMap leaves Up and Down to history navigation.
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
