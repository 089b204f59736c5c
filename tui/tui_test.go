package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/statecore/cli"
	"github.com/nathoo/statecore/engine"
	"github.com/nathoo/statecore/engine/events"
	"github.com/nathoo/statecore/engine/save"
	"github.com/nathoo/statecore/types"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"Stats: STR 10, DEX 12", kindLabeled},
		{"Resources: health 80/100", kindLabeled},
		{"Regenerated: health +2", kindLabeled},
		{"[trace] Events: 2", kindTrace},
		{"Error: no character matches \"zed\"", kindError},
		{"fireball failed: formula: unknown variable", kindError},
		{"strength_training applied", kindApplied},
		{"hard_rest applied [chained]", kindApplied},
		{"battle_fervor applied (formula 12)", kindApplied},
		{"fireball skipped: conditions not met", kindSkipped},
		{"No rules matched.", kindSkipped},
		{"Aria suffers frostbite.", kindAilment},
		{"It breaks! +2 scrap, +0 insight.", kindAilment},
		{"Created Aria [id-1].", kindPlain},
		{"", kindPlain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyLine(tt.line), tt.line)
	}
}

func TestStyledLabeled_KeepsText(t *testing.T) {
	out := styledLabeled("Stats: STR 10")
	assert.Contains(t, out, "Stats:")
	assert.Contains(t, out, "STR 10")
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 80, "short"},
		{"hello world", 5, "hello\nworld"},
		{"Stats: STR 10, DEX 12, CON 14, INT 8", 20,
			"Stats: STR 10, DEX\n12, CON 14, INT 8"},
		{"", 80, ""},
		{"a b c d e", 3, "a b\nc d\ne"},
		{"first line\nsecond line", 6, "first\nline\nsecond\nline"},
		{"id abcdefghij", 4, "id\nabcd\nefgh\nij"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wordWrap(tt.text, tt.width), "wordWrap(%q, %d)", tt.text, tt.width)
	}
}

func TestComplete(t *testing.T) {
	words := []string{"advance", "apply", "aria", "create", "fireball", "fireball", "frostbite_chill"}
	tests := []struct {
		input string
		want  string
	}{
		{"cr", "create "},
		{"a", "a"},
		{"ap", "apply "},
		{"apply ar", "apply aria "},
		{"apply aria fi", "apply aria fireball "},
		{"apply aria f", "apply aria f"},
		{"show zed", "show zed"},
		{"", ""},
		{"list ", "list "},
		{"CR", "create "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, complete(tt.input, words), tt.input)
	}
	assert.Equal(t, "ad", complete("a", []string{"adrenaline", "advance"}))
	assert.Equal(t, "apply aria frost", complete("apply aria fro", []string{"frost", "frostbite"}))
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("show aria")
	h.Push("advance aria 60")

	for _, want := range []string{"advance aria 60", "show aria", "list", "list"} {
		prev, ok := h.Prev()
		require.True(t, ok)
		assert.Equal(t, want, prev)
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("show aria")

	h.Prev()
	h.Prev()

	next, ok := h.Next()
	assert.True(t, ok)
	assert.Equal(t, "show aria", next)

	_, ok = h.Next()
	assert.False(t, ok, "past newest entry")
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	_, ok := h.Prev()
	assert.False(t, ok)
	_, ok = h.Next()
	assert.False(t, ok)
}

func TestHistory_MaxSizeAndDuplicates(t *testing.T) {
	h := NewHistory(2)
	h.Push("a")
	h.Push("b")
	h.Push("b")
	h.Push("c")

	assert.Equal(t, []string{"b", "c"}, h.entries)
}

func TestHistory_IgnoresBlank(t *testing.T) {
	h := NewHistory(5)
	h.Push("  ")
	h.Push(" list ")
	assert.Equal(t, []string{"list"}, h.entries)
}

func TestHistory_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history")

	h := NewHistory(5)
	require.NoError(t, LoadHistoryFile(h, path), "missing file")
	h.Push("create Aria")
	h.Push("show aria")
	require.NoError(t, SaveHistoryFile(h, path))

	loaded := NewHistory(1)
	require.NoError(t, LoadHistoryFile(loaded, path))
	assert.Equal(t, []string{"show aria"}, loaded.entries)

	var b strings.Builder
	_, err := h.WriteTo(&b)
	require.NoError(t, err)
	assert.Equal(t, "create Aria\nshow aria\n", b.String())
}

func TestHistory_ResetCursor(t *testing.T) {
	h := NewHistory(5)
	h.Push("list")
	h.Push("show aria")

	h.Prev()
	h.ResetCursor()

	prev, ok := h.Prev()
	assert.True(t, ok)
	assert.Equal(t, "show aria", prev)
}

func testSession(t *testing.T) *cli.Session {
	t.Helper()
	rs := &types.Ruleset{
		ID:      "test",
		Name:    "Test Rules",
		Version: "1.0",
		Stats:   []types.StatDef{{ID: "STR", Type: types.ValueNumber, Default: 10}},
		Resources: []types.ResourceDef{
			{StatDef: types.StatDef{ID: "health", Default: 100}},
		},
	}
	n := 0
	d := &events.Dispatcher{}
	eng := engine.New(rs,
		engine.WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
		engine.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		engine.WithDispatcher(d),
	)
	s := cli.NewSession(eng, save.NewMemoryStore(), d)
	s.SaveDir = t.TempDir()
	return s
}

func readyModel(t *testing.T) Model {
	t.Helper()
	m := New(context.Background(), testSession(t))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model)
}

func submit(t *testing.T, m Model, input string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(input)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(Model), cmd
}

func rawTexts(m Model) []string {
	var out []string
	for _, rl := range m.rawLines {
		out = append(out, rl.text)
	}
	return out
}

func TestInitialOutput_Banner(t *testing.T) {
	m := readyModel(t)
	msg := m.initialOutput()()
	out, ok := msg.(outputMsg)
	require.True(t, ok)
	assert.Equal(t, "Test Rules 1.0 (1 stats, 1 resources, 0 rules)", out.lines[0])
	assert.Contains(t, out.lines, "No characters yet. Try: create Aria")
}

func TestHandleEnter_RunsSessionCommand(t *testing.T) {
	m := readyModel(t)
	m, cmd := submit(t, m, "create Aria")
	assert.Nil(t, cmd)

	texts := rawTexts(m)
	assert.Equal(t, []string{"create Aria", "Created Aria [id-1].", ""}, texts)
	assert.True(t, m.rawLines[0].isInput)
	assert.Equal(t, "", m.input.Value())

	prev, ok := m.history.Prev()
	assert.True(t, ok)
	assert.Equal(t, "create Aria", prev)

	bar := m.renderStatusBar()
	assert.Contains(t, bar, "Aria | health 100/100")
	assert.Contains(t, bar, "Chars:1")
}

func TestHandleEnter_MetaAndTrace(t *testing.T) {
	m := readyModel(t)
	m, _ = submit(t, m, "/trace")
	assert.True(t, m.rawLines[1].isSystem)
	assert.Equal(t, "Trace output enabled.", m.rawLines[1].text)

	m, _ = submit(t, m, "create Aria")
	var traced bool
	for _, rl := range m.rawLines {
		if strings.HasPrefix(rl.text, "[trace]") {
			traced = true
			assert.Equal(t, kindTrace, rl.kind)
			assert.False(t, rl.isSystem)
		}
	}
	assert.True(t, traced)
}

func TestHandleEnter_Quit(t *testing.T) {
	m := readyModel(t)
	m, cmd := submit(t, m, "/quit")
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, "", m.View())
}

func TestHandleEnter_Empty(t *testing.T) {
	m := readyModel(t)
	m, cmd := submit(t, m, "   ")
	assert.Nil(t, cmd)
	assert.Empty(t, m.rawLines)
}

func TestTab_CompletesNamesAndRules(t *testing.T) {
	m := readyModel(t)
	m, _ = submit(t, m, "create Aria")

	m.input.SetValue("sh")
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	assert.Equal(t, "show ", m.input.Value())

	m.input.SetValue("show ar")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	assert.Equal(t, "show aria ", m.input.Value())
}

func TestHistoryKeys(t *testing.T) {
	m := readyModel(t)
	m, _ = submit(t, m, "create Aria")
	m, _ = submit(t, m, "list")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(Model)
	assert.Equal(t, "list", m.input.Value())

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(Model)
	assert.Equal(t, "create Aria", m.input.Value())

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	assert.Equal(t, "", m.input.Value())
}

func TestScrollbackIsBounded(t *testing.T) {
	m := readyModel(t)
	lines := make([]string, maxScrollback)
	for i := range lines {
		lines[i] = fmt.Sprint(i)
	}
	m = m.appendOutput(outputMsg{lines: lines})
	m = m.appendOutput(outputMsg{lines: []string{"last"}})
	assert.Len(t, m.rawLines, maxScrollback)
	assert.Equal(t, "last", m.rawLines[len(m.rawLines)-2].text)
}

func TestStatusBar_ShowsStatuses(t *testing.T) {
	m := readyModel(t)
	m, _ = submit(t, m, "create Aria")
	m, _ = submit(t, m, "status add aria blessed")
	assert.Contains(t, m.renderStatusBar(), "blessed | Chars:1")

	m.width = 30
	assert.Contains(t, m.renderStatusBar(), "St:1")
}

func TestStatusBar_NoCharacter(t *testing.T) {
	m := readyModel(t)
	assert.Contains(t, m.renderStatusBar(), "No character selected")
}

func TestView_NotReady(t *testing.T) {
	m := New(context.Background(), testSession(t))
	assert.Equal(t, "Loading...", m.View())
}
