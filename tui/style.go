package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// 256-color palette.
const (
	colorBarBg = lipgloss.Color("236")
	colorBarFg = lipgloss.Color("252")
	colorText  = lipgloss.Color("255")
	colorInput = lipgloss.Color("34")
	colorGood  = lipgloss.Color("78")
	colorWarn  = lipgloss.Color("214")
	colorBad   = lipgloss.Color("196")
	colorMuted = lipgloss.Color("243")
	colorFaint = lipgloss.Color("240")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	styleStatusBar   = lipgloss.NewStyle().Background(colorBarBg).Foreground(colorBarFg).Bold(true)
	styleInputPrompt = fg(colorInput)
	stylePlayerInput = fg(colorInput)

	stylePlain   = fg(colorText)
	styleLabel   = lipgloss.NewStyle().Bold(true)
	styleApplied = fg(colorGood)
	styleSkipped = fg(colorMuted)
	styleAilment = fg(colorWarn)
	styleError   = fg(colorBad)
	styleSystem  = fg(colorMuted).Italic(true)
	styleTrace   = fg(colorFaint)
)

// lineKind selects the style of an output line.
type lineKind int

const (
	kindPlain lineKind = iota
	kindLabeled
	kindApplied
	kindSkipped
	kindAilment
	kindError
	kindTrace
)

// sheetLabels prefix the lines of a character sheet.
var sheetLabels = []string{
	"Stats:", "Resources:", "Statuses:", "Modifiers:", "Timers:",
	"Items:", "Exposure:", "Progression:", "Custom:",
	"Regenerated:", "Timers expired:", "Statuses expired:",
}

// classifyLine picks a style from the wording the session uses.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "Error:"), strings.Contains(line, " failed: "):
		return kindError
	case strings.HasSuffix(line, " applied"), strings.HasSuffix(line, " applied [chained]"),
		strings.Contains(line, " applied (formula "):
		return kindApplied
	case strings.Contains(line, " skipped"), line == "No rules matched.":
		return kindSkipped
	case strings.Contains(line, " suffers "), strings.HasPrefix(line, "It breaks!"):
		return kindAilment
	}
	if labelOf(line) != "" {
		return kindLabeled
	}
	return kindPlain
}

func labelOf(line string) string {
	for _, l := range sheetLabels {
		if strings.HasPrefix(line, l) {
			return l
		}
	}
	return ""
}

// styledLabeled renders "Stats: STR 10, DEX 12" with the label bold.
func styledLabeled(line string) string {
	label := labelOf(line)
	if label == "" {
		return stylePlain.Render(line)
	}
	return styleLabel.Render(label) + stylePlain.Render(line[len(label):])
}

// styledPlayerInput echoes a submitted line after the prompt.
func styledPlayerInput(input string) string {
	return stylePlayerInput.Render("> " + input)
}

// styledSystemMsg renders meta-command output in brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
