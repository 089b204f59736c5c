package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nathoo/statecore/cli"
	"github.com/nathoo/statecore/engine/state"
)

// renderStatusBar produces a full-width inverted status line showing the
// current character, its resources and active statuses, and the number of
// characters.
func (m Model) renderStatusBar() string {
	count := len(m.session.Engine.GetAllCharacters())
	right := fmt.Sprintf("Chars:%d ", count)

	left := " No character selected"
	if c, ok := m.session.Current(); ok {
		left = fmt.Sprintf(" %s | %s", c.Name, cli.ResourceSummary(c))

		active := state.ActiveStatuses(c, m.session.Engine.Now())
		if len(active) > 0 {
			names := make([]string, len(active))
			for i, st := range active {
				names[i] = st.Name
			}
			// Show status names if they fit, otherwise just count.
			candidate := fmt.Sprintf("%s | %s", strings.Join(names, ","), right)
			if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
				right = candidate
			} else {
				right = fmt.Sprintf("St:%d | %s", len(active), right)
			}
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
