package tui

import (
	"sort"
	"strings"

	"github.com/nathoo/statecore/cli"
)

// completionWords returns the words Tab can complete to: command verbs,
// character names and rule ids.
func (m Model) completionWords() []string {
	words := cli.Verbs()
	for _, c := range m.session.Engine.GetAllCharacters() {
		words = append(words, strings.Fields(strings.ToLower(c.Name))...)
	}
	for _, r := range m.session.Engine.Ruleset().Rules {
		words = append(words, r.ID)
	}
	sort.Strings(words)
	return words
}

// complete extends the last word of input. A unique match is completed and
// followed by a space; several matches extend to their common prefix.
func complete(input string, words []string) string {
	start := strings.LastIndexAny(input, " \t") + 1
	partial := strings.ToLower(input[start:])
	if partial == "" {
		return input
	}

	var matches []string
	for _, w := range words {
		if strings.HasPrefix(w, partial) && (len(matches) == 0 || matches[len(matches)-1] != w) {
			matches = append(matches, w)
		}
	}
	switch len(matches) {
	case 0:
		return input
	case 1:
		return input[:start] + matches[0] + " "
	}
	prefix := matches[0]
	for _, w := range matches[1:] {
		for !strings.HasPrefix(w, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if len(prefix) <= len(partial) {
		return input
	}
	return input[:start] + prefix
}
