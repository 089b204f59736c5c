// Package parser converts console input lines into Commands.
// Intentionally dumb: whitespace splitting, quotes and a verb alias table.
package parser

import (
	"strings"
)

// Command is one parsed console line.
type Command struct {
	Verb string
	Args []string
}

// Arg returns the i-th argument, or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest joins the arguments from i onwards with single spaces.
func (c Command) Rest(i int) string {
	if i >= len(c.Args) {
		return ""
	}
	return strings.Join(c.Args[i:], " ")
}

// Params reads key=value arguments from i onwards. Arguments without '='
// are ignored.
func (c Command) Params(i int) map[string]string {
	out := map[string]string{}
	if i >= len(c.Args) {
		return out
	}
	for _, a := range c.Args[i:] {
		if k, v, ok := strings.Cut(a, "="); ok && k != "" {
			out[k] = v
		}
	}
	return out
}

var verbAliases = map[string]string{
	// Characters
	"new":     "create",
	"mk":      "create",
	"spawn":   "create",
	"ls":      "list",
	"who":     "list",
	"x":       "show",
	"sheet":   "show",
	"inspect": "show",
	"rm":      "delete",
	"del":     "delete",

	// Rules
	"run":   "apply",
	"fire":  "trigger",
	"avail": "rules",
	"why":   "explain",

	// Time
	"tick":   "advance",
	"wait":   "advance",
	"z":      "advance",
	"elapse": "advance",

	// Statuses and modifiers
	"st":  "status",
	"mod": "modifier",

	// Items
	"wear":  "use",
	"swing": "use",

	// Damage
	"hit":  "damage",
	"hurt": "damage",

	// Formulas
	"calc": "eval",
	"r":    "roll",
	"dice": "roll",

	"?": "help",
	"h": "help",
}

// Parse converts a raw input line into a Command. The verb is lowercased and
// aliases are expanded; arguments keep their case. Double quotes group words
// into one argument.
func Parse(input string) Command {
	words := split(strings.TrimSpace(input))
	if len(words) == 0 {
		return Command{}
	}

	verb := strings.ToLower(words[0])
	if alias, ok := verbAliases[verb]; ok {
		verb = alias
	}

	return Command{Verb: verb, Args: words[1:]}
}

// split breaks s on whitespace, keeping double-quoted runs together. An
// unterminated quote runs to the end of the line.
func split(s string) []string {
	var (
		words   []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	flush := func() {
		if started {
			words = append(words, cur.String())
		}
		cur.Reset()
		started = false
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	flush()
	return words
}
