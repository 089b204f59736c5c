package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"empty string", "", Command{}},
		{"whitespace only", "   \t ", Command{}},
		{"bare verb", "list", Command{Verb: "list", Args: []string{}}},
		{"verb lowercased", "LIST", Command{Verb: "list", Args: []string{}}},
		{"args keep case", "create Aria", Command{Verb: "create", Args: []string{"Aria"}}},
		{"alias ls", "ls", Command{Verb: "list", Args: []string{}}},
		{"alias x", "x aria", Command{Verb: "show", Args: []string{"aria"}}},
		{"alias tick", "tick aria 3 ticks", Command{Verb: "advance", Args: []string{"aria", "3", "ticks"}}},
		{"alias hit", "hit aria 2d6", Command{Verb: "damage", Args: []string{"aria", "2d6"}}},
		{"alias r", "r 3d6+2", Command{Verb: "roll", Args: []string{"3d6+2"}}},
		{"alias why", "why aria fireball", Command{Verb: "explain", Args: []string{"aria", "fireball"}}},
		{"extra spaces", "  apply   aria    fireball ", Command{Verb: "apply", Args: []string{"aria", "fireball"}}},
		{"quoted name", `create "Aria Stone" class=mage`, Command{Verb: "create", Args: []string{"Aria Stone", "class=mage"}}},
		{"quoted formula", `eval aria "STR * 2 + 1d6"`, Command{Verb: "eval", Args: []string{"aria", "STR * 2 + 1d6"}}},
		{"empty quotes", `create ""`, Command{Verb: "create", Args: []string{""}}},
		{"unterminated quote", `create "Aria Stone`, Command{Verb: "create", Args: []string{"Aria Stone"}}},
		{"meta command", "/save slot1", Command{Verb: "/save", Args: []string{"slot1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestCommand_Arg(t *testing.T) {
	c := Parse("status add aria poisoned")
	assert.Equal(t, "add", c.Arg(0))
	assert.Equal(t, "poisoned", c.Arg(2))
	assert.Equal(t, "", c.Arg(3))
	assert.Equal(t, "", c.Arg(-1))
}

func TestCommand_Rest(t *testing.T) {
	c := Parse("eval aria STR * 2")
	assert.Equal(t, "STR * 2", c.Rest(1))
	assert.Equal(t, "", c.Rest(5))
}

func TestCommand_Params(t *testing.T) {
	c := Parse("trigger aria on_action action=train weight=3 loose =x")
	assert.Equal(t, map[string]string{"action": "train", "weight": "3"}, c.Params(2))
	assert.Empty(t, c.Params(10))
}
