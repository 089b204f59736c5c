// Package cli provides the plain line console and the command session shared
// with the TUI.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// CLI reads commands line by line and prints their output.
type CLI struct {
	Session   *Session
	In        io.Reader
	Out       io.Writer
	EchoInput bool // echo each input line after the prompt (for script playback)
}

// New creates a CLI on stdin and stdout.
func New(s *Session) *CLI {
	return &CLI{
		Session: s,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
}

// Run loops: prompt, input, execute, output. It returns on /quit, end of
// input or when ctx is done.
func (c *CLI) Run(ctx context.Context) {
	rs := c.Session.Engine.Ruleset()
	c.printLine(fmt.Sprintf("%s %s (%d rules). Type help for commands.", rs.Name, rs.Version, len(rs.Rules)))

	scanner := bufio.NewScanner(c.In)
	for ctx.Err() == nil {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		res := c.Session.Exec(ctx, input)
		for _, line := range res.Output {
			if res.System {
				c.printSystem(line)
			} else {
				c.printLine(line)
			}
		}
		if res.Quit {
			return
		}
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
