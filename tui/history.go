// Package tui provides a Bubble Tea terminal UI for the statecore console.
package tui

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// History holds submitted console lines, oldest first, and a navigation
// cursor for recalling them with the arrow keys.
type History struct {
	entries []string
	max     int
	cursor  int // -1 while not navigating
}

// NewHistory creates a history keeping at most max lines.
func NewHistory(max int) *History {
	return &History{
		entries: make([]string, 0, max),
		max:     max,
		cursor:  -1,
	}
}

// Push records a submitted line. Blank lines and repeats of the newest
// entry are ignored.
func (h *History) Push(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		return
	}
	h.entries = append(h.entries, line)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = h.entries[over:]
	}
}

// Prev steps to the next older entry, stopping at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next steps to the next newer entry. Stepping past the newest ends
// navigation and returns false.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return "", false
	}
	return h.entries[h.cursor], true
}

// ResetCursor ends navigation.
func (h *History) ResetCursor() {
	h.cursor = -1
}

// ReadFrom appends one entry per line of r.
func (h *History) ReadFrom(r io.Reader) (int64, error) {
	var n int64
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		n += int64(len(sc.Bytes())) + 1
		h.Push(sc.Text())
	}
	return n, sc.Err()
}

// WriteTo writes the entries one per line, oldest first.
func (h *History) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range h.entries {
		n, err := io.WriteString(w, e+"\n")
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// LoadHistoryFile fills h from path. A missing file is not an error.
func LoadHistoryFile(h *History, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = h.ReadFrom(f)
	return err
}

// SaveHistoryFile writes h to path, creating its directory.
func SaveHistoryFile(h *History, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := h.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
