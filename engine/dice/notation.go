package dice

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidNotation is returned when a dice notation string cannot be parsed.
	ErrInvalidNotation = errors.New("invalid dice notation")
	// ErrInvalidDiceSpec is returned when a group's count or sides fall
	// outside 1..MaxCount and 1..MaxSides.
	ErrInvalidDiceSpec = errors.New("invalid dice count or sides")
)

// Limits on a single dice group.
const (
	MaxCount = 1000
	MaxSides = 1_000_000
)

// CheckGroup validates the count and sides of one dice group.
func CheckGroup(count, sides int) error {
	if count < 1 || count > MaxCount {
		return fmt.Errorf("%w: count %d not in 1..%d", ErrInvalidDiceSpec, count, MaxCount)
	}
	if sides < 1 || sides > MaxSides {
		return fmt.Errorf("%w: sides %d not in 1..%d", ErrInvalidDiceSpec, sides, MaxSides)
	}
	return nil
}

// Group is one dice term such as 2d6 or -1d4.
type Group struct {
	Count    int
	Sides    int
	Negative bool
}

// String renders the group in canonical notation.
func (g Group) String() string {
	sign := ""
	if g.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%dd%d", sign, g.Count, g.Sides)
}

// Notation is a parsed multi-term dice expression: dice groups plus a flat
// modifier, e.g. 3d17+2d13-4.
type Notation struct {
	Groups   []Group
	Modifier float64
}

var termPattern = regexp.MustCompile(`^([+-]?)(?:(\d*)[dD](\d+)|(\d+(?:\.\d+)?))`)

// Parse parses dice notation. Whitespace is ignored; a missing count
// means one die.
func Parse(notation string) (Notation, error) {
	src := strings.Join(strings.Fields(notation), "")
	if src == "" {
		return Notation{}, fmt.Errorf("%w: empty", ErrInvalidNotation)
	}

	var n Notation
	first := true
	for src != "" {
		m := termPattern.FindStringSubmatch(src)
		if m == nil {
			return Notation{}, fmt.Errorf("%w: unexpected %q", ErrInvalidNotation, src)
		}
		if !first && m[1] == "" {
			return Notation{}, fmt.Errorf("%w: missing operator before %q", ErrInvalidNotation, src)
		}
		first = false
		negative := m[1] == "-"

		if m[3] != "" {
			count := 1
			if m[2] != "" {
				count = atoiOrZero(m[2])
			}
			sides := atoiOrZero(m[3])
			if err := CheckGroup(count, sides); err != nil {
				return Notation{}, fmt.Errorf("%s: %w", m[0], err)
			}
			n.Groups = append(n.Groups, Group{Count: count, Sides: sides, Negative: negative})
		} else {
			v, err := strconv.ParseFloat(m[4], 64)
			if err != nil {
				return Notation{}, fmt.Errorf("%w: %v", ErrInvalidNotation, err)
			}
			if negative {
				v = -v
			}
			n.Modifier += v
		}
		src = src[len(m[0]):]
	}
	return n, nil
}

// atoiOrZero parses a run of digits. Values too large for an int come back
// as 0 so that CheckGroup rejects them.
func atoiOrZero(digits string) int {
	v, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return v
}

// Average is the expected total: each die averages (sides+1)/2.
func (n Notation) Average() float64 {
	total := n.Modifier
	for _, g := range n.Groups {
		avg := float64(g.Count) * float64(g.Sides+1) / 2
		if g.Negative {
			avg = -avg
		}
		total += avg
	}
	return total
}

// Range returns the smallest and largest possible totals.
func (n Notation) Range() (lo, hi float64) {
	lo, hi = n.Modifier, n.Modifier
	for _, g := range n.Groups {
		least := float64(g.Count)
		most := float64(g.Count) * float64(g.Sides)
		if g.Negative {
			lo -= most
			hi -= least
		} else {
			lo += least
			hi += most
		}
	}
	return lo, hi
}

// Roll is the outcome of rolling one group.
type Roll struct {
	Sides   int
	Results []int
	Total   int
}

// RollGroup rolls count dice with the given number of sides.
func RollGroup(src Source, count, sides int) (Roll, error) {
	if err := CheckGroup(count, sides); err != nil {
		return Roll{}, err
	}
	results := make([]int, count)
	total := 0
	for i := range results {
		results[i] = src.Intn(sides) + 1
		total += results[i]
	}
	return Roll{Sides: sides, Results: results, Total: total}, nil
}
