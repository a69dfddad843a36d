// Package unidiff parses, renders and applies unified diffs over line
// slices. It is the text engine behind both patch application and patch
// regeneration: Parse(Format(Diff(a, b))) applied to a yields b.
package unidiff

import "fmt"

// DefaultContext is the number of context lines written around each change.
const DefaultContext = 3

// Op tags a hunk line. The values are the unified diff line prefixes.
type Op byte

const (
	Context Op = ' '
	Delete  Op = '-'
	Insert  Op = '+'
)

// Line is one body line of a hunk.
type Line struct {
	Op   Op
	Text string
}

// Hunk is a contiguous edit region. Starts are 1-based as written in the
// header; a zero count means the hunk sits after line Start.
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

// Patch is the parsed content of one patch file.
type Patch struct {
	OldName string
	NewName string
	Hunks   []Hunk
}

// Header renders the hunk's @@ line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// oldPos is the 0-based index of the first original line the hunk covers.
func (h Hunk) oldPos() int {
	if h.OldLines == 0 {
		return h.OldStart
	}
	return h.OldStart - 1
}

// OldSide returns the lines the hunk expects in the original file.
func (h Hunk) OldSide() []string {
	out := make([]string, 0, h.OldLines)
	for _, l := range h.Lines {
		if l.Op != Insert {
			out = append(out, l.Text)
		}
	}
	return out
}

// NewSide returns the lines the hunk produces.
func (h Hunk) NewSide() []string {
	out := make([]string, 0, h.NewLines)
	for _, l := range h.Lines {
		if l.Op != Delete {
			out = append(out, l.Text)
		}
	}
	return out
}

// Changes counts inserted and deleted lines across all hunks.
func (p *Patch) Changes() (inserted, deleted int) {
	for _, h := range p.Hunks {
		for _, l := range h.Lines {
			switch l.Op {
			case Insert:
				inserted++
			case Delete:
				deleted++
			}
		}
	}
	return inserted, deleted
}
