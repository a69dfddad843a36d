package unidiff

import (
	difflib "github.com/pmezard/go-difflib/difflib"
)

// Diff computes the patch turning a into b with context lines around each
// change run (negative means DefaultContext). It returns nil when a and b are
// equal.
//
// Matching uses difflib's longest-matching-block algorithm with the
// "popular line" heuristic disabled: decompiled sources repeat lines such as
// "}" far more often than the heuristic tolerates, and the same two inputs
// must always produce the same hunk boundaries.
func Diff(oldName, newName string, a, b []string, context int) *Patch {
	if context < 0 {
		context = DefaultContext
	}
	m := difflib.NewMatcherWithJunk(a, b, false, nil)
	groups := m.GetGroupedOpCodes(context)
	if len(groups) == 0 {
		return nil
	}

	p := &Patch{OldName: oldName, NewName: newName}
	for _, g := range groups {
		first, last := g[0], g[len(g)-1]
		h := Hunk{
			OldStart: unifiedStart(first.I1, last.I2),
			OldLines: last.I2 - first.I1,
			NewStart: unifiedStart(first.J1, last.J2),
			NewLines: last.J2 - first.J1,
		}
		for _, c := range g {
			switch c.Tag {
			case 'e':
				for _, l := range a[c.I1:c.I2] {
					h.Lines = append(h.Lines, Line{Op: Context, Text: l})
				}
			case 'r', 'd', 'i':
				for _, l := range a[c.I1:c.I2] {
					h.Lines = append(h.Lines, Line{Op: Delete, Text: l})
				}
				for _, l := range b[c.J1:c.J2] {
					h.Lines = append(h.Lines, Line{Op: Insert, Text: l})
				}
			}
		}
		p.Hunks = append(p.Hunks, h)
	}
	return p
}

// unifiedStart follows the unified format: 1-based start, and for an empty
// range the line before it.
func unifiedStart(start, stop int) int {
	if stop == start {
		return start
	}
	return start + 1
}

// Format renders p as unified diff lines (no terminators).
func Format(p *Patch) []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, 2+len(p.Hunks)*8)
	out = append(out, "--- "+p.OldName, "+++ "+p.NewName)
	for _, h := range p.Hunks {
		out = append(out, h.Header())
		for _, l := range h.Lines {
			out = append(out, string(l.Op)+l.Text)
		}
	}
	return out
}

// Render is Format(Diff(...)): the unified diff text for a→b, or nil when
// the inputs are equal.
func Render(oldName, newName string, a, b []string, context int) []string {
	return Format(Diff(oldName, newName, a, b, context))
}
