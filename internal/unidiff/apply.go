package unidiff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	mcerrors "mache/internal/errors"
)

// HunkError describes a hunk whose original-side lines could not be found
// in the target within the allowed fuzz.
type HunkError struct {
	Index  int // 1-based hunk number
	Header string
	Line   int // 1-based line where the hunk was expected
	Fuzz   int
	Detail string
}

func (e *HunkError) Error() string {
	msg := fmt.Sprintf("hunk #%d %s failed at line %d", e.Index, e.Header, e.Line)
	if e.Fuzz > 0 {
		msg += fmt.Sprintf(" (fuzz %d)", e.Fuzz)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Apply applies p to lines and returns the patched lines. With fuzz == 0 each
// hunk must match exactly where its header says (shifted by the offset at
// which the previous hunk matched). With fuzz > 0 a hunk may also match up to
// fuzz lines before or after that position; the nearest position wins and
// earlier beats later at equal distance. Hunks never overlap the region
// consumed by the previous hunk. lines is not modified.
func Apply(p *Patch, lines []string, fuzz int) ([]string, error) {
	if fuzz < 0 {
		return nil, mcerrors.InvalidArgument("fuzz_negative", "fuzz must be a non-negative integer, got %d", fuzz)
	}
	out := make([]string, 0, len(lines))
	cursor, drift := 0, 0
	for idx, h := range p.Hunks {
		old := h.OldSide()
		want := h.oldPos() + drift
		pos, ok := locate(lines, old, want, cursor, fuzz)
		if !ok {
			herr := &HunkError{
				Index:  idx + 1,
				Header: h.Header(),
				Line:   want + 1,
				Fuzz:   fuzz,
				Detail: describeMismatch(old, lines, want),
			}
			return nil, mcerrors.Wrap(herr, mcerrors.CategoryPatchFailed, "hunk_mismatch", "")
		}
		out = append(out, lines[cursor:pos]...)
		out = append(out, h.NewSide()...)
		cursor = pos + len(old)
		drift = pos - h.oldPos()
	}
	out = append(out, lines[cursor:]...)
	return out, nil
}

func locate(lines, old []string, want, floor, fuzz int) (int, bool) {
	for d := 0; d <= fuzz; d++ {
		for _, pos := range candidates(want, d) {
			if pos < floor || pos+len(old) > len(lines) {
				continue
			}
			if matchAt(lines, old, pos) {
				return pos, true
			}
		}
	}
	return 0, false
}

func candidates(want, d int) []int {
	if d == 0 {
		return []int{want}
	}
	return []int{want - d, want + d}
}

func matchAt(lines, old []string, pos int) bool {
	for i, l := range old {
		if lines[pos+i] != l {
			return false
		}
	}
	return true
}

// describeMismatch explains why old does not match at pos: either the file is
// too short or the first differing line, shown as a character diff where
// [-x-] is expected text missing from the file and {+y+} is unexpected text.
func describeMismatch(old, lines []string, pos int) string {
	if pos < 0 || pos > len(lines) {
		return fmt.Sprintf("position outside file of %d lines", len(lines))
	}
	for i, want := range old {
		at := pos + i
		if at >= len(lines) {
			return fmt.Sprintf("file ends at line %d, hunk expects %d more line(s)", len(lines), len(old)-i)
		}
		if got := lines[at]; got != want {
			return fmt.Sprintf("line %d differs: %s", at+1, charDiff(want, got))
		}
	}
	return "context overlaps the previous hunk"
}

func charDiff(want, got string) string {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(want, got, false))
	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		}
	}
	return b.String()
}
