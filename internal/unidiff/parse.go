package unidiff

import (
	"regexp"
	"strconv"
	"strings"

	mcerrors "mache/internal/errors"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

func malformed(line int, format string, args ...any) error {
	args = append([]any{line}, args...)
	return mcerrors.New(mcerrors.CategoryMalformedPatch, "patch_malformed", "line %d: "+format, args...)
}

// Parse reads the unified diff of a single file. Leading noise such as
// "diff --git" or "index" lines is skipped, as are blank lines between and
// after hunks. Hunk bodies must match their header counts exactly and hunks
// must be ascending and non-overlapping.
func Parse(lines []string) (*Patch, error) {
	p := &Patch{}
	i := 0

	for i < len(lines) && !strings.HasPrefix(lines[i], "--- ") && !strings.HasPrefix(lines[i], "@@") {
		i++
	}
	if i < len(lines) && strings.HasPrefix(lines[i], "--- ") {
		p.OldName = headerName(lines[i][4:])
		i++
		if i >= len(lines) || !strings.HasPrefix(lines[i], "+++ ") {
			return nil, malformed(i+1, "expected '+++' header after '---'")
		}
		p.NewName = headerName(lines[i][4:])
		i++
	}

	for i < len(lines) {
		line := lines[i]
		switch {
		case strings.TrimSpace(line) == "":
			i++
		case strings.HasPrefix(line, `\`):
			i++
		case strings.HasPrefix(line, "@@"):
			h, next, err := parseHunk(lines, i)
			if err != nil {
				return nil, err
			}
			if n := len(p.Hunks); n > 0 {
				prev := p.Hunks[n-1]
				if h.oldPos() < prev.oldPos()+prev.OldLines {
					return nil, malformed(i+1, "hunk %s overlaps or precedes %s", h.Header(), prev.Header())
				}
			}
			p.Hunks = append(p.Hunks, h)
			i = next
		case strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "diff "):
			return nil, malformed(i+1, "patch describes more than one file")
		default:
			return nil, malformed(i+1, "unexpected content %q", line)
		}
	}

	if len(p.Hunks) == 0 {
		return nil, malformed(len(lines), "no hunks found")
	}
	return p, nil
}

// headerName drops a trailing tab-separated timestamp from a ---/+++ value.
func headerName(s string) string {
	if i := strings.IndexByte(s, '\t'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func parseHunk(lines []string, at int) (Hunk, int, error) {
	m := hunkHeaderRe.FindStringSubmatch(lines[at])
	if m == nil {
		return Hunk{}, 0, malformed(at+1, "bad hunk header %q", lines[at])
	}
	var h Hunk
	var err error
	if h.OldStart, h.OldLines, err = rangeOf(m[1], m[2]); err != nil {
		return Hunk{}, 0, malformed(at+1, "bad old range: %v", err)
	}
	if h.NewStart, h.NewLines, err = rangeOf(m[3], m[4]); err != nil {
		return Hunk{}, 0, malformed(at+1, "bad new range: %v", err)
	}
	if h.OldLines > 0 && h.OldStart == 0 {
		return Hunk{}, 0, malformed(at+1, "old range starts at 0 with %d lines", h.OldLines)
	}

	i := at + 1
	oldSeen, newSeen := 0, 0
	for oldSeen < h.OldLines || newSeen < h.NewLines {
		if i >= len(lines) {
			return Hunk{}, 0, malformed(at+1, "hunk %s truncated: got -%d +%d lines", h.Header(), oldSeen, newSeen)
		}
		line := lines[i]
		i++
		if strings.HasPrefix(line, `\`) {
			continue
		}
		op, text := Context, ""
		if line != "" {
			op, text = Op(line[0]), line[1:]
		}
		switch op {
		case Context:
			oldSeen++
			newSeen++
		case Delete:
			oldSeen++
		case Insert:
			newSeen++
		default:
			return Hunk{}, 0, malformed(i, "unexpected hunk line %q", line)
		}
		if oldSeen > h.OldLines || newSeen > h.NewLines {
			return Hunk{}, 0, malformed(i, "hunk %s has more lines than its header declares", h.Header())
		}
		h.Lines = append(h.Lines, Line{Op: op, Text: text})
	}
	for i < len(lines) && strings.HasPrefix(lines[i], `\`) {
		i++
	}
	return h, i, nil
}

func rangeOf(start, count string) (int, int, error) {
	s, err := strconv.Atoi(start)
	if err != nil {
		return 0, 0, err
	}
	n := 1
	if count != "" {
		if n, err = strconv.Atoi(count); err != nil {
			return 0, 0, err
		}
	}
	return s, n, nil
}
