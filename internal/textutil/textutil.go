// Package textutil holds the line conventions shared by the patch codec, the
// engine and the rebuilder: files are read as UTF-8 lines split on any line
// terminator and written back LF-joined with exactly one trailing newline.
package textutil

import (
	"bytes"
	"strings"
)

// NormalizeUTF8LF converts CRLF to LF and ensures the output is valid UTF-8
// by replacing invalid byte sequences with the Unicode replacement character.
func NormalizeUTF8LF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
	return bytes.ToValidUTF8(b, []byte("\uFFFD"))
}

// EnsureTrailingLF appends a single \n if not already present.
func EnsureTrailingLF(b []byte) []byte {
	if len(b) == 0 || b[len(b)-1] == '\n' {
		return b
	}
	return append(b, '\n')
}

// SplitLines splits file content into lines without terminators. A final
// line terminator does not produce an empty trailing line, so "a\nb\n" and
// "a\nb" both yield [a b]. Empty input yields no lines.
func SplitLines(b []byte) []string {
	s := string(NormalizeUTF8LF(b))
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// JoinLines is the inverse of SplitLines for writing: LF separators and a
// trailing LF. No lines produce empty content.
func JoinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
