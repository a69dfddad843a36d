// Package cache snapshots trees by content hash and computes the delta
// between two snapshots. Patch regeneration uses the delta to visit only
// the files whose content differs from the baseline.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"mache/internal/tree"
)

// Capture hashes every file of t selected by match.
func Capture(t tree.Tree, match tree.Matcher) (*Snapshot, error) {
	paths, err := t.List(match)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{
		Source: t.Name(),
		Files:  make([]SnapFile, 0, len(paths)),
	}
	for _, p := range paths {
		data, err := t.ReadFile(p)
		if err != nil {
			return nil, err
		}
		s.Files = append(s.Files, SnapFile{Path: p, Hash: HashBytes(data), Lines: countLines(data)})
	}
	return s, nil
}

// HashBytes returns the lowercase hex sha256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func countLines(data []byte) int {
	n := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		n++
	}
	return n
}
