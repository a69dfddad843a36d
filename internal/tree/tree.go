// Package tree gives the patch engine one view over the two storage shapes
// it meets: zip/jar archives produced by the decompiler and expanded source
// directories. Paths are always '/'-separated and relative to the tree root.
package tree

import (
	"errors"
	"fmt"
	"path"
	"strings"

	mcerrors "mache/internal/errors"
	"mache/internal/textutil"
	"mache/internal/ziputil"
)

// Mode selects how a tree is opened.
type Mode int

const (
	// Read opens existing storage; writes fail.
	Read Mode = iota
	// Create starts from empty storage, discarding whatever was there.
	Create
	// Update opens existing storage (or creates it) and keeps its content.
	Update
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Create:
		return "create"
	case Update:
		return "update"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrReadOnly is returned when writing to a tree opened with Read.
var ErrReadOnly = errors.New("tree is read-only")

// Matcher selects files by root-relative path.
type Matcher func(rel string) bool

// Tree is a hierarchical file namespace backed by an archive or a directory.
type Tree interface {
	// Name describes the backing storage (its path) for diagnostics.
	Name() string
	// List returns matching file paths in lexical order. A nil matcher
	// lists every file.
	List(match Matcher) ([]string, error)
	ReadFile(rel string) ([]byte, error)
	// WriteFile creates or truncates rel, creating parents as needed.
	WriteFile(rel string, data []byte) error
	Exists(rel string) (bool, error)
	// Remove deletes rel. Removing a missing file is not an error.
	Remove(rel string) error
	// Close releases the storage. For writable archives this is when the
	// archive is written.
	Close() error
}

// Open opens source as a tree. Sources ending in .zip or .jar are archives,
// everything else is a directory.
func Open(source string, mode Mode) (Tree, error) {
	if strings.TrimSpace(source) == "" {
		return nil, mcerrors.InvalidArgument("tree_source_empty", "tree source path is empty")
	}
	if IsArchive(source) {
		return openZip(source, mode)
	}
	return openDir(source, mode)
}

// With opens source, runs fn and closes the tree on every exit path. A
// close failure is reported when fn itself succeeded.
func With(source string, mode Mode, fn func(Tree) error) (err error) {
	t, err := Open(source, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := t.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(t)
}

// IsArchive reports whether source names a zip-backed tree.
func IsArchive(source string) bool {
	ext := strings.ToLower(path.Ext(source))
	return ext == ".zip" || ext == ".jar"
}

// Clean normalizes rel and rejects paths escaping the root.
func Clean(rel string) (string, error) {
	p, err := ziputil.CleanPath(rel)
	if err != nil {
		return "", mcerrors.IO(err, "tree_path_invalid")
	}
	return p, nil
}

// Suffix matches paths ending with any of the given suffixes.
func Suffix(suffixes ...string) Matcher {
	return func(rel string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(rel, s) {
				return true
			}
		}
		return false
	}
}

// Glob matches with path.Match semantics. Patterns without a '/' are
// matched against the base name, others against the whole relative path.
func Glob(pattern string) Matcher {
	onBase := !strings.Contains(pattern, "/")
	return func(rel string) bool {
		subject := rel
		if onBase {
			subject = path.Base(rel)
		}
		ok, err := path.Match(pattern, subject)
		return err == nil && ok
	}
}

// ReadLines reads rel as UTF-8 text lines.
func ReadLines(t Tree, rel string) ([]string, error) {
	data, err := t.ReadFile(rel)
	if err != nil {
		return nil, err
	}
	return textutil.SplitLines(data), nil
}

// WriteLines writes lines LF-joined with a trailing newline.
func WriteLines(t Tree, rel string, lines []string) error {
	return t.WriteFile(rel, textutil.JoinLines(lines))
}

// Copy copies rel from src to the same path in dst, byte for byte.
func Copy(src, dst Tree, rel string) error {
	data, err := src.ReadFile(rel)
	if err != nil {
		return err
	}
	return dst.WriteFile(rel, data)
}
