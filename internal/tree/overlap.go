package tree

import (
	"fmt"
	"path/filepath"
	"strings"

	mcerrors "mache/internal/errors"
)

// Location is a tree source named by the flag or role that supplied it.
type Location struct {
	Name string
	Path string
}

// CheckDisjoint fails when a written location overlaps any other location,
// meaning one path equals or contains the other. Opening an output with
// Create wipes it, so this must run before any tree is opened. Empty paths
// are ignored.
func CheckDisjoint(written, read []Location) error {
	all := make([]Location, 0, len(written)+len(read))
	all = append(all, written...)
	all = append(all, read...)
	resolved := make([]string, len(all))
	for i, l := range all {
		if strings.TrimSpace(l.Path) == "" {
			continue
		}
		p, err := resolve(l.Path)
		if err != nil {
			return mcerrors.IO(fmt.Errorf("resolve %s: %w", l.Path, err), "tree_path_invalid")
		}
		resolved[i] = p
	}
	for i := range written {
		if resolved[i] == "" {
			continue
		}
		for j := range all {
			if j == i || resolved[j] == "" {
				continue
			}
			if j < len(written) && j < i {
				continue // pair already checked
			}
			if within(resolved[i], resolved[j]) || within(resolved[j], resolved[i]) {
				return mcerrors.InvalidArgument("paths_overlap", "%s %s and %s %s overlap; they must be separate locations",
					all[i].Name, all[i].Path, all[j].Name, all[j].Path)
			}
		}
	}
	return nil
}

// resolve returns the absolute form of p with symlinks of its deepest
// existing ancestor evaluated, so aliases of one directory compare equal.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rest := ""
	cur := abs
	for {
		if real, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(real, rest), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

// within reports whether child is parent or lies below it.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
