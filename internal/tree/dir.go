package tree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	mcerrors "mache/internal/errors"
	"mache/internal/walkwalk"
)

const gitDir = ".git"

// DirTree is a tree rooted at a filesystem directory.
type DirTree struct {
	root string
	mode Mode
}

func openDir(source string, mode Mode) (*DirTree, error) {
	root, err := filepath.Abs(source)
	if err != nil {
		return nil, mcerrors.IO(err, "tree_open_failed")
	}
	switch mode {
	case Read:
		info, err := os.Stat(root)
		if err != nil {
			return nil, mcerrors.IO(fmt.Errorf("open tree %s: %w", source, err), "tree_open_failed")
		}
		if !info.IsDir() {
			return nil, mcerrors.IO(fmt.Errorf("open tree %s: not a directory", source), "tree_open_failed")
		}
	case Create:
		if err := os.RemoveAll(root); err != nil {
			return nil, mcerrors.IO(fmt.Errorf("clean tree %s: %w", source, err), "tree_open_failed")
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, mcerrors.IO(fmt.Errorf("create tree %s: %w", source, err), "tree_open_failed")
		}
	case Update:
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, mcerrors.IO(fmt.Errorf("create tree %s: %w", source, err), "tree_open_failed")
		}
	default:
		return nil, mcerrors.InvalidArgument("tree_mode_invalid", "unknown tree mode %s", mode)
	}
	return &DirTree{root: root, mode: mode}, nil
}

func (d *DirTree) Name() string { return d.root }

func (d *DirTree) abs(rel string) (string, error) {
	p, err := Clean(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(p)), nil
}

// List walks the directory in lexical order. A .git entry at the root is
// never part of the tree.
func (d *DirTree) List(match Matcher) ([]string, error) {
	files, err := walkwalk.CollectFiles(d.root, walkwalk.Options{Match: match, RootExclude: []string{gitDir}})
	if err != nil {
		return nil, mcerrors.IO(fmt.Errorf("list %s: %w", d.root, err), "tree_list_failed")
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out, nil
}

func (d *DirTree) ReadFile(rel string) ([]byte, error) {
	p, err := d.abs(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, mcerrors.IO(fmt.Errorf("read %s: %w", rel, err), "tree_read_failed")
	}
	return data, nil
}

func (d *DirTree) WriteFile(rel string, data []byte) error {
	if d.mode == Read {
		return mcerrors.IO(fmt.Errorf("write %s: %w", rel, ErrReadOnly), "tree_write_failed")
	}
	p, err := d.abs(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return mcerrors.IO(fmt.Errorf("write %s: %w", rel, err), "tree_write_failed")
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return mcerrors.IO(fmt.Errorf("write %s: %w", rel, err), "tree_write_failed")
	}
	return nil
}

func (d *DirTree) Exists(rel string) (bool, error) {
	p, err := d.abs(rel)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, mcerrors.IO(err, "tree_stat_failed")
	}
	return info.Mode().IsRegular(), nil
}

func (d *DirTree) Remove(rel string) error {
	if d.mode == Read {
		return mcerrors.IO(fmt.Errorf("remove %s: %w", rel, ErrReadOnly), "tree_write_failed")
	}
	p, err := d.abs(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return mcerrors.IO(fmt.Errorf("remove %s: %w", rel, err), "tree_write_failed")
	}
	return nil
}

func (d *DirTree) Close() error { return nil }
