// Package walkwalk provides the deterministic, filterable filesystem walker
// behind directory-backed trees.
package walkwalk

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo is a minimal, deterministic descriptor of a collected file.
type FileInfo struct {
	RelPath string // root-relative path with forward slashes
	AbsPath string // absolute filesystem path
	Size    int64
}

// Options controls which files CollectFiles reports.
type Options struct {
	// Match selects files by root-relative path. Nil accepts everything.
	Match func(rel string) bool
	// RootExclude names top-level entries (files or directories) to skip,
	// e.g. ".git" of a working tree.
	RootExclude []string
	// FollowSymlinks reports symlinked regular files. Symlinked
	// directories are never descended into.
	FollowSymlinks bool
}

type walkState struct {
	opt   Options
	root  string
	skip  map[string]struct{}
	files []FileInfo
}

// CollectFiles walks root and returns matching regular files sorted by
// RelPath. A missing root yields an empty result rather than an error so
// optional trees (an absent patches directory) read as empty.
func CollectFiles(root string, opt Options) ([]FileInfo, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return nil, nil
	}
	state := &walkState{opt: opt, root: abs, skip: make(map[string]struct{}, len(opt.RootExclude))}
	for _, name := range opt.RootExclude {
		state.skip[name] = struct{}{}
	}
	if err := filepath.WalkDir(abs, state.visit); err != nil {
		return nil, err
	}
	sort.Slice(state.files, func(i, j int) bool { return state.files[i].RelPath < state.files[j].RelPath })
	return state.files, nil
}

func (ws *walkState) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if path == ws.root {
		return nil
	}
	rel, ok := ws.relative(path)
	if !ok {
		return nil
	}
	if _, excluded := ws.skip[rel]; excluded {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if isSymlink(d) && !ws.opt.FollowSymlinks {
		return nil
	}
	if d.IsDir() {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	if ws.opt.Match != nil && !ws.opt.Match(rel) {
		return nil
	}
	ws.files = append(ws.files, FileInfo{RelPath: rel, AbsPath: path, Size: info.Size()})
	return nil
}

func (ws *walkState) relative(path string) (string, bool) {
	rel, err := filepath.Rel(ws.root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || rel == ".." {
		return "", false
	}
	return rel, true
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}
