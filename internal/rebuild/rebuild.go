// Package rebuild regenerates patches by diffing a working tree against the
// baseline it was created from. Only files present in both trees produce
// patches; added and removed files are reported and skipped.
package rebuild

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"mache/internal/cache"
	"mache/internal/diag"
	mcerrors "mache/internal/errors"
	"mache/internal/textutil"
	"mache/internal/tree"
	"mache/internal/unidiff"
)

const (
	comp        = "rebuild"
	patchSuffix = ".patch"
	gitDir      = ".git"
)

// Trees groups the storage of one rebuild. Patches must be writable.
type Trees struct {
	Baseline tree.Tree
	Working  tree.Tree
	Patches  tree.Tree
}

// Options tunes a rebuild.
type Options struct {
	// Context is the number of unchanged lines around each change.
	Context    int
	Extensions []string
	Log        *diag.Logger
}

// Stats summarizes a rebuild.
type Stats struct {
	Written        int      `json:"written"`
	Unchanged      int      `json:"unchanged"`
	Removed        int      `json:"removed"`
	SkippedAdded   []string `json:"skipped_added,omitempty"`
	SkippedRemoved []string `json:"skipped_removed,omitempty"`
}

// Rebuild writes one patch per source file whose lines differ between the
// baseline and the working tree, at <path>.patch in the patches tree.
// Patches that already hold the same text are left alone and patches no
// longer backed by a difference are deleted.
func Rebuild(ctx context.Context, trees Trees, opt Options) (Stats, error) {
	var st Stats
	if trees.Baseline == nil || trees.Working == nil || trees.Patches == nil {
		return st, mcerrors.InvalidArgument("trees_missing", "baseline, working and patches trees are required")
	}
	if opt.Context < 0 {
		return st, mcerrors.InvalidArgument("context_negative", "context must not be negative, got %d", opt.Context)
	}
	exts := opt.Extensions
	if len(exts) == 0 {
		exts = []string{".java"}
	}
	match := sources(exts)
	timer := opt.Log.StartWithKV(comp, "rebuild", map[string]string{
		"baseline": trees.Baseline.Name(),
		"working":  trees.Working.Name(),
		"patches":  trees.Patches.Name(),
	})

	base, err := cache.Capture(trees.Baseline, match)
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return st, err
	}
	work, err := cache.Capture(trees.Working, match)
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return st, err
	}
	delta := cache.BuildDelta(base, work)
	if delta.Empty() {
		opt.Log.Debug(comp, trees.Working.Name(), "working tree matches baseline")
	}

	for _, f := range delta.Added {
		st.SkippedAdded = append(st.SkippedAdded, f.Path)
	}
	for _, f := range delta.Removed {
		st.SkippedRemoved = append(st.SkippedRemoved, f.Path)
	}
	for _, r := range delta.Renamed {
		st.SkippedAdded = append(st.SkippedAdded, r.To)
		st.SkippedRemoved = append(st.SkippedRemoved, r.From)
	}
	for _, p := range st.SkippedAdded {
		opt.Log.Warn(comp, "file_added", p, "new files are not turned into patches")
	}

	keep := make(map[string]bool, len(delta.Changed))
	for _, ch := range delta.Changed {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rel := ch.Path + patchSuffix
		text, err := render(trees, ch.Path, opt.Context)
		if err != nil {
			timer.Fail(mcerrors.CodeOf(err), err.Error())
			return st, err
		}
		if text == nil {
			continue
		}
		keep[rel] = true
		wrote, err := writeIfChanged(trees.Patches, rel, text)
		if err != nil {
			timer.Fail(mcerrors.CodeOf(err), err.Error())
			return st, err
		}
		if wrote {
			st.Written++
			opt.Log.Debug(comp, rel, "written")
		} else {
			st.Unchanged++
		}
	}

	existing, err := trees.Patches.List(tree.Suffix(patchSuffix))
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return st, err
	}
	for _, rel := range existing {
		if keep[rel] {
			continue
		}
		if err := trees.Patches.Remove(rel); err != nil {
			timer.Fail(mcerrors.CodeOf(err), err.Error())
			return st, err
		}
		st.Removed++
		opt.Log.Debug(comp, rel, "removed")
	}

	opt.Log.Info(comp, "summary", map[string]string{
		"written":   fmt.Sprint(st.Written),
		"unchanged": fmt.Sprint(st.Unchanged),
		"removed":   fmt.Sprint(st.Removed),
		"skipped":   fmt.Sprint(len(st.SkippedAdded) + len(st.SkippedRemoved)),
	})
	timer.Finish("rebuilt", int64(st.Written+st.Unchanged))
	return st, nil
}

// sources selects files by extension outside a top-level .git directory.
func sources(exts []string) tree.Matcher {
	bySuffix := tree.Suffix(exts...)
	return func(rel string) bool {
		if rel == gitDir || strings.HasPrefix(rel, gitDir+"/") {
			return false
		}
		return bySuffix(rel)
	}
}

// render returns the patch text for path, or nil when the two versions have
// the same lines (for example when only line endings differ).
func render(trees Trees, path string, contextLines int) ([]byte, error) {
	before, err := tree.ReadLines(trees.Baseline, path)
	if err != nil {
		return nil, err
	}
	after, err := tree.ReadLines(trees.Working, path)
	if err != nil {
		return nil, err
	}
	lines := unidiff.Render("a/"+path, "b/"+path, before, after, contextLines)
	if lines == nil {
		return nil, nil
	}
	return textutil.JoinLines(lines), nil
}

func writeIfChanged(t tree.Tree, rel string, text []byte) (bool, error) {
	ok, err := t.Exists(rel)
	if err != nil {
		return false, err
	}
	if ok {
		old, err := t.ReadFile(rel)
		if err != nil {
			return false, err
		}
		if bytes.Equal(old, text) {
			return false, nil
		}
	}
	return true, t.WriteFile(rel, text)
}
