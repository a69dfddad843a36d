// Package gitrepo turns a source directory into a git repository holding
// the decompiled and patched trees as two tagged commits, so that edits made
// on top of "patched" can be inspected with plain git before rebuilding
// patches.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mache/internal/diag"
	mcerrors "mache/internal/errors"
	"mache/internal/tree"
)

const (
	Branch        = "mache"
	InitialTag    = "initial"
	DecompiledTag = "decompiled"
	PatchedTag    = "patched"

	gitDir = ".git"
	comp   = "setup"
)

// Ident is the author and committer of generated commits.
type Ident struct {
	Name  string
	Email string
}

// Repo runs git commands in Dir.
type Repo struct {
	Dir   string
	Ident Ident
	Log   *diag.Logger
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-c", "commit.gpgsign=false", "-c", "tag.gpgsign=false", "-c", "core.autocrlf=false"}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Dir = r.Dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME="+r.Ident.Name,
		"GIT_AUTHOR_EMAIL="+r.Ident.Email,
		"GIT_COMMITTER_NAME="+r.Ident.Name,
		"GIT_COMMITTER_EMAIL="+r.Ident.Email,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", mcerrors.IO(fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, out), "git_failed")
	}
	return strings.TrimSpace(string(out)), nil
}

// Sources are the trees materialized by Setup. Failed may be nil.
type Sources struct {
	Decompiled tree.Tree
	Patched    tree.Tree
	Failed     tree.Tree
}

// Setup prepares Dir: a fresh repository with an empty "initial" commit is
// created when none exists, otherwise the existing one is reset to
// "initial" and its other tags dropped. The decompiled tree is committed
// and tagged, then the patched tree, and finally the failed tree is copied
// over the working copy without committing, leaving the rejected material
// for the user to resolve.
func (r *Repo) Setup(ctx context.Context, src Sources) error {
	if src.Decompiled == nil || src.Patched == nil {
		return mcerrors.InvalidArgument("trees_missing", "decompiled and patched trees are required")
	}
	read := []tree.Location{{Name: "decompiled", Path: src.Decompiled.Name()}, {Name: "patched", Path: src.Patched.Name()}}
	if src.Failed != nil {
		read = append(read, tree.Location{Name: "failed", Path: src.Failed.Name()})
	}
	if err := tree.CheckDisjoint([]tree.Location{{Name: "sources", Path: r.Dir}}, read); err != nil {
		return err
	}
	if _, err := exec.LookPath("git"); err != nil {
		return mcerrors.Wrap(err, mcerrors.CategoryInvalidArgument, "git_missing", "install git to set up sources")
	}
	timer := r.Log.StartWithKV(comp, "setup", map[string]string{"dir": r.Dir})

	if err := r.prepare(ctx); err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return err
	}
	if err := r.commitTree(ctx, src.Decompiled, "Decompiled", DecompiledTag); err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return err
	}
	if err := r.commitTree(ctx, src.Patched, "Patched", PatchedTag); err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return err
	}
	n := 0
	if src.Failed != nil {
		var err error
		if n, err = r.overlay(src.Failed); err != nil {
			timer.Fail(mcerrors.CodeOf(err), err.Error())
			return err
		}
	}
	timer.Finish("sources ready", int64(n))
	return nil
}

func (r *Repo) prepare(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(r.Dir, gitDir)); errors.Is(err, os.ErrNotExist) {
		return r.initRepo(ctx)
	}
	if _, err := r.git(ctx, "rev-parse", "-q", "--verify", "refs/tags/"+InitialTag); err != nil {
		r.Log.Warn(comp, "git_unexpected_layout", r.Dir, "no initial tag, recreating repository")
		return r.initRepo(ctx)
	}
	tags, err := r.git(ctx, "tag", "--list")
	if err != nil {
		return err
	}
	var drop []string
	for _, t := range strings.Fields(tags) {
		if t != InitialTag {
			drop = append(drop, t)
		}
	}
	if len(drop) > 0 {
		if _, err := r.git(ctx, append([]string{"tag", "-d"}, drop...)...); err != nil {
			return err
		}
	}
	if err := r.clear(); err != nil {
		return err
	}
	_, err = r.git(ctx, "reset", "--hard", InitialTag)
	return err
}

func (r *Repo) initRepo(ctx context.Context) error {
	if err := os.RemoveAll(r.Dir); err != nil {
		return mcerrors.IO(fmt.Errorf("clean %s: %w", r.Dir, err), "setup_clean_failed")
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return mcerrors.IO(fmt.Errorf("create %s: %w", r.Dir, err), "setup_clean_failed")
	}
	steps := [][]string{
		{"init", "--quiet"},
		{"symbolic-ref", "HEAD", "refs/heads/" + Branch},
		{"commit", "--quiet", "--allow-empty", "-m", "Initial"},
		{"tag", "-a", InitialTag, "-m", InitialTag},
	}
	for _, args := range steps {
		if _, err := r.git(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// clear removes everything in Dir except the .git directory.
func (r *Repo) clear() error {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return mcerrors.IO(fmt.Errorf("list %s: %w", r.Dir, err), "setup_clean_failed")
	}
	for _, e := range entries {
		if e.Name() == gitDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(r.Dir, e.Name())); err != nil {
			return mcerrors.IO(fmt.Errorf("clean %s: %w", e.Name(), err), "setup_clean_failed")
		}
	}
	return nil
}

// commitTree makes the working copy equal to t, commits and tags it.
func (r *Repo) commitTree(ctx context.Context, t tree.Tree, message, tag string) error {
	if err := r.clear(); err != nil {
		return err
	}
	if _, err := r.overlay(t); err != nil {
		return err
	}
	steps := [][]string{
		{"add", "--all", "."},
		{"commit", "--quiet", "--allow-empty", "-m", message},
		{"tag", "-a", tag, "-m", tag},
	}
	for _, args := range steps {
		if _, err := r.git(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// overlay copies every file of t into Dir and returns the count.
func (r *Repo) overlay(t tree.Tree) (int, error) {
	return overlayInto(t, r.Dir)
}

func overlayInto(t tree.Tree, dir string) (int, error) {
	dst, err := tree.Open(dir, tree.Update)
	if err != nil {
		return 0, err
	}
	defer dst.Close()
	files, err := t.List(func(rel string) bool {
		return rel != gitDir && !strings.HasPrefix(rel, gitDir+"/")
	})
	if err != nil {
		return 0, err
	}
	for _, rel := range files {
		if err := tree.Copy(t, dst, rel); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}
