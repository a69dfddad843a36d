package patcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	mcerrors "mache/internal/errors"
	"mache/internal/tree"
)

// DefaultPatchExecutable is looked up on PATH when no executable is set.
const DefaultPatchExecutable = "patch"

// nativePatcher runs the system patch tool once per patched file in a
// scratch directory private to the run.
type nativePatcher struct {
	opt Options
	exe string
}

func newNativePatcher(opt Options) (*nativePatcher, error) {
	name := strings.TrimSpace(opt.PatchExecutable)
	if name == "" {
		name = DefaultPatchExecutable
	}
	exe, err := exec.LookPath(name)
	if err != nil {
		return nil, mcerrors.Wrap(err, mcerrors.CategoryInvalidArgument, "patch_executable_missing",
			"install GNU patch or set apply.patch_executable")
	}
	return &nativePatcher{opt: opt, exe: exe}, nil
}

// args builds the command line for one patch file.
func (p *nativePatcher) args(patchFile string) []string {
	args := []string{"-u", "-p1"}
	if p.opt.Fuzz.Fuzzy() {
		args = append(args, fmt.Sprintf("--fuzz=%d", p.opt.Fuzz.Max()))
	}
	return append(args, "--merge=diff3", "-i", patchFile)
}

func (p *nativePatcher) ApplyPatches(ctx context.Context, trees Trees) (res Result, err error) {
	scratch, err := os.MkdirTemp("", "mache-patch-")
	if err != nil {
		return Result{}, mcerrors.IO(err, "scratch_create_failed")
	}
	defer func() {
		if rerr := os.RemoveAll(scratch); rerr != nil && err == nil {
			err = mcerrors.IO(rerr, "scratch_remove_failed")
		}
	}()
	return drive(ctx, trees, p.opt, func(ctx context.Context, trees Trees, t task) (Result, error) {
		return p.apply(ctx, trees, t, scratch)
	})
}

func (p *nativePatcher) apply(ctx context.Context, trees Trees, t task, scratch string) (Result, error) {
	if !t.hasPatch() {
		if err := tree.Copy(trees.Baseline, trees.Output, t.Source); err != nil {
			return Result{}, err
		}
		return Success(t.Source, Unmodified), nil
	}

	dir, err := os.MkdirTemp(scratch, "task-")
	if err != nil {
		return Result{}, mcerrors.IO(err, "scratch_create_failed")
	}
	defer os.RemoveAll(dir)

	work := filepath.Join(dir, "src")
	target := filepath.Join(work, filepath.FromSlash(t.Source))
	patchFile := filepath.Join(dir, "change.patch")
	if err := stage(trees.Baseline, t.Source, target); err != nil {
		return Result{}, err
	}
	if err := stage(trees.Patches, t.Patch, patchFile); err != nil {
		return Result{}, err
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, p.exe, p.args(patchFile)...)
	cmd.Dir = work
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
		data, err := os.ReadFile(target)
		if err != nil {
			return Result{}, mcerrors.IO(err, "scratch_read_failed")
		}
		if err := trees.Output.WriteFile(t.Source, data); err != nil {
			return Result{}, err
		}
		p.opt.Log.Debug(comp, t.Source, "patched")
		return Success(t.Source, Patched), nil
	case errors.As(runErr, &exitErr) && ctx.Err() == nil:
		detail := strings.TrimSpace(out.String())
		if detail == "" {
			detail = runErr.Error()
		}
		p.opt.Log.Warn(comp, "patch_exit_"+fmt.Sprint(exitErr.ExitCode()), t.Patch, detail)
		if trees.Failed != nil {
			if merged, err := os.ReadFile(target); err == nil {
				if err := trees.Failed.WriteFile(t.Source, merged); err != nil {
					return Result{}, err
				}
			}
		}
		return fallback(trees, t, detail)
	default:
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, mcerrors.Wrap(runErr, mcerrors.CategoryIOFailure, "patch_exec_failed", "")
	}
}

// stage copies rel from t to a real file at dst.
func stage(t tree.Tree, rel, dst string) error {
	data, err := t.ReadFile(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return mcerrors.IO(err, "scratch_write_failed")
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return mcerrors.IO(err, "scratch_write_failed")
	}
	return nil
}
