// Package patcher applies a tree of unified-diff patches to a baseline tree
// of decompiled sources. Every baseline source file ends up in the output:
// patched when its patch applies, copied unchanged when it has none, and
// copied unchanged (with the failure recorded) when its patch does not
// apply. Patches without a baseline file are failures too.
package patcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"mache/internal/diag"
	mcerrors "mache/internal/errors"
	"mache/internal/tree"
)

const (
	BackendJava   = "java"
	BackendNative = "native"

	// PatchSuffix is appended to a source path to find its patch.
	PatchSuffix = ".patch"

	comp = "patcher"
)

// DefaultExtensions selects the files considered sources.
var DefaultExtensions = []string{".java"}

// Trees groups the storage a run reads and writes. Patches and Failed may be
// nil. Baseline is only read.
type Trees struct {
	Baseline tree.Tree
	Patches  tree.Tree
	Output   tree.Tree
	Failed   tree.Tree
}

// Patcher applies patches from trees.Patches to trees.Baseline, writing
// trees.Output. Per-file problems are folded into the Result; the error is
// reserved for problems that abort the run.
type Patcher interface {
	ApplyPatches(ctx context.Context, trees Trees) (Result, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend         string
	Fuzz            FuzzConfig
	PatchExecutable string
	Workers         int
	Extensions      []string
	Log             *diag.Logger
}

// New returns the backend named by opt.Backend (java when empty).
func New(opt Options) (Patcher, error) {
	if opt.Workers < 0 {
		return nil, mcerrors.InvalidArgument("workers_negative", "workers must not be negative, got %d", opt.Workers)
	}
	if opt.Workers == 0 {
		opt.Workers = runtime.NumCPU()
	}
	if len(opt.Extensions) == 0 {
		opt.Extensions = DefaultExtensions
	}
	switch strings.ToLower(strings.TrimSpace(opt.Backend)) {
	case "", BackendJava:
		return &javaPatcher{opt: opt}, nil
	case BackendNative:
		return newNativePatcher(opt)
	default:
		return nil, mcerrors.InvalidArgument("backend_unknown", "unknown patch backend %q (want %s or %s)", opt.Backend, BackendJava, BackendNative)
	}
}

// task is one baseline source file and, when present, its patch.
type task struct {
	Source string
	Patch  string
}

func (t task) hasPatch() bool { return t.Patch != "" }

type applyFunc func(ctx context.Context, trees Trees, t task) (Result, error)

// drive runs the steps shared by both backends: enumerate sources, pair them
// with patches, apply in a bounded pool and report unmatched patches.
func drive(ctx context.Context, trees Trees, opt Options, apply applyFunc) (Result, error) {
	if trees.Baseline == nil || trees.Output == nil {
		return Result{}, mcerrors.InvalidArgument("trees_missing", "baseline and output trees are required")
	}
	timer := opt.Log.StartWithKV(comp, "apply", map[string]string{
		"baseline": trees.Baseline.Name(),
		"output":   trees.Output.Name(),
	})

	isSource := tree.Suffix(opt.Extensions...)
	sources, err := trees.Baseline.List(isSource)
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return Result{}, err
	}
	resources, err := copyResources(ctx, trees, isSource)
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return Result{}, err
	}
	if resources > 0 {
		opt.Log.Debug(comp, trees.Baseline.Name(), fmt.Sprintf("copied %d non-source entries", resources))
	}
	patches, err := listPatches(trees.Patches)
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return Result{}, err
	}

	if len(patches) == 0 {
		res, err := copyAll(ctx, trees, sources)
		if err != nil {
			timer.Fail(mcerrors.CodeOf(err), err.Error())
			return Result{}, err
		}
		timer.Finish("no patches, copied baseline", int64(len(sources)))
		return res, nil
	}

	available := make(map[string]bool, len(patches))
	for _, p := range patches {
		available[p] = true
	}
	tasks := make([]task, 0, len(sources))
	matched := make(map[string]bool, len(patches))
	for _, src := range sources {
		t := task{Source: src}
		if p := src + PatchSuffix; available[p] {
			t.Patch = p
			matched[p] = true
		}
		tasks = append(tasks, t)
	}

	res, err := runPool(ctx, opt.Workers, tasks, func(ctx context.Context, t task) (Result, error) {
		return apply(ctx, trees, t)
	})
	if err != nil {
		timer.Fail(mcerrors.CodeOf(err), err.Error())
		return Result{}, err
	}

	var unmatched []Result
	for _, p := range patches {
		if matched[p] {
			continue
		}
		opt.Log.Warn(comp, string(mcerrors.CategoryUnmatchedPatch), p, "no matching file")
		unmatched = append(unmatched, Failed(p, "no matching file found for patch: "+p))
	}
	res = Fold(append([]Result{res}, unmatched...)...)

	patched, unmodified, failed := res.Counts()
	opt.Log.Info(comp, "summary", map[string]string{
		"patched":    fmt.Sprint(patched),
		"unmodified": fmt.Sprint(unmodified),
		"failed":     fmt.Sprint(failed),
	})
	timer.Finish("applied", int64(len(tasks)))
	return res, nil
}

func listPatches(t tree.Tree) ([]string, error) {
	if t == nil {
		return nil, nil
	}
	return t.List(tree.Suffix(PatchSuffix))
}

// copyResources copies every baseline entry that is not a source verbatim
// and returns how many were copied. Resources never take part in the result.
func copyResources(ctx context.Context, trees Trees, isSource tree.Matcher) (int, error) {
	rest, err := trees.Baseline.List(func(rel string) bool { return !isSource(rel) })
	if err != nil {
		return 0, err
	}
	for _, rel := range rest {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := tree.Copy(trees.Baseline, trees.Output, rel); err != nil {
			return 0, err
		}
	}
	return len(rest), nil
}

func copyAll(ctx context.Context, trees Trees, sources []string) (Result, error) {
	res := Result{Successes: make(map[string]Outcome, len(sources))}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := tree.Copy(trees.Baseline, trees.Output, src); err != nil {
			return Result{}, err
		}
		res.Successes[src] = Unmodified
	}
	return res, nil
}

// fallback writes the original in place of a file whose patch failed and
// returns the failure.
func fallback(trees Trees, t task, detail string) (Result, error) {
	if err := tree.Copy(trees.Baseline, trees.Output, t.Source); err != nil {
		return Result{}, err
	}
	return Failed(t.Patch, detail), nil
}

// runPool applies tasks with at most workers goroutines. Each worker folds
// its own partial result; partials are folded once all workers are done.
// The first fatal error cancels the remaining work.
func runPool(ctx context.Context, workers int, tasks []task, fn func(context.Context, task) (Result, error)) (Result, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers == 0 {
		return Result{}, ctx.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan task, workers*2)
	partial := make([]Result, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			for t := range jobs {
				if errs[w] != nil || ctx.Err() != nil {
					continue
				}
				r, err := fn(ctx, t)
				if err != nil {
					errs[w] = fmt.Errorf("%s: %w", t.Source, err)
					cancel()
					continue
				}
				partial[w].add(r)
			}
		}(w)
	}

	go func() {
		defer close(jobs)
		for _, t := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- t:
			}
		}
	}()
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Fold(partial...), nil
}
