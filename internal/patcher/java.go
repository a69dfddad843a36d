package patcher

import (
	"context"
	"fmt"

	mcerrors "mache/internal/errors"
	"mache/internal/textutil"
	"mache/internal/tree"
	"mache/internal/unidiff"
)

// RejectSuffix names the file written to the failed tree for a patch the
// in-process backend could not apply.
const RejectSuffix = ".rej"

// javaPatcher applies patches in process with unidiff.Apply.
type javaPatcher struct {
	opt Options
}

func (p *javaPatcher) ApplyPatches(ctx context.Context, trees Trees) (Result, error) {
	return drive(ctx, trees, p.opt, p.apply)
}

func (p *javaPatcher) apply(_ context.Context, trees Trees, t task) (Result, error) {
	if !t.hasPatch() {
		if err := tree.Copy(trees.Baseline, trees.Output, t.Source); err != nil {
			return Result{}, err
		}
		return Success(t.Source, Unmodified), nil
	}

	patchText, err := trees.Patches.ReadFile(t.Patch)
	if err != nil {
		return Result{}, err
	}
	original, err := tree.ReadLines(trees.Baseline, t.Source)
	if err != nil {
		return Result{}, err
	}

	parsed, patched, err := applyText(patchText, original, p.opt.Fuzz.Max())
	if err != nil {
		if !mcerrors.Is(err, mcerrors.CategoryMalformedPatch) && !mcerrors.Is(err, mcerrors.CategoryPatchFailed) {
			return Result{}, err
		}
		p.opt.Log.Warn(comp, mcerrors.CodeOf(err), t.Patch, err.Error())
		if trees.Failed != nil {
			if werr := trees.Failed.WriteFile(t.Source+RejectSuffix, textutil.EnsureTrailingLF(textutil.NormalizeUTF8LF(patchText))); werr != nil {
				return Result{}, werr
			}
		}
		return fallback(trees, t, err.Error())
	}

	if err := tree.WriteLines(trees.Output, t.Source, patched); err != nil {
		return Result{}, err
	}
	ins, del := parsed.Changes()
	p.opt.Log.Debug(comp, t.Source, fmt.Sprintf("patched +%d -%d", ins, del))
	return Success(t.Source, Patched), nil
}

func applyText(patchText []byte, original []string, fuzz int) (*unidiff.Patch, []string, error) {
	parsed, err := unidiff.Parse(textutil.SplitLines(patchText))
	if err != nil {
		return nil, nil, err
	}
	patched, err := unidiff.Apply(parsed, original, fuzz)
	return parsed, patched, err
}
