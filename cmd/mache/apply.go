package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"mache/internal/config"
	"mache/internal/diag"
	mcerrors "mache/internal/errors"
	"mache/internal/format"
	"mache/internal/ledger"
	"mache/internal/patcher"
	"mache/internal/report"
	"mache/internal/tree"
)

type applyFlags struct {
	input, patches, output, failed string
	backend, patchExe, reportPath  string
	history                        string
	noHistory                      bool
	fuzz, workers                  int
}

func runApply(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("apply", stderr)
	var f applyFlags
	fs.StringVar(&f.input, "input", "", "decompiled sources (zip, jar or directory)")
	fs.StringVar(&f.patches, "patches", "", "directory of <path>.patch files (absent means copy only)")
	fs.StringVar(&f.output, "output", "", "patched output (zip, jar or directory, recreated)")
	fs.StringVar(&f.failed, "failed", "", "where rejected material goes (zip, jar or directory, optional)")
	fs.IntVar(&f.fuzz, "fuzz", 0, "allowed hunk offset in lines (omit for exact matching)")
	fs.StringVar(&f.backend, "backend", "", "patch backend: java or native")
	fs.StringVar(&f.patchExe, "patch-exe", "", "patch executable for the native backend")
	fs.IntVar(&f.workers, "workers", 0, "concurrent files (0 = one per CPU)")
	fs.StringVar(&f.reportPath, "report", "", "write a JSON run report to this file")
	fs.StringVar(&f.history, "history", "", "history database path")
	fs.BoolVar(&f.noHistory, "no-history", false, "do not record this run")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if f.input == "" || f.output == "" {
		fmt.Fprintln(stderr, "mache apply: -input and -output are required")
		fs.Usage()
		return exitInvalid
	}

	cfg, err := c.resolve(applyOverrides(fs, f))
	if err != nil {
		return fail(stderr, "apply", err)
	}
	log := newLogger(stderr, cfg)

	res, code, err := apply(ctx, cfg, f, log)
	if err != nil {
		return fail(stderr, "apply", err)
	}
	format.ApplySummary(stdout, res)

	run := ledger.Run{Command: "apply", Backend: cfg.Apply.Backend, Input: f.input, Output: f.output, Failures: res.Failures, ExitCode: code}
	run.Patched, run.Unmodified, _ = res.Counts()
	if f.reportPath != "" {
		rep, err := report.New(report.Run{
			Tool:     "mache",
			Backend:  cfg.Apply.Backend,
			Fuzz:     cfg.Apply.Fuzz,
			Baseline: f.input,
			Patches:  f.patches,
			Output:   f.output,
			Failed:   f.failed,
		}, res)
		if err == nil {
			err = report.Write(f.reportPath, rep)
		}
		if err != nil {
			return fail(stderr, "apply", err)
		}
		run.Digest = rep.Digest
	}
	record(ctx, cfg, f.history, f.noHistory, run, log)
	return code
}

// applyOverrides turns explicitly given flags into a config layer.
func applyOverrides(fs *flag.FlagSet, f applyFlags) config.Config {
	set := setFlags(fs)
	var over config.Config
	over.Apply.Backend = f.backend
	over.Apply.PatchExecutable = f.patchExe
	over.Apply.Workers = f.workers
	if set["fuzz"] {
		over.Apply.Fuzz = config.Int(f.fuzz)
	}
	over.History.Path = f.history
	return over
}

func apply(ctx context.Context, cfg config.Config, f applyFlags, log *diag.Logger) (res patcher.Result, code int, err error) {
	fuzz := patcher.Exact
	if cfg.Apply.Fuzz != nil {
		if fuzz, err = patcher.NewFuzzConfig(*cfg.Apply.Fuzz); err != nil {
			return res, exitInvalid, err
		}
	}
	p, err := patcher.New(patcher.Options{
		Backend:         cfg.Apply.Backend,
		Fuzz:            fuzz,
		PatchExecutable: cfg.Apply.PatchExecutable,
		Workers:         cfg.Apply.Workers,
		Extensions:      cfg.Extensions,
		Log:             log,
	})
	if err != nil {
		return res, exitInvalid, err
	}

	var trees patcher.Trees
	var opened []tree.Tree
	// Output trees are written on Close, so every close must succeed before
	// the run counts as done.
	defer func() {
		for i := len(opened) - 1; i >= 0; i-- {
			if cerr := opened[i].Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	}()
	open := func(source string, mode tree.Mode) (tree.Tree, error) {
		t, err := tree.Open(source, mode)
		if err == nil {
			opened = append(opened, t)
		}
		return t, err
	}

	if err = requireSource("input", f.input); err != nil {
		return res, exitCode(err), err
	}
	err = tree.CheckDisjoint(
		[]tree.Location{{Name: "-output", Path: f.output}, {Name: "-failed", Path: f.failed}},
		[]tree.Location{{Name: "-input", Path: f.input}, {Name: "-patches", Path: f.patches}},
	)
	if err != nil {
		return res, exitCode(err), err
	}
	if trees.Baseline, err = open(f.input, tree.Read); err != nil {
		return res, exitIO, err
	}
	if f.patches != "" {
		if _, statErr := os.Stat(f.patches); statErr == nil {
			if trees.Patches, err = open(f.patches, tree.Read); err != nil {
				return res, exitIO, err
			}
		} else if errors.Is(statErr, os.ErrNotExist) {
			log.Info("apply", "patch directory absent, copying sources", map[string]string{"patches": f.patches})
		} else {
			return res, exitIO, mcerrors.IO(statErr, "patches_stat_failed")
		}
	}
	if trees.Output, err = open(f.output, tree.Create); err != nil {
		return res, exitIO, err
	}
	if f.failed != "" {
		if trees.Failed, err = open(f.failed, tree.Create); err != nil {
			return res, exitIO, err
		}
	}

	if res, err = p.ApplyPatches(ctx, trees); err != nil {
		return res, exitCode(err), err
	}
	if !res.OK() {
		return res, exitFailures, nil
	}
	return res, exitOK, nil
}

// record appends run to the history database unless history is off. The
// run has already happened, so a history failure is only a warning.
func record(ctx context.Context, cfg config.Config, path string, disabled bool, run ledger.Run, log *diag.Logger) {
	if disabled || cfg.History.Disabled {
		return
	}
	if path == "" {
		path = cfg.History.Path
	}
	id, err := appendRun(ctx, path, run)
	if err != nil {
		log.Warn("history", mcerrors.CodeOf(err), path, err.Error())
		return
	}
	log.Debug("history", path, fmt.Sprintf("recorded run #%d", id))
}

func appendRun(ctx context.Context, path string, run ledger.Run) (int64, error) {
	l, err := ledger.Open(path)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Record(ctx, run)
}
