package main

import (
	"context"
	"fmt"
	"io"

	"mache/internal/config"
	"mache/internal/format"
	"mache/internal/ledger"
	"mache/internal/rebuild"
	"mache/internal/tree"
)

func runRebuild(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("rebuild", stderr)
	base := fs.String("base", "", "decompiled sources the patches apply to (zip, jar or directory)")
	work := fs.String("work", "", "edited source directory")
	patches := fs.String("patches", "", "patch directory to update")
	contextLines := fs.Int("context", 3, "unchanged lines around each change")
	history := fs.String("history", "", "history database path")
	noHistory := fs.Bool("no-history", false, "do not record this run")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *base == "" || *work == "" || *patches == "" {
		fmt.Fprintln(stderr, "mache rebuild: -base, -work and -patches are required")
		fs.Usage()
		return exitInvalid
	}

	if err := requireSource("base", *base); err != nil {
		return fail(stderr, "rebuild", err)
	}
	if err := requireSource("work", *work); err != nil {
		return fail(stderr, "rebuild", err)
	}
	err := tree.CheckDisjoint(
		[]tree.Location{{Name: "-patches", Path: *patches}},
		[]tree.Location{{Name: "-base", Path: *base}, {Name: "-work", Path: *work}},
	)
	if err != nil {
		return fail(stderr, "rebuild", err)
	}

	var over config.Config
	if setFlags(fs)["context"] {
		over.Rebuild.Context = config.Int(*contextLines)
	}
	cfg, err := c.resolve(over)
	if err != nil {
		return fail(stderr, "rebuild", err)
	}
	log := newLogger(stderr, cfg)

	var st rebuild.Stats
	err = tree.With(*base, tree.Read, func(b tree.Tree) error {
		return tree.With(*work, tree.Read, func(w tree.Tree) error {
			return tree.With(*patches, tree.Update, func(p tree.Tree) error {
				var err error
				st, err = rebuild.Rebuild(ctx, rebuild.Trees{Baseline: b, Working: w, Patches: p}, rebuild.Options{
					Context:    *cfg.Rebuild.Context,
					Extensions: cfg.Extensions,
					Log:        log,
				})
				return err
			})
		})
	})
	if err != nil {
		return fail(stderr, "rebuild", err)
	}
	format.RebuildSummary(stdout, st)

	run := ledger.Run{Command: "rebuild", Input: *work, Output: *patches, Written: st.Written, Removed: st.Removed}
	record(ctx, cfg, *history, *noHistory, run, log)
	return exitOK
}
