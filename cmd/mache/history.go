package main

import (
	"context"
	"io"

	"mache/internal/config"
	"mache/internal/format"
	"mache/internal/ledger"
	"mache/internal/meta"
)

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("history", stderr)
	n := fs.Int("n", 10, "number of runs to show")
	path := fs.String("history", "", "history database path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	cfg, err := c.resolve(config.Config{History: config.History{Path: *path}})
	if err != nil {
		return fail(stderr, "history", err)
	}
	l, err := ledger.Open(cfg.History.Path)
	if err != nil {
		return fail(stderr, "history", err)
	}
	defer l.Close()
	runs, err := l.Recent(ctx, *n)
	if err != nil {
		return fail(stderr, "history", err)
	}
	format.History(stdout, runs)
	return exitOK
}

func runVersion(_ context.Context, args []string, stdout, stderr io.Writer) int {
	fs, _ := newFlagSet("version", stderr)
	verbose := fs.Bool("v", false, "also list linked modules")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	meta.Detect().Write(stdout, *verbose)
	return exitOK
}
