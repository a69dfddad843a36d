package main

import (
	"context"
	"fmt"
	"io"

	"mache/internal/config"
	"mache/internal/gitrepo"
	"mache/internal/tree"
)

func runSetup(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs, c := newFlagSet("setup", stderr)
	decompiled := fs.String("decompiled", "", "decompiled sources (zip, jar or directory)")
	patched := fs.String("patched", "", "patched sources (zip, jar or directory)")
	failed := fs.String("failed", "", "rejected material to overlay (optional)")
	sources := fs.String("sources", "", "git working directory to (re)create")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *decompiled == "" || *patched == "" || *sources == "" {
		fmt.Fprintln(stderr, "mache setup: -decompiled, -patched and -sources are required")
		fs.Usage()
		return exitInvalid
	}
	cfg, err := c.resolve(config.Config{})
	if err != nil {
		return fail(stderr, "setup", err)
	}
	repo := &gitrepo.Repo{
		Dir:   *sources,
		Ident: gitrepo.Ident{Name: cfg.Git.Author, Email: cfg.Git.Email},
		Log:   newLogger(stderr, cfg),
	}

	err = tree.With(*decompiled, tree.Read, func(d tree.Tree) error {
		return tree.With(*patched, tree.Read, func(p tree.Tree) error {
			src := gitrepo.Sources{Decompiled: d, Patched: p}
			if *failed == "" {
				return repo.Setup(ctx, src)
			}
			return tree.With(*failed, tree.Read, func(f tree.Tree) error {
				src.Failed = f
				return repo.Setup(ctx, src)
			})
		})
	})
	if err != nil {
		return fail(stderr, "setup", err)
	}
	fmt.Fprintf(stdout, "sources ready in %s (tags %s, %s, %s)\n", *sources, gitrepo.InitialTag, gitrepo.DecompiledTag, gitrepo.PatchedTag)
	return exitOK
}
