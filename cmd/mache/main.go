// Package main provides the mache CLI, which applies per-file unified diff
// patches to a decompiled source tree and regenerates them from an edited
// copy.
//
// Commands:
//   - apply   : mache apply -input <zip|dir> -output <zip|dir> [-patches dir] [flags]
//   - rebuild : mache rebuild -base <zip|dir> -work <dir> -patches <dir> [flags]
//   - setup   : mache setup -decompiled <zip|dir> -patched <zip|dir> -sources <dir> [flags]
//   - history : mache history [-n 10]
//   - version : mache version [-v]
//
// Exit codes: 0 success, 1 at least one patch failed, 2 invalid input or
// usage, 3 I/O failure.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"mache/internal/config"
	"mache/internal/diag"
	mcerrors "mache/internal/errors"
)

const (
	exitOK       = 0
	exitFailures = 1
	exitInvalid  = 2
	exitIO       = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type command struct {
	name  string
	usage string
	run   func(ctx context.Context, args []string, stdout, stderr io.Writer) int
}

var commands = []command{
	{"apply", "apply patches to a decompiled tree", runApply},
	{"rebuild", "regenerate patches from an edited tree", runRebuild},
	{"setup", "materialize decompiled and patched trees as a git repository", runSetup},
	{"history", "list recorded runs", runHistory},
	{"version", "print build information", runVersion},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitInvalid
	}
	name := args[0]
	if name == "-h" || name == "-help" || name == "--help" || name == "help" {
		usage(stdout)
		return exitOK
	}
	for _, c := range commands {
		if c.name == name {
			return c.run(ctx, args[1:], stdout, stderr)
		}
	}
	fmt.Fprintf(stderr, "mache: unknown command %q\n", name)
	usage(stderr)
	return exitInvalid
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: mache <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintln(w, "\nRun 'mache <command> -h' for the flags of a command.")
}

// common holds the flags every command that touches trees accepts.
type common struct {
	config   string
	logLevel string
	exts     string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *common) {
	fs := flag.NewFlagSet("mache "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	c := &common{}
	fs.StringVar(&c.config, "config", "", "path to config file (default "+config.DefaultPath+" when present)")
	fs.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&c.exts, "ext", "", "comma-separated source extensions (default .java)")
	return fs, c
}

// parseFlags parses args and reports the exit code to use when parsing did
// not succeed.
func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitInvalid, false
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "%s: unexpected arguments: %s\n", fs.Name(), strings.Join(fs.Args(), " "))
		return exitInvalid, false
	}
	return 0, true
}

// setFlags lists the flags given explicitly on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// resolve loads the config file and layers the common flags over it.
func (c *common) resolve(over config.Config) (config.Config, error) {
	cfg, err := config.Resolve(c.config)
	if err != nil {
		return config.Config{}, err
	}
	over.Logging.Level = c.logLevel
	over.Extensions = splitCSV(c.exts)
	return config.Merge(cfg, over), nil
}

func newLogger(stderr io.Writer, cfg config.Config) *diag.Logger {
	runID := strconv.FormatInt(time.Now().UnixNano(), 36)
	return diag.New(stderr, runID, cfg.Logging.Level)
}

// fail prints err with its hint and maps its category to an exit code.
func fail(stderr io.Writer, name string, err error) int {
	fmt.Fprintf(stderr, "mache %s: %v\n", name, err)
	if hint := mcerrors.HintOf(err); hint != "" {
		fmt.Fprintf(stderr, "hint: %s\n", hint)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitIO
	}
	switch mcerrors.CategoryOf(err) {
	case mcerrors.CategoryInvalidArgument:
		return exitInvalid
	case mcerrors.CategoryMalformedPatch, mcerrors.CategoryPatchFailed, mcerrors.CategoryUnmatchedPatch:
		return exitFailures
	default:
		return exitIO
	}
}

// requireSource reports a missing input path as invalid input rather than
// an I/O failure.
func requireSource(flagName, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mcerrors.InvalidArgument("source_missing", "-%s %s does not exist", flagName, path)
		}
		return mcerrors.IO(err, "source_stat_failed")
	}
	return nil
}

// splitCSV converts a comma-separated list into a slice, dropping empty
// items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
