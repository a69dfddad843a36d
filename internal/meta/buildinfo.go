// Package meta reports build metadata of the mache binary itself: module
// version, VCS revision and the library versions it was linked against.
//
// Everything is best-effort: binaries built outside a module (go run on a
// file, stripped builds) simply report "(devel)".
package meta

import (
	"fmt"
	"io"
	"runtime/debug"
	"sort"
	"strings"
)

const devel = "(devel)"

// Info is a minimal, tool-friendly summary of how the binary was built.
type Info struct {
	Module    string
	Version   string
	GoVersion string
	Revision  string // short VCS revision, "" when unknown
	Modified  bool   // working tree had uncommitted changes
	Deps      []Dep  // sorted by path
}

// Dep is one linked module.
type Dep struct {
	Path    string
	Version string
}

// Detect reads the build information embedded by the Go toolchain.
func Detect() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: devel}
	}
	return fromBuildInfo(bi)
}

func fromBuildInfo(bi *debug.BuildInfo) Info {
	inf := Info{
		Module:    bi.Main.Path,
		Version:   firstNonEmpty(bi.Main.Version, devel),
		GoVersion: bi.GoVersion,
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			inf.Revision = shortRev(s.Value)
		case "vcs.modified":
			inf.Modified = s.Value == "true"
		}
	}
	for _, d := range bi.Deps {
		if d == nil {
			continue
		}
		// A replaced module reports the replacement's version.
		v := d.Version
		if d.Replace != nil && d.Replace.Version != "" {
			v = d.Replace.Version
		}
		inf.Deps = append(inf.Deps, Dep{Path: d.Path, Version: v})
	}
	sort.Slice(inf.Deps, func(i, j int) bool { return inf.Deps[i].Path < inf.Deps[j].Path })
	return inf
}

// String renders the one-line form used by `mache version`.
func (inf Info) String() string {
	var b strings.Builder
	b.WriteString("mache ")
	b.WriteString(firstNonEmpty(inf.Version, devel))
	if inf.Revision != "" {
		b.WriteString(" (")
		b.WriteString(inf.Revision)
		if inf.Modified {
			b.WriteString(", dirty")
		}
		b.WriteString(")")
	}
	if inf.GoVersion != "" {
		b.WriteString(" ")
		b.WriteString(inf.GoVersion)
	}
	return b.String()
}

// Write prints the summary line followed, when verbose, by each dependency.
func (inf Info) Write(w io.Writer, verbose bool) {
	fmt.Fprintln(w, inf.String())
	if !verbose {
		return
	}
	for _, d := range inf.Deps {
		fmt.Fprintf(w, "  %s %s\n", d.Path, d.Version)
	}
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
