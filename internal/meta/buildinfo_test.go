package meta

import (
	"bytes"
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		GoVersion: "go1.25.1",
		Main:      debug.Module{Path: "mache", Version: "v1.2.0"},
		Deps: []*debug.Module{
			{Path: "modernc.org/sqlite", Version: "v1.46.1"},
			{Path: "github.com/goccy/go-yaml", Version: "v1.19.2"},
			{Path: "github.com/sergi/go-diff", Version: "v1.4.0", Replace: &debug.Module{Path: "../go-diff", Version: "v1.4.1"}},
			nil,
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	inf := fromBuildInfo(bi)
	if got, want := inf.String(), "mache v1.2.0 (0123456789ab, dirty) go1.25.1"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
	if len(inf.Deps) != 3 || inf.Deps[0].Path != "github.com/goccy/go-yaml" {
		t.Fatalf("deps not sorted: %+v", inf.Deps)
	}
	if inf.Deps[1].Version != "v1.4.1" {
		t.Fatalf("replacement version not used: %+v", inf.Deps[1])
	}
}

func TestEmptyVersionIsDevel(t *testing.T) {
	inf := fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Path: "mache"}})
	if got := inf.String(); got != "mache (devel)" {
		t.Fatalf("String() = %q", got)
	}
}

func TestWriteVerbose(t *testing.T) {
	inf := Info{Version: "v1.0.0", Deps: []Dep{{Path: "a", Version: "v1"}}}
	var buf bytes.Buffer
	inf.Write(&buf, true)
	if got, want := buf.String(), "mache v1.0.0\n  a v1\n"; got != want {
		t.Fatalf("Write = %q, want %q", got, want)
	}
	buf.Reset()
	inf.Write(&buf, false)
	if got := buf.String(); got != "mache v1.0.0\n" {
		t.Fatalf("Write = %q", got)
	}
}

func TestDetectDoesNotPanic(t *testing.T) {
	if inf := Detect(); inf.Version == "" {
		t.Fatal("Detect returned empty version")
	}
}
