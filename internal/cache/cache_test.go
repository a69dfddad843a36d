package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"mache/internal/tree"
)

func snap(files ...SnapFile) *Snapshot { return &Snapshot{Files: files} }

func TestBuildDelta(t *testing.T) {
	base := snap(
		SnapFile{Path: "A.java", Hash: "a"},
		SnapFile{Path: "B.java", Hash: "b"},
		SnapFile{Path: "Old.java", Hash: "o"},
		SnapFile{Path: "Gone.java", Hash: "g"},
	)
	curr := snap(
		SnapFile{Path: "A.java", Hash: "a"},
		SnapFile{Path: "B.java", Hash: "b2"},
		SnapFile{Path: "New.java", Hash: "o"},
		SnapFile{Path: "Fresh.java", Hash: "f"},
	)
	d := BuildDelta(base, curr)
	if !reflect.DeepEqual(d.Changed, []Change{{Path: "B.java", HashBefore: "b", HashAfter: "b2"}}) {
		t.Fatalf("Changed = %+v", d.Changed)
	}
	if !reflect.DeepEqual(d.Renamed, []Rename{{From: "Old.java", To: "New.java", Hash: "o"}}) {
		t.Fatalf("Renamed = %+v", d.Renamed)
	}
	if len(d.Added) != 1 || d.Added[0].Path != "Fresh.java" {
		t.Fatalf("Added = %+v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0].Path != "Gone.java" {
		t.Fatalf("Removed = %+v", d.Removed)
	}
}

func TestBuildDeltaNilSnapshots(t *testing.T) {
	if d := BuildDelta(nil, nil); !d.Empty() {
		t.Fatalf("expected empty delta, got %+v", d)
	}
	d := BuildDelta(nil, snap(SnapFile{Path: "b"}, SnapFile{Path: "a"}))
	if len(d.Added) != 2 || d.Added[0].Path != "a" {
		t.Fatalf("Added = %+v", d.Added)
	}
	d = BuildDelta(snap(SnapFile{Path: "a"}), nil)
	if len(d.Removed) != 1 {
		t.Fatalf("Removed = %+v", d.Removed)
	}
}

func TestCapture(t *testing.T) {
	dir := t.TempDir()
	for rel, content := range map[string]string{"A.java": "x\ny", "sub/B.java": "z\n", "notes.txt": "n"} {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	tr, err := tree.Open(dir, tree.Read)
	if err != nil {
		t.Fatal(err)
	}
	s, err := Capture(tr, tree.Suffix(".java"))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(s.Files) != 2 || s.Files[0].Path != "A.java" || s.Files[1].Path != "sub/B.java" {
		t.Fatalf("Files = %+v", s.Files)
	}
	if s.Files[0].Lines != 2 || s.Files[1].Lines != 1 {
		t.Fatalf("line counts = %d %d", s.Files[0].Lines, s.Files[1].Lines)
	}
	if s.Files[1].Hash != HashBytes([]byte("z\n")) {
		t.Fatalf("hash mismatch")
	}
}
