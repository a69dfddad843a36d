package tree

import (
	"archive/zip"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	mcerrors "mache/internal/errors"
)

func seed(t *testing.T, tr Tree, files map[string]string) {
	t.Helper()
	for rel, body := range files {
		if err := tr.WriteFile(rel, []byte(body)); err != nil {
			t.Fatalf("WriteFile(%s): %v", rel, err)
		}
	}
}

func backends(t *testing.T) map[string]string {
	dir := t.TempDir()
	return map[string]string{
		"dir": filepath.Join(dir, "tree"),
		"zip": filepath.Join(dir, "tree.jar"),
	}
}

func TestTreeRoundTripBothBackends(t *testing.T) {
	for name, src := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := With(src, Create, func(tr Tree) error {
				seed(t, tr, map[string]string{
					"net/b/B.java":   "class B {}\n",
					"net/a/A.java":   "class A {}\n",
					"META-INF/x.txt": "meta\n",
				})
				return nil
			})
			if err != nil {
				t.Fatalf("create: %v", err)
			}

			err = With(src, Read, func(tr Tree) error {
				got, err := tr.List(Suffix(".java"))
				if err != nil {
					return err
				}
				want := []string{"net/a/A.java", "net/b/B.java"}
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("List = %v want %v", got, want)
				}
				lines, err := ReadLines(tr, "net/a/A.java")
				if err != nil {
					return err
				}
				if !reflect.DeepEqual(lines, []string{"class A {}"}) {
					t.Fatalf("ReadLines = %#v", lines)
				}
				ok, err := tr.Exists("META-INF/x.txt")
				if err != nil || !ok {
					t.Fatalf("Exists = %v, %v", ok, err)
				}
				if err := tr.WriteFile("x", nil); !errors.Is(err, ErrReadOnly) {
					t.Fatalf("expected ErrReadOnly, got %v", err)
				}
				_, err = tr.ReadFile("missing.java")
				if !errors.Is(err, fs.ErrNotExist) {
					t.Fatalf("expected not-exist error, got %v", err)
				}
				return nil
			})
			if err != nil {
				t.Fatalf("read: %v", err)
			}
		})
	}
}

func TestTreeUpdateKeepsAndRemoves(t *testing.T) {
	for name, src := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := With(src, Create, func(tr Tree) error {
				seed(t, tr, map[string]string{"a.patch": "1", "b.patch": "2"})
				return nil
			}); err != nil {
				t.Fatal(err)
			}
			if err := With(src, Update, func(tr Tree) error {
				return tr.Remove("a.patch")
			}); err != nil {
				t.Fatal(err)
			}
			if err := With(src, Read, func(tr Tree) error {
				got, _ := tr.List(nil)
				if !reflect.DeepEqual(got, []string{"b.patch"}) {
					t.Fatalf("after remove: %v", got)
				}
				return nil
			}); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCreateInitializesEmptyArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out", "empty.zip")
	tr, err := Open(src, Create)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()
	zr, err := zip.OpenReader(src)
	if err != nil {
		t.Fatalf("archive should exist right after Open: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 0 {
		t.Fatalf("expected empty archive, got %d entries", len(zr.File))
	}
}

func TestCreateCleansDirectory(t *testing.T) {
	src := filepath.Join(t.TempDir(), "out")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "stale.java"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := With(src, Create, func(tr Tree) error {
		got, _ := tr.List(nil)
		if len(got) != 0 {
			t.Fatalf("expected clean tree, got %v", got)
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}

func TestEscapingPathRejected(t *testing.T) {
	for name, src := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := With(src, Create, func(tr Tree) error {
				return tr.WriteFile("../evil.java", []byte("x"))
			})
			if mcerrors.CategoryOf(err) != mcerrors.CategoryIOFailure {
				t.Fatalf("expected io_failure, got %v (%q)", err, mcerrors.CategoryOf(err))
			}
		})
	}
}

func TestOpenMissingFailsWithIOError(t *testing.T) {
	for _, src := range []string{
		filepath.Join(t.TempDir(), "nope"),
		filepath.Join(t.TempDir(), "nope.jar"),
	} {
		_, err := Open(src, Read)
		if mcerrors.CategoryOf(err) != mcerrors.CategoryIOFailure {
			t.Fatalf("Open(%s): expected io_failure, got %v", src, err)
		}
	}
}

func TestGlob(t *testing.T) {
	m := Glob("*.java")
	if !m("a/b/C.java") || m("a/b/C.kt") {
		t.Fatal("base-name glob mismatch")
	}
	m = Glob("net/*/A.java")
	if !m("net/x/A.java") || m("org/x/A.java") {
		t.Fatal("path glob mismatch")
	}
}

func TestDirTreeListSkipsRootGit(t *testing.T) {
	root := t.TempDir()
	tr, err := Open(root, Update)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, tr, map[string]string{".git/HEAD": "ref", "a/.git/keep": "x", "A.java": "a"})
	got, err := tr.List(nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"A.java", "a/.git/keep"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
}

func TestCheckDisjoint(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "decompiled")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "alias")
	haveLink := os.Symlink(in, link) == nil

	cases := []struct {
		name    string
		written []Location
		read    []Location
		overlap bool
	}{
		{"separate", []Location{{"-output", filepath.Join(root, "out")}}, []Location{{"-input", in}}, false},
		{"common prefix", []Location{{"-output", in + "2"}}, []Location{{"-input", in}}, false},
		{"same", []Location{{"-output", in}}, []Location{{"-input", in}}, true},
		{"same after cleaning", []Location{{"-output", in + "/./"}}, []Location{{"-input", in}}, true},
		{"output is parent", []Location{{"-output", root}}, []Location{{"-input", in}}, true},
		{"output inside input", []Location{{"-output", filepath.Join(in, "out.jar")}}, []Location{{"-input", in}}, true},
		{"two outputs nested", []Location{{"-output", filepath.Join(root, "out")}, {"-failed", filepath.Join(root, "out", "failed")}}, nil, true},
		{"reads may overlap", []Location{{"-output", filepath.Join(root, "out")}}, []Location{{"-input", in}, {"-patches", filepath.Join(in, "patches")}}, false},
		{"empty ignored", []Location{{"-failed", ""}}, []Location{{"-input", in}}, false},
	}
	if haveLink {
		cases = append(cases, struct {
			name    string
			written []Location
			read    []Location
			overlap bool
		}{"symlink alias", []Location{{"-output", link}}, []Location{{"-input", in}}, true})
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckDisjoint(tc.written, tc.read)
			if tc.overlap {
				if mcerrors.CodeOf(err) != "paths_overlap" {
					t.Fatalf("expected paths_overlap, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
