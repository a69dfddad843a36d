package walkwalk

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCollectFilesSortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b/B.java", "b")
	writeFile(t, root, "a/A.java", "a")
	writeFile(t, root, "a/readme.txt", "x")
	writeFile(t, root, ".git/HEAD", "ref")
	writeFile(t, root, ".git/x.java", "nope")
	writeFile(t, root, "sub/.git/keep.java", "nested .git is not the root one")

	files, err := CollectFiles(root, Options{
		Match:       func(rel string) bool { return strings.HasSuffix(rel, ".java") },
		RootExclude: []string{".git"},
	})
	if err != nil {
		t.Fatalf("CollectFiles: %v", err)
	}
	var got []string
	for _, f := range files {
		got = append(got, f.RelPath)
	}
	want := []string{"a/A.java", "b/B.java", "sub/.git/keep.java"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestCollectFilesMissingRoot(t *testing.T) {
	files, err := CollectFiles(filepath.Join(t.TempDir(), "absent"), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}
