package ledger

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"mache/internal/patcher"
)

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "history.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()
	ctx := context.Background()

	first := Run{
		Started: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Command: "apply", Backend: "java", Input: "in.jar", Output: "out.jar",
		Patched: 3, Unmodified: 10, ExitCode: 1,
		Failures: []patcher.Failure{{Patch: "b.patch", Detail: "hunk #1 failed"}, {Patch: "a.patch", Detail: "no matching file"}},
	}
	if _, err := l.Record(ctx, first); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := l.Record(ctx, Run{Command: "rebuild", Written: 2, Removed: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 || runs[0].Command != "rebuild" || runs[1].Command != "apply" {
		t.Fatalf("unexpected order: %+v", runs)
	}
	got := runs[1]
	if !got.Started.Equal(first.Started) || got.Patched != 3 || got.ExitCode != 1 || got.Failed() != 2 {
		t.Fatalf("unexpected run: %+v", got)
	}
	want := []patcher.Failure{{Patch: "a.patch", Detail: "no matching file"}, {Patch: "b.patch", Detail: "hunk #1 failed"}}
	if !reflect.DeepEqual(got.Failures, want) {
		t.Fatalf("failures = %+v", got.Failures)
	}

	limited, err := l.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("Recent(1) = %v, %v", limited, err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Record(context.Background(), Run{Command: "apply"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	l, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	runs, err := l.Recent(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("Recent = %v, %v", runs, err)
	}
}
