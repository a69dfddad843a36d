package patcher

import (
	"reflect"
	"testing"
)

func sample() []Result {
	return []Result{
		{},
		Success("a/A.java", Unmodified),
		Success("a/A.java", Patched),
		Success("b/B.java", Unmodified),
		Failed("c/C.java.patch", "hunk #1 failed"),
		Failed("Ghost.java.patch", "no matching file found for patch: Ghost.java.patch"),
		Fold(Success("d/D.java", Patched), Failed("c/C.java.patch", "hunk #1 failed")),
	}
}

func TestFoldIdentity(t *testing.T) {
	for i, r := range sample() {
		want := Fold(r)
		if got := Fold(Result{}, r); !reflect.DeepEqual(got, want) {
			t.Fatalf("case %d: left identity: %+v vs %+v", i, got, want)
		}
		if got := Fold(r, Result{}); !reflect.DeepEqual(got, want) {
			t.Fatalf("case %d: right identity: %+v vs %+v", i, got, want)
		}
	}
}

func TestFoldCommutativeAndAssociative(t *testing.T) {
	rs := sample()
	for i, a := range rs {
		for j, b := range rs {
			if !reflect.DeepEqual(Fold(a, b), Fold(b, a)) {
				t.Fatalf("Fold(%d,%d) not commutative", i, j)
			}
			for k, c := range rs {
				left := Fold(Fold(a, b), c)
				right := Fold(a, Fold(b, c))
				if !reflect.DeepEqual(left, right) {
					t.Fatalf("Fold(%d,%d,%d) not associative:\n%+v\n%+v", i, j, k, left, right)
				}
			}
		}
	}
}

func TestFoldMonotonic(t *testing.T) {
	failure := Failed("x.patch", "boom")
	for i, r := range sample() {
		if Fold(r, failure).OK() || Fold(failure, r).OK() {
			t.Fatalf("case %d: folding a failure must fail", i)
		}
	}
}

func TestFoldPatchedWinsAndDeduplicates(t *testing.T) {
	r := Fold(
		Success("A.java", Unmodified),
		Success("A.java", Patched),
		Failed("B.java.patch", "x"),
		Failed("B.java.patch", "x"),
	)
	if r.Successes["A.java"] != Patched {
		t.Fatalf("expected patched, got %v", r.Successes["A.java"])
	}
	if len(r.Failures) != 1 {
		t.Fatalf("expected one failure, got %+v", r.Failures)
	}
	patched, unmodified, failed := r.Counts()
	if patched != 1 || unmodified != 0 || failed != 1 {
		t.Fatalf("Counts = %d %d %d", patched, unmodified, failed)
	}
}

func TestFoldDoesNotMutateInputs(t *testing.T) {
	a := Fold(Failed("z.patch", "z"), Failed("a.patch", "a"))
	b := Failed("m.patch", "m")
	before := append([]Failure(nil), a.Failures...)
	_ = Fold(a, b)
	if !reflect.DeepEqual(a.Failures, before) {
		t.Fatalf("input mutated: %+v", a.Failures)
	}
}

func TestNewFuzzConfig(t *testing.T) {
	if _, err := NewFuzzConfig(-1); err == nil {
		t.Fatal("expected error for negative fuzz")
	}
	f, err := NewFuzzConfig(0)
	if err != nil || !f.Fuzzy() || f.Max() != 0 {
		t.Fatalf("NewFuzzConfig(0) = %+v, %v", f, err)
	}
	if Exact.Fuzzy() {
		t.Fatal("Exact must not be fuzzy")
	}
}
