package unidiff

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	mcerrors "mache/internal/errors"
)

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestRenderSingleHunk(t *testing.T) {
	a := []string{"class A {", "  int x = 1;", "}"}
	b := []string{"class A {", "  int x = 2;", "}"}
	got := strings.Join(Render("a/A.java", "b/A.java", a, b, 3), "\n")
	want := `--- a/A.java
+++ b/A.java
@@ -1,3 +1,3 @@
 class A {
-  int x = 1;
+  int x = 2;
 }`
	if got != want {
		t.Fatalf("Render mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestRenderEqualInputsIsEmpty(t *testing.T) {
	a := []string{"x", "y"}
	if got := Render("a/x", "b/x", a, a, 3); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
	if got := Diff("a/x", "b/x", nil, nil, 3); got != nil {
		t.Fatalf("expected nil patch, got %+v", got)
	}
}

func TestRenderContextControlsHunkSplit(t *testing.T) {
	var a []string
	for i := 0; i < 20; i++ {
		a = append(a, "line"+string(rune('a'+i)))
	}
	b := append([]string(nil), a...)
	b[2] = "changed-2"
	b[15] = "changed-15"

	if p := Diff("a", "b", a, b, 3); len(p.Hunks) != 2 {
		t.Fatalf("context 3: expected 2 hunks, got %d", len(p.Hunks))
	}
	if p := Diff("a", "b", a, b, 7); len(p.Hunks) != 1 {
		t.Fatalf("context 7: expected 1 hunk, got %d", len(p.Hunks))
	}
	p := Diff("a", "b", a, b, 0)
	for _, h := range p.Hunks {
		for _, l := range h.Lines {
			if l.Op == Context {
				t.Fatalf("context 0 must not emit context lines: %+v", h)
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		a, b string
	}{
		{"modify middle", "a\nb\nc\n", "a\nB\nc\n"},
		{"insert top", "a\nb\n", "new\na\nb\n"},
		{"append", "a\nb\n", "a\nb\nc\nd\n"},
		{"delete all", "a\nb\n", ""},
		{"from empty", "", "x\ny\n"},
		{"blank lines", "a\n\n\nb\n", "a\n\nb\n\n"},
		{"many edits", "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n", "1\n2x\n3\n4\n5\n6\n7\n8\n9\n10\n11x\n12\n13\n"},
		{"repeated braces", "{\n}\n{\n}\n{\n}\n", "{\n}\n{\n  x;\n}\n{\n}\n"},
	}
	for _, tc := range cases {
		for _, ctx := range []int{0, 1, 3} {
			a, b := split(tc.a), split(tc.b)
			text := Render("a/F.java", "b/F.java", a, b, ctx)
			p, err := Parse(text)
			if err != nil {
				t.Fatalf("%s ctx=%d: Parse: %v\n%s", tc.name, ctx, err, strings.Join(text, "\n"))
			}
			got, err := Apply(p, a, 0)
			if err != nil {
				t.Fatalf("%s ctx=%d: Apply: %v", tc.name, ctx, err)
			}
			if !reflect.DeepEqual(got, b) && !(len(got) == 0 && len(b) == 0) {
				t.Fatalf("%s ctx=%d: got %#v want %#v", tc.name, ctx, got, b)
			}
			if !reflect.DeepEqual(p, Diff("a/F.java", "b/F.java", a, b, ctx)) {
				t.Fatalf("%s ctx=%d: parsed patch differs from computed patch", tc.name, ctx)
			}
		}
	}
}

func TestRenderDeterministic(t *testing.T) {
	a := split("}\n}\n}\nx\n}\n}\n")
	b := split("}\n}\ny\n}\n}\n")
	first := strings.Join(Render("a", "b", a, b, 3), "\n")
	for i := 0; i < 10; i++ {
		if got := strings.Join(Render("a", "b", a, b, 3), "\n"); got != first {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func TestParse(t *testing.T) {
	text := `diff --git a/A.java b/A.java
index 123..456 100644
--- a/A.java	2024-01-01 00:00:00
+++ b/A.java
@@ -1,3 +1,4 @@ class A
 a
-b
+B
+C
 c
@@ -10 +11 @@
-x
+y
\ No newline at end of file


`
	p, err := Parse(split(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.OldName != "a/A.java" || p.NewName != "b/A.java" {
		t.Fatalf("names: %q %q", p.OldName, p.NewName)
	}
	if len(p.Hunks) != 2 {
		t.Fatalf("hunks: %d", len(p.Hunks))
	}
	h := p.Hunks[1]
	if h.OldStart != 10 || h.OldLines != 1 || h.NewStart != 11 || h.NewLines != 1 {
		t.Fatalf("omitted counts must default to 1: %+v", h)
	}
	ins, del := p.Changes()
	if ins != 3 || del != 2 {
		t.Fatalf("Changes = +%d -%d", ins, del)
	}
}

func TestParseBlankContextLine(t *testing.T) {
	// Editors often strip the single space of an empty context line.
	text := []string{"--- a/x", "+++ b/x", "@@ -1,3 +1,3 @@", " a", "", "-b", "+c"}
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := p.Hunks[0].OldSide(); !reflect.DeepEqual(got, []string{"a", "", "b"}) {
		t.Fatalf("OldSide = %#v", got)
	}
}

func TestParseMalformed(t *testing.T) {
	cases := map[string]string{
		"no hunks":       "--- a/x\n+++ b/x\n",
		"missing +++":    "--- a/x\n@@ -1 +1 @@\n-a\n+b\n",
		"bad header":     "--- a/x\n+++ b/x\n@@ -a +b @@\n",
		"truncated":      "--- a/x\n+++ b/x\n@@ -1,3 +1,3 @@\n a\n",
		"too many lines": "--- a/x\n+++ b/x\n@@ -1,1 +1,1 @@\n-a\n+b\n c\n",
		"bad prefix":     "--- a/x\n+++ b/x\n@@ -1,1 +1,1 @@\n*a\n",
		"overlap":        "--- a/x\n+++ b/x\n@@ -1,2 +1,2 @@\n a\n-b\n+c\n@@ -2,1 +2,1 @@\n-b\n+d\n",
		"unordered":      "--- a/x\n+++ b/x\n@@ -5,1 +5,1 @@\n-a\n+b\n@@ -1,1 +1,1 @@\n-c\n+d\n",
		"two files":      "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n--- a/y\n+++ b/y\n",
		"zero start":     "--- a/x\n+++ b/x\n@@ -0,1 +1,1 @@\n-a\n+b\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(split(text))
			if err == nil {
				t.Fatal("expected error")
			}
			if mcerrors.CategoryOf(err) != mcerrors.CategoryMalformedPatch {
				t.Fatalf("expected malformed_patch, got %q (%v)", mcerrors.CategoryOf(err), err)
			}
		})
	}
}

func shiftedFixture() (*Patch, []string) {
	recorded := []string{"class C {", "  int a = 1;", "  int b = 2;", "  int c = 3;", "}"}
	edited := []string{"class C {", "  int a = 1;", "  int b = 20;", "  int c = 3;", "}"}
	p := Diff("a/C.java", "b/C.java", recorded, edited, 3)
	actual := append([]string{"// generated", "// header"}, recorded...)
	return p, actual
}

func TestApplyExactFailsOnShift(t *testing.T) {
	p, actual := shiftedFixture()
	_, err := Apply(p, actual, 0)
	if err == nil {
		t.Fatal("expected failure without fuzz")
	}
	if mcerrors.CategoryOf(err) != mcerrors.CategoryPatchFailed {
		t.Fatalf("expected patch_failed, got %q", mcerrors.CategoryOf(err))
	}
	var herr *HunkError
	if !errors.As(err, &herr) || herr.Index != 1 || herr.Line != 1 {
		t.Fatalf("unexpected hunk error: %v", err)
	}
	if !strings.Contains(err.Error(), "line 1 differs") {
		t.Fatalf("diagnostic missing mismatch detail: %v", err)
	}
}

func TestApplyFuzzFindsShiftedHunk(t *testing.T) {
	p, actual := shiftedFixture()
	got, err := Apply(p, actual, 2)
	if err != nil {
		t.Fatalf("Apply fuzz 2: %v", err)
	}
	if got[4] != "  int b = 20;" || len(got) != len(actual) {
		t.Fatalf("unexpected result: %#v", got)
	}
	if _, err := Apply(p, actual, 1); err == nil {
		t.Fatal("fuzz 1 must not reach a 2-line shift")
	}
}

func TestApplyDriftCarriesToLaterHunks(t *testing.T) {
	var a []string
	for i := 0; i < 30; i++ {
		a = append(a, "l"+string(rune('A'+i)))
	}
	b := append([]string(nil), a...)
	b[3] = "first"
	b[25] = "second"
	p := Diff("a", "b", a, b, 2)
	if len(p.Hunks) != 2 {
		t.Fatalf("expected 2 hunks, got %d", len(p.Hunks))
	}
	shifted := append([]string{"x", "y", "z"}, a...)
	got, err := Apply(p, shifted, 3)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := append([]string{"x", "y", "z"}, b...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v", got)
	}
}

func TestApplyRejectsNegativeFuzz(t *testing.T) {
	p, actual := shiftedFixture()
	_, err := Apply(p, actual, -1)
	if mcerrors.CategoryOf(err) != mcerrors.CategoryInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	a := []string{"a", "b", "c"}
	p := Diff("a", "b", a, []string{"a", "x", "c"}, 1)
	if _, err := Apply(p, a, 0); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, []string{"a", "b", "c"}) {
		t.Fatalf("input modified: %v", a)
	}
}

func TestCharDiff(t *testing.T) {
	got := charDiff("int b = 2;", "int b = 3;")
	if !strings.Contains(got, "[-2-]") || !strings.Contains(got, "{+3+}") {
		t.Fatalf("charDiff = %q", got)
	}
}
