package patcher

import (
	"sort"
)

// Outcome tags a successfully written file.
type Outcome int

const (
	// Unmodified means the file had no patch and was copied as is.
	Unmodified Outcome = iota + 1
	// Patched means a patch was applied to produce the file.
	Patched
)

func (o Outcome) String() string {
	switch o {
	case Unmodified:
		return "unmodified"
	case Patched:
		return "patched"
	default:
		return "unknown"
	}
}

// Failure names a patch that could not be applied and why.
type Failure struct {
	Patch  string `json:"patch"`
	Detail string `json:"detail"`
}

// Result is the outcome of a run. The zero value is the empty success and
// the identity of Fold.
type Result struct {
	Successes map[string]Outcome
	Failures  []Failure
}

// Success is the result of writing one file.
func Success(path string, o Outcome) Result {
	return Result{Successes: map[string]Outcome{path: o}}
}

// Failed is the result of one patch that did not apply.
func Failed(patch, detail string) Result {
	return Result{Failures: []Failure{{Patch: patch, Detail: detail}}}
}

// Fold combines results. It never mutates its arguments, and the combined
// value does not depend on argument order or grouping: successes are
// unioned (Patched wins over Unmodified for the same path) and failures are
// unioned, sorted and de-duplicated. A result with any failure is failed.
func Fold(results ...Result) Result {
	var out Result
	for _, r := range results {
		out.add(r)
	}
	out.Failures = normalizeFailures(out.Failures)
	return out
}

// add merges o into r in place without normalizing failures.
func (r *Result) add(o Result) {
	for p, oc := range o.Successes {
		if r.Successes == nil {
			r.Successes = make(map[string]Outcome)
		}
		if oc > r.Successes[p] {
			r.Successes[p] = oc
		}
	}
	r.Failures = append(r.Failures, o.Failures...)
}

func normalizeFailures(fs []Failure) []Failure {
	if len(fs) == 0 {
		return nil
	}
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Patch != fs[j].Patch {
			return fs[i].Patch < fs[j].Patch
		}
		return fs[i].Detail < fs[j].Detail
	})
	out := fs[:1]
	for _, f := range fs[1:] {
		if f != out[len(out)-1] {
			out = append(out, f)
		}
	}
	return out
}

// OK reports whether the run had no failures.
func (r Result) OK() bool { return len(r.Failures) == 0 }

// Counts returns the number of patched and unmodified files and failures.
func (r Result) Counts() (patched, unmodified, failed int) {
	for _, o := range r.Successes {
		switch o {
		case Patched:
			patched++
		case Unmodified:
			unmodified++
		}
	}
	return patched, unmodified, len(r.Failures)
}

// Paths lists written files in lexical order.
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Successes))
	for p := range r.Successes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
