package patcher

import (
	mcerrors "mache/internal/errors"
)

// FuzzConfig bounds how far a hunk may drift from its recorded position.
// The zero value is exact matching.
type FuzzConfig struct {
	max   int
	fuzzy bool
}

// Exact disables fuzzy matching.
var Exact = FuzzConfig{}

// NewFuzzConfig returns a fuzzy configuration allowing up to n lines of
// drift. Negative n is rejected.
func NewFuzzConfig(n int) (FuzzConfig, error) {
	if n < 0 {
		return FuzzConfig{}, mcerrors.InvalidArgument("fuzz_negative", "max-fuzz must be a non-negative integer, got %d", n)
	}
	return FuzzConfig{max: n, fuzzy: true}, nil
}

// Max is the allowed drift in lines.
func (f FuzzConfig) Max() int { return f.max }

// Fuzzy reports whether fuzzy mode was requested, even with a zero bound.
func (f FuzzConfig) Fuzzy() bool { return f.fuzzy }
