// Package errors classifies failures of the patch engine so that callers can
// tell per-file problems (folded into a run result) from configuration and
// storage problems (which abort the run).
package errors

import (
	"errors"
	"fmt"
)

type Category string

const (
	CategoryMalformedPatch  Category = "malformed_patch"
	CategoryPatchFailed     Category = "patch_failed"
	CategoryUnmatchedPatch  Category = "unmatched_patch"
	CategoryInvalidArgument Category = "invalid_argument"
	CategoryIOFailure       Category = "io_failure"
)

type classifiedError struct {
	category Category
	code     string
	hint     string
	cause    error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Category() Category {
	return e.category
}

// Wrap attaches a category, a stable machine code and an optional hint to
// cause. A nil cause stays nil.
func Wrap(cause error, category Category, code, hint string) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category: category,
		code:     code,
		hint:     hint,
		cause:    cause,
	}
}

// New formats a message and classifies it in one step.
func New(category Category, code, format string, args ...any) error {
	return Wrap(fmt.Errorf(format, args...), category, code, "")
}

// IO wraps a storage failure.
func IO(cause error, code string) error {
	return Wrap(cause, CategoryIOFailure, code, "")
}

// InvalidArgument reports a configuration problem detected before any file
// is processed.
func InvalidArgument(code, format string, args ...any) error {
	return New(CategoryInvalidArgument, code, format, args...)
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

// Is reports whether err carries the given category anywhere in its chain.
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}
