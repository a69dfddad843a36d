// Package validate checks the documents the tool reads and writes: the YAML
// configuration (after conversion to JSON) and the JSON run report. Schema
// checks run through a compiled JSON Schema; semantic checks that a schema
// cannot express are aggregated with Errors so a user sees every problem
// at once.
package validate

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles raw as a JSON Schema. name labels validation errors.
func Compile(name string, raw []byte) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	s, err := compiler.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for embedded schemas known to be valid.
func MustCompile(name string, raw []byte) *Schema {
	s, err := Compile(name, raw)
	if err != nil {
		panic(err)
	}
	return s
}

// JSON validates a JSON document. Violations are reported sorted by
// location.
func (s *Schema) JSON(data []byte) error {
	result := s.schema.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	var errs Errors
	keys := make([]string, 0, len(result.Errors))
	for k := range result.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		errs.Add("%s: %s", k, result.Errors[k].Message)
	}
	if errs.Len() == 0 {
		errs.Add("document does not match schema")
	}
	return fmt.Errorf("%s schema validation failed: %w", s.name, errs.Err())
}

// Errors aggregates validation issues into a single error.
type Errors struct {
	msgs []string
}

func (e *Errors) Add(format string, args ...any) {
	if e == nil {
		return
	}
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *Errors) Len() int {
	if e == nil {
		return 0
	}
	return len(e.msgs)
}

// Err returns nil when nothing was added.
func (e *Errors) Err() error {
	if e.Len() == 0 {
		return nil
	}
	return errors.New(strings.Join(e.msgs, "\n"))
}
