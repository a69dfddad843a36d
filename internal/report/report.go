// Package report writes the machine-readable summary of an apply run. The
// report carries a sha256 digest over its RFC 8785 canonical form, so two
// runs over the same inputs can be compared by digest alone.
package report

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gowebpki/jcs"

	mcerrors "mache/internal/errors"
	"mache/internal/patcher"
	"mache/internal/validate"
)

const SchemaVersion = "1"

//go:embed report.schema.json
var schemaJSON []byte

var schema = validate.MustCompile("report", schemaJSON)

type Counts struct {
	Patched    int `json:"patched"`
	Unmodified int `json:"unmodified"`
	Failed     int `json:"failed"`
}

// Report is the JSON document written by apply -report.
type Report struct {
	SchemaVersion string            `json:"schema_version"`
	Tool          string            `json:"tool"`
	Command       string            `json:"command"`
	Backend       string            `json:"backend"`
	Fuzz          *int              `json:"fuzz"`
	Baseline      string            `json:"baseline"`
	Patches       string            `json:"patches,omitempty"`
	Output        string            `json:"output"`
	Failed        string            `json:"failed,omitempty"`
	Counts        Counts            `json:"counts"`
	Patched       []string          `json:"patched"`
	Failures      []patcher.Failure `json:"failures"`
	Digest        string            `json:"digest"`
}

// Run describes the invocation a report belongs to.
type Run struct {
	Tool     string
	Backend  string
	Fuzz     *int
	Baseline string
	Patches  string
	Output   string
	Failed   string
}

// New builds a sealed report for res.
func New(run Run, res patcher.Result) (Report, error) {
	patched, unmodified, failed := res.Counts()
	r := Report{
		SchemaVersion: SchemaVersion,
		Tool:          run.Tool,
		Command:       "apply",
		Backend:       run.Backend,
		Fuzz:          run.Fuzz,
		Baseline:      run.Baseline,
		Patches:       run.Patches,
		Output:        run.Output,
		Failed:        run.Failed,
		Counts:        Counts{Patched: patched, Unmodified: unmodified, Failed: failed},
		Patched:       []string{},
		Failures:      []patcher.Failure{},
	}
	for _, p := range res.Paths() {
		if res.Successes[p] == patcher.Patched {
			r.Patched = append(r.Patched, p)
		}
	}
	r.Failures = append(r.Failures, res.Failures...)
	digest, err := Digest(r)
	if err != nil {
		return Report{}, err
	}
	r.Digest = digest
	return r, nil
}

// Digest returns the sha256 of the canonical JSON of r with its digest
// field cleared.
func Digest(r Report) (string, error) {
	r.Digest = ""
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks that the stored digest matches the content.
func Verify(r Report) error {
	want, err := Digest(r)
	if err != nil {
		return err
	}
	if r.Digest != want {
		return mcerrors.New(mcerrors.CategoryInvalidArgument, "report_digest_mismatch", "report digest %q does not match content (%s)", r.Digest, want)
	}
	return nil
}

// Write validates r and writes it atomically to path.
func Write(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := schema.JSON(data); err != nil {
		return mcerrors.Wrap(err, mcerrors.CategoryInvalidArgument, "report_invalid", "")
	}
	if err := writeAtomic(path, data); err != nil {
		return mcerrors.IO(fmt.Errorf("write report %s: %w", path, err), "report_write_failed")
	}
	return nil
}

// Read loads, validates and verifies a report.
func Read(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, mcerrors.IO(fmt.Errorf("read report %s: %w", path, err), "report_read_failed")
	}
	if err := schema.JSON(data); err != nil {
		return Report{}, mcerrors.Wrap(err, mcerrors.CategoryInvalidArgument, "report_invalid", "")
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, mcerrors.Wrap(fmt.Errorf("decode report: %w", err), mcerrors.CategoryInvalidArgument, "report_invalid", "")
	}
	return r, Verify(r)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
