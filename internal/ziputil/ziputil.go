// Package ziputil contains the low-level helpers for reading and writing
// reproducible zip/jar archives used as baseline and output trees.
package ziputil

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FixedZipTime ensures byte-for-byte reproducible archives (1980-01-01 UTC).
var FixedZipTime = time.Unix(315532800, 0).UTC()

// ErrEscapesRoot is returned by CleanPath for paths that leave the root.
var ErrEscapesRoot = fmt.Errorf("path escapes tree root")

// CleanPath normalizes an entry path (forward slashes, no drive, no leading
// '/', no '.' segments). Unlike a lenient sanitizer it refuses paths whose
// '..' segments would climb above the root.
func CleanPath(p string) (string, error) {
	s := strings.ReplaceAll(p, "\\", "/")
	if len(s) > 1 && s[1] == ':' {
		s = s[2:]
	}
	s = strings.TrimLeft(s, "/")
	parts := strings.Split(s, "/")
	stack := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			continue
		}
		if part == ".." {
			if len(stack) == 0 {
				return "", fmt.Errorf("%w: %q", ErrEscapesRoot, p)
			}
			stack = stack[:len(stack)-1]
			continue
		}
		stack = append(stack, part)
	}
	if len(stack) == 0 {
		return "", fmt.Errorf("empty path %q", p)
	}
	return strings.Join(stack, "/"), nil
}

// ReadEntries loads every regular file of the archive at path into memory,
// keyed by cleaned entry name. Directory entries are skipped.
func ReadEntries(path string) (map[string][]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		name, err := CleanPath(f.Name)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", f.Name, err)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		out[name] = data
	}
	return out, nil
}

// WriteFile writes raw bytes as an entry with fixed timestamp and mode.
func WriteFile(zw *zip.Writer, name string, data []byte) error {
	h := &zip.FileHeader{Name: name, Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = FixedZipTime
	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteArchive atomically replaces path with an archive holding entries in
// sorted name order. The archive is staged next to path and renamed into
// place, so a failed write never leaves a truncated jar behind.
func WriteArchive(path string, entries map[string][]byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}

	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := zip.NewWriter(tmp)
	for _, n := range names {
		if err := WriteFile(zw, n, entries[n]); err != nil {
			_ = zw.Close()
			return fail(err)
		}
	}
	if err := zw.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
