package tree

import (
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	mcerrors "mache/internal/errors"
	"mache/internal/ziputil"
)

// ZipTree is a tree backed by a zip or jar archive. The archive is held in
// memory while open; writable archives are written on Close in sorted entry
// order with fixed timestamps.
type ZipTree struct {
	path    string
	mode    Mode
	mu      sync.Mutex
	entries map[string][]byte
	dirty   bool
	closed  bool
}

func openZip(source string, mode Mode) (*ZipTree, error) {
	z := &ZipTree{path: source, mode: mode, entries: map[string][]byte{}}
	switch mode {
	case Read:
		entries, err := ziputil.ReadEntries(source)
		if err != nil {
			return nil, mcerrors.IO(fmt.Errorf("open archive %s: %w", source, err), "tree_open_failed")
		}
		z.entries = entries
	case Create:
		// A fresh empty archive replaces whatever was at the path.
		if err := ziputil.WriteArchive(source, nil); err != nil {
			return nil, mcerrors.IO(fmt.Errorf("create archive %s: %w", source, err), "tree_open_failed")
		}
		z.dirty = true
	case Update:
		if _, err := os.Stat(source); err == nil {
			entries, err := ziputil.ReadEntries(source)
			if err != nil {
				return nil, mcerrors.IO(fmt.Errorf("open archive %s: %w", source, err), "tree_open_failed")
			}
			z.entries = entries
		} else {
			z.dirty = true
		}
	default:
		return nil, mcerrors.InvalidArgument("tree_mode_invalid", "unknown tree mode %s", mode)
	}
	return z, nil
}

func (z *ZipTree) Name() string { return z.path }

func (z *ZipTree) List(match Matcher) ([]string, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	out := make([]string, 0, len(z.entries))
	for name := range z.entries {
		if match == nil || match(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (z *ZipTree) ReadFile(rel string) ([]byte, error) {
	p, err := Clean(rel)
	if err != nil {
		return nil, err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	data, ok := z.entries[p]
	if !ok {
		return nil, mcerrors.IO(fmt.Errorf("read %s from %s: %w", p, z.path, fs.ErrNotExist), "tree_read_failed")
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (z *ZipTree) WriteFile(rel string, data []byte) error {
	if z.mode == Read {
		return mcerrors.IO(fmt.Errorf("write %s: %w", rel, ErrReadOnly), "tree_write_failed")
	}
	p, err := Clean(rel)
	if err != nil {
		return err
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return mcerrors.IO(fmt.Errorf("write %s: %w", rel, fs.ErrClosed), "tree_write_failed")
	}
	z.entries[p] = buf
	z.dirty = true
	return nil
}

func (z *ZipTree) Exists(rel string) (bool, error) {
	p, err := Clean(rel)
	if err != nil {
		return false, err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	_, ok := z.entries[p]
	return ok, nil
}

func (z *ZipTree) Remove(rel string) error {
	if z.mode == Read {
		return mcerrors.IO(fmt.Errorf("remove %s: %w", rel, ErrReadOnly), "tree_write_failed")
	}
	p, err := Clean(rel)
	if err != nil {
		return err
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	if _, ok := z.entries[p]; ok {
		delete(z.entries, p)
		z.dirty = true
	}
	return nil
}

func (z *ZipTree) Close() error {
	z.mu.Lock()
	defer z.mu.Unlock()
	if z.closed {
		return nil
	}
	z.closed = true
	if z.mode == Read || !z.dirty {
		return nil
	}
	if err := ziputil.WriteArchive(z.path, z.entries); err != nil {
		return mcerrors.IO(fmt.Errorf("write archive %s: %w", z.path, err), "tree_close_failed")
	}
	return nil
}
