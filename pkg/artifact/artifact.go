// Package artifact collects generated files in memory and writes each one
// with a single temp-file-and-rename, so a failed run never leaves a
// half-written script or descriptor behind.
package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

const (
	ModeFile       fs.FileMode = 0o644
	ModeExecutable fs.FileMode = 0o755
)

// Kind groups artifacts for reporting.
type Kind string

const (
	KindScript   Kind = "script"
	KindSubmit   Kind = "submit"
	KindDAG      Kind = "dag"
	KindList     Kind = "list"
	KindManifest Kind = "manifest"
)

// File is one pending artifact.
type File struct {
	Path    string
	Kind    Kind
	Mode    fs.FileMode
	Content []byte
}

// Set is an ordered collection of pending artifacts keyed by path.
type Set struct {
	files []File
	index map[string]int
}

func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

// Add queues a file. Adding the same path twice is an error.
func (s *Set) Add(f File) error {
	if f.Path == "" {
		return fmt.Errorf("artifact of kind %s has no path", f.Kind)
	}
	if _, dup := s.index[f.Path]; dup {
		return fmt.Errorf("artifact %s added twice", f.Path)
	}
	if f.Mode == 0 {
		f.Mode = ModeFile
	}
	s.index[f.Path] = len(s.files)
	s.files = append(s.files, f)
	return nil
}

// Get returns the pending file at path.
func (s *Set) Get(path string) (File, bool) {
	i, ok := s.index[path]
	if !ok {
		return File{}, false
	}
	return s.files[i], true
}

// Files returns the pending files in insertion order.
func (s *Set) Files() []File {
	out := make([]File, len(s.files))
	copy(out, s.files)
	return out
}

// Len is the number of pending files.
func (s *Set) Len() int {
	return len(s.files)
}

// Count returns how many pending files are of kind k.
func (s *Set) Count(k Kind) int {
	n := 0
	for _, f := range s.files {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Counts returns per-kind totals.
func (s *Set) Counts() map[Kind]int {
	out := make(map[Kind]int)
	for _, f := range s.files {
		out[f.Kind]++
	}
	return out
}

// Kinds returns the kinds present, sorted.
func (s *Set) Kinds() []Kind {
	counts := s.Counts()
	kinds := make([]Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Flush writes every pending file. It stops at the first failure and
// reports the offending path.
func (s *Set) Flush() error {
	for _, f := range s.files {
		if err := Write(f); err != nil {
			return err
		}
	}
	return nil
}

// Write replaces f.Path atomically.
func Write(f File) error {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(f.Content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	if err := tmp.Chmod(f.Mode); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", f.Path, err)
	}
	return nil
}
