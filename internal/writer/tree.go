// Package writer builds an SDK tree in a directory, tar, gzip-compressed tar
// or zip container through one filesystem-like interface.
package writer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ralt/sdkgen/internal/models"
	"github.com/ralt/sdkgen/internal/utils"
)

// FileTree is the write side of an SDK container. Paths are container paths
// and never escape the container root.
type FileTree interface {
	// Mkdirp creates path and any missing parents
	Mkdirp(path string) error

	// NewFile creates a file whose parent directory must exist. The
	// previous handle, if still open, is closed first.
	NewFile(path string) (io.WriteCloser, error)

	// NewFileSymlink creates link pointing at original. Absolute originals
	// are rooted at the container; relative ones start at link's directory.
	NewFileSymlink(original, link string) error

	// Finish seals the container. It must be called exactly once.
	Finish() error
}

type entryKind int

const (
	kindNone entryKind = iota
	kindDir
	kindFile
	kindSymlink
)

// backend is implemented by the four container kinds. Paths handed to it
// are normalized and never the root; parents have been checked.
type backend interface {
	kind(path string) (entryKind, error)
	mkdir(path string) error
	create(path string) (io.WriteCloser, error)
	symlink(target, link string) error
	close() error
}

// Tree implements FileTree on top of one backend
type Tree struct {
	backend  backend
	open     *handle
	finished bool

	// archive file removed by Abort; empty for the directory format
	dest string
}

var _ FileTree = (*Tree)(nil)

// New opens the container at dest. The directory format removes and
// recreates dest; archive formats create (or truncate) dest.
func New(dest string, format models.ArchiveFormat) (*Tree, error) {
	if format == models.FormatDir {
		b, err := newDirBackend(dest)
		if err != nil {
			return nil, err
		}
		return newTree(b), nil
	}

	if err := utils.EnsureParentDir(dest); err != nil {
		return nil, fmt.Errorf("failed to create parent of %s: %w", dest, err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, err
	}

	var b backend
	switch format {
	case models.FormatTar:
		b = newTarBackend(f, false, time.Now)
	case models.FormatTgz:
		b = newTarBackend(f, true, time.Now)
	case models.FormatZip:
		b = newZipBackend(f, time.Now)
	default:
		f.Close()
		return nil, fmt.Errorf("unsupported sdk format: %v", format)
	}
	t := newTree(b)
	t.dest = dest
	return t, nil
}

func newTree(b backend) *Tree {
	return &Tree{backend: b}
}

// closeOpen closes the file handle left open by the previous NewFile
func (t *Tree) closeOpen() error {
	if t.open == nil {
		return nil
	}
	h := t.open
	t.open = nil
	return h.Close()
}

func (t *Tree) begin(op, path string) error {
	if t.finished {
		return pathError(op, path, ErrFinished)
	}
	return t.closeOpen()
}

// checkParent verifies that the parent of a normalized path is a directory
func (t *Tree) checkParent(op, path string) error {
	parent := utils.ParentDir(path)
	if parent == "" {
		return nil
	}
	k, err := t.backend.kind(parent)
	if err != nil {
		return pathError(op, path, err)
	}
	switch k {
	case kindDir:
		return nil
	case kindNone:
		return pathError(op, path, fs.ErrNotExist)
	default:
		return pathError(op, path, ErrNotDir)
	}
}

// checkAbsent verifies that a normalized path can be created
func (t *Tree) checkAbsent(op, path string) error {
	if path == "" {
		return pathError(op, "/", fs.ErrExist)
	}
	if err := t.checkParent(op, path); err != nil {
		return err
	}
	k, err := t.backend.kind(path)
	if err != nil {
		return pathError(op, path, err)
	}
	if k != kindNone {
		return pathError(op, path, fs.ErrExist)
	}
	return nil
}

func (t *Tree) Mkdirp(path string) error {
	p := utils.SafeNormalize(path)
	if err := t.begin("mkdirp", p); err != nil {
		return err
	}
	if p == "" {
		return nil
	}

	parts := strings.Split(p, "/")
	for i := range parts {
		cur := strings.Join(parts[:i+1], "/")
		k, err := t.backend.kind(cur)
		if err != nil {
			return pathError("mkdirp", cur, err)
		}
		switch k {
		case kindDir:
			continue
		case kindNone:
			logrus.Tracef("mkdir %s", cur)
			if err := t.backend.mkdir(cur); err != nil {
				return pathError("mkdirp", cur, err)
			}
		default:
			if cur == p {
				return pathError("mkdirp", cur, existsNotDir{})
			}
			return pathError("mkdirp", cur, ErrNotDir)
		}
	}
	return nil
}

func (t *Tree) NewFile(path string) (io.WriteCloser, error) {
	p := utils.SafeNormalize(path)
	if err := t.begin("create", p); err != nil {
		return nil, err
	}
	if err := t.checkAbsent("create", p); err != nil {
		return nil, err
	}

	logrus.Tracef("create %s", p)
	w, err := t.backend.create(p)
	if err != nil {
		return nil, pathError("create", p, err)
	}
	t.open = &handle{path: p, w: w}
	return t.open, nil
}

func (t *Tree) NewFileSymlink(original, link string) error {
	p := utils.SafeNormalize(link)
	if err := t.begin("symlink", p); err != nil {
		return err
	}
	if err := t.checkAbsent("symlink", p); err != nil {
		return err
	}

	target := utils.RelativeLinkTarget(p, original)
	logrus.Tracef("symlink %s -> %s", p, target)
	if err := t.backend.symlink(target, p); err != nil {
		return pathError("symlink", p, err)
	}
	return nil
}

func (t *Tree) Finish() error {
	if t.finished {
		return pathError("finish", "/", ErrFinished)
	}
	err := t.closeOpen()
	t.finished = true
	if cerr := t.backend.close(); err == nil {
		err = cerr
	}
	return err
}

// Abort releases the container after a failed run. A partially written
// archive file is removed. Aborting a finished tree does nothing.
func (t *Tree) Abort() error {
	if t.finished {
		return nil
	}
	t.finished = true
	if t.open != nil {
		t.open.closed = true
		t.open = nil
	}
	err := t.backend.close()
	if t.dest != "" {
		if rerr := os.Remove(t.dest); rerr != nil && !os.IsNotExist(rerr) && err == nil {
			err = rerr
		}
	}
	return err
}

// handle guards a backend writer so it can be closed by the tree or the
// caller, whichever comes first.
type handle struct {
	path   string
	w      io.WriteCloser
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, pathError("write", h.path, ErrClosed)
	}
	return h.w.Write(p)
}

func (h *handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if err := h.w.Close(); err != nil {
		return pathError("close", h.path, err)
	}
	return nil
}

// index tracks the entries written to an append-only archive
type index map[string]entryKind

func (ix index) kind(path string) (entryKind, error) {
	return ix[path], nil
}
