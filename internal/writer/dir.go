package writer

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

type dirBackend struct {
	root string
}

func newDirBackend(root string) (*dirBackend, error) {
	if err := os.RemoveAll(root); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &dirBackend{root: root}, nil
}

func (d *dirBackend) full(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(path))
}

func (d *dirBackend) kind(path string) (entryKind, error) {
	info, err := os.Lstat(d.full(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return kindNone, nil
		}
		return kindNone, err
	}
	switch {
	case info.IsDir():
		return kindDir, nil
	case info.Mode()&fs.ModeSymlink != 0:
		return kindSymlink, nil
	default:
		return kindFile, nil
	}
}

func (d *dirBackend) mkdir(path string) error {
	return os.Mkdir(d.full(path), 0755)
}

func (d *dirBackend) create(path string) (io.WriteCloser, error) {
	return os.OpenFile(d.full(path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

func (d *dirBackend) symlink(target, link string) error {
	return os.Symlink(filepath.FromSlash(target), d.full(link))
}

func (d *dirBackend) close() error {
	return nil
}
