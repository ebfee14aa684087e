package writer

import (
	"errors"
	"io/fs"
)

var (
	// ErrNotDir is returned when a path component that must be a directory is not one
	ErrNotDir = errors.New("not a directory")

	// ErrPathTooLong is returned when a path cannot be encoded by the backend
	ErrPathTooLong = errors.New("path too long")

	// ErrClosed is returned by writes on a file handle that was closed
	ErrClosed = fs.ErrClosed

	// ErrFinished is returned by any operation after Finish
	ErrFinished = errors.New("tree already finished")
)

// existsNotDir reports a non-directory where Mkdirp wanted a directory.
// It matches both fs.ErrExist and ErrNotDir.
type existsNotDir struct{}

func (existsNotDir) Error() string {
	return "file exists and is not a directory"
}

func (existsNotDir) Is(target error) bool {
	return target == fs.ErrExist || target == ErrNotDir
}

func pathError(op, path string, err error) error {
	return &fs.PathError{Op: op, Path: path, Err: err}
}
