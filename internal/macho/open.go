package macho

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// File is a read-only memory mapping of a Mach-O file on disk
type File struct {
	f *os.File
	m mmap.MMap
}

// Open maps the file at path. Empty files map to an empty buffer.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() == 0 {
		return &File{f: f}, nil
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return &File{f: f, m: m}, nil
}

// Bytes returns the mapped contents. They are invalid after Close.
func (f *File) Bytes() []byte {
	if f.m == nil {
		return []byte{}
	}
	return f.m
}

// Close unmaps and closes the file
func (f *File) Close() error {
	var err error
	if f.m != nil {
		err = f.m.Unmap()
		f.m = nil
	}
	if cerr := f.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadFile maps path, runs fn over its images and unmaps it again. Nothing
// fn returns may reference the image data.
func ReadFile(path string, fn func(img *Image) error) error {
	f, err := Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	images, err := Parse(f.Bytes())
	if err != nil {
		return err
	}
	for _, img := range images {
		if err := fn(img); err != nil {
			return err
		}
	}
	return nil
}
