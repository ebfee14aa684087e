package writer

import (
	"bufio"
	"io"
	"io/fs"
	"time"

	"github.com/klauspost/compress/zip"
)

type zipBackend struct {
	index
	zw      *zip.Writer
	closers []func() error
	now     func() time.Time
}

func newZipBackend(w io.Writer, now func() time.Time) *zipBackend {
	bw := bufio.NewWriter(w)
	z := &zipBackend{
		index: make(index),
		zw:    zip.NewWriter(bw),
		now:   now,
	}
	z.closers = append(z.closers, z.zw.Close, bw.Flush)
	if c, ok := w.(io.Closer); ok {
		z.closers = append(z.closers, c.Close)
	}
	return z
}

func (z *zipBackend) entry(name string, method uint16, mode fs.FileMode) (io.Writer, error) {
	fh := &zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: z.now(),
	}
	fh.SetMode(mode)
	return z.zw.CreateHeader(fh)
}

func (z *zipBackend) mkdir(path string) error {
	if _, err := z.entry(path+"/", zip.Store, fs.ModeDir|0755); err != nil {
		return err
	}
	z.index[path] = kindDir
	return nil
}

func (z *zipBackend) create(path string) (io.WriteCloser, error) {
	w, err := z.entry(path, zip.Deflate, 0644)
	if err != nil {
		return nil, err
	}
	z.index[path] = kindFile
	return nopCloser{w}, nil
}

// symlink stores the target as the entry body; readers recognise the link
// from the unix mode bits in the external attributes.
func (z *zipBackend) symlink(target, link string) error {
	w, err := z.entry(link, zip.Store, fs.ModeSymlink|0777)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, target); err != nil {
		return err
	}
	z.index[link] = kindSymlink
	return nil
}

func (z *zipBackend) close() error {
	var err error
	for _, c := range z.closers {
		if cerr := c(); err == nil {
			err = cerr
		}
	}
	return err
}

// nopCloser ends nothing: the zip writer seals an entry when the next one starts
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
