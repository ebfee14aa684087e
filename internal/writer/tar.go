package writer

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/ralt/sdkgen/internal/utils"
)

// tarBackend streams ustar entries, optionally through gzip. File contents
// are buffered until their handle is closed so the header can carry the size.
type tarBackend struct {
	index
	out     io.Writer
	closers []func() error
	now     func() time.Time
}

func newTarBackend(w io.Writer, compress bool, now func() time.Time) *tarBackend {
	t := &tarBackend{index: make(index), now: now}

	bw := bufio.NewWriter(w)
	t.out = bw
	t.closers = append(t.closers, bw.Flush)
	if c, ok := w.(io.Closer); ok {
		t.closers = append(t.closers, c.Close)
	}

	if compress {
		gz := utils.NewGzipWriter(bw)
		t.out = gz
		t.closers = append([]func() error{gz.Close}, t.closers...)
	}
	return t
}

func (t *tarBackend) header(name string, typeflag byte, mode, size int64, linkname string) ([blockSize]byte, error) {
	h := ustarHeader{
		name:     name,
		mode:     mode,
		size:     size,
		mtime:    t.now().Unix(),
		typeflag: typeflag,
		linkname: linkname,
	}
	return h.encode()
}

func (t *tarBackend) writeEntry(hdr [blockSize]byte, data []byte) error {
	if _, err := t.out.Write(hdr[:]); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := t.out.Write(data); err != nil {
		return err
	}
	_, err := t.out.Write(padding(int64(len(data))))
	return err
}

func (t *tarBackend) mkdir(path string) error {
	hdr, err := t.header(path+"/", typeDir, 0755, 0, "")
	if err != nil {
		return err
	}
	if err := t.writeEntry(hdr, nil); err != nil {
		return err
	}
	t.index[path] = kindDir
	return nil
}

func (t *tarBackend) create(path string) (io.WriteCloser, error) {
	if _, _, err := splitPath(path); err != nil {
		return nil, err
	}
	t.index[path] = kindFile
	return &tarFile{t: t, path: path}, nil
}

func (t *tarBackend) symlink(target, link string) error {
	hdr, err := t.header(link, typeSymlink, 0777, 0, target)
	if err != nil {
		return err
	}
	if err := t.writeEntry(hdr, nil); err != nil {
		return err
	}
	t.index[link] = kindSymlink
	return nil
}

func (t *tarBackend) close() error {
	var end [2 * blockSize]byte
	_, err := t.out.Write(end[:])
	for _, c := range t.closers {
		if cerr := c(); err == nil {
			err = cerr
		}
	}
	return err
}

type tarFile struct {
	t    *tarBackend
	path string
	buf  bytes.Buffer
}

func (f *tarFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *tarFile) Close() error {
	hdr, err := f.t.header(f.path, typeFile, 0644, int64(f.buf.Len()), "")
	if err != nil {
		return err
	}
	return f.t.writeEntry(hdr, f.buf.Bytes())
}
