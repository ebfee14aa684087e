package writer

import (
	"fmt"
	"strings"
)

const (
	blockSize = 512

	nameSize   = 100
	prefixSize = 155

	typeFile    = '0'
	typeSymlink = '2'
	typeDir     = '5'
)

// ustar header field offsets
const (
	offName     = 0
	offMode     = 100
	offUID      = 108
	offGID      = 116
	offSize     = 124
	offMtime    = 136
	offChksum   = 148
	offTypeflag = 156
	offLinkname = 157
	offMagic    = 257
	offVersion  = 263
	offUname    = 265
	offGname    = 297
	offDevmajor = 329
	offDevminor = 337
	offPrefix   = 345
)

type ustarHeader struct {
	name     string
	mode     int64
	size     int64
	mtime    int64
	typeflag byte
	linkname string
}

// splitPath fits p into the ustar name and prefix fields. A directory's
// trailing slash may take the byte otherwise left for the name's NUL.
func splitPath(p string) (prefix, name string, err error) {
	limit := nameSize - 1
	if strings.HasSuffix(p, "/") {
		limit = nameSize
	}
	if len(p) <= limit {
		return "", p, nil
	}

	// A trailing slash belongs to the name part of a directory entry.
	search := strings.TrimSuffix(p, "/")
	if len(search) > prefixSize+1 {
		search = search[:prefixSize+1]
	}
	i := strings.LastIndexByte(search, '/')
	if i < 0 || i > prefixSize {
		return "", "", ErrPathTooLong
	}
	prefix, name = p[:i], p[i+1:]
	if name == "" || len(name) > limit {
		return "", "", ErrPathTooLong
	}
	return prefix, name, nil
}

// encode renders the header block
func (h *ustarHeader) encode() ([blockSize]byte, error) {
	var b [blockSize]byte

	prefix, name, err := splitPath(h.name)
	if err != nil {
		return b, err
	}
	if len(h.linkname) > nameSize {
		return b, ErrPathTooLong
	}

	copy(b[offName:offName+nameSize], name)
	formatNumeric(b[offMode:offUID], h.mode)
	formatNumeric(b[offUID:offGID], 0)
	formatNumeric(b[offGID:offSize], 0)
	formatNumeric(b[offSize:offMtime], h.size)
	formatNumeric(b[offMtime:offChksum], h.mtime)
	b[offTypeflag] = h.typeflag
	copy(b[offLinkname:offMagic], h.linkname)
	copy(b[offMagic:offVersion], "ustar\x00")
	copy(b[offVersion:offUname], "00")
	copy(b[offUname:offGname], "root")
	copy(b[offGname:offDevmajor], "root")
	formatNumeric(b[offDevmajor:offDevminor], 0)
	formatNumeric(b[offDevminor:offPrefix], 0)
	copy(b[offPrefix:offPrefix+prefixSize], prefix)

	chksum := b[offChksum:offTypeflag]
	for i := range chksum {
		chksum[i] = ' '
	}
	var sum int64
	for _, c := range b {
		sum += int64(c)
	}
	copy(chksum, fmt.Sprintf("%06o\x00 ", sum))

	return b, nil
}

// formatNumeric writes x as a NUL-terminated octal number filling field.
// Values that do not fit, or are negative, use the base-256 extension.
func formatNumeric(field []byte, x int64) {
	digits := len(field) - 1
	if x >= 0 && x < int64(1)<<(3*digits) {
		copy(field, fmt.Sprintf("%0*o\x00", digits, x))
		return
	}

	for i := len(field) - 1; i > 0; i-- {
		field[i] = byte(x)
		x >>= 8
	}
	field[0] = 0x80
	if x < 0 {
		field[0] = 0xff
	}
}

// padding returns the zero bytes needed to complete the last block of n bytes
func padding(n int64) []byte {
	if r := n % blockSize; r != 0 {
		return make([]byte, blockSize-r)
	}
	return nil
}
