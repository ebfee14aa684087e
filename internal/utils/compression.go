package utils

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// NewGzipWriter wraps w in a gzip stream at the best compression level
func NewGzipWriter(w io.Writer) *gzip.Writer {
	gw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		// BestCompression is always a valid level
		return gzip.NewWriter(w)
	}
	return gw
}
