package macho

import (
	"errors"
	"fmt"

	"github.com/ralt/sdkgen/internal/models"
)

var (
	// ErrUnsupportedHeader is returned for magics that are neither thin nor fat Mach-O
	ErrUnsupportedHeader = errors.New("unsupported mach-o header")

	// ErrTruncated is returned when a structure extends past the end of its buffer
	ErrTruncated = errors.New("truncated mach-o data")

	// ErrNotTwoLevel is returned for images without the two-level namespace flag
	ErrNotTwoLevel = errors.New("image does not use a two-level namespace")

	// ErrUnsupportedCommand is returned for unknown load commands the loader requires
	ErrUnsupportedCommand = errors.New("unsupported load command")

	// ErrUnknownArch is returned for cpu type/subtype pairs without a stub name
	ErrUnknownArch = models.ErrUnknownArch
)

// FormatError is returned by parsing when the data is not a well-formed Mach-O image
type FormatError struct {
	Off int64
	Msg string
	Err error
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s at offset %#x", msg, e.Off)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func truncated(off int64, what string) error {
	return &FormatError{Off: off, Msg: what, Err: ErrTruncated}
}
