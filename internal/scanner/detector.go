package scanner

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Magic numbers for Mach-O detection
const (
	magic32    = 0xfeedface
	magic64    = 0xfeedfacf
	magicFat   = 0xcafebabe
	magicFat64 = 0xcafebabf

	// Java class files share the fat magic; their next word is the class
	// file version, which is never below 45. No universal binary has that
	// many slices.
	maxFatArchs = 45
)

// DetectObjectType determines the object type from the file's magic bytes
func DetectObjectType(path string) (ObjectType, error) {
	f, err := os.Open(path)
	if err != nil {
		return TypeUnknown, err
	}
	defer f.Close()

	header := make([]byte, 8)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return TypeUnknown, err
	}
	return detectBytes(header[:n]), nil
}

func detectBytes(header []byte) ObjectType {
	if len(header) < 4 {
		return TypeUnknown
	}

	be := binary.BigEndian.Uint32(header)
	le := binary.LittleEndian.Uint32(header)

	switch {
	case be == magic32 || le == magic32:
		return TypeThin32
	case be == magic64 || le == magic64:
		return TypeThin64
	case be == magicFat || be == magicFat64:
		if len(header) < 8 {
			return TypeUnknown
		}
		if nfat := binary.BigEndian.Uint32(header[4:]); nfat == 0 || nfat >= maxFatArchs {
			return TypeUnknown
		}
		return TypeFat
	default:
		return TypeUnknown
	}
}
