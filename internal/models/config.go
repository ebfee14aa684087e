package models

import (
	"fmt"
	"strings"
)

// ArchiveFormat selects the container the SDK tree is written to
type ArchiveFormat int

const (
	FormatDir ArchiveFormat = iota
	FormatTar
	FormatTgz
	FormatZip
)

// ParseArchiveFormat parses a container kind, accepting the short aliases
func ParseArchiveFormat(s string) (ArchiveFormat, error) {
	switch strings.ToLower(s) {
	case "d", "dir", "directory":
		return FormatDir, nil
	case "t", "tar":
		return FormatTar, nil
	case "tg", "tgz", "tar.gz":
		return FormatTgz, nil
	case "z", "zip":
		return FormatZip, nil
	default:
		return FormatDir, fmt.Errorf("unknown sdk format: %s", s)
	}
}

// String returns the canonical name of the format
func (f ArchiveFormat) String() string {
	switch f {
	case FormatDir:
		return "dir"
	case FormatTar:
		return "tar"
	case FormatTgz:
		return "tgz"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Set implements pflag.Value
func (f *ArchiveFormat) Set(s string) error {
	v, err := ParseArchiveFormat(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Type implements pflag.Value
func (f *ArchiveFormat) Type() string {
	return "format"
}

// IsArchive reports whether the format produces a single file
func (f ArchiveFormat) IsArchive() bool {
	return f != FormatDir
}

// GenerateConfig contains configuration for SDK generation
type GenerateConfig struct {
	// Input/Output
	Inputs      []string
	Destination string
	Format      ArchiveFormat

	// Platform used for images without LC_BUILD_VERSION
	DefaultPlatform Platform

	// Symlinks as "link->original" descriptors and files of them
	Symlinks     []string
	SymlinkFiles []string

	// Number of inputs parsed concurrently
	Jobs int

	// Signing (archive formats only)
	SignKeyPath    string
	SignPassphrase string
}
