package scanner

import "context"

// ObjectType represents the container layout of a Mach-O file
type ObjectType int

const (
	TypeUnknown ObjectType = iota
	TypeThin32
	TypeThin64
	TypeFat
)

// String returns the string representation of ObjectType
func (ot ObjectType) String() string {
	switch ot {
	case TypeThin32:
		return "mach-o 32-bit"
	case TypeThin64:
		return "mach-o 64-bit"
	case TypeFat:
		return "universal"
	default:
		return "unknown"
	}
}

// ScannedObject represents a Mach-O file found during scanning
type ScannedObject struct {
	Path string
	Type ObjectType
	Size int64
}

// Scanner interface for finding Mach-O inputs
type Scanner interface {
	// Scan recursively scans a directory for Mach-O files
	Scan(ctx context.Context, dir string) ([]ScannedObject, error)

	// DetectType determines the object type of a file
	DetectType(path string) (ObjectType, error)
}
