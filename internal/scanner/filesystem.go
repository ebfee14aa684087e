package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// FileSystemScanner implements Scanner interface for filesystem scanning
type FileSystemScanner struct{}

// NewFileSystemScanner creates a new filesystem scanner
func NewFileSystemScanner() *FileSystemScanner {
	return &FileSystemScanner{}
}

// Scan recursively scans a directory for Mach-O files in lexical order
func (s *FileSystemScanner) Scan(ctx context.Context, dir string) ([]ScannedObject, error) {
	var objects []ScannedObject

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Skip directories
		if info.IsDir() {
			return nil
		}

		objType, err := s.DetectType(path)
		if err != nil {
			logrus.Warnf("Failed to detect type for %s: %v", path, err)
			return nil
		}

		// Skip anything that is not Mach-O
		if objType == TypeUnknown {
			return nil
		}

		logrus.Debugf("Found %s object: %s", objType, path)

		objects = append(objects, ScannedObject{
			Path: path,
			Type: objType,
			Size: info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to scan directory: %w", err)
	}

	logrus.Infof("Found %d Mach-O files in %s", len(objects), dir)
	return objects, nil
}

// DetectType determines the object type of a file
func (s *FileSystemScanner) DetectType(path string) (ObjectType, error) {
	return DetectObjectType(path)
}

// ExpandInputs replaces every directory in paths by the Mach-O files found
// below it. Other paths are kept as given, in order.
func ExpandInputs(ctx context.Context, s Scanner, paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		objects, err := s.Scan(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, obj := range objects {
			out = append(out, obj.Path)
		}
	}
	return out, nil
}
