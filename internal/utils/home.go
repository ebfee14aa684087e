package utils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// homeDir is looked up once; a failed lookup is remembered as absent.
var homeDir = sync.OnceValues(func() (string, bool) {
	dir, err := os.UserHomeDir()
	if err != nil || dir == "" {
		return "", false
	}
	return dir, true
})

// ExpandHome replaces a leading "~/" with the user's home directory. Paths
// are returned unchanged when no home directory is known.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	dir, ok := homeDir()
	if !ok {
		return path
	}
	return filepath.Join(dir, strings.TrimPrefix(path, "~"))
}
