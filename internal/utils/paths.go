package utils

import (
	"strings"
)

// SafeNormalize turns a container path into its canonical relative form.
// Empty and "." components are dropped and ".." pops the previous component,
// stopping at the root. The root itself is the empty string.
func SafeNormalize(p string) string {
	return strings.Join(normalizedParts(p), "/")
}

func normalizedParts(p string) []string {
	parts := make([]string, 0, strings.Count(p, "/")+1)
	for _, part := range strings.Split(p, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(parts) > 0 {
				parts = parts[:len(parts)-1]
			}
		default:
			parts = append(parts, part)
		}
	}
	return parts
}

// ParentDir returns the normalized parent of a normalized path
func ParentDir(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

// ResolveLinkTarget resolves the original of a symlink placed at link.
// Absolute originals are rooted at the container root; relative ones are
// taken against the directory containing the link.
func ResolveLinkTarget(link, original string) string {
	if strings.HasPrefix(original, "/") {
		return SafeNormalize(original)
	}
	return SafeNormalize(ParentDir(SafeNormalize(link)) + "/" + original)
}

// RelativeTo expresses the normalized path target relative to the normalized
// directory base, using ".." components where needed. Equal paths give ".".
func RelativeTo(base, target string) string {
	b := normalizedParts(base)
	t := normalizedParts(target)

	common := 0
	for common < len(b) && common < len(t) && b[common] == t[common] {
		common++
	}

	rel := make([]string, 0, len(b)-common+len(t)-common)
	for range b[common:] {
		rel = append(rel, "..")
	}
	rel = append(rel, t[common:]...)
	if len(rel) == 0 {
		return "."
	}
	return strings.Join(rel, "/")
}

// RelativeLinkTarget returns the text stored in a symlink at link so that it
// points at original, both interpreted inside the container.
func RelativeLinkTarget(link, original string) string {
	return RelativeTo(ParentDir(SafeNormalize(link)), ResolveLinkTarget(link, original))
}
