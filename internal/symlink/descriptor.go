// Package symlink parses and normalizes the symbolic links added to an SDK tree.
package symlink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/ralt/sdkgen/internal/utils"
)

// ErrNoSeparator is returned for descriptors without any known separator
var ErrNoSeparator = errors.New("no separator in symlink descriptor")

// Separators in precedence order
var Separators = []string{"->", "=>", ":"}

// Descriptor is a link path and the original it points at, both container paths
type Descriptor struct {
	Link     string
	Original string
}

// Parse reads "<link><sep><original>". The separator occurring rightmost wins.
func Parse(s string) (Descriptor, error) {
	best, sepLen := -1, 0
	for _, sep := range Separators {
		if i := strings.LastIndex(s, sep); i > best {
			best, sepLen = i, len(sep)
		}
	}
	if best < 0 {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrNoSeparator, s)
	}
	return Descriptor{
		Link:     strings.TrimSpace(s[:best]),
		Original: strings.TrimSpace(s[best+sepLen:]),
	}, nil
}

// Format renders the descriptor with sep
func (d Descriptor) Format(sep string) string {
	return d.Link + sep + d.Original
}

func (d Descriptor) String() string {
	return d.Format("->")
}

// ParseReader reads one descriptor per line, skipping blank and comment lines.
// name is used in error messages.
func ParseReader(r io.Reader, name string) ([]Descriptor, error) {
	var out []Descriptor
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		d, err := Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// ParseFile reads descriptors from a file
func ParseFile(filename string) ([]Descriptor, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseReader(f, filename)
}

// VersionlessLink returns the link from "<name>.<ext>" to "<name>.<version>.<ext>"
// for a versioned stub path. ok is false when the file name carries no version.
func VersionlessLink(stubPath string) (d Descriptor, ok bool) {
	dir, file := path.Split(stubPath)
	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)

	dot := strings.LastIndexByte(stem, '.')
	if dot <= 0 || dot == len(stem)-1 {
		return Descriptor{}, false
	}
	return Descriptor{
		Link:     dir + stem[:dot] + ext,
		Original: file,
	}, true
}

// Dedup removes descriptors whose normalized link and resolved original
// repeat an earlier one. Order of first occurrence is kept.
func Dedup(list []Descriptor) []Descriptor {
	seen := make(map[Descriptor]struct{}, len(list))
	out := make([]Descriptor, 0, len(list))
	for _, d := range list {
		key := Descriptor{
			Link:     utils.SafeNormalize(d.Link),
			Original: utils.ResolveLinkTarget(d.Link, d.Original),
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
