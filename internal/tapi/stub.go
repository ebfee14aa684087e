package tapi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/emirpasic/gods/utils"

	"github.com/ralt/sdkgen/internal/models"
	sdkutils "github.com/ralt/sdkgen/internal/utils"
)

// ErrNoPlatform is returned when a target has no platform and no default was given
var ErrNoPlatform = errors.New("no platform for target and no default platform")

var plainSymbol = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// StubPath returns the container path of the stub for installName
func StubPath(installName string) string {
	return sdkutils.SafeNormalize(strings.TrimSuffix(installName, ".dylib") + ".tbd")
}

type exportGroup struct {
	targets []string
	symbols []string
}

// WriteStub writes the text-based stub document for dylib to w. Nothing is
// written when a target cannot be resolved to a platform.
func WriteStub(w io.Writer, defaultPlatform models.Platform, dylib *models.DylibInfo) error {
	effective := func(t models.Target) (string, error) {
		t = t.WithDefault(defaultPlatform)
		if t.Platform == models.PlatformNone {
			return "", fmt.Errorf("%s: %w (arch %s)", dylib.InstallName, ErrNoPlatform, t.Arch)
		}
		return t.String(), nil
	}

	all := treeset.NewWith(utils.StringComparator)
	for _, t := range dylib.Targets {
		s, err := effective(t)
		if err != nil {
			return err
		}
		all.Add(s)
	}

	bySymbol := make(map[string]*treeset.Set)
	var names []string
	for _, sym := range dylib.Symbols {
		s, err := effective(sym.Target())
		if err != nil {
			return err
		}
		all.Add(s)

		set, ok := bySymbol[sym.Name]
		if !ok {
			set = treeset.NewWith(utils.StringComparator)
			bySymbol[sym.Name] = set
			names = append(names, sym.Name)
		}
		set.Add(s)
	}

	groups := make(map[string]*exportGroup)
	for _, name := range names {
		targets := setStrings(bySymbol[name])
		key := strings.Join(targets, "\x00")
		g, ok := groups[key]
		if !ok {
			g = &exportGroup{targets: targets}
			groups[key] = g
		}
		g.symbols = append(g.symbols, name)
	}

	ordered := make([]*exportGroup, 0, len(groups))
	for _, g := range groups {
		slices.Sort(g.symbols)
		ordered = append(ordered, g)
	}
	slices.SortFunc(ordered, func(a, b *exportGroup) int {
		return slices.Compare(a.targets, b.targets)
	})

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "--- !tapi-tbd")
	fmt.Fprintln(bw, "tbd-version:     4")
	fmt.Fprintf(bw, "targets: %s\n", flowList(setStrings(all)))
	fmt.Fprintf(bw, "install-name:    %s\n", quote(dylib.InstallName))
	fmt.Fprintf(bw, "current-version: %d\n", dylib.MajorVersion())
	fmt.Fprintln(bw, "exports:")
	for _, g := range ordered {
		quoted := make([]string, len(g.symbols))
		for i, s := range g.symbols {
			quoted[i] = quoteSymbol(s)
		}
		fmt.Fprintf(bw, "  - targets: %s\n", flowList(g.targets))
		fmt.Fprintf(bw, "    symbols: %s\n", flowList(quoted))
	}
	fmt.Fprintln(bw, "...")
	return bw.Flush()
}

func setStrings(s *treeset.Set) []string {
	out := make([]string, 0, s.Size())
	for _, v := range s.Values() {
		out = append(out, v.(string))
	}
	return out
}

func flowList(items []string) string {
	if len(items) == 0 {
		return "[ ]"
	}
	return "[ " + strings.Join(items, ", ") + " ]"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteSymbol(s string) string {
	if plainSymbol.MatchString(s) {
		return s
	}
	return quote(s)
}
