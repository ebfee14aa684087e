package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownArch is returned for architecture names or cpu types that have no mapping
	ErrUnknownArch = errors.New("unknown cpu arch")

	// ErrUnknownPlatform is returned for platform names or codes that have no mapping
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrUnknownTarget is returned for target strings without an arch-platform separator
	ErrUnknownTarget = errors.New("unknown target")
)

// Arch identifies a cpu architecture as spelled in stub files
type Arch int

const (
	ArchI386 Arch = iota
	ArchX86_64
	ArchX86_64H
	ArchArmV4T
	ArchArmV6
	ArchArmV5
	ArchArmV7
	ArchArmV7S
	ArchArmV7K
	ArchArmV6M
	ArchArmV7M
	ArchArmV7EM
	ArchArm64
	ArchArm64E
	ArchArm64_32
)

var archNames = [...]string{
	ArchI386:     "i386",
	ArchX86_64:   "x86_64",
	ArchX86_64H:  "x86_64h",
	ArchArmV4T:   "armv4t",
	ArchArmV6:    "armv6",
	ArchArmV5:    "armv5",
	ArchArmV7:    "armv7",
	ArchArmV7S:   "armv7s",
	ArchArmV7K:   "armv7k",
	ArchArmV6M:   "armv6m",
	ArchArmV7M:   "armv7m",
	ArchArmV7EM:  "armv7em",
	ArchArm64:    "arm64",
	ArchArm64E:   "arm64e",
	ArchArm64_32: "arm64_32",
}

// String returns the tapi spelling of the architecture
func (a Arch) String() string {
	if a >= 0 && int(a) < len(archNames) {
		return archNames[a]
	}
	return fmt.Sprintf("Arch(%d)", int(a))
}

// ParseArch parses a tapi architecture name
func ParseArch(s string) (Arch, error) {
	for i, name := range archNames {
		if name == s {
			return Arch(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownArch, s)
}

// Platform is a Mach-O build platform. The values are the LC_BUILD_VERSION
// platform codes; PlatformNone means no platform was declared.
type Platform uint32

const (
	PlatformNone             Platform = 0
	PlatformMacOS            Platform = 1
	PlatformIOS              Platform = 2
	PlatformTvOS             Platform = 3
	PlatformWatchOS          Platform = 4
	PlatformBridgeOS         Platform = 5
	PlatformMacCatalyst      Platform = 6
	PlatformIOSSimulator     Platform = 7
	PlatformTvOSSimulator    Platform = 8
	PlatformWatchOSSimulator Platform = 9
	PlatformDriverKit        Platform = 10
)

var platformNames = map[Platform]string{
	PlatformMacOS:            "macos",
	PlatformIOS:              "ios",
	PlatformTvOS:             "tvos",
	PlatformWatchOS:          "watchos",
	PlatformBridgeOS:         "bridgeos",
	PlatformMacCatalyst:      "maccatalyst",
	PlatformIOSSimulator:     "ios-simulator",
	PlatformTvOSSimulator:    "tvos-simulator",
	PlatformWatchOSSimulator: "watchos-simulator",
	PlatformDriverKit:        "driverkit",
}

// PlatformFromCode maps an LC_BUILD_VERSION platform code
func PlatformFromCode(code uint32) (Platform, error) {
	p := Platform(code)
	if _, ok := platformNames[p]; !ok {
		return PlatformNone, fmt.Errorf("%w: %d", ErrUnknownPlatform, code)
	}
	return p, nil
}

// ParsePlatform parses a tapi platform name. The empty string is PlatformNone.
func ParsePlatform(s string) (Platform, error) {
	if s == "" {
		return PlatformNone, nil
	}
	for p, name := range platformNames {
		if name == strings.ToLower(s) {
			return p, nil
		}
	}
	return PlatformNone, fmt.Errorf("%w: %s", ErrUnknownPlatform, s)
}

// String returns the tapi spelling of the platform
func (p Platform) String() string {
	if p == PlatformNone {
		return ""
	}
	if name, ok := platformNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Platform(%d)", uint32(p))
}

// Set implements pflag.Value
func (p *Platform) Set(s string) error {
	v, err := ParsePlatform(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Type implements pflag.Value
func (p *Platform) Type() string {
	return "platform"
}

// Target is an (architecture, platform) pair
type Target struct {
	Arch     Arch
	Platform Platform
}

// String returns the textual form <arch>-<platform>
func (t Target) String() string {
	return t.Arch.String() + "-" + t.Platform.String()
}

// ParseTarget parses the textual form <arch>-<platform>
func ParseTarget(s string) (Target, error) {
	arch, platform, ok := strings.Cut(s, "-")
	if !ok {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, s)
	}
	a, err := ParseArch(arch)
	if err != nil {
		return Target{}, err
	}
	p, err := ParsePlatform(platform)
	if err != nil {
		return Target{}, err
	}
	if p == PlatformNone {
		return Target{}, fmt.Errorf("%w: %s", ErrUnknownTarget, s)
	}
	return Target{Arch: a, Platform: p}, nil
}

// WithDefault returns the target with its platform replaced by def when absent
func (t Target) WithDefault(def Platform) Target {
	if t.Platform == PlatformNone {
		t.Platform = def
	}
	return t
}

// CompareTargets orders targets by their textual form
func CompareTargets(a, b Target) int {
	return strings.Compare(a.String(), b.String())
}
