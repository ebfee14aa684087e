package models

// Symbol is a name imported from a dynamic library by one image
type Symbol struct {
	Name     string
	Arch     Arch
	Platform Platform
}

// Target returns the symbol's target. The platform may be PlatformNone.
func (s Symbol) Target() Target {
	return Target{Arch: s.Arch, Platform: s.Platform}
}

// DylibInfo describes one dynamic library referenced by the inputs.
// Extraction produces one per dylib load command; aggregation merges them
// into one per install name.
type DylibInfo struct {
	InstallName string

	// Targets holds every (arch, platform) of an image that referenced the
	// library, whether or not it imported symbols from it.
	Targets []Target
	Symbols []Symbol

	Timestamp            uint32
	CurrentVersion       uint32
	CompatibilityVersion uint32
}

// MajorVersion returns the major component of the packed current version
func (d *DylibInfo) MajorVersion() uint32 {
	return d.CurrentVersion >> 16
}
