package macho

import (
	"fmt"

	"github.com/ralt/sdkgen/internal/models"
)

const (
	cpuArchABI64   = 0x01000000
	cpuArchABI6432 = 0x02000000
	cpuSubtypeMask = 0x00ffffff

	cpuTypeX86     = 7
	cpuTypeX86_64  = cpuTypeX86 | cpuArchABI64
	cpuTypeARM     = 12
	cpuTypeARM64   = cpuTypeARM | cpuArchABI64
	cpuTypeARM6432 = cpuTypeARM | cpuArchABI6432
)

var armSubtypes = map[uint32]models.Arch{
	5:  models.ArchArmV4T,
	6:  models.ArchArmV6,
	7:  models.ArchArmV5,
	9:  models.ArchArmV7,
	11: models.ArchArmV7S,
	12: models.ArchArmV7K,
	14: models.ArchArmV6M,
	15: models.ArchArmV7M,
	16: models.ArchArmV7EM,
}

// archFromCPU maps a header cputype/cpusubtype pair to its stub architecture.
// Capability bits in the high byte of the subtype are ignored.
func archFromCPU(cpu, subCPU uint32) (models.Arch, error) {
	sub := subCPU & cpuSubtypeMask

	switch cpu {
	case cpuTypeX86:
		return models.ArchI386, nil
	case cpuTypeX86_64:
		if sub == 8 {
			return models.ArchX86_64H, nil
		}
		return models.ArchX86_64, nil
	case cpuTypeARM:
		if arch, ok := armSubtypes[sub]; ok {
			return arch, nil
		}
	case cpuTypeARM64:
		if sub == 2 {
			return models.ArchArm64E, nil
		}
		return models.ArchArm64, nil
	case cpuTypeARM6432:
		if sub == 1 {
			return models.ArchArm64_32, nil
		}
	}
	return 0, fmt.Errorf("%w: cputype %#x subtype %#x", ErrUnknownArch, cpu, subCPU)
}
