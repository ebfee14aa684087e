// Package machotest builds small Mach-O images in memory for tests.
package machotest

import (
	"encoding/binary"
)

const (
	CPUTypeX86_64  = 0x01000007
	CPUTypeARM64   = 0x0100000c
	CPUTypeI386    = 7
	CPUTypeARM     = 12
	CPUTypeARM6432 = 0x0200000c

	LCSymtab          = 0x2
	LCLoadDylib       = 0xc
	LCLoadWeakDylib   = 0x80000018
	LCReexportDylib   = 0x8000001f
	LCLazyLoadDylib   = 0x20
	LCLoadUpwardDylib = 0x80000023
	LCBuildVersion    = 0x32
	LCRpath           = 0x8000001c
	LCUUID            = 0x1b

	FlagTwoLevel = 0x80

	NUndf = 0x0
	NExt  = 0x1
	NPbud = 0xc
	NSect = 0xe
	NStab = 0x20

	PlatformMacOS = 1
	PlatformIOS   = 2
)

type symbol struct {
	name  string
	ntype uint8
	desc  uint16
}

// Builder assembles one thin image: header, load commands, then the symbol
// and string tables.
type Builder struct {
	CPU       uint32
	SubCPU    uint32
	Is64      bool
	BigEndian bool
	Flags     uint32

	commands [][]byte
	symbols  []symbol
}

// New returns a builder for a 64-bit little-endian two-level image
func New(cpu, subCPU uint32) *Builder {
	return &Builder{CPU: cpu, SubCPU: subCPU, Is64: true, Flags: FlagTwoLevel}
}

// X86_64 returns a builder for an x86_64 image
func X86_64() *Builder {
	return New(CPUTypeX86_64, 3)
}

// ARM64 returns a builder for an arm64 image
func ARM64() *Builder {
	return New(CPUTypeARM64, 0)
}

func (b *Builder) order() binary.ByteOrder {
	if b.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Command appends a raw load command with the given payload, padded to 8 bytes
func (b *Builder) Command(cmd uint32, payload []byte) *Builder {
	size := 8 + len(payload)
	size = (size + 7) &^ 7
	buf := make([]byte, size)
	bo := b.order()
	bo.PutUint32(buf[0:], cmd)
	bo.PutUint32(buf[4:], uint32(size))
	copy(buf[8:], payload)
	b.commands = append(b.commands, buf)
	return b
}

// DylibCommand appends a dylib load command of the given kind
func (b *Builder) DylibCommand(cmd uint32, name string, current, compat uint32) *Builder {
	payload := make([]byte, 16+len(name)+1)
	bo := b.order()
	bo.PutUint32(payload[0:], 24)
	bo.PutUint32(payload[4:], 2)
	bo.PutUint32(payload[8:], current)
	bo.PutUint32(payload[12:], compat)
	copy(payload[16:], name)
	return b.Command(cmd, payload)
}

// Dylib appends an LC_LOAD_DYLIB
func (b *Builder) Dylib(name string, current uint32) *Builder {
	return b.DylibCommand(LCLoadDylib, name, current, 0x10000)
}

// BuildVersion appends an LC_BUILD_VERSION for platform
func (b *Builder) BuildVersion(platform uint32) *Builder {
	payload := make([]byte, 16)
	bo := b.order()
	bo.PutUint32(payload[0:], platform)
	bo.PutUint32(payload[4:], 0x000b0000)
	bo.PutUint32(payload[8:], 0x000e0000)
	return b.Command(LCBuildVersion, payload)
}

// Import adds an external undefined symbol bound to a library ordinal
func (b *Builder) Import(name string, ordinal int) *Builder {
	return b.Symbol(name, NUndf|NExt, uint16(ordinal&0xff)<<8)
}

// Symbol adds a raw symbol table entry
func (b *Builder) Symbol(name string, ntype uint8, desc uint16) *Builder {
	b.symbols = append(b.symbols, symbol{name: name, ntype: ntype, desc: desc})
	return b
}

func (b *Builder) headerSize() int {
	if b.Is64 {
		return 32
	}
	return 28
}

// Bytes lays out the image
func (b *Builder) Bytes() []byte {
	bo := b.order()
	cmds := b.commands

	var symtab, strtab []byte
	if len(b.symbols) > 0 {
		cmds = append(cmds[:len(cmds):len(cmds)], make([]byte, 24))
	}

	sizeofcmds := 0
	for _, c := range cmds {
		sizeofcmds += len(c)
	}
	symoff := b.headerSize() + sizeofcmds

	if len(b.symbols) > 0 {
		entSize := 12
		if b.Is64 {
			entSize = 16
		}
		strtab = []byte{' ', 0}
		symtab = make([]byte, entSize*len(b.symbols))
		for i, s := range b.symbols {
			ent := symtab[i*entSize:]
			bo.PutUint32(ent[0:], uint32(len(strtab)))
			ent[4] = s.ntype
			bo.PutUint16(ent[6:], s.desc)
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		}
		for len(strtab)%8 != 0 {
			strtab = append(strtab, 0)
		}

		last := cmds[len(cmds)-1]
		bo.PutUint32(last[0:], LCSymtab)
		bo.PutUint32(last[4:], 24)
		bo.PutUint32(last[8:], uint32(symoff))
		bo.PutUint32(last[12:], uint32(len(b.symbols)))
		bo.PutUint32(last[16:], uint32(symoff+len(symtab)))
		bo.PutUint32(last[20:], uint32(len(strtab)))
	}

	out := make([]byte, b.headerSize(), symoff+len(symtab)+len(strtab))
	magic := uint32(0xfeedface)
	if b.Is64 {
		magic = 0xfeedfacf
	}
	bo.PutUint32(out[0:], magic)
	bo.PutUint32(out[4:], b.CPU)
	bo.PutUint32(out[8:], b.SubCPU)
	bo.PutUint32(out[12:], 2) // MH_EXECUTE
	bo.PutUint32(out[16:], uint32(len(cmds)))
	bo.PutUint32(out[20:], uint32(sizeofcmds))
	bo.PutUint32(out[24:], b.Flags)

	for _, c := range cmds {
		out = append(out, c...)
	}
	out = append(out, symtab...)
	out = append(out, strtab...)
	return out
}

// Fat wraps the images in a universal binary with a 32-bit arch table
func Fat(images ...*Builder) []byte {
	return fat(0xcafebabe, 20, images)
}

// Fat64 wraps the images in a universal binary with a 64-bit arch table
func Fat64(images ...*Builder) []byte {
	return fat(0xcafebabf, 32, images)
}

func fat(magic uint32, entSize int, images []*Builder) []byte {
	const align = 16
	be := binary.BigEndian

	out := make([]byte, 8+entSize*len(images))
	be.PutUint32(out[0:], magic)
	be.PutUint32(out[4:], uint32(len(images)))

	for i, img := range images {
		for len(out)%align != 0 {
			out = append(out, 0)
		}
		data := img.Bytes()
		off := len(out)
		ent := out[8+i*entSize:]
		be.PutUint32(ent[0:], img.CPU)
		be.PutUint32(ent[4:], img.SubCPU)
		if entSize == 32 {
			be.PutUint64(ent[8:], uint64(off))
			be.PutUint64(ent[16:], uint64(len(data)))
			be.PutUint32(ent[24:], 4)
		} else {
			be.PutUint32(ent[8:], uint32(off))
			be.PutUint32(ent[12:], uint32(len(data)))
			be.PutUint32(ent[16:], 4)
		}
		out = append(out, data...)
	}
	return out
}
