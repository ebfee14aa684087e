package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/blacktop/go-macho/types"
	"github.com/sirupsen/logrus"

	"github.com/ralt/sdkgen/internal/models"
)

const (
	lcReqDyld        = 0x80000000
	lcLazyLoadDylib  = types.LoadCmd(0x20)
	dylibCmdSize     = 24
	nlist32Size      = 12
	nlist64Size      = 16
	nStab            = 0xe0
	nType            = 0x0e
	nExt             = 0x01
	nUndf            = 0x0
	nPbud            = 0xc
	selfLibraryOrd   = 0x00
	executableOrd    = 0xfe
	dynamicLookupOrd = 0xff
)

// nlist is the width-independent prefix of a symbol table entry
type nlist struct {
	strx  uint32
	ntype uint8
	desc  uint16
	off   int64

	strtab []byte
}

func (n *nlist) undefinedExternal() bool {
	t := n.ntype & nType
	return n.ntype&nExt != 0 && (t == nUndf || t == nPbud)
}

func (n *nlist) libraryOrdinal() int {
	return int(n.desc>>8) & 0xff
}

// Extract collects the dylibs an image links against and the symbols it
// imports from each of them. The result follows load command order.
func Extract(img *Image) ([]*models.DylibInfo, error) {
	if !img.TwoLevel() {
		return nil, ErrNotTwoLevel
	}

	cmds, err := img.loadCommands()
	if err != nil {
		return nil, err
	}

	var (
		dylibs   []*models.DylibInfo
		deferred []nlist
		platform = models.PlatformNone
	)

	for i := range cmds {
		lc := &cmds[i]
		switch lc.Cmd {
		case types.LC_LOAD_DYLIB, types.LC_LOAD_WEAK_DYLIB, types.LC_REEXPORT_DYLIB,
			lcLazyLoadDylib, types.LC_LOAD_UPWARD_DYLIB:
			d, err := img.readDylib(lc)
			if err != nil {
				return nil, err
			}
			logrus.Tracef("%s: %v %s", img.Arch, lc.Cmd, d.InstallName)
			dylibs = append(dylibs, d)

		case types.LC_SYMTAB:
			syms, err := img.readSymtab(lc)
			if err != nil {
				return nil, err
			}
			deferred = append(deferred, syms...)

		case types.LC_BUILD_VERSION:
			code, err := lc.u32(img, 8)
			if err != nil {
				return nil, err
			}
			p, err := models.PlatformFromCode(code)
			if err != nil {
				return nil, &FormatError{Off: lc.Offset, Msg: "build version", Err: err}
			}
			platform = p

		case types.LC_RPATH, types.LC_DYLD_INFO_ONLY, types.LC_MAIN,
			types.LC_DYLD_EXPORTS_TRIE, types.LC_DYLD_CHAINED_FIXUPS, types.LC_FILESET_ENTRY:

		default:
			if uint32(lc.Cmd)&lcReqDyld != 0 {
				return nil, &FormatError{
					Off: lc.Offset,
					Msg: fmt.Sprintf("load command %#x", uint32(lc.Cmd)),
					Err: ErrUnsupportedCommand,
				}
			}
		}
	}

	target := models.Target{Arch: img.Arch, Platform: platform}
	for _, d := range dylibs {
		d.Targets = []models.Target{target}
	}

	for i := range deferred {
		n := &deferred[i]
		if !n.undefinedExternal() {
			continue
		}

		name, ok := cstring(n.strtab, n.strx)
		if !ok {
			return nil, &FormatError{Off: n.off, Msg: fmt.Sprintf("symbol name index %d out of string table", n.strx)}
		}
		if name == "" {
			continue
		}
		if !utf8.ValidString(name) {
			return nil, &FormatError{Off: n.off, Msg: fmt.Sprintf("symbol name %q is not valid UTF-8", name)}
		}

		ord := n.libraryOrdinal()
		switch {
		case ord == selfLibraryOrd:
			logrus.Warnf("%s: dropping %s bound to its own image", target, name)
		case ord == executableOrd:
			logrus.Warnf("%s: dropping %s bound to the main executable", target, name)
		case ord == dynamicLookupOrd:
			logrus.Warnf("%s: dropping %s bound by dynamic lookup", target, name)
		case ord <= len(dylibs):
			d := dylibs[ord-1]
			d.Symbols = append(d.Symbols, models.Symbol{Name: name, Arch: img.Arch, Platform: platform})
		default:
			return nil, &FormatError{
				Off: n.off,
				Msg: fmt.Sprintf("library ordinal %d out of range for %s (%d dylibs)", ord, name, len(dylibs)),
			}
		}
	}

	return dylibs, nil
}

func (img *Image) readDylib(lc *loadCommand) (*models.DylibInfo, error) {
	if len(lc.Data) < dylibCmdSize {
		return nil, truncated(lc.Offset, fmt.Sprintf("%v command", lc.Cmd))
	}
	bo := img.ByteOrder
	nameOff := bo.Uint32(lc.Data[8:])
	name, ok := cstring(lc.Data, nameOff)
	if !ok || nameOff < dylibCmdSize {
		return nil, &FormatError{Off: lc.Offset, Msg: fmt.Sprintf("invalid name offset %d in %v", nameOff, lc.Cmd)}
	}
	if !utf8.ValidString(name) {
		return nil, &FormatError{Off: lc.Offset, Msg: fmt.Sprintf("install name %q is not valid UTF-8", name)}
	}

	return &models.DylibInfo{
		InstallName:          name,
		Timestamp:            bo.Uint32(lc.Data[12:]),
		CurrentVersion:       bo.Uint32(lc.Data[16:]),
		CompatibilityVersion: bo.Uint32(lc.Data[20:]),
	}, nil
}

func (img *Image) readSymtab(lc *loadCommand) ([]nlist, error) {
	var hdr types.SymtabCmd
	if len(lc.Data) < 24 {
		return nil, truncated(lc.Offset, "symtab command")
	}
	if err := binary.Read(bytes.NewReader(lc.Data), img.ByteOrder, &hdr); err != nil {
		return nil, &FormatError{Off: lc.Offset, Msg: "decoding symtab command", Err: err}
	}

	size := uint64(len(img.Data))
	if uint64(hdr.Stroff) > size || uint64(hdr.Strsize) > size-uint64(hdr.Stroff) {
		return nil, truncated(img.Offset+int64(hdr.Stroff), "string table")
	}
	strtab := img.Data[hdr.Stroff : hdr.Stroff+hdr.Strsize]

	entSize := uint64(nlist32Size)
	if img.Is64 {
		entSize = nlist64Size
	}
	if uint64(hdr.Symoff) > size || uint64(hdr.Nsyms)*entSize > size-uint64(hdr.Symoff) {
		return nil, truncated(img.Offset+int64(hdr.Symoff), "symbol table")
	}

	syms := make([]nlist, 0, hdr.Nsyms)
	for i := uint64(0); i < uint64(hdr.Nsyms); i++ {
		off := uint64(hdr.Symoff) + i*entSize
		ent := img.Data[off : off+entSize]
		n := nlist{
			strx:  img.ByteOrder.Uint32(ent[0:4]),
			ntype: ent[4],
			desc:  img.ByteOrder.Uint16(ent[6:8]),
			off:   img.Offset + int64(off),

			strtab: strtab,
		}
		if n.ntype&nStab != 0 {
			continue
		}
		syms = append(syms, n)
	}
	return syms, nil
}
