package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/blacktop/go-macho/types"

	"github.com/ralt/sdkgen/internal/models"
)

const (
	magicFat64 = 0xcafebabf

	fatHeaderSize = 8
	fatArchSize   = 20
	fatArch64Size = 32

	// MH_TWOLEVEL
	flagTwoLevel = 0x80
)

// Image is one thin Mach-O image, either a whole file or one slice of a
// universal binary. Data aliases the parsed buffer.
type Image struct {
	Data      []byte
	Offset    int64
	ByteOrder binary.ByteOrder
	Is64      bool
	Arch      models.Arch
	Header    types.FileHeader
}

// TwoLevel reports whether the image uses two-level namespace bindings
func (img *Image) TwoLevel() bool {
	return uint32(img.Header.Flags)&flagTwoLevel != 0
}

// Parse decodes the images contained in a thin or universal Mach-O buffer
func Parse(data []byte) ([]*Image, error) {
	if len(data) < 4 {
		return nil, truncated(0, "reading magic")
	}

	switch binary.BigEndian.Uint32(data) {
	case uint32(types.MagicFat):
		return parseFat(data, false)
	case magicFat64:
		return parseFat(data, true)
	}

	img, err := parseThin(data, 0)
	if err != nil {
		return nil, err
	}
	return []*Image{img}, nil
}

func parseFat(data []byte, is64 bool) ([]*Image, error) {
	if len(data) < fatHeaderSize {
		return nil, truncated(0, "reading fat header")
	}
	nfat := binary.BigEndian.Uint32(data[4:8])

	entrySize := fatArchSize
	if is64 {
		entrySize = fatArch64Size
	}
	if uint64(nfat)*uint64(entrySize) > uint64(len(data)-fatHeaderSize) {
		return nil, truncated(fatHeaderSize, "reading fat arch table")
	}

	images := make([]*Image, 0, nfat)
	for i := 0; i < int(nfat); i++ {
		off := fatHeaderSize + i*entrySize
		entry := data[off : off+entrySize]

		var sliceOff, sliceSize uint64
		if is64 {
			sliceOff = binary.BigEndian.Uint64(entry[8:16])
			sliceSize = binary.BigEndian.Uint64(entry[16:24])
		} else {
			sliceOff = uint64(binary.BigEndian.Uint32(entry[8:12]))
			sliceSize = uint64(binary.BigEndian.Uint32(entry[12:16]))
		}
		if sliceOff > uint64(len(data)) || sliceSize > uint64(len(data))-sliceOff {
			return nil, truncated(int64(off), fmt.Sprintf("fat slice %d out of bounds", i))
		}

		slice := data[sliceOff : sliceOff+sliceSize]
		if len(slice) >= 4 {
			if m := binary.BigEndian.Uint32(slice); m == uint32(types.MagicFat) || m == magicFat64 {
				return nil, &FormatError{Off: int64(sliceOff), Msg: "nested fat slice", Err: ErrUnsupportedHeader}
			}
		}

		img, err := parseThin(slice, int64(sliceOff))
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func parseThin(data []byte, base int64) (*Image, error) {
	if len(data) < 4 {
		return nil, truncated(base, "reading magic")
	}

	img := &Image{Data: data, Offset: base}

	be := binary.BigEndian.Uint32(data)
	le := binary.LittleEndian.Uint32(data)
	switch {
	case be == uint32(types.Magic32) || be == uint32(types.Magic64):
		img.ByteOrder = binary.BigEndian
		img.Is64 = be == uint32(types.Magic64)
	case le == uint32(types.Magic32) || le == uint32(types.Magic64):
		img.ByteOrder = binary.LittleEndian
		img.Is64 = le == uint32(types.Magic64)
	default:
		return nil, &FormatError{Off: base, Msg: fmt.Sprintf("magic %#08x", be), Err: ErrUnsupportedHeader}
	}

	size := img.headerSize()
	if len(data) < size {
		return nil, truncated(base, "reading mach header")
	}

	// The 32-bit header lacks the trailing reserved word.
	var raw [types.FileHeaderSize64]byte
	copy(raw[:], data[:size])
	if err := binary.Read(bytes.NewReader(raw[:]), img.ByteOrder, &img.Header); err != nil {
		return nil, &FormatError{Off: base, Msg: "decoding mach header", Err: err}
	}

	arch, err := archFromCPU(uint32(img.Header.CPU), uint32(img.Header.SubCPU))
	if err != nil {
		return nil, err
	}
	img.Arch = arch

	return img, nil
}

func (img *Image) headerSize() int {
	if img.Is64 {
		return types.FileHeaderSize64
	}
	return types.FileHeaderSize32
}

// loadCommand is one raw load command, Data including its 8-byte prefix
type loadCommand struct {
	Cmd    types.LoadCmd
	Data   []byte
	Offset int64
}

// loadCommands splits the command area into bounds-checked commands
func (img *Image) loadCommands() ([]loadCommand, error) {
	start := img.headerSize()
	sizeofcmds := uint64(img.Header.SizeCommands)
	if sizeofcmds > uint64(len(img.Data)-start) {
		return nil, truncated(img.Offset+int64(start), "load command area exceeds image")
	}
	area := img.Data[start : start+int(sizeofcmds)]

	// ncmds is untrusted; every command takes at least 8 bytes of the area.
	cmds := make([]loadCommand, 0, min(uint64(img.Header.NCommands), sizeofcmds/8))
	pos := 0
	for i := uint32(0); i < img.Header.NCommands; i++ {
		off := img.Offset + int64(start+pos)
		if len(area)-pos < 8 {
			return nil, truncated(off, fmt.Sprintf("load command %d", i))
		}
		cmd := img.ByteOrder.Uint32(area[pos:])
		siz := img.ByteOrder.Uint32(area[pos+4:])
		if siz < 8 || siz%4 != 0 || uint64(siz) > uint64(len(area)-pos) {
			return nil, truncated(off, fmt.Sprintf("load command %d has invalid size %d", i, siz))
		}
		cmds = append(cmds, loadCommand{
			Cmd:    types.LoadCmd(cmd),
			Data:   area[pos : pos+int(siz)],
			Offset: off,
		})
		pos += int(siz)
	}
	return cmds, nil
}

// u32 reads a bounds-checked 32-bit field of a load command
func (lc *loadCommand) u32(img *Image, at int) (uint32, error) {
	if at < 0 || at+4 > len(lc.Data) {
		return 0, truncated(lc.Offset+int64(at), fmt.Sprintf("field of %v", lc.Cmd))
	}
	return img.ByteOrder.Uint32(lc.Data[at:]), nil
}

// cstring reads a NUL-terminated string at off within b, bounded by b
func cstring(b []byte, off uint32) (string, bool) {
	if uint64(off) >= uint64(len(b)) {
		return "", false
	}
	b = b[off:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b), true
}
