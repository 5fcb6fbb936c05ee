package disasm

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Extension is the file extension of virtual disassembly files.
const Extension = ".dbgasm"

// FileKind selects the shape of a virtual disassembly file identity.
type FileKind int

const (
	// FileSegment is the disassembly of one whole segment.
	FileSegment FileKind = iota
	// FileCopper is a window of Copper instructions at an address.
	FileCopper
	// FileAddressWindow is a window of CPU instructions at an address,
	// tied to the stack frame it was opened from.
	FileAddressWindow
)

// ErrUnrecognizedFileName reports a path that matches none of the virtual
// file shapes.
var ErrUnrecognizedFileName = errors.New("unrecognised filename")

// File identifies a disassembly view. Its string encoding is a persistence
// contract: editors hand these names back across sessions, so the format
// must stay bit-exact.
type File struct {
	Kind FileKind

	// kind segment only
	SegmentID int

	// kind address window only
	FrameIndex int

	// kinds copper and address window
	AddressExpr string
	Length      int
}

func NewSegmentFile(segmentID int) File {
	return File{Kind: FileSegment, SegmentID: segmentID}
}

func NewCopperFile(addressExpr string, length int) File {
	return File{Kind: FileCopper, AddressExpr: addressExpr, Length: length}
}

func NewAddressFile(frameIndex int, addressExpr string, length int) File {
	return File{Kind: FileAddressWindow, FrameIndex: frameIndex, AddressExpr: addressExpr, Length: length}
}

// filename shapes, tried in this order
var (
	segmentPattern = regexp.MustCompile(`^seg_(\d+)\.dbgasm$`)
	copperPattern  = regexp.MustCompile(`^copper_(.+)__(\d+)\.dbgasm$`)
	windowPattern  = regexp.MustCompile(`^(\d+)__(.+)__(\d+)\.dbgasm$`)
)

// ParseFile decodes a virtual file identity from a path. Any leading
// directory is ignored.
func ParseFile(path string) (File, error) {
	name := filepath.Base(path)

	if m := segmentPattern.FindStringSubmatch(name); m != nil {
		segmentID, err := strconv.Atoi(m[1])
		if err != nil {
			return File{}, fmt.Errorf("%w: %s", ErrUnrecognizedFileName, path)
		}
		return NewSegmentFile(segmentID), nil
	}

	if m := copperPattern.FindStringSubmatch(name); m != nil {
		length, err := strconv.Atoi(m[2])
		if err != nil {
			return File{}, fmt.Errorf("%w: %s", ErrUnrecognizedFileName, path)
		}
		return NewCopperFile(m[1], length), nil
	}

	if m := windowPattern.FindStringSubmatch(name); m != nil {
		frame, err1 := strconv.Atoi(m[1])
		length, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			return File{}, fmt.Errorf("%w: %s", ErrUnrecognizedFileName, path)
		}
		return NewAddressFile(frame, m[2], length), nil
	}

	return File{}, fmt.Errorf("%w: %s", ErrUnrecognizedFileName, path)
}

// IsDisassembledFileName reports whether a path names a virtual
// disassembly file.
func IsDisassembledFileName(path string) bool {
	_, err := ParseFile(path)
	return err == nil
}

// Name renders the identity back into its file name. Name is the exact
// inverse of ParseFile.
func (f File) Name() string {
	switch f.Kind {
	case FileSegment:
		return fmt.Sprintf("seg_%d%s", f.SegmentID, Extension)
	case FileCopper:
		return fmt.Sprintf("copper_%s__%d%s", f.AddressExpr, f.Length, Extension)
	default:
		return fmt.Sprintf("%d__%s__%d%s", f.FrameIndex, f.AddressExpr, f.Length, Extension)
	}
}

// URI renders the identity as a resource locator. `#` is reserved in
// locators and address expressions may contain it, so it is
// percent-encoded.
func (f File) URI() string {
	return "disassembly:" + strings.ReplaceAll(f.Name(), "#", "%23")
}

func (f File) String() string {
	return f.Name()
}
