// Package disasm resolves addresses to decoded instruction lines and
// virtual disassembly files to addresses. It bridges two instruction
// universes, the 68k CPU and the Copper coprocessor; which decoder applies
// is always carried explicitly with an address, never guessed from the
// bytes, because neither format is self-describing.
package disasm

import (
	"fmt"
	"log"
	"sync"

	"github.com/amidbg/amidbg/pkg/disasm/copper"
	"github.com/amidbg/amidbg/pkg/disasm/m68k"
)

// Session is the remote-session surface the manager reads the target
// through.
type Session interface {
	GetMemory(address uint32, length int) ([]byte, error)
	GetSegmentMemory(segmentID int) ([]byte, error)
	ToRelativeOffset(address uint32) (segmentID int, offset uint32)
	ToAbsoluteOffset(segmentID int, offset uint32) (uint32, error)
	IsCopperThread(thread int) bool
}

// Evaluator resolves symbolic address expressions.
type Evaluator interface {
	Evaluate(expr string) (uint32, bool)
}

// Copper list pointer registers. The active list addresses are read from
// these rather than tracked locally, so a program rewriting its list
// pointers is always seen current.
const (
	cop1lc = 0xdff080
	cop2lc = 0xdff084
)

// windowLength is the instruction-window length used when synthesizing a
// file identity for an address outside any segment.
const windowLength = 100

// Line is one decoded line of disassembly, cached per address.
type Line struct {
	Address uint32
	Text    string
	Copper  bool
}

// Instruction is one decoded instruction with its raw bytes.
type Instruction struct {
	Address uint32
	Bytes   []byte
	Text    string
}

// StackFrame is a presentation frame for one stack position. Line is the
// 1-based instruction index inside Source, or -1 when unmapped.
type StackFrame struct {
	Index   int
	Label   string
	Address uint32
	Source  *File
	Line    int
}

// LineOutOfRangeError reports an editor line past the end of a decoded
// instruction window.
type LineOutOfRangeError struct {
	Requested int
	Actual    int
}

func (e *LineOutOfRangeError) Error() string {
	return fmt.Sprintf("line %d out of range: %d instruction(s) decoded", e.Requested, e.Actual)
}

// Manager resolves addresses to lines and virtual files to addresses,
// caching decoded lines per address.
type Manager struct {
	session Session
	eval    Evaluator

	// insert-once line cache. Entries are immutable and never evicted;
	// one manager serves one session, a reload gets a fresh manager.
	mu    sync.RWMutex
	cache map[uint32]Line
}

func NewManager(session Session, eval Evaluator) *Manager {
	return &Manager{
		session: session,
		eval:    eval,
		cache:   map[uint32]Line{},
	}
}

// DisassembleLine decodes the single instruction at pc on the given
// thread. Fetch and decode failures are logged and swallowed: the caller
// gets an address-only line, which is not cached so a later call retries.
func (m *Manager) DisassembleLine(pc uint32, thread int) Line {
	m.mu.RLock()
	line, ok := m.cache[pc]
	m.mu.RUnlock()
	if ok {
		return line
	}

	isCopper := m.session.IsCopperThread(thread)
	line = Line{Address: pc, Text: fmt.Sprintf("$%x", pc), Copper: isCopper}

	// enough bytes for the longest instruction in either format
	data, err := m.session.GetMemory(pc, m68k.MaxInstructionLen)
	if err != nil {
		log.Printf("disasm: read %d bytes at $%x: %v", m68k.MaxInstructionLen, pc, err)
		return line
	}

	var text string
	if isCopper {
		instrs := copper.Decode(data, pc)
		if len(instrs) == 0 {
			log.Printf("disasm: no copper instruction at $%x", pc)
			return line
		}
		text = instrs[0].Text
	} else {
		instrs := m68k.Decode(data, pc)
		if len(instrs) == 0 {
			log.Printf("disasm: no instruction at $%x", pc)
			return line
		}
		text = instrs[0].Text
	}

	line.Text = fmt.Sprintf("%08x: %s", pc, text)

	m.mu.Lock()
	if _, exists := m.cache[pc]; !exists {
		m.cache[pc] = line
	}
	m.mu.Unlock()
	return line
}

// IsCopperLine reports the cached Copper flag for pc. It never triggers a
// fetch: an uncached address reports false.
func (m *Manager) IsCopperLine(pc uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cache[pc].Copper
}

// GetStackFrame builds the presentation frame for one stack position.
// Resolution failures degrade the frame instead of failing it: an address
// that maps to no known instruction reports line -1.
func (m *Manager) GetStackFrame(stackPosition int, address uint32, thread int) StackFrame {
	frame := StackFrame{
		Index:   stackPosition,
		Label:   m.DisassembleLine(address, thread).Text,
		Address: address,
		Line:    -1,
	}

	isCopper := m.session.IsCopperThread(thread)
	segmentID, _ := m.session.ToRelativeOffset(address)

	if segmentID >= 0 && !isCopper {
		instrs, err := m.DisassembleSegment(segmentID)
		if err != nil {
			log.Printf("disasm: segment %d for frame at $%x: %v", segmentID, address, err)
			return frame
		}
		for i, instr := range instrs {
			if instr.Address == address {
				frame.Line = i + 1
				break
			}
		}
		return frame
	}

	if !isCopper {
		source := NewAddressFile(stackPosition, fmt.Sprintf("$%x", address), windowLength)
		frame.Source = &source
		return frame
	}

	m.copperFrame(&frame, address)
	return frame
}

// copperFrame attaches a Copper list identity and line to a frame. The
// line is the 1-based position of address in whichever of the two lists
// contains it; list 1 wins ties.
func (m *Manager) copperFrame(frame *StackFrame, address uint32) {
	list1, err1 := m.copperListAddress(1)
	list2, err2 := m.copperListAddress(2)

	line1 := -1
	if err1 == nil {
		line1 = copperLine(address, list1)
	}
	line2 := -1
	if err2 == nil {
		line2 = copperLine(address, list2)
	}

	switch {
	case line1 >= 0 && (line2 < 0 || line1 <= line2):
		source := NewCopperFile(fmt.Sprintf("$%x", list1), windowLength)
		frame.Source = &source
		frame.Line = line1
	case line2 >= 0:
		source := NewCopperFile(fmt.Sprintf("$%x", list2), windowLength)
		frame.Source = &source
		frame.Line = line2
	}
}

// copperLine is the 1-based instruction index of address in a list
// starting at base, negative when address is before the list start.
func copperLine(address, base uint32) int {
	return int(int32(address-base)+copper.InstructionLen) / copper.InstructionLen
}

// copperListAddress reads the current address of Copper list 1 or 2 from
// the list pointer registers.
func (m *Manager) copperListAddress(list int) (uint32, error) {
	register := uint32(cop1lc)
	if list == 2 {
		register = cop2lc
	}

	data, err := m.session.GetMemory(register, 4)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("short read of copper list pointer %d", list)
	}
	return uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]), nil
}

// DisassembleSegment decodes a segment's whole memory image, one
// instruction per entry, in address order.
func (m *Manager) DisassembleSegment(segmentID int) ([]Instruction, error) {
	data, err := m.session.GetSegmentMemory(segmentID)
	if err != nil {
		return nil, err
	}
	base, err := m.session.ToAbsoluteOffset(segmentID, 0)
	if err != nil {
		return nil, err
	}
	return fromM68k(m68k.Decode(data, base)), nil
}

// DisassembleAddress decodes length bytes at the address an expression
// resolves to. For Copper views the literal expressions "1" and "2" name
// the base pointers of Copper list 1 and 2; anything else goes through the
// expression evaluator.
func (m *Manager) DisassembleAddress(expression string, length int, offset int, isCopper bool) ([]Instruction, error) {
	var (
		address  uint32
		resolved bool
	)

	if isCopper && (expression == "1" || expression == "2") {
		list := 1
		if expression == "2" {
			list = 2
		}
		v, err := m.copperListAddress(list)
		if err != nil {
			return nil, fmt.Errorf("copper list %s: %w", expression, err)
		}
		address, resolved = v, true
	} else if m.eval != nil {
		address, resolved = m.eval.Evaluate(expression)
	}

	if !resolved {
		return nil, fmt.Errorf("cannot resolve address of %q", expression)
	}
	address += uint32(offset)

	data, err := m.session.GetMemory(address, length)
	if err != nil {
		return nil, err
	}

	if isCopper {
		return fromCopper(copper.Decode(data, address)), nil
	}
	return fromM68k(m68k.Decode(data, address)), nil
}

// AddressForFileEditorLine returns the address of the 1-based lineNumber'th
// instruction of the view a virtual file identity denotes.
func (m *Manager) AddressForFileEditorLine(path string, lineNumber int) (uint32, error) {
	if lineNumber <= 0 {
		return 0, fmt.Errorf("invalid line number %d", lineNumber)
	}

	f, err := ParseFile(path)
	if err != nil {
		return 0, err
	}

	var instrs []Instruction
	switch f.Kind {
	case FileSegment:
		instrs, err = m.DisassembleSegment(f.SegmentID)
	case FileCopper:
		instrs, err = m.DisassembleAddress(f.AddressExpr, f.Length, 0, true)
	default:
		instrs, err = m.DisassembleAddress(f.AddressExpr, f.Length, 0, false)
	}
	if err != nil {
		return 0, err
	}

	if lineNumber > len(instrs) {
		return 0, &LineOutOfRangeError{Requested: lineNumber, Actual: len(instrs)}
	}
	return instrs[lineNumber-1].Address, nil
}

// IsDisassembledFile reports whether path names a virtual disassembly
// file.
func (m *Manager) IsDisassembledFile(path string) bool {
	return IsDisassembledFileName(path)
}

func fromM68k(in []m68k.Instruction) []Instruction {
	out := make([]Instruction, len(in))
	for i, instr := range in {
		out[i] = Instruction{Address: instr.Address, Bytes: instr.Bytes, Text: instr.Text}
	}
	return out
}

func fromCopper(in []copper.Instruction) []Instruction {
	out := make([]Instruction, len(in))
	for i, instr := range in {
		out[i] = Instruction{Address: instr.Address, Bytes: instr.Bytes, Text: instr.Text}
	}
	return out
}
