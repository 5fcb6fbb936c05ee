// Package symbol holds the debug information of the loaded program: which
// source line lives at which segment offset, and the values of global
// labels. The emulator relocates segments at load time, so everything here
// is segment-relative; only the remote session knows absolute addresses.
package symbol

import (
	"fmt"
	"strconv"
	"strings"
)

// Location is a segment-relative code location.
type Location struct {
	SegmentID int
	Offset    uint32
}

// Program is the symbol table of one debugged program.
type Program struct {
	// key=source path, val=map[lineno]location
	lines map[string]map[int]Location

	// key=label, val=absolute address after relocation
	labels map[string]uint32
}

func NewProgram() *Program {
	return &Program{
		lines:  map[string]map[int]Location{},
		labels: map[string]uint32{},
	}
}

// AddLine records that source line `line` of `path` was assembled at the
// given segment offset.
func (p *Program) AddLine(path string, line int, segmentID int, offset uint32) {
	m, ok := p.lines[path]
	if !ok {
		m = map[int]Location{}
		p.lines[path] = m
	}
	m[line] = Location{SegmentID: segmentID, Offset: offset}
}

// AddLabel records the relocated address of a global label.
func (p *Program) AddLabel(name string, address uint32) {
	p.labels[name] = address
}

// FindLocationForLine returns the segment/offset a source line was
// assembled to, or false if the line produced no code.
func (p *Program) FindLocationForLine(path string, line int) (Location, bool) {
	m, ok := p.lines[path]
	if !ok {
		return Location{}, false
	}
	loc, ok := m[line]
	return loc, ok
}

// Evaluate resolves an address expression. Supported forms are hex
// literals ($1000, 0x1000), decimal literals, labels, and label+offset /
// label-offset.
func (p *Program) Evaluate(expr string) (uint32, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false
	}

	if v, ok := parseNumber(expr); ok {
		return v, true
	}

	// label with optional +/- numeric offset
	idx := strings.IndexAny(expr[1:], "+-")
	if idx < 0 {
		v, ok := p.labels[expr]
		return v, ok
	}
	idx++

	base, ok := p.labels[strings.TrimSpace(expr[:idx])]
	if !ok {
		return 0, false
	}
	off, ok := parseNumber(strings.TrimSpace(expr[idx+1:]))
	if !ok {
		return 0, false
	}
	if expr[idx] == '-' {
		return base - off, true
	}
	return base + off, true
}

func parseNumber(s string) (uint32, bool) {
	var (
		v   uint64
		err error
	)
	switch {
	case strings.HasPrefix(s, "$"):
		v, err = strconv.ParseUint(s[1:], 16, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		v, err = strconv.ParseUint(s[2:], 16, 32)
	default:
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

func (l Location) String() string {
	return fmt.Sprintf("seg %d + $%x", l.SegmentID, l.Offset)
}
