// Package breakpoint owns the lifecycle of every breakpoint the debugger
// knows about: classification, installation on the remote target, the
// pending queue for breakpoints that cannot be installed yet, and the
// temporary groups used for run-to-address.
package breakpoint

import (
	"errors"
)

// Kind tags the shape of a breakpoint.
type Kind int

const (
	// KindSource stops at a source file/line location.
	KindSource Kind = iota
	// KindInstruction stops at an absolute address.
	KindInstruction
	// KindData watches a memory range for accesses.
	KindData
	// KindException stops on processor exceptions matching a mask.
	KindException
	// KindTemporary is an address breakpoint installed as part of a
	// temporary group and removed when any group member is hit.
	KindTemporary
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindInstruction:
		return "instruction"
	case KindData:
		return "data"
	case KindException:
		return "exception"
	case KindTemporary:
		return "temporary"
	default:
		return "unknown"
	}
}

// Access is the watch condition of a data breakpoint.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessReadWrite:
		return "readWrite"
	default:
		return "unknown"
	}
}

// DefaultExceptionMask selects the 68k exception vectors 2-7: bus error,
// address error, illegal instruction, divide by zero, CHK and TRAPV.
const DefaultExceptionMask = 0b11111100

// Breakpoint is one breakpoint of any kind. Exactly one field set matching
// the kind is populated; a breakpoint that has not been resolved to a
// target location has Verified=false and nothing installed target-side.
type Breakpoint struct {
	// ID is unique and strictly increasing across a manager's lifetime,
	// shared across all kinds. Never reused.
	ID uint64

	Kind     Kind
	Verified bool

	// source location, kind source only
	Source string
	Line   int

	// resolved location. SegmentID < 0 means Offset is an absolute
	// address rather than a segment-relative one.
	SegmentID int
	Offset    uint32

	// kind data only
	Size   uint32
	Access Access

	// kind exception only
	ExceptionMask uint32

	// diagnostic message, set when installation failed or was deferred
	Message string

	Temporary bool
}

var (
	// ErrIncompleteBreakpoint reports a breakpoint whose fields match no
	// recognized shape.
	ErrIncompleteBreakpoint = errors.New("incomplete breakpoint")

	// ErrLockTimeout reports that the manager's serialization lock was
	// not acquired within its hard timeout.
	ErrLockTimeout = errors.New("breakpoint lock timeout")
)
