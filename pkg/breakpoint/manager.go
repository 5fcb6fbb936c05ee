package breakpoint

import (
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/amidbg/amidbg/pkg/symbol"
)

// Target is the remote-session surface the manager installs breakpoints
// through.
type Target interface {
	IsConnected() bool
	InstallBreakpoint(bp *Breakpoint) error
	RemoveBreakpoint(bp *Breakpoint) error
}

// LineResolver resolves a source line to the segment offset it was
// assembled at.
type LineResolver interface {
	FindLocationForLine(path string, line int) (symbol.Location, bool)
}

// DisassemblyResolver resolves lines of virtual disassembly files to
// addresses.
type DisassemblyResolver interface {
	IsDisassembledFile(path string) bool
	AddressForFileEditorLine(path string, line int) (uint32, error)
}

// Outcome is the result of submitting a breakpoint. Submission never
// fails: a breakpoint that could not be installed is parked in the
// pending queue and the reason is reported here, so a batch of editor
// breakpoints proceeds even when one of them is not yet resolvable.
type Outcome struct {
	Applied bool
	Reason  string
}

// Manager owns breakpoint classification, the pending queue, temporary
// groups, and the locking discipline around remote install/remove.
type Manager struct {
	target  Target
	symbols LineResolver
	disasm  DisassemblyResolver
	sizes   *SizeStore

	// serializes bulk operations (pending flush, clears, exception and
	// temporary-group removal) against each other. Plain SetBreakpoint
	// calls stay outside it so single edits remain cheap.
	lock *timedMutex

	nextID        *atomic.Uint64
	exceptionMask uint32

	mu      sync.Mutex
	active  []*Breakpoint
	pending []*Breakpoint
	groups  map[string][]*Breakpoint
}

func NewManager(target Target, symbols LineResolver, disasm DisassemblyResolver, sizes *SizeStore) *Manager {
	return &Manager{
		target:        target,
		symbols:       symbols,
		disasm:        disasm,
		sizes:         sizes,
		lock:          newTimedMutex(defaultLockPoll, defaultLockTimeout),
		nextID:        atomic.NewUint64(0),
		exceptionMask: DefaultExceptionMask,
		groups:        map[string][]*Breakpoint{},
	}
}

// SetExceptionMask replaces the mask used by newly created exception
// breakpoints.
func (m *Manager) SetExceptionMask(mask uint32) {
	m.exceptionMask = mask
}

// ---------------------------------------------------------------------
// factories

// CreateBreakpoint creates a source-line breakpoint.
func (m *Manager) CreateBreakpoint(source string, line int) *Breakpoint {
	return &Breakpoint{
		ID:        m.nextID.Add(1),
		Kind:      KindSource,
		Source:    source,
		Line:      line,
		SegmentID: -1,
	}
}

// CreateTemporaryBreakpoint creates an address breakpoint intended for a
// temporary group.
func (m *Manager) CreateTemporaryBreakpoint(address uint32) *Breakpoint {
	return &Breakpoint{
		ID:        m.nextID.Add(1),
		Kind:      KindTemporary,
		SegmentID: -1,
		Offset:    address,
		Temporary: true,
	}
}

// CreateInstructionBreakpoint creates an address breakpoint.
func (m *Manager) CreateInstructionBreakpoint(address uint32) *Breakpoint {
	return &Breakpoint{
		ID:        m.nextID.Add(1),
		Kind:      KindInstruction,
		SegmentID: -1,
		Offset:    address,
	}
}

// CreateDataBreakpoint creates a watchpoint over size bytes and records
// its width in the shared size store.
func (m *Manager) CreateDataBreakpoint(offset uint32, size uint32, access Access, message string) *Breakpoint {
	bp := &Breakpoint{
		ID:        m.nextID.Add(1),
		Kind:      KindData,
		SegmentID: -1,
		Offset:    offset,
		Size:      size,
		Access:    access,
		Message:   message,
	}
	if m.sizes != nil {
		m.sizes.Set(strconv.FormatUint(bp.ID, 10), size)
	}
	return bp
}

// CreateExceptionBreakpoint creates an exception breakpoint carrying the
// manager's current exception mask.
func (m *Manager) CreateExceptionBreakpoint() *Breakpoint {
	return &Breakpoint{
		ID:            m.nextID.Add(1),
		Kind:          KindException,
		SegmentID:     -1,
		ExceptionMask: m.exceptionMask,
	}
}

// ---------------------------------------------------------------------
// submission

// SetBreakpoint classifies and installs a breakpoint. Failures never
// escape: the breakpoint is demoted to pending with the failure message
// and the outcome reports "not applied".
func (m *Manager) SetBreakpoint(bp *Breakpoint) Outcome {
	if !m.target.IsConnected() {
		reason := "target not connected"
		m.addPending(bp, reason)
		return Outcome{Reason: reason}
	}

	if err := m.install(bp); err != nil {
		m.addPending(bp, err.Error())
		return Outcome{Reason: err.Error()}
	}
	return Outcome{Applied: true}
}

func (m *Manager) install(bp *Breakpoint) error {
	switch {
	case bp.Source != "" && bp.Line > 0 && bp.ID > 0:
		if err := m.resolveLocation(bp); err != nil {
			return err
		}
		if err := m.target.InstallBreakpoint(bp); err != nil {
			return err
		}
		bp.Verified = true
		m.mu.Lock()
		m.active = append(m.active, bp)
		m.mu.Unlock()
		return nil

	case bp.ExceptionMask != 0:
		// exception breakpoints are a singleton target-side setting,
		// not tracked per instance in the active list
		if err := m.target.InstallBreakpoint(bp); err != nil {
			return err
		}
		bp.Verified = true
		return nil

	case bp.Kind == KindData || bp.Kind == KindInstruction:
		if err := m.target.InstallBreakpoint(bp); err != nil {
			return err
		}
		bp.Verified = true
		m.mu.Lock()
		m.active = append(m.active, bp)
		m.mu.Unlock()
		return nil

	default:
		return fmt.Errorf("%w: #%d (%s)", ErrIncompleteBreakpoint, bp.ID, bp.Kind)
	}
}

func (m *Manager) resolveLocation(bp *Breakpoint) error {
	if m.disasm != nil && m.disasm.IsDisassembledFile(bp.Source) {
		address, err := m.disasm.AddressForFileEditorLine(bp.Source, bp.Line)
		if err != nil {
			return err
		}
		bp.SegmentID = -1
		bp.Offset = address
		return nil
	}

	if m.symbols == nil {
		return fmt.Errorf("no symbols to resolve %s:%d", bp.Source, bp.Line)
	}
	loc, ok := m.symbols.FindLocationForLine(bp.Source, bp.Line)
	if !ok {
		return fmt.Errorf("no code location for %s:%d", bp.Source, bp.Line)
	}
	bp.SegmentID = loc.SegmentID
	bp.Offset = loc.Offset
	return nil
}

// AddPendingBreakpoint marks a breakpoint unverified and appends it to the
// pending queue. Duplicates are the caller's responsibility.
func (m *Manager) AddPendingBreakpoint(bp *Breakpoint, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	m.addPending(bp, reason)
}

func (m *Manager) addPending(bp *Breakpoint, reason string) {
	bp.Verified = false
	if reason != "" {
		bp.Message = reason
	}
	m.mu.Lock()
	m.pending = append(m.pending, bp)
	m.mu.Unlock()
}

// AddLocationToPending resolves the segment/offset of every pending
// source breakpoint in place, best effort. Nothing is reinstalled.
func (m *Manager) AddLocationToPending() {
	if m.symbols == nil {
		return
	}

	m.mu.Lock()
	pending := append([]*Breakpoint{}, m.pending...)
	m.mu.Unlock()

	for _, bp := range pending {
		if bp.Source == "" || bp.Line <= 0 {
			continue
		}
		if m.disasm != nil && m.disasm.IsDisassembledFile(bp.Source) {
			continue
		}
		if loc, ok := m.symbols.FindLocationForLine(bp.Source, bp.Line); ok {
			bp.SegmentID = loc.SegmentID
			bp.Offset = loc.Offset
		}
	}
}

// SendAllPendingBreakpoints flushes the pending queue, installing every
// captured entry concurrently. The queue is swapped for an empty one
// before dispatch, so breakpoints submitted by other callers while the
// flush runs land in the new queue instead of being lost or double-sent.
// Wired to the session's first-stop notification.
func (m *Manager) SendAllPendingBreakpoints() {
	release, err := m.lock.acquire("sendAllPendingBreakpoints")
	if err != nil {
		log.Printf("breakpoint: pending flush skipped: %v", err)
		return
	}
	defer release()

	m.mu.Lock()
	captured := m.pending
	m.pending = nil
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, bp := range captured {
		wg.Add(1)
		go func(bp *Breakpoint) {
			defer wg.Done()
			m.SetBreakpoint(bp)
		}(bp)
	}
	wg.Wait()
}

// ---------------------------------------------------------------------
// exception breakpoints

// SetExceptionBreakpoint installs the singleton exception breakpoint with
// the manager's current mask.
func (m *Manager) SetExceptionBreakpoint() Outcome {
	return m.SetBreakpoint(m.CreateExceptionBreakpoint())
}

// RemoveExceptionBreakpoint removes the exception breakpoint target-side.
func (m *Manager) RemoveExceptionBreakpoint() error {
	release, err := m.lock.acquire("removeExceptionBreakpoint")
	if err != nil {
		return err
	}
	defer release()

	return m.target.RemoveBreakpoint(m.CreateExceptionBreakpoint())
}

// ---------------------------------------------------------------------
// clearing

// ClearBreakpoints removes every active source breakpoint belonging to
// the given file. Entries whose remote removal fails stay active and one
// aggregate error is reported after every entry was attempted.
func (m *Manager) ClearBreakpoints(source string) error {
	return m.clear(KindSource, source, "clearBreakpoints")
}

// ClearDataBreakpoints removes every active data breakpoint.
func (m *Manager) ClearDataBreakpoints() error {
	return m.clear(KindData, "", "clearDataBreakpoints")
}

// ClearInstructionBreakpoints removes every active instruction breakpoint.
func (m *Manager) ClearInstructionBreakpoints() error {
	return m.clear(KindInstruction, "", "clearInstructionBreakpoints")
}

func (m *Manager) clear(kind Kind, source string, label string) error {
	release, err := m.lock.acquire(label)
	if err != nil {
		return err
	}
	defer release()

	// a SetBreakpoint racing this clear has no ordering guarantee; the
	// snapshot/write-back keeps the clear itself consistent
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()

	var (
		kept     []*Breakpoint
		failed   []uint64
		firstErr error
	)
	for _, bp := range active {
		if bp.Kind != kind || (kind == KindSource && !m.sameFile(bp.Source, source)) {
			kept = append(kept, bp)
			continue
		}
		if err := m.target.RemoveBreakpoint(bp); err != nil {
			kept = append(kept, bp)
			failed = append(failed, bp.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	m.mu.Lock()
	m.active = kept
	m.mu.Unlock()

	if len(failed) > 0 {
		return fmt.Errorf("failed to remove breakpoint(s) %v: %v", failed, firstErr)
	}
	return nil
}

// sameFile reports whether two source identifiers name the same file.
// Bare names only match when they refer to a virtual disassembly file, so
// unrelated sources sharing a display name are left alone.
func (m *Manager) sameFile(a, b string) bool {
	if a == b {
		return true
	}
	if filepath.Base(a) != filepath.Base(b) {
		return false
	}
	return m.disasm != nil && m.disasm.IsDisassembledFile(a)
}

// ---------------------------------------------------------------------
// temporary groups

// AddTemporaryBreakpointGroup registers a group of address breakpoints
// and installs every member concurrently. Members never appear in the
// active list, so the clear-by-kind operations cannot touch them.
func (m *Manager) AddTemporaryBreakpointGroup(members []*Breakpoint) (string, error) {
	group := uuid.NewString()

	m.mu.Lock()
	m.groups[group] = members
	m.mu.Unlock()

	errs := make([]error, len(members))
	var wg sync.WaitGroup
	for i, bp := range members {
		wg.Add(1)
		go func(i int, bp *Breakpoint) {
			defer wg.Done()
			errs[i] = m.target.InstallBreakpoint(bp)
			if errs[i] == nil {
				bp.Verified = true
			}
		}(i, bp)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return group, fmt.Errorf("temporary group %s: %w", group, err)
		}
	}
	return group, nil
}

// CheckTemporaryBreakpoints uninstalls and unregisters every group that
// has a member at pc. Call it on every reported stop.
func (m *Manager) CheckTemporaryBreakpoints(pc uint32) {
	m.mu.Lock()
	var hit []string
	for group, members := range m.groups {
		for _, bp := range members {
			if bp.SegmentID < 0 && bp.Offset == pc {
				hit = append(hit, group)
				break
			}
		}
	}
	m.mu.Unlock()

	for _, group := range hit {
		if err := m.RemoveTemporaryBreakpointGroup(group); err != nil {
			log.Printf("breakpoint: remove temporary group %s: %v", group, err)
		}
	}
}

// RemoveTemporaryBreakpointGroup removes every member of a group remotely
// and drops the group. Removal is attempted for all members before the
// aggregate error is reported.
func (m *Manager) RemoveTemporaryBreakpointGroup(group string) error {
	release, err := m.lock.acquire("removeTemporaryBreakpointGroup")
	if err != nil {
		return err
	}
	defer release()

	m.mu.Lock()
	members := m.groups[group]
	m.mu.Unlock()

	var (
		failed   []uint64
		firstErr error
	)
	for _, bp := range members {
		if err := m.target.RemoveBreakpoint(bp); err != nil {
			failed = append(failed, bp.ID)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	m.mu.Lock()
	delete(m.groups, group)
	m.mu.Unlock()

	if len(failed) > 0 {
		return fmt.Errorf("temporary group %s: failed to remove breakpoint(s) %v: %v", group, failed, firstErr)
	}
	return nil
}

// ---------------------------------------------------------------------
// inspection

// ActiveBreakpoints returns a copy of the active list.
func (m *Manager) ActiveBreakpoints() []*Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Breakpoint{}, m.active...)
}

// PendingBreakpoints returns a copy of the pending queue.
func (m *Manager) PendingBreakpoints() []*Breakpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Breakpoint{}, m.pending...)
}
