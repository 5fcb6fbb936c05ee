package breakpoint

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amidbg/amidbg/pkg/symbol"
)

// fakeTarget records install/remove calls. It is safe for the manager's
// concurrent fan-outs.
type fakeTarget struct {
	mu        sync.Mutex
	connected bool

	installed []*Breakpoint
	removed   []*Breakpoint

	failInstall map[uint64]error
	failRemove  map[uint64]error

	onInstall func(bp *Breakpoint)
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		connected:   true,
		failInstall: map[uint64]error{},
		failRemove:  map[uint64]error{},
	}
}

func (t *fakeTarget) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTarget) InstallBreakpoint(bp *Breakpoint) error {
	t.mu.Lock()
	hook := t.onInstall
	err := t.failInstall[bp.ID]
	if err == nil {
		t.installed = append(t.installed, bp)
	}
	t.mu.Unlock()

	if hook != nil {
		hook(bp)
	}
	return err
}

func (t *fakeTarget) RemoveBreakpoint(bp *Breakpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failRemove[bp.ID]; err != nil {
		return err
	}
	t.removed = append(t.removed, bp)
	return nil
}

func (t *fakeTarget) installCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.installed)
}

// fakeDisasm resolves virtual disassembly files by suffix.
type fakeDisasm struct {
	addresses map[string]map[int]uint32
}

func (d *fakeDisasm) IsDisassembledFile(path string) bool {
	return strings.HasSuffix(path, ".dbgasm")
}

func (d *fakeDisasm) AddressForFileEditorLine(path string, line int) (uint32, error) {
	if v, ok := d.addresses[path][line]; ok {
		return v, nil
	}
	return 0, errors.New("no address for line")
}

func testProgram() *symbol.Program {
	p := symbol.NewProgram()
	p.AddLine("main.s", 10, 0, 0x20)
	p.AddLine("main.s", 20, 0, 0x40)
	return p
}

func TestFactoryIDsStrictlyIncreasing(t *testing.T) {
	m := NewManager(newFakeTarget(), testProgram(), nil, NewSizeStore())

	ids := []uint64{
		m.CreateBreakpoint("main.s", 10).ID,
		m.CreateTemporaryBreakpoint(0x1000).ID,
		m.CreateInstructionBreakpoint(0x2000).ID,
		m.CreateDataBreakpoint(0x3000, 2, AccessWrite, "").ID,
		m.CreateExceptionBreakpoint().ID,
	}

	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1])
	}
}

func TestSetBreakpointWhileDisconnected(t *testing.T) {
	target := newFakeTarget()
	target.connected = false
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	outcome := m.SetBreakpoint(m.CreateBreakpoint("main.s", 10))
	assert.False(t, outcome.Applied)
	assert.Equal(t, "target not connected", outcome.Reason)

	pending := m.PendingBreakpoints()
	require.Equal(t, 1, len(pending))
	assert.False(t, pending[0].Verified)
	assert.Equal(t, "target not connected", pending[0].Message)
	assert.Equal(t, 0, target.installCount())
}

func TestSetBreakpointResolvesSourceLine(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	bp := m.CreateBreakpoint("main.s", 20)
	outcome := m.SetBreakpoint(bp)
	assert.True(t, outcome.Applied)
	assert.True(t, bp.Verified)
	assert.Equal(t, 0, bp.SegmentID)
	assert.Equal(t, uint32(0x40), bp.Offset)

	require.Equal(t, 1, len(m.ActiveBreakpoints()))
	assert.Equal(t, 1, target.installCount())
}

func TestSetBreakpointResolvesDisassemblyView(t *testing.T) {
	target := newFakeTarget()
	disasm := &fakeDisasm{addresses: map[string]map[int]uint32{
		"seg_0.dbgasm": {3: 0x1004},
	}}
	m := NewManager(target, testProgram(), disasm, NewSizeStore())

	bp := m.CreateBreakpoint("seg_0.dbgasm", 3)
	outcome := m.SetBreakpoint(bp)
	assert.True(t, outcome.Applied)
	assert.Equal(t, -1, bp.SegmentID)
	assert.Equal(t, uint32(0x1004), bp.Offset)
}

func TestSetBreakpointUnresolvableDemotesToPending(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	outcome := m.SetBreakpoint(m.CreateBreakpoint("main.s", 11))
	assert.False(t, outcome.Applied)
	assert.Contains(t, outcome.Reason, "main.s:11")

	pending := m.PendingBreakpoints()
	require.Equal(t, 1, len(pending))
	assert.Contains(t, pending[0].Message, "no code location")
	assert.Equal(t, 0, len(m.ActiveBreakpoints()))
}

func TestSetBreakpointIncomplete(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	// a source breakpoint without a source location matches no shape
	outcome := m.SetBreakpoint(&Breakpoint{ID: 99, Kind: KindSource, SegmentID: -1})
	assert.False(t, outcome.Applied)
	assert.Contains(t, outcome.Reason, "incomplete breakpoint")
	assert.Equal(t, 1, len(m.PendingBreakpoints()))
}

func TestSetBreakpointTargetRejectionDemotesToPending(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	bp := m.CreateBreakpoint("main.s", 10)
	target.failInstall[bp.ID] = errors.New("target rejected")

	outcome := m.SetBreakpoint(bp)
	assert.False(t, outcome.Applied)
	assert.False(t, bp.Verified)
	assert.Equal(t, 1, len(m.PendingBreakpoints()))
	assert.Equal(t, 0, len(m.ActiveBreakpoints()))
}

func TestExceptionBreakpointNotTracked(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	outcome := m.SetExceptionBreakpoint()
	assert.True(t, outcome.Applied)
	assert.Equal(t, 1, target.installCount())
	// singleton target-side setting, not in the active list
	assert.Equal(t, 0, len(m.ActiveBreakpoints()))

	require.Equal(t, 1, len(target.installed))
	assert.Equal(t, uint32(DefaultExceptionMask), target.installed[0].ExceptionMask)
}

func TestRemoveExceptionBreakpoint(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	require.NoError(t, m.RemoveExceptionBreakpoint())
	require.Equal(t, 1, len(target.removed))
	assert.Equal(t, uint32(DefaultExceptionMask), target.removed[0].ExceptionMask)
}

func TestDataBreakpointInstalledDirectly(t *testing.T) {
	target := newFakeTarget()
	sizes := NewSizeStore()
	m := NewManager(target, testProgram(), nil, sizes)

	bp := m.CreateDataBreakpoint(0xdff180, 2, AccessReadWrite, "")
	outcome := m.SetBreakpoint(bp)
	assert.True(t, outcome.Applied)
	assert.Equal(t, 1, len(m.ActiveBreakpoints()))

	size, ok := sizes.Get("1")
	assert.True(t, ok)
	assert.Equal(t, uint32(2), size)
}

func TestSendAllPendingBreakpoints(t *testing.T) {
	target := newFakeTarget()
	target.connected = false
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	m.SetBreakpoint(m.CreateBreakpoint("main.s", 10))
	m.SetBreakpoint(m.CreateBreakpoint("main.s", 20))
	require.Equal(t, 2, len(m.PendingBreakpoints()))

	target.mu.Lock()
	target.connected = true
	target.mu.Unlock()

	m.SendAllPendingBreakpoints()
	assert.Equal(t, 2, target.installCount())
	assert.Equal(t, 0, len(m.PendingBreakpoints()))
	assert.Equal(t, 2, len(m.ActiveBreakpoints()))
}

func TestSendAllPendingBreakpointsKeepsConcurrentAdds(t *testing.T) {
	target := newFakeTarget()
	target.connected = false
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	m.SetBreakpoint(m.CreateBreakpoint("main.s", 10))

	target.mu.Lock()
	target.connected = true
	target.mu.Unlock()

	// a breakpoint submitted while the flush dispatches must land in the
	// new queue, neither lost nor double-sent
	late := m.CreateInstructionBreakpoint(0x9000)
	var once sync.Once
	target.onInstall = func(*Breakpoint) {
		once.Do(func() { m.AddPendingBreakpoint(late, nil) })
	}

	m.SendAllPendingBreakpoints()
	assert.Equal(t, 1, target.installCount())

	pending := m.PendingBreakpoints()
	require.Equal(t, 1, len(pending))
	assert.Equal(t, late.ID, pending[0].ID)
}

func TestClearBreakpointsPartialFailure(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	first := m.CreateBreakpoint("main.s", 10)
	second := m.CreateBreakpoint("main.s", 20)
	data := m.CreateDataBreakpoint(0xdff180, 2, AccessWrite, "")
	m.SetBreakpoint(first)
	m.SetBreakpoint(second)
	m.SetBreakpoint(data)
	require.Equal(t, 3, len(m.ActiveBreakpoints()))

	target.failRemove[second.ID] = errors.New("busy")

	err := m.ClearBreakpoints("main.s")
	require.Error(t, err)

	// the failed entry is retained for retry, the successes stay removed,
	// and the data breakpoint was never touched
	active := m.ActiveBreakpoints()
	require.Equal(t, 2, len(active))
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, data.ID, active[1].ID)

	delete(target.failRemove, second.ID)
	require.NoError(t, m.ClearBreakpoints("main.s"))
	require.Equal(t, 1, len(m.ActiveBreakpoints()))
}

func TestClearBreakpointsByKind(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	m.SetBreakpoint(m.CreateInstructionBreakpoint(0x1000))
	m.SetBreakpoint(m.CreateDataBreakpoint(0x2000, 4, AccessRead, ""))
	m.SetBreakpoint(m.CreateBreakpoint("main.s", 10))

	require.NoError(t, m.ClearInstructionBreakpoints())
	require.Equal(t, 2, len(m.ActiveBreakpoints()))

	require.NoError(t, m.ClearDataBreakpoints())
	active := m.ActiveBreakpoints()
	require.Equal(t, 1, len(active))
	assert.Equal(t, KindSource, active[0].Kind)
}

func TestClearBreakpointsVirtualNameMatch(t *testing.T) {
	target := newFakeTarget()
	disasm := &fakeDisasm{addresses: map[string]map[int]uint32{
		"/views/seg_0.dbgasm": {1: 0x1000},
	}}
	m := NewManager(target, testProgram(), disasm, NewSizeStore())

	m.SetBreakpoint(m.CreateBreakpoint("/views/seg_0.dbgasm", 1))
	m.SetBreakpoint(m.CreateBreakpoint("main.s", 10))

	// a different directory naming the same virtual file still matches
	require.NoError(t, m.ClearBreakpoints("/elsewhere/seg_0.dbgasm"))
	active := m.ActiveBreakpoints()
	require.Equal(t, 1, len(active))
	assert.Equal(t, "main.s", active[0].Source)

	// unrelated ordinary sources sharing a base name do not match
	require.NoError(t, m.ClearBreakpoints("/other/main.s"))
	assert.Equal(t, 1, len(m.ActiveBreakpoints()))
}

func TestTemporaryBreakpointGroup(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	members := []*Breakpoint{
		m.CreateTemporaryBreakpoint(0x1000),
		m.CreateTemporaryBreakpoint(0x2000),
	}
	group, err := m.AddTemporaryBreakpointGroup(members)
	require.NoError(t, err)
	assert.NotEmpty(t, group)
	assert.Equal(t, 2, target.installCount())

	// group members are invisible to the clear-by-kind operations
	require.NoError(t, m.ClearInstructionBreakpoints())
	assert.Equal(t, 0, len(target.removed))

	// stopping at any member's address uninstalls the whole group
	m.CheckTemporaryBreakpoints(0x2000)
	assert.Equal(t, 2, len(target.removed))

	// the group is gone, a second stop is a no-op
	m.CheckTemporaryBreakpoints(0x1000)
	assert.Equal(t, 2, len(target.removed))
}

func TestCheckTemporaryBreakpointsIgnoresOtherAddresses(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	_, err := m.AddTemporaryBreakpointGroup([]*Breakpoint{m.CreateTemporaryBreakpoint(0x1000)})
	require.NoError(t, err)

	m.CheckTemporaryBreakpoints(0x3000)
	assert.Equal(t, 0, len(target.removed))
}

func TestRemoveTemporaryBreakpointGroupAggregatesErrors(t *testing.T) {
	target := newFakeTarget()
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	members := []*Breakpoint{
		m.CreateTemporaryBreakpoint(0x1000),
		m.CreateTemporaryBreakpoint(0x2000),
	}
	group, err := m.AddTemporaryBreakpointGroup(members)
	require.NoError(t, err)

	target.failRemove[members[0].ID] = errors.New("busy")

	err = m.RemoveTemporaryBreakpointGroup(group)
	require.Error(t, err)
	// the healthy member was still removed
	assert.Equal(t, 1, len(target.removed))
}

func TestAddLocationToPending(t *testing.T) {
	target := newFakeTarget()
	target.connected = false
	m := NewManager(target, testProgram(), nil, NewSizeStore())

	bp := m.CreateBreakpoint("main.s", 10)
	m.SetBreakpoint(bp)
	assert.Equal(t, -1, bp.SegmentID)

	m.AddLocationToPending()
	assert.Equal(t, 0, bp.SegmentID)
	assert.Equal(t, uint32(0x20), bp.Offset)
	// resolution only, nothing was installed
	assert.Equal(t, 0, target.installCount())
}
