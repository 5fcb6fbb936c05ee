// Package remote speaks to the emulator's GDB-style remote debug server
// over TCP. One Client is one debug session: it owns the connection, the
// segment table reported by the emulator at attach time, and the stop
// notification fan-out the rest of the debugger subscribes to.
package remote

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/amidbg/amidbg/pkg/breakpoint"
)

// Thread ids reported by the emulator. The CPU and the Copper are exposed
// as two threads of the same process.
const (
	ThreadCPU    = 1
	ThreadCopper = 2
)

// Segment is one relocated hunk of the loaded program.
type Segment struct {
	ID      int
	Address uint32
	Size    uint32
}

// Client is a GDB remote protocol session with the emulator.
type Client struct {
	conn net.Conn
	rw   *bufio.ReadWriter

	// serializes request/response pairs on the wire
	reqMu sync.Mutex

	connected *atomic.Bool

	// stop notification fan-out
	handlerMu      sync.Mutex
	firstStopFired *atomic.Bool
	firstStopFns   []func()
	stopFns        []func(pc uint32)

	lastStopPC *atomic.Uint32

	segMu    sync.RWMutex
	segments []Segment
}

// Dial connects to the emulator's debug server and loads the segment table
// of the program it has loaded.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:           conn,
		rw:             bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		connected:      atomic.NewBool(true),
		firstStopFired: atomic.NewBool(false),
		lastStopPC:     atomic.NewUint32(0),
	}

	if err := c.loadSegments(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("load segments: %w", err)
	}
	return c, nil
}

func (c *Client) Close() error {
	c.connected.Store(false)
	return c.conn.Close()
}

// IsConnected reports whether the session is usable.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// OnFirstStop subscribes fn to the first stop the target ever reports.
// The subscription fires at most once per session, no matter how many stop
// packets arrive.
func (c *Client) OnFirstStop(fn func()) {
	c.handlerMu.Lock()
	c.firstStopFns = append(c.firstStopFns, fn)
	c.handlerMu.Unlock()
}

// OnStop subscribes fn to every stop the target reports.
func (c *Client) OnStop(fn func(pc uint32)) {
	c.handlerMu.Lock()
	c.stopFns = append(c.stopFns, fn)
	c.handlerMu.Unlock()
}

// request sends one command and returns the reply payload.
func (c *Client) request(cmd string) (string, error) {
	if !c.IsConnected() {
		return "", fmt.Errorf("not connected")
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	if _, err := c.rw.Write(frame(cmd)); err != nil {
		return "", err
	}
	if err := c.rw.Flush(); err != nil {
		return "", err
	}

	reply, err := readPacket(c.rw.Reader)
	if err != nil {
		return "", err
	}

	// ack the reply
	if err := c.rw.WriteByte(packetAck); err != nil {
		return "", err
	}
	return reply, c.rw.Flush()
}

// Continue resumes the target and blocks until it stops again. The stop
// reply carries the program counter; both the one-shot first-stop
// subscribers and the per-stop subscribers are invoked before returning.
func (c *Client) Continue() error {
	return c.resume("c")
}

// Step executes a single instruction and blocks until the target stops.
func (c *Client) Step() error {
	return c.resume("s")
}

func (c *Client) resume(cmd string) error {
	reply, err := c.request(cmd)
	if err != nil {
		return err
	}
	if isErrorReply(reply) {
		return fmt.Errorf("resume %q failed: %s", cmd, reply)
	}

	pc, _ := stopReplyPC(reply)
	c.dispatchStop(pc)
	return nil
}

// LastStopPC is the program counter of the most recent reported stop.
func (c *Client) LastStopPC() uint32 {
	return c.lastStopPC.Load()
}

func (c *Client) dispatchStop(pc uint32) {
	c.lastStopPC.Store(pc)

	c.handlerMu.Lock()
	firstFns := append([]func(){}, c.firstStopFns...)
	stopFns := append([]func(pc uint32){}, c.stopFns...)
	c.handlerMu.Unlock()

	if c.firstStopFired.CAS(false, true) {
		for _, fn := range firstFns {
			fn()
		}
	}
	for _, fn := range stopFns {
		fn(pc)
	}
}

// stopReplyPC extracts the program counter from a `T` stop reply of the
// form `T05pc:00c00276;thread:1;`.
func stopReplyPC(reply string) (uint32, bool) {
	if len(reply) < 3 || reply[0] != 'T' {
		return 0, false
	}
	for _, pair := range strings.Split(reply[3:], ";") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 || kv[0] != "pc" {
			continue
		}
		v, err := strconv.ParseUint(kv[1], 16, 32)
		if err != nil {
			return 0, false
		}
		return uint32(v), true
	}
	return 0, false
}

// GetMemory reads length bytes of target memory at address.
func (c *Client) GetMemory(address uint32, length int) ([]byte, error) {
	reply, err := c.request(fmt.Sprintf("m%x,%x", address, length))
	if err != nil {
		return nil, err
	}
	if isErrorReply(reply) {
		return nil, fmt.Errorf("memory read at $%x failed: %s", address, reply)
	}
	data, err := decodeHex(reply)
	if err != nil {
		return nil, fmt.Errorf("memory read at $%x: bad reply: %w", address, err)
	}
	return data, nil
}

// SetMemory writes data to target memory at address.
func (c *Client) SetMemory(address uint32, data []byte) error {
	reply, err := c.request(fmt.Sprintf("M%x,%x:%x", address, len(data), data))
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("memory write at $%x failed: %s", address, reply)
	}
	return nil
}

// GetSegmentMemory reads the full memory image of a segment.
func (c *Client) GetSegmentMemory(segmentID int) ([]byte, error) {
	seg, ok := c.segment(segmentID)
	if !ok {
		return nil, fmt.Errorf("unknown segment %d", segmentID)
	}
	return c.GetMemory(seg.Address, int(seg.Size))
}

// ToRelativeOffset translates an absolute address into a segment-relative
// one. A segment id < 0 means the address is outside every known segment.
func (c *Client) ToRelativeOffset(address uint32) (int, uint32) {
	c.segMu.RLock()
	defer c.segMu.RUnlock()

	for _, seg := range c.segments {
		if address >= seg.Address && address < seg.Address+seg.Size {
			return seg.ID, address - seg.Address
		}
	}
	return -1, address
}

// ToAbsoluteOffset translates a segment-relative location into an absolute
// address.
func (c *Client) ToAbsoluteOffset(segmentID int, offset uint32) (uint32, error) {
	seg, ok := c.segment(segmentID)
	if !ok {
		return 0, fmt.Errorf("unknown segment %d", segmentID)
	}
	return seg.Address + offset, nil
}

func (c *Client) segment(id int) (Segment, bool) {
	c.segMu.RLock()
	defer c.segMu.RUnlock()

	for _, seg := range c.segments {
		if seg.ID == id {
			return seg, true
		}
	}
	return Segment{}, false
}

// Segments returns a copy of the segment table.
func (c *Client) Segments() []Segment {
	c.segMu.RLock()
	defer c.segMu.RUnlock()
	return append([]Segment{}, c.segments...)
}

// loadSegments asks the emulator where it relocated the program's hunks.
// The reply is the emulator's `qSegments` extension: `<base>,<size>` pairs
// separated by `;`, in hunk order.
func (c *Client) loadSegments() error {
	reply, err := c.request("qSegments")
	if err != nil {
		return err
	}
	if isErrorReply(reply) || reply == "" {
		return fmt.Errorf("no segment info: %q", reply)
	}

	var segments []Segment
	for i, part := range strings.Split(reply, ";") {
		var base, size uint32
		if _, err := fmt.Sscanf(part, "%x,%x", &base, &size); err != nil {
			return fmt.Errorf("bad segment %q: %v", part, err)
		}
		segments = append(segments, Segment{ID: i, Address: base, Size: size})
	}

	c.segMu.Lock()
	c.segments = segments
	c.segMu.Unlock()
	return nil
}

// IsCopperThread reports whether a thread id names the Copper.
func (c *Client) IsCopperThread(thread int) bool {
	return thread == ThreadCopper
}

// IsCPUThread reports whether a thread id names the main CPU.
func (c *Client) IsCPUThread(thread int) bool {
	return thread == ThreadCPU
}

// InstallBreakpoint installs a breakpoint on the target, picking the
// Z-packet kind from the breakpoint's shape.
func (c *Client) InstallBreakpoint(bp *breakpoint.Breakpoint) error {
	return c.breakpointRequest(bp, true)
}

// RemoveBreakpoint removes a previously installed breakpoint.
func (c *Client) RemoveBreakpoint(bp *breakpoint.Breakpoint) error {
	return c.breakpointRequest(bp, false)
}

func (c *Client) breakpointRequest(bp *breakpoint.Breakpoint, install bool) error {
	op := byte('z')
	if install {
		op = 'Z'
	}

	var cmd string
	switch {
	case bp.ExceptionMask != 0:
		cmd = fmt.Sprintf("%c1,%x,0", op, bp.ExceptionMask)
	case bp.Kind == breakpoint.KindData:
		address, err := c.breakpointAddress(bp)
		if err != nil {
			return err
		}
		cmd = fmt.Sprintf("%c%d,%x,%x", op, watchKind(bp.Access), address, bp.Size)
	default:
		address, err := c.breakpointAddress(bp)
		if err != nil {
			return err
		}
		cmd = fmt.Sprintf("%c0,%x,0", op, address)
	}

	reply, err := c.request(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("target rejected breakpoint #%d: %q", bp.ID, reply)
	}
	return nil
}

func (c *Client) breakpointAddress(bp *breakpoint.Breakpoint) (uint32, error) {
	if bp.SegmentID < 0 {
		return bp.Offset, nil
	}
	return c.ToAbsoluteOffset(bp.SegmentID, bp.Offset)
}

// watchKind maps an access type to its Z-packet number: 2=write, 3=read,
// 4=access.
func watchKind(access breakpoint.Access) int {
	switch access {
	case breakpoint.AccessRead:
		return 3
	case breakpoint.AccessReadWrite:
		return 4
	default:
		return 2
	}
}
