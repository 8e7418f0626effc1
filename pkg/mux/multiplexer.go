// Package mux implements the channel multiplexer: many named logical
// channels sharing one underlying Transport via a 4-opcode control
// protocol (Open, Close, AckOpen, Data).
package mux

import (
	"context"
	"fmt"
	"sync"

	"github.com/roadrunner-server/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/harborbridge/wiremux/pkg/buffer"
)

// Control opcodes, a single byte at the start of every underlying-channel
// frame.
const (
	opcodeOpen    byte = 1
	opcodeClose   byte = 2
	opcodeAckOpen byte = 3
	opcodeData    byte = 4
)

// pendingEntry tracks one outstanding local Open: the PendingOpen Channel
// that will transition in place to Open once AckOpen or a collision
// arrives, and the signal that wakes the waiting caller.
type pendingEntry struct {
	ch   *Channel
	done chan struct{}
}

// Multiplexer owns the pendingOpen/openChannels bookkeeping over one
// Transport. The zero value is not usable; construct with New.
type Multiplexer struct {
	transport Transport

	mu           sync.Mutex
	pendingOpen  map[string]*pendingEntry
	openChannels map[string]*Channel

	onError *listenerSet[func(error)]

	symmetricAck bool
	ring         *diagnosticRing
}

// Option configures a Multiplexer at construction.
type Option func(*Multiplexer)

// WithSymmetricAck makes the multiplexer emit an AckOpen in response to
// every passive Open it receives, so the remote caller's Open resolves
// without needing a simultaneous Open of its own. Default is off,
// matching the base wire behavior.
func WithSymmetricAck() Option {
	return func(m *Multiplexer) { m.symmetricAck = true }
}

// WithDiagnosticRing enables a bounded ring of the last size dispatch
// decisions, retrievable via DumpState. Disabled by default.
func WithDiagnosticRing(size int) Option {
	return func(m *Multiplexer) { m.ring = newDiagnosticRing(size) }
}

// New constructs a Multiplexer over t and immediately subscribes to its
// signals.
func New(t Transport, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		transport:    t,
		pendingOpen:  make(map[string]*pendingEntry),
		openChannels: make(map[string]*Channel),
		onError:      newListenerSet[func(error)](),
	}
	for _, opt := range opts {
		opt(m)
	}
	t.OnMessage(m.dispatch)
	t.OnClosed(m.handleTransportClosed)
	t.OnError(m.handleTransportError)
	return m
}

// Open writes an Open frame for id and blocks until AckOpen arrives, a
// simultaneous remote Open for the same id arrives, or ctx is done. The
// returned Channel is the same object throughout: it starts in state
// PendingOpen and transitions to Open in place once resolved. The core
// never times this out itself; callers overlay timeouts via ctx.
func (m *Multiplexer) Open(ctx context.Context, id string) (*Channel, error) {
	const op = errors.Op("mux: open")

	ch := newChannel(m, id, PendingOpen)
	entry := &pendingEntry{ch: ch, done: make(chan struct{})}
	m.mu.Lock()
	m.pendingOpen[id] = entry
	m.mu.Unlock()

	wb := m.transport.WriteBuffer()
	wb.WriteByte(opcodeOpen)
	wb.WriteString(id)
	if err := wb.Commit(); err != nil {
		m.mu.Lock()
		delete(m.pendingOpen, id)
		m.mu.Unlock()
		return nil, errors.E(op, err)
	}

	select {
	case <-entry.done:
		return ch, nil
	case <-ctx.Done():
		return nil, errors.E(op, ctx.Err())
	}
}

// forgetOpen removes id from openChannels, used by Channel.Close.
func (m *Multiplexer) forgetOpen(id string) {
	m.mu.Lock()
	delete(m.openChannels, id)
	m.mu.Unlock()
}

// OnError subscribes to framing and protocol errors detected by the
// multiplexer itself — a truncated or unknown-opcode frame, an AckOpen
// with no pending open — as distinct from Channel.OnError, which carries
// errors fanned out from the underlying Transport. Firing is
// snapshotted the same way channel and transport listeners are.
func (m *Multiplexer) OnError(fn func(error)) (unsubscribe func()) {
	return m.onError.add(fn)
}

func (m *Multiplexer) fireError(err error) {
	for _, fn := range m.onError.snapshot() {
		fn(err)
	}
}

// dispatch reads one inbound frame's opcode and id, then routes to the
// matching handler. It is registered as the transport's OnMessage
// listener and runs synchronously within the transport's delivery
// context. A truncated read or an unknown opcode is a framing error:
// fatal to this frame only, surfaced via OnError, never mutating
// pendingOpen/openChannels.
func (m *Multiplexer) dispatch(rb *buffer.ReadBuffer) {
	const op = errors.Op("mux: dispatch")

	opcode, err := rb.ReadByte()
	if err != nil {
		m.record(0, "", "framing-error")
		m.fireError(errors.E(op, err))
		return
	}
	id, err := rb.ReadString()
	if err != nil {
		m.record(opcode, "", "framing-error")
		m.fireError(errors.E(op, err))
		return
	}

	switch opcode {
	case opcodeOpen:
		m.handleOpen(id)
		m.record(opcode, id, "open")
	case opcodeAckOpen:
		m.handleAckOpen(id)
		m.record(opcode, id, "ack-open")
	case opcodeClose:
		m.handleClose(id)
		m.record(opcode, id, "close")
	case opcodeData:
		m.handleData(id, rb)
		m.record(opcode, id, "data")
	default:
		m.record(opcode, id, "unknown-opcode")
		m.fireError(errors.E(op, errors.Str(fmt.Sprintf("framing error: unknown opcode %d for id %q", opcode, id))))
	}
}

func (m *Multiplexer) handleAckOpen(id string) {
	const op = errors.Op("mux: ack-open")

	m.mu.Lock()
	entry, ok := m.pendingOpen[id]
	if !ok {
		// Protocol error against a non-conforming peer: AckOpen with no
		// pending open for id. Nothing in openChannels or pendingOpen
		// changes; there is no channel to signal, so it surfaces on the
		// multiplexer's own error signal instead.
		m.mu.Unlock()
		m.fireError(errors.E(op, errors.Str(fmt.Sprintf("protocol error: AckOpen with no pending open for id %q", id))))
		return
	}
	delete(m.pendingOpen, id)
	m.openChannels[id] = entry.ch
	m.mu.Unlock()

	entry.ch.setState(Open)
	close(entry.done)
}

func (m *Multiplexer) handleOpen(id string) {
	m.mu.Lock()
	ch, exists := m.openChannels[id]
	entry, collided := m.pendingOpen[id]
	if collided {
		delete(m.pendingOpen, id)
		ch = entry.ch
		m.openChannels[id] = ch
	} else if !exists {
		ch = newChannel(m, id, Open)
		m.openChannels[id] = ch
	}
	symmetricAck := m.symmetricAck
	m.mu.Unlock()

	if collided {
		ch.setState(Open)
		close(entry.done)
	}

	if symmetricAck {
		wb := m.transport.WriteBuffer()
		wb.WriteByte(opcodeAckOpen)
		wb.WriteString(id)
		_ = wb.Commit()
	}
}

func (m *Multiplexer) handleClose(id string) {
	m.mu.Lock()
	ch, ok := m.openChannels[id]
	if ok {
		delete(m.openChannels, id)
	}
	m.mu.Unlock()

	if ok {
		ch.fireClosed()
	}
}

func (m *Multiplexer) handleData(id string, rb *buffer.ReadBuffer) {
	m.mu.Lock()
	ch, ok := m.openChannels[id]
	m.mu.Unlock()

	if ok {
		ch.fireMessage(rb)
	}
}

// handleTransportClosed cascades a transport close: pendingOpen is
// cleared without resolving (abandoned opens are the caller's timeout
// policy to cancel), every open channel fires closed exactly once, and
// both tables end up empty.
func (m *Multiplexer) handleTransportClosed() {
	m.mu.Lock()
	m.pendingOpen = make(map[string]*pendingEntry)
	channels := make([]*Channel, 0, len(m.openChannels))
	for _, ch := range m.openChannels {
		channels = append(channels, ch)
	}
	m.openChannels = make(map[string]*Channel)
	m.mu.Unlock()

	var eg errgroup.Group
	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			ch.fireClosed()
			return nil
		})
	}
	_ = eg.Wait()
}

// CloseAll actively closes every currently open channel, writing a Close
// frame for each. Channels are closed concurrently; any per-channel
// errors are combined with multierr and all are attempted regardless of
// individual failures.
func (m *Multiplexer) CloseAll() error {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.openChannels))
	for _, ch := range m.openChannels {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	var eg errgroup.Group
	var mu sync.Mutex
	var combined error
	for _, ch := range channels {
		ch := ch
		eg.Go(func() error {
			err := ch.Close()
			if err != nil {
				mu.Lock()
				combined = multierr.Append(combined, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()
	return combined
}

// handleTransportError fans err out to every currently open channel.
func (m *Multiplexer) handleTransportError(err error) {
	m.mu.Lock()
	channels := make([]*Channel, 0, len(m.openChannels))
	for _, ch := range m.openChannels {
		channels = append(channels, ch)
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.fireError(err)
	}
}

// Shutdown closes the underlying transport. The resulting OnClosed signal
// cascades through handleTransportClosed: pendingOpen is cleared and
// every open channel fires closed exactly once.
func (m *Multiplexer) Shutdown() error {
	return m.transport.Close()
}

// OpenChannelCount returns the number of currently open channels, for
// tests and diagnostics.
func (m *Multiplexer) OpenChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.openChannels)
}

// PendingOpenCount returns the number of outstanding local opens, for
// tests and diagnostics.
func (m *Multiplexer) PendingOpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingOpen)
}

func (m *Multiplexer) record(opcode byte, id, outcome string) {
	if m.ring == nil {
		return
	}
	m.ring.push(diagnosticEvent{opcode: opcode, id: id, outcome: outcome})
}
