package mux

import (
	"sync"

	"github.com/roadrunner-server/errors"

	"github.com/harborbridge/wiremux/pkg/buffer"
)

// State is a logical channel's lifecycle stage.
type State int

const (
	// PendingOpen: the initiator sent Open and is awaiting AckOpen.
	PendingOpen State = iota
	// Open: both peers agree the channel exists.
	Open
	// Closed: terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case PendingOpen:
		return "pending-open"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Channel is a named logical endpoint multiplexed over a single
// Transport. It is created by Multiplexer and must not be constructed
// directly.
type Channel struct {
	id  string
	mux *Multiplexer

	mu    sync.Mutex
	state State

	onMessage *listenerSet[func(*buffer.ReadBuffer)]
	onClosed  *listenerSet[func()]
	onError   *listenerSet[func(error)]
}

func newChannel(m *Multiplexer, id string, state State) *Channel {
	return &Channel{
		id:        id,
		mux:       m,
		state:     state,
		onMessage: newListenerSet[func(*buffer.ReadBuffer)](),
		onClosed:  newListenerSet[func()](),
		onError:   newListenerSet[func(error)](),
	}
}

// ID returns the channel's string identifier.
func (c *Channel) ID() string { return c.id }

// State returns the channel's current lifecycle stage.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// OnMessage subscribes to inbound Data frames for this channel. The read
// buffer passed to fn is positioned just past the multiplexer header and
// must not escape the call without copying.
func (c *Channel) OnMessage(fn func(*buffer.ReadBuffer)) (unsubscribe func()) {
	return c.onMessage.add(fn)
}

// OnClosed subscribes to the channel's closed signal, fired exactly once.
func (c *Channel) OnClosed(fn func()) (unsubscribe func()) {
	return c.onClosed.add(fn)
}

// OnError subscribes to transport errors fanned out to this channel.
func (c *Channel) OnError(fn func(error)) (unsubscribe func()) {
	return c.onError.add(fn)
}

// WriteBuffer acquires a fresh underlying write buffer, prepends the Data
// opcode and this channel's id, and returns it for the caller to write a
// payload into and Commit.
func (c *Channel) WriteBuffer() *buffer.WriteBuffer {
	wb := c.mux.transport.WriteBuffer()
	wb.WriteByte(opcodeData)
	wb.WriteString(c.id)
	return wb
}

// Close writes a Close frame, fires this channel's closed signal, and
// removes it from the multiplexer's open-channel table. Calling Close on
// an already-closed channel is a no-op.
func (c *Channel) Close() error {
	const op = errors.Op("mux: channel close")

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = Closed
	c.mu.Unlock()

	c.mux.forgetOpen(c.id)

	wb := c.mux.transport.WriteBuffer()
	wb.WriteByte(opcodeClose)
	wb.WriteString(c.id)
	err := wb.Commit()

	c.fireClosed()

	if err != nil {
		return errors.E(op, err)
	}
	return nil
}

func (c *Channel) fireMessage(rb *buffer.ReadBuffer) {
	for _, fn := range c.onMessage.snapshot() {
		fn(rb)
	}
}

func (c *Channel) fireClosed() {
	c.setState(Closed)
	for _, fn := range c.onClosed.snapshot() {
		fn()
	}
}

func (c *Channel) fireError(err error) {
	for _, fn := range c.onError.snapshot() {
		fn(err)
	}
}
