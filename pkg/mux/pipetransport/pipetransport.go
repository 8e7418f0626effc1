// Package pipetransport supplies the one concrete mux.Transport this repo
// ships: a length-prefixed framing of an io.ReadWriteCloser, in the same
// shape as a socket.NewSocketRelay(rwc io.ReadWriteCloser) constructor. It
// exists so pkg/mux is testable in-process over net.Pipe and so a real
// socket/named-pipe/WebSocket adapter has a worked example to imitate.
package pipetransport

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/roadrunner-server/errors"

	"github.com/harborbridge/wiremux/pkg/buffer"
)

// Transport frames each outbound Commit as a 4-byte big-endian length
// prefix followed by the payload, and expects the same shape inbound.
// Construct with New, then call Run in its own goroutine to pump inbound
// frames to the OnMessage listeners; Run returns when the underlying
// conn is closed or a read fails.
type Transport struct {
	conn io.ReadWriteCloser

	writeMu sync.Mutex

	mu       sync.Mutex
	closed   bool
	onMsg    []func(*buffer.ReadBuffer)
	onClosed []func()
	onErr    []func(error)
}

// New wraps conn.
func New(conn io.ReadWriteCloser) *Transport {
	return &Transport{conn: conn}
}

// WriteBuffer returns a write buffer whose Commit frames and sends its
// contents over conn.
func (t *Transport) WriteBuffer() *buffer.WriteBuffer {
	return buffer.New(t.send)
}

func (t *Transport) send(data []byte) error {
	const op = errors.Op("pipetransport: send")
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(data))) //nolint:gosec
	if _, err := t.conn.Write(lenPrefix[:]); err != nil {
		return errors.E(op, err)
	}
	if _, err := t.conn.Write(data); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// OnMessage registers fn to run for every inbound frame once Run is
// pumping.
func (t *Transport) OnMessage(fn func(*buffer.ReadBuffer)) func() {
	t.mu.Lock()
	idx := len(t.onMsg)
	t.onMsg = append(t.onMsg, fn)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.onMsg[idx] = nil
		t.mu.Unlock()
	}
}

// OnClosed registers fn to run once Run observes conn closing.
func (t *Transport) OnClosed(fn func()) func() {
	t.mu.Lock()
	idx := len(t.onClosed)
	t.onClosed = append(t.onClosed, fn)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.onClosed[idx] = nil
		t.mu.Unlock()
	}
}

// OnError registers fn to run for every read error that isn't a clean
// close.
func (t *Transport) OnError(fn func(error)) func() {
	t.mu.Lock()
	idx := len(t.onErr)
	t.onErr = append(t.onErr, fn)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		t.onErr[idx] = nil
		t.mu.Unlock()
	}
}

// Close closes the underlying conn.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.conn.Close()
}

// Run pumps inbound frames until conn returns an error. A clean io.EOF
// fires OnClosed listeners; any other error fires OnError listeners and
// then OnClosed, since a read failure leaves the transport unusable.
func (t *Transport) Run() {
	for {
		var lenPrefix [4]byte
		if _, err := io.ReadFull(t.conn, lenPrefix[:]); err != nil {
			t.fireTerminal(err)
			return
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		data := make([]byte, n)
		if _, err := io.ReadFull(t.conn, data); err != nil {
			t.fireTerminal(err)
			return
		}
		rb := buffer.NewRead(data)
		for _, fn := range t.snapshotMsg() {
			fn(rb)
		}
	}
}

func (t *Transport) fireTerminal(err error) {
	if err != io.EOF { //nolint:errorlint
		for _, fn := range t.snapshotErr() {
			fn(err)
		}
	}
	for _, fn := range t.snapshotClosed() {
		fn()
	}
}

func (t *Transport) snapshotMsg() []func(*buffer.ReadBuffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]func(*buffer.ReadBuffer), 0, len(t.onMsg))
	for _, fn := range t.onMsg {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

func (t *Transport) snapshotErr() []func(error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]func(error), 0, len(t.onErr))
	for _, fn := range t.onErr {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}

func (t *Transport) snapshotClosed() []func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]func(), 0, len(t.onClosed))
	for _, fn := range t.onClosed {
		if fn != nil {
			out = append(out, fn)
		}
	}
	return out
}
