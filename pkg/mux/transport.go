package mux

import "github.com/harborbridge/wiremux/pkg/buffer"

// Transport is the underlying transport: a single bidirectional
// byte-oriented pipe that supplies raw framed byte buffers. It is never
// implemented by this package directly — pkg/mux/pipetransport supplies
// one concrete in-process adapter; sockets, named pipes, and WebSockets
// are other peers' concern.
//
// Shaped like a relay.Relay abstraction (Send/Receive/Close), generalized
// to an event-emitter style of message/closed/error signals.
type Transport interface {
	// WriteBuffer returns a fresh write buffer whose Commit sends one
	// frame over the transport. The caller owns it until Commit.
	WriteBuffer() *buffer.WriteBuffer

	// OnMessage registers a listener invoked once per inbound frame, in
	// registration order, synchronously within the transport's delivery
	// context. It returns an unsubscribe function.
	OnMessage(func(*buffer.ReadBuffer)) (unsubscribe func())

	// OnClosed registers a listener invoked once when the transport
	// closes, local or remote-initiated.
	OnClosed(func()) (unsubscribe func())

	// OnError registers a listener invoked for transport-level errors.
	// An error may also end the transport: pipetransport, for one, fires
	// OnError and then OnClosed when a read fails.
	OnError(func(error)) (unsubscribe func())

	// Close closes the underlying transport.
	Close() error
}
