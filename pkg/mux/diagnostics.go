package mux

import (
	"container/ring"
	"fmt"
	"io"
	"sync"
)

// diagnosticEvent is one recorded dispatch decision, kept only when a
// Multiplexer is constructed with WithDiagnosticRing: a container/ring
// log of inbound frames (opcode, id, outcome) for DumpState. Outbound
// frames are not recorded.
type diagnosticEvent struct {
	opcode  byte
	id      string
	outcome string
}

func (e diagnosticEvent) String() string {
	return fmt.Sprintf("opcode=%d id=%q outcome=%s", e.opcode, e.id, e.outcome)
}

type diagnosticRing struct {
	mu sync.Mutex
	r  *ring.Ring
}

func newDiagnosticRing(size int) *diagnosticRing {
	if size <= 0 {
		size = 1
	}
	return &diagnosticRing{r: ring.New(size)}
}

func (d *diagnosticRing) push(e diagnosticEvent) {
	d.mu.Lock()
	d.r.Value = e
	d.r = d.r.Next()
	d.mu.Unlock()
}

// DumpState writes the diagnostic ring's contents, oldest first, to w. It
// is a no-op if the Multiplexer was not constructed with
// WithDiagnosticRing.
func (m *Multiplexer) DumpState(w io.Writer) {
	if m.ring == nil {
		return
	}
	m.ring.mu.Lock()
	defer m.ring.mu.Unlock()
	m.ring.r.Do(func(v any) {
		if v == nil {
			return
		}
		fmt.Fprintln(w, v.(diagnosticEvent).String())
	})
}
