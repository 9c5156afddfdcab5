package tollywood

import "sync"

// Mailbox is a per-actor FIFO of pending messages. Any number of
// senders may Post concurrently; the contract guarantees only the
// executor currently owning the actor calls Dequeue, so the consumer
// side is effectively single-threaded even though the backing slice is
// mutex-protected for the producer side.
//
// Grounded on bollywood's Address, which gave every actor a buffered
// channel per addressee. A channel can't satisfy HasMessages() as a
// non-blocking snapshot without also racing a concurrent Dequeue, so
// this generalizes the same MPSC shape onto a mutex-guarded slice.
type Mailbox struct {
	mu       sync.Mutex
	messages []interface{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Post appends a message. Non-blocking, safe from any goroutine.
func (m *Mailbox) Post(msg interface{}) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
}

// Dequeue removes and returns the head message, if any. Insertion order
// from a single sender is preserved.
func (m *Mailbox) Dequeue() (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil, false
	}
	msg := m.messages[0]
	m.messages[0] = nil // drop the reference before reslicing
	m.messages = m.messages[1:]
	return msg, true
}

// HasMessages is a non-blocking snapshot of whether the mailbox is
// non-empty.
func (m *Mailbox) HasMessages() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages) > 0
}

// Len reports the current depth. Useful for metrics and tests; not part
// of the core contract.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
