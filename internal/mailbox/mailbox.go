package mailbox

import "sync"

// Mailbox is a single-slot buffer where the latest value always wins.
// A run trigger that arrives while an older one is still pending replaces
// it, so at most one run is ever waiting.
type Mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	val    *T
	closed bool
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put stores v, replacing any pending value. It never blocks and reports
// whether a pending value was dropped. Put after Close is ignored.
func (m *Mailbox[T]) Put(v T) (replaced bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	replaced = m.val != nil
	m.val = &v
	m.mu.Unlock()
	m.cond.Signal()
	return replaced
}

// Take blocks until a value is available and clears the slot. It returns
// false once the mailbox is closed and empty.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.val == nil && !m.closed {
		m.cond.Wait()
	}
	if m.val == nil {
		var zero T
		return zero, false
	}

	v := *m.val
	m.val = nil
	return v, true
}

// TryTake returns the pending value, or nil if empty. It never blocks.
func (m *Mailbox[T]) TryTake() *T {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.val
	m.val = nil
	return v
}

// HasJob reports whether a value is waiting.
func (m *Mailbox[T]) HasJob() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.val != nil
}

// Close wakes every blocked Take. A value already pending can still be taken.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
}
