package pipeline

import (
	"context"
	"github.com/vidsight/go-yolostream"
	"sync"
	"time"
)

// Stamped is a captured frame tagged with its sequence number and capture
// time
type Stamped struct {
	Seq      uint64
	Captured time.Time
	Frame    yolostream.Frame
}

// Mailbox is a single slot, latest wins handoff between the capture and
// processing goroutines.  Publishing overwrites a frame that has not been
// taken yet and counts it as dropped, so a slow consumer always works on
// the newest frame and nothing queues up behind it
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	item   *Stamped
	closed bool
	// dropped counts frames overwritten before being taken
	dropped uint64
	// consecutive counts drops since the last take
	consecutive uint64
}

// NewMailbox returns an empty Mailbox
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put publishes a frame, replacing any frame not yet taken.  It never
// blocks.  Reports true when an earlier frame was dropped
func (m *Mailbox) Put(s Stamped) bool {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}

	dropped := m.item != nil

	if dropped {
		m.dropped++
		m.consecutive++
	}

	m.item = &s
	m.cond.Signal()

	return dropped
}

// Take blocks until a frame is available and returns it.  It returns false
// once the mailbox is closed and drained, or when the context is done
func (m *Mailbox) Take(ctx context.Context) (Stamped, bool) {

	// wake the waiter below when the context ends
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.item == nil && !m.closed && ctx.Err() == nil {
		m.cond.Wait()
	}

	if m.item == nil || ctx.Err() != nil {
		return Stamped{}, false
	}

	s := *m.item
	m.item = nil
	m.consecutive = 0

	return s, true
}

// Close the mailbox.  A frame already published can still be taken, after
// that Take returns false
func (m *Mailbox) Close() {

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cond.Broadcast()
}

// Dropped returns the total number of frames overwritten before being taken
func (m *Mailbox) Dropped() uint64 {

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dropped
}

// ConsecutiveDrops returns the number of frames dropped since the last take
func (m *Mailbox) ConsecutiveDrops() uint64 {

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.consecutive
}
