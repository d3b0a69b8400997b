package pipeline

import "sync/atomic"

// Sequencer hands out incrementing frame sequence numbers starting at 1
type Sequencer struct {
	n atomic.Uint64
}

// NewSequencer returns a Sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns the next sequence number
func (s *Sequencer) Next() uint64 {
	return s.n.Add(1)
}

// Last returns the most recently issued sequence number, zero if none
func (s *Sequencer) Last() uint64 {
	return s.n.Load()
}
