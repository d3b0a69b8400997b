// Package fps tracks the rolling frame rate of the pipeline.
package fps

import (
	"gonum.org/v1/gonum/stat"
	"math"
	"sync"
	"time"
)

// DefaultWindow is the number of recent frame timestamps considered
const DefaultWindow = 50

// Tracker keeps the timestamps of the most recent frames in a ring and
// derives the frame rate from the intervals between them
type Tracker struct {
	mu    sync.Mutex
	stamp []time.Time
	next  int
	count int
}

// New returns a Tracker over the given number of frames, values below two
// use DefaultWindow
func New(window int) *Tracker {

	if window < 2 {
		window = DefaultWindow
	}

	return &Tracker{stamp: make([]time.Time, window)}
}

// Add records a frame at the given time
func (t *Tracker) Add(ts time.Time) {

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stamp[t.next] = ts
	t.next = (t.next + 1) % len(t.stamp)

	if t.count < len(t.stamp) {
		t.count++
	}
}

// Tick records a frame now
func (t *Tracker) Tick() {
	t.Add(time.Now())
}

// intervals returns the seconds between consecutive recorded frames, oldest
// first
func (t *Tracker) intervals() []float64 {

	if t.count < 2 {
		return nil
	}

	start := (t.next - t.count + len(t.stamp)) % len(t.stamp)
	out := make([]float64, t.count-1)

	for i := range out {
		a := t.stamp[(start+i)%len(t.stamp)]
		b := t.stamp[(start+i+1)%len(t.stamp)]
		out[i] = b.Sub(a).Seconds()
	}

	return out
}

// FPS returns the frame rate over the window.  Zero is returned until two
// frames have been seen, and +Inf when every frame carries the same time
func (t *Tracker) FPS() float64 {

	t.mu.Lock()
	defer t.mu.Unlock()

	iv := t.intervals()

	if len(iv) == 0 {
		return 0
	}

	mean := stat.Mean(iv, nil)

	if mean <= 0 {
		return math.Inf(1)
	}

	return 1 / mean
}

// Jitter returns the standard deviation of the frame interval
func (t *Tracker) Jitter() time.Duration {

	t.mu.Lock()
	defer t.mu.Unlock()

	iv := t.intervals()

	if len(iv) < 2 {
		return 0
	}

	return time.Duration(stat.StdDev(iv, nil) * float64(time.Second))
}

// Reset forgets every recorded frame
func (t *Tracker) Reset() {

	t.mu.Lock()
	defer t.mu.Unlock()

	t.next = 0
	t.count = 0
}
