package fps

import (
	"github.com/stretchr/testify/assert"
	"math"
	"testing"
	"time"
)

func TestFPSSteadyRate(t *testing.T) {

	tr := New(10)
	base := time.Unix(1000, 0)

	assert.Equal(t, float64(0), tr.FPS())

	tr.Add(base)
	assert.Equal(t, float64(0), tr.FPS())

	for i := 1; i < 30; i++ {
		tr.Add(base.Add(time.Duration(i) * 40 * time.Millisecond))
	}

	assert.InDelta(t, 25, tr.FPS(), 1e-6)
	assert.Equal(t, time.Duration(0), tr.Jitter())
}

func TestFPSWindowForgetsOldFrames(t *testing.T) {

	tr := New(5)
	base := time.Unix(1000, 0)
	ts := base

	// slow frames first, then fast ones filling the whole window
	for i := 0; i < 5; i++ {
		ts = ts.Add(time.Second)
		tr.Add(ts)
	}

	for i := 0; i < 5; i++ {
		ts = ts.Add(100 * time.Millisecond)
		tr.Add(ts)
	}

	assert.InDelta(t, 10, tr.FPS(), 1e-6)
}

func TestFPSIdenticalTimestamps(t *testing.T) {

	tr := New(0)
	now := time.Unix(5, 0)

	tr.Add(now)
	tr.Add(now)

	assert.True(t, math.IsInf(tr.FPS(), 1))

	tr.Reset()
	assert.Equal(t, float64(0), tr.FPS())
	assert.Len(t, tr.stamp, DefaultWindow)
}

func TestJitter(t *testing.T) {

	tr := New(10)
	base := time.Unix(0, 0)

	tr.Add(base)
	tr.Add(base.Add(10 * time.Millisecond))
	tr.Add(base.Add(40 * time.Millisecond))

	// intervals of 10ms and 30ms, sample standard deviation ~14.1ms
	assert.InDelta(t, float64(14142*time.Microsecond), float64(tr.Jitter()), float64(10*time.Microsecond))
	assert.InDelta(t, 50, tr.FPS(), 1e-6)
}
