package source

import (
	"context"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"io"
	"sync"
)

// Static is a Source serving frames held in memory, such as a video buffered
// ahead of time or fixtures in tests
type Static struct {
	mu     sync.Mutex
	frames []yolostream.Frame
	pos    int
	loop   bool
	closed bool
}

// NewStatic returns a Source serving the given frames in order.  When loop
// is set it starts again from the first frame instead of returning io.EOF
func NewStatic(frames []yolostream.Frame, loop bool) (*Static, error) {

	for i, f := range frames {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
	}

	return &Static{frames: frames, loop: loop}, nil
}

// Buffer reads every frame from src into a Static source, the way a video is
// buffered up front to replay at a fixed rate.  src is closed afterwards
func Buffer(ctx context.Context, src Source, loop bool) (*Static, error) {

	defer src.Close()

	frames := make([]yolostream.Frame, 0)

	for {
		f, err := src.Read(ctx)

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}

		frames = append(frames, f)
	}

	return NewStatic(frames, loop)
}

// Len returns the number of frames held
func (s *Static) Len() int {
	return len(s.frames)
}

// Read returns the next frame
func (s *Static) Read(ctx context.Context) (yolostream.Frame, error) {

	if err := ctx.Err(); err != nil {
		return yolostream.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || len(s.frames) == 0 {
		return yolostream.Frame{}, io.EOF
	}

	if s.pos >= len(s.frames) {
		if !s.loop {
			return yolostream.Frame{}, io.EOF
		}

		s.pos = 0
	}

	f := s.frames[s.pos]
	s.pos++

	return f, nil
}

// Close the source, later reads return io.EOF
func (s *Static) Close() error {

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}
