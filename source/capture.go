package source

import (
	"context"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"gocv.io/x/gocv"
	"io"
	"sync"
)

// Capture is a Source reading from an OpenCV video capture, being a webcam,
// GStreamer pipeline or video file
type Capture struct {
	mu   sync.Mutex
	opts Options
	vc   *gocv.VideoCapture
	// img is the Mat frames are read into, reused for every read
	img gocv.Mat
}

// Open the capture source described by the options
func Open(opts Options) (*Capture, error) {

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)

	switch opts.Kind {
	case KindWebcam:
		vc, err = gocv.VideoCaptureDevice(opts.Device)
	case KindGStreamer:
		vc, err = gocv.VideoCaptureFileWithAPI(opts.Pipeline, gocv.VideoCaptureGstreamer)
	case KindFile:
		vc, err = gocv.VideoCaptureFile(opts.Path)
	}

	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", opts, err)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("error opening %s: capture not opened", opts)
	}

	return &Capture{
		opts: opts,
		vc:   vc,
		img:  gocv.NewMat(),
	}, nil
}

// FPS returns the frame rate reported by the capture device, zero when
// unknown
func (c *Capture) FPS() float64 {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return 0
	}

	return c.vc.Get(gocv.VideoCaptureFPS)
}

// Read the next frame converted from OpenCV's BGR order to RGB.  Video files
// return io.EOF at their end unless looping, live sources return ErrNoFrame
// when the device delivered nothing
func (c *Capture) Read(ctx context.Context) (yolostream.Frame, error) {

	if err := ctx.Err(); err != nil {
		return yolostream.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return yolostream.Frame{}, io.EOF
	}

	if ok := c.vc.Read(&c.img); !ok || c.img.Empty() {

		if c.opts.Kind != KindFile {
			return yolostream.Frame{}, fmt.Errorf("%s: %w", c.opts, ErrNoFrame)
		}

		if !c.opts.Loop {
			return yolostream.Frame{}, io.EOF
		}

		// rewind to the first frame and try once more
		c.vc.Set(gocv.VideoCapturePosFrames, 0)

		if ok := c.vc.Read(&c.img); !ok || c.img.Empty() {
			return yolostream.Frame{}, io.EOF
		}
	}

	return yolostream.FrameFromMat(c.img, true)
}

// Close releases the capture device
func (c *Capture) Close() error {

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil
	}

	err := c.vc.Close()
	c.vc = nil
	c.img.Close()

	return err
}
