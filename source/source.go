// Package source provides the frames fed into the detection pipeline.
package source

import (
	"context"
	"errors"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"strings"
)

// ErrNoFrame is returned by live sources when the device delivered nothing
// on this read.  It is transient, the next read may succeed
var ErrNoFrame = errors.New("no frame available")

// Source delivers RGB frames one at a time.  Read returns io.EOF once a
// finite source is exhausted
type Source interface {
	Read(ctx context.Context) (yolostream.Frame, error)
	Close() error
}

// Kind is the type of frame source
type Kind string

const (
	// KindWebcam captures from a local camera by device index
	KindWebcam Kind = "webcam"
	// KindGStreamer captures from a GStreamer pipeline description
	KindGStreamer Kind = "gstreamer"
	// KindFile reads a video file
	KindFile Kind = "file"
)

// ParseKind converts a source kind name into a Kind
func ParseKind(s string) (Kind, error) {

	k := Kind(strings.ToLower(strings.TrimSpace(s)))

	switch k {
	case KindWebcam, KindGStreamer, KindFile:
		return k, nil
	case "":
		return KindWebcam, nil
	}

	return "", fmt.Errorf("%w: unknown source type %q", yolostream.ErrInvalidInput, s)
}

// Options selects and configures a capture source
type Options struct {
	Kind Kind
	// Device is the camera index for webcam sources
	Device int
	// Pipeline is the GStreamer pipeline description
	Pipeline string
	// Path is the video file to read
	Path string
	// Loop restarts a video file from the beginning when it ends
	Loop bool
}

// Validate checks the options name a usable source
func (o Options) Validate() error {

	switch o.Kind {
	case KindWebcam:
		if o.Device < 0 {
			return fmt.Errorf("%w: webcam device index %d is negative",
				yolostream.ErrInvalidInput, o.Device)
		}
	case KindGStreamer:
		if strings.TrimSpace(o.Pipeline) == "" {
			return fmt.Errorf("%w: gstreamer source needs a pipeline",
				yolostream.ErrInvalidInput)
		}
	case KindFile:
		if o.Path == "" {
			return fmt.Errorf("%w: file source needs a path", yolostream.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown source type %q", yolostream.ErrInvalidInput, o.Kind)
	}

	return nil
}

// String describes the source for logging
func (o Options) String() string {

	switch o.Kind {
	case KindWebcam:
		return fmt.Sprintf("webcam:%d", o.Device)
	case KindGStreamer:
		return "gstreamer:" + o.Pipeline
	case KindFile:
		return "file:" + o.Path
	}

	return string(o.Kind)
}
