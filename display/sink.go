// Package display delivers processed frames to windows, HTTP clients and
// structured output streams.
package display

import (
	"context"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/pipeline"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// Sink receives the Output of every processed frame
type Sink interface {
	Show(ctx context.Context, out pipeline.Output) error
	Close() error
}

// Multi fans every Output out to several sinks
type Multi []Sink

// Show hands the output to every sink, one failing sink does not stop the
// others
func (m Multi) Show(ctx context.Context, out pipeline.Output) error {

	var err error

	for _, s := range m {
		err = multierr.Append(err, s.Show(ctx, out))
	}

	return err
}

// Close every sink
func (m Multi) Close() error {

	var err error

	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}

	return err
}

// encodeJPEG encodes an RGB frame as a JPEG image of the given quality
func encodeJPEG(f yolostream.Frame, quality int) ([]byte, error) {

	rgb, err := f.Mat()

	if err != nil {
		return nil, err
	}

	defer rgb.Close()

	// OpenCV encoders expect BGR
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, bgr,
		[]int{gocv.IMWriteJpegQuality, quality})

	if err != nil {
		return nil, fmt.Errorf("error encoding JPEG: %w", err)
	}

	defer buf.Close()

	// copy out of OpenCV owned memory
	jpg := make([]byte, buf.Len())
	copy(jpg, buf.GetBytes())

	return jpg, nil
}
