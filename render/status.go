package render

import (
	"fmt"
	"github.com/vidsight/go-yolostream"
	"gocv.io/x/gocv"
	"image"
	"time"
)

// statusBarHeight is the height in pixels of the blanked strip the status
// text is written on
const statusBarHeight = 20

// Status holds the processing statistics shown on the status bar
type Status struct {
	// Frame is the sequence number of the frame
	Frame uint64
	// FPS is the rolling processing rate
	FPS float64
	// Objects is the number of detections drawn on the frame
	Objects int
	// Dropped is the number of frames overwritten before being processed
	Dropped uint64
	// Elapsed is the processing time of the frame
	Elapsed time.Duration
}

// String returns the status bar text
func (s Status) String() string {
	return fmt.Sprintf("Frame: %d, FPS: %.2f, Objects: %d, Dropped: %d, Time: %.2fms",
		s.Frame, s.FPS, s.Objects, s.Dropped,
		float64(s.Elapsed)/float64(time.Millisecond))
}

// StatusBar returns a copy of the frame with the processing statistics
// written across its top edge
func StatusBar(f yolostream.Frame, s Status) (yolostream.Frame, error) {

	img, err := f.Mat()

	if err != nil {
		return yolostream.Frame{}, err
	}

	defer img.Close()

	DrawStatusBar(&img, s)

	out, err := yolostream.FrameFromMat(img, false)

	if err != nil {
		return yolostream.Frame{}, fmt.Errorf("error reading status bar Mat: %w", err)
	}

	return out, nil
}

// DrawStatusBar blanks out a strip at the top of the RGB Mat and writes the
// status text on it
func DrawStatusBar(img *gocv.Mat, s Status) {

	rect := image.Rect(0, 0, img.Cols(), statusBarHeight)
	gocv.Rectangle(img, rect, swapRB(Black), -1) // -1 fills the rectangle

	gocv.PutTextWithParams(img, s.String(), image.Pt(4, 14),
		gocv.FontHersheySimplex, 0.45, swapRB(Pink), 1, gocv.LineAA, false)
}
