package display

import (
	"context"
	"github.com/vidsight/go-yolostream/pipeline"
	"gocv.io/x/gocv"
	"sync"
)

// Window shows frames in a desktop window.  Pressing q or Esc in the window
// closes the Quit channel
type Window struct {
	win      *gocv.Window
	quit     chan struct{}
	quitOnce sync.Once
}

// NewWindow opens a window with the given title.  OpenCV requires windows
// to be driven from the main OS thread on some platforms
func NewWindow(title string) *Window {
	return &Window{
		win:  gocv.NewWindow(title),
		quit: make(chan struct{}),
	}
}

// Quit returns a channel closed when the user asks to exit
func (w *Window) Quit() <-chan struct{} {
	return w.quit
}

// Show draws the output frame in the window
func (w *Window) Show(ctx context.Context, out pipeline.Output) error {

	rgb, err := out.Frame.Mat()

	if err != nil {
		return err
	}

	defer rgb.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	w.win.IMShow(bgr)

	if key := w.win.WaitKey(1); key == 'q' || key == 27 {
		w.quitOnce.Do(func() { close(w.quit) })
	}

	return nil
}

// Close the window
func (w *Window) Close() error {
	return w.win.Close()
}
