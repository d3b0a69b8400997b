package yolostream

import (
	"fmt"
	"gocv.io/x/gocv"
	"image"
	"image/draw"
)

// Channels is the number of bytes per pixel of a Frame
const Channels = 3

// Frame is a dense grid of RGB pixels stored row major with three bytes per
// pixel.  A Frame is treated as immutable once captured, stages that need to
// change pixels work on a Clone()
type Frame struct {
	// Width of the frame in pixels
	Width int
	// Height of the frame in pixels
	Height int
	// Pix holds the R, G, B bytes of every pixel, row after row
	Pix []byte
}

// NewFrame returns a Frame wrapping the given pixel buffer.  The buffer must
// hold exactly width*height*3 bytes
func NewFrame(width, height int, pix []byte) (Frame, error) {

	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("%w: frame size %dx%d has zero area",
			ErrInvalidInput, width, height)
	}

	if len(pix) != width*height*Channels {
		return Frame{}, fmt.Errorf("%w: frame %dx%d needs %d bytes, got %d",
			ErrInvalidInput, width, height, width*height*Channels, len(pix))
	}

	return Frame{Width: width, Height: height, Pix: pix}, nil
}

// NewFilledFrame returns a Frame of the given size where every pixel is set
// to the given RGB value
func NewFilledFrame(width, height int, r, g, b uint8) Frame {

	pix := make([]byte, width*height*Channels)

	for i := 0; i < len(pix); i += Channels {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
	}

	return Frame{Width: width, Height: height, Pix: pix}
}

// Empty reports if the frame has zero area
func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0
}

// Validate checks the frame has a non zero area and a pixel buffer matching
// its dimensions
func (f Frame) Validate() error {
	_, err := NewFrame(f.Width, f.Height, f.Pix)
	return err
}

// Clone returns a deep copy of the frame that shares no memory with the
// original
func (f Frame) Clone() Frame {

	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)

	return Frame{Width: f.Width, Height: f.Height, Pix: pix}
}

// At returns the RGB value of the pixel at x, y
func (f Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * Channels
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Image converts the frame into a newly allocated *image.RGBA
func (f Frame) Image() *image.RGBA {

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))

	for i, j := 0, 0; i < len(f.Pix); i, j = i+Channels, j+4 {
		img.Pix[j] = f.Pix[i]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+2]
		img.Pix[j+3] = 0xff
	}

	return img
}

// FrameFromImage converts any image.Image into a Frame
func FrameFromImage(img image.Image) (Frame, error) {

	b := img.Bounds()

	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Frame{}, fmt.Errorf("%w: image has zero area", ErrInvalidInput)
	}

	rgba, ok := img.(*image.RGBA)

	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}

	f := Frame{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]byte, b.Dx()*b.Dy()*Channels),
	}

	for y := 0; y < f.Height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		out := f.Pix[y*f.Width*Channels:]

		for x := 0; x < f.Width; x++ {
			out[x*3] = row[x*4]
			out[x*3+1] = row[x*4+1]
			out[x*3+2] = row[x*4+2]
		}
	}

	return f, nil
}

// Mat returns an RGB gocv.Mat holding a copy of the frame's pixels.  The
// caller must Close() the returned Mat.  On error the zero Mat is returned
// and nothing needs closing
func (f Frame) Mat() (gocv.Mat, error) {

	if err := f.Validate(); err != nil {
		return gocv.Mat{}, err
	}

	// NewMatFromBytes references the Go slice it is given, so clone it into
	// OpenCV owned memory before handing it out
	ref, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)

	if err != nil {
		return gocv.Mat{}, fmt.Errorf("error creating Mat from frame: %w", err)
	}

	defer ref.Close()

	return ref.Clone(), nil
}

// FrameFromMat converts a three channel Mat into a Frame.  Set bgr when the
// Mat uses OpenCV's native BGR channel order, as returned by video capture
func FrameFromMat(mat gocv.Mat, bgr bool) (Frame, error) {

	if mat.Empty() {
		return Frame{}, fmt.Errorf("%w: Mat is empty", ErrInvalidInput)
	}

	if mat.Channels() != Channels {
		return Frame{}, fmt.Errorf("%w: Mat has %d channels, expected %d",
			ErrInvalidInput, mat.Channels(), Channels)
	}

	src := mat

	if bgr {
		src = gocv.NewMat()
		defer src.Close()
		gocv.CvtColor(mat, &src, gocv.ColorBGRToRGB)
	}

	// ToBytes copies the Mat data into Go memory
	return NewFrame(src.Cols(), src.Rows(), src.ToBytes())
}
