package preprocess

import (
	"fmt"
	"github.com/vidsight/go-yolostream"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math"
)

// PadColor is the mid gray used to fill the letterbox border
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// LetterboxResult is a square letterboxed frame together with the parameters
// needed to map coordinates in it back onto the source frame
type LetterboxResult struct {
	// Frame is the size x size letterboxed image
	Frame yolostream.Frame
	// Scale is the ratio applied to the source dimensions,
	// size / max(SrcWidth, SrcHeight)
	Scale float32
	// PadX is the number of border pixels added to the left side
	PadX int
	// PadY is the number of border pixels added to the top side
	PadY int
	// SrcWidth is the width of the source frame
	SrcWidth int
	// SrcHeight is the height of the source frame
	SrcHeight int
}

// Size returns the side length of the letterboxed square
func (l LetterboxResult) Size() int {
	return l.Frame.Width
}

// Resizer defines the struct used for letterbox resizing frames of a fixed
// source size into a square Model input
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// size is the side length of the square to scale to
	size int
	// fill is the letterbox padding color
	fill color.RGBA
	// letterbox parameters used in scaling
	xPad  int
	yPad  int
	scale float32
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a resizer used for letterboxing frames of srcWidth x
// srcHeight into a size x size square
func NewResizer(srcWidth, srcHeight, size int) (*Resizer, error) {

	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, fmt.Errorf("%w: source size %dx%d has zero area",
			yolostream.ErrInvalidInput, srcWidth, srcHeight)
	}

	if size <= 0 {
		return nil, fmt.Errorf("%w: letterbox size %d must be positive",
			yolostream.ErrInvalidInput, size)
	}

	r := &Resizer{
		srcWidth:  srcWidth,
		srcHeight: srcHeight,
		size:      size,
		fill:      PadColor,
	}

	// precalculate scaling dimensions
	r.preCalc()

	return r, nil
}

// SetFill changes the color used for the letterbox border
func (r *Resizer) SetFill(c color.RGBA) {
	r.fill = c
}

// preCalc the scale factor, resized dimensions and padding
func (r *Resizer) preCalc() {

	ratio := float64(r.size) / float64(max(r.srcWidth, r.srcHeight))
	r.scale = float32(ratio)

	// a very thin source can round down to nothing, keep at least one pixel
	r.resizeW = max(1, int(math.Round(float64(r.srcWidth)*ratio)))
	r.resizeH = max(1, int(math.Round(float64(r.srcHeight)*ratio)))

	r.yPad = (r.size - r.resizeH) / 2 // padding height / 2
	r.xPad = (r.size - r.resizeW) / 2 // padding width / 2
}

// LetterBoxResize resizes the frame to fit the square whilst maintaining its
// aspect ratio and pads the remainder with the fill color.  Any odd pixel of
// padding goes to the bottom/right side
func (r *Resizer) LetterBoxResize(f yolostream.Frame) (LetterboxResult, error) {

	if err := f.Validate(); err != nil {
		return LetterboxResult{}, err
	}

	if f.Width != r.srcWidth || f.Height != r.srcHeight {
		return LetterboxResult{}, fmt.Errorf("%w: frame is %dx%d, resizer expects %dx%d",
			yolostream.ErrInvalidInput, f.Width, f.Height, r.srcWidth, r.srcHeight)
	}

	src, err := f.Mat()

	if err != nil {
		return LetterboxResult{}, err
	}

	defer src.Close()

	tempMat := gocv.NewMat()
	defer tempMat.Close()

	dest := gocv.NewMat()
	defer dest.Close()

	gocv.Resize(src, &tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationLinear)

	gocv.CopyMakeBorder(tempMat, &dest, r.yPad, r.size-r.resizeH-r.yPad,
		r.xPad, r.size-r.resizeW-r.xPad, gocv.BorderConstant, r.fill)

	out, err := yolostream.FrameFromMat(dest, false)

	if err != nil {
		return LetterboxResult{}, fmt.Errorf("error reading letterboxed Mat: %w", err)
	}

	return LetterboxResult{
		Frame:     out,
		Scale:     r.scale,
		PadX:      r.xPad,
		PadY:      r.yPad,
		SrcWidth:  r.srcWidth,
		SrcHeight: r.srcHeight,
	}, nil
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.scale
}

// XPad returns the x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}

// ResizedSize returns the dimensions of the scaled image before padding
func (r *Resizer) ResizedSize() (int, int) {
	return r.resizeW, r.resizeH
}

// SrcWidth returns the width of the source image
func (r *Resizer) SrcWidth() int {
	return r.srcWidth
}

// SrcHeight returns the height of the source image
func (r *Resizer) SrcHeight() int {
	return r.srcHeight
}

// Letterbox resizes and pads the frame into a size x size square.  It is a
// convenience wrapper creating a Resizer for the frame's dimensions
func Letterbox(f yolostream.Frame, size int) (LetterboxResult, error) {

	r, err := NewResizer(f.Width, f.Height, size)

	if err != nil {
		return LetterboxResult{}, err
	}

	return r.LetterBoxResize(f)
}
