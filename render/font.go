package render

import (
	"gocv.io/x/gocv"
	"image/color"
)

// Alignment of a box label relative to the box
type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering label text on a frame using GoCV
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// Style groups the settings used when annotating a frame
type Style struct {
	// Font for the box labels
	Font Font
	// LineThickness of the box outline
	LineThickness int
	// Palette overrides the default class color palette when set
	Palette []color.RGBA
}

// DefaultStyle returns the default annotation style, labels in the default
// font above the top left corner of a two pixel box outline
func DefaultStyle() Style {
	return Style{
		Font:          DefaultFont(),
		LineThickness: 2,
	}
}

// color returns the color to paint the given class with
func (s Style) color(classID int) color.RGBA {

	if len(s.Palette) == 0 {
		return ClassColor(classID)
	}

	if classID < 0 {
		classID = -classID
	}

	return s.Palette[classID%len(s.Palette)]
}
