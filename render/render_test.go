package render

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidsight/go-yolostream"
	"gocv.io/x/gocv"
	"image/color"
	"strings"
	"testing"
	"time"
)

func differs(a, b yolostream.Frame) int {

	n := 0

	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			n++
		}
	}

	return n
}

func TestAnnotateDrawsOnCopy(t *testing.T) {

	frame := yolostream.NewFilledFrame(320, 240, 40, 40, 40)
	orig := frame.Clone()

	dets := []yolostream.Detection{
		{Box: yolostream.Box{X1: 50, Y1: 60, X2: 200, Y2: 180}, Confidence: 0.87, ClassID: 0},
		{Box: yolostream.Box{X1: 10, Y1: 2, X2: 60, Y2: 50}, Confidence: 0.41, ClassID: 2},
	}

	out, err := Annotate(frame, dets, yolostream.DefaultClassTable(), DefaultStyle())
	require.NoError(t, err)

	assert.Equal(t, frame.Width, out.Width)
	assert.Equal(t, frame.Height, out.Height)
	assert.Equal(t, orig.Pix, frame.Pix, "input frame was modified")
	assert.Greater(t, differs(frame, out), 0)

	// the box outline is painted with the class color in RGB order
	r, g, b := out.At(125, 180)
	want := ClassColor(0)
	assert.Equal(t, [3]uint8{want.R, want.G, want.B}, [3]uint8{r, g, b})

	// pixels well inside the box are untouched
	r, g, b = out.At(125, 150)
	assert.Equal(t, [3]uint8{40, 40, 40}, [3]uint8{r, g, b})
}

// tabHeight is the height of the label tab drawn for text in the style's
// font
func tabHeight(style Style, text string) int {
	font := style.Font
	size := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)
	return size.Y + font.TopPad + font.BottomPad
}

func TestAnnotateLabelPlacement(t *testing.T) {

	style := DefaultStyle()
	classes := yolostream.NewClassTable([]string{"car"})
	tab := tabHeight(style, "car 0.87")
	clr := ClassColor(0)
	label := [3]uint8{clr.R, clr.G, clr.B}
	background := [3]uint8{40, 40, 40}

	tests := []struct {
		name string
		top  float32
		// tabTop is the first row of the label tab
		tabTop int
		// outside is a row beside the tab that must stay untouched
		outside int
	}{
		{
			name:    "above the box",
			top:     60,
			tabTop:  60 - tab,
			outside: 60 - tab - 3,
		},
		{
			name:    "inside the box at the frame top",
			top:     2,
			tabTop:  2,
			outside: 2 + tab + 3,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {

			frame := yolostream.NewFilledFrame(320, 240, 40, 40, 40)

			dets := []yolostream.Detection{
				{Box: yolostream.Box{X1: 50, Y1: tc.top, X2: 200, Y2: 180}, Confidence: 0.87},
			}

			out, err := Annotate(frame, dets, classes, style)
			require.NoError(t, err)

			// top padding of the tab, just right of the box's left edge
			// and above the text
			r, g, b := out.At(60, tc.tabTop+2)
			assert.Equal(t, label, [3]uint8{r, g, b})

			// bottom padding of the tab, below the text baseline
			r, g, b = out.At(60, tc.tabTop+tab-2)
			assert.Equal(t, label, [3]uint8{r, g, b})

			r, g, b = out.At(60, tc.outside)
			assert.Equal(t, background, [3]uint8{r, g, b})
		})
	}
}

func TestAnnotateNoDetections(t *testing.T) {

	frame := yolostream.NewFilledFrame(64, 48, 1, 2, 3)

	out, err := Annotate(frame, nil, yolostream.DefaultClassTable(), DefaultStyle())
	require.NoError(t, err)
	assert.Equal(t, frame.Pix, out.Pix)

	// a copy, not the same backing buffer
	out.Pix[0] = 99
	assert.Equal(t, byte(1), frame.Pix[0])
}

func TestAnnotateClassOutOfRange(t *testing.T) {

	frame := yolostream.NewFilledFrame(64, 48, 0, 0, 0)
	classes := yolostream.NewClassTable([]string{"cat", "dog"})

	dets := []yolostream.Detection{
		{Box: yolostream.Box{X1: 1, Y1: 1, X2: 20, Y2: 20}, Confidence: 0.9, ClassID: 5},
	}

	_, err := Annotate(frame, dets, classes, DefaultStyle())
	assert.True(t, errors.Is(err, yolostream.ErrClassIndexOutOfRange))

	assert.Equal(t, yolostream.NewFilledFrame(64, 48, 0, 0, 0).Pix, frame.Pix)
}

func TestAnnotateInvalidFrame(t *testing.T) {

	_, err := Annotate(yolostream.Frame{}, nil, yolostream.DefaultClassTable(), DefaultStyle())
	assert.True(t, errors.Is(err, yolostream.ErrInvalidInput))
}

func TestStylePalette(t *testing.T) {

	red := color.RGBA{R: 255, A: 255}
	s := DefaultStyle()
	s.Palette = []color.RGBA{red}

	assert.Equal(t, red, s.color(0))
	assert.Equal(t, red, s.color(41))
	assert.Equal(t, ClassColor(3), DefaultStyle().color(3))
	assert.Equal(t, ClassColor(len(classColors)+3), ClassColor(3))
}

func TestSwapRB(t *testing.T) {
	c := swapRB(color.RGBA{R: 1, G: 2, B: 3, A: 4})
	assert.Equal(t, color.RGBA{R: 3, G: 2, B: 1, A: 4}, c)
}

func TestStatusBar(t *testing.T) {

	frame := yolostream.NewFilledFrame(320, 120, 200, 200, 200)

	s := Status{Frame: 12, FPS: 29.5, Objects: 3, Elapsed: 15 * time.Millisecond}
	assert.True(t, strings.HasPrefix(s.String(), "Frame: 12, FPS: 29.50, Objects: 3"))

	out, err := StatusBar(frame, s)
	require.NoError(t, err)

	// strip at the top blanked, the rest untouched
	r, g, b := out.At(318, 1)
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{r, g, b})

	r, g, b = out.At(160, 100)
	assert.Equal(t, [3]uint8{200, 200, 200}, [3]uint8{r, g, b})

	r, _, _ = frame.At(318, 1)
	assert.Equal(t, uint8(200), r)
}
