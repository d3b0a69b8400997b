package render

import (
	"fmt"
	"github.com/vidsight/go-yolostream"
	"gocv.io/x/gocv"
	"image"
	"image/color"
	"math"
)

// boxLabel holds the precalculated rendering details of a box label
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// Annotate returns a copy of the frame with an outline drawn around every
// detection and a filled label tab holding the class name and confidence
// placed above the box's top left corner.  The given frame is not modified.
// Detection boxes must be in frame pixel coordinates
func Annotate(f yolostream.Frame, dets []yolostream.Detection,
	classes *yolostream.ClassTable, style Style) (yolostream.Frame, error) {

	if err := f.Validate(); err != nil {
		return yolostream.Frame{}, err
	}

	// resolve every name before touching any pixels so a bad class ID
	// leaves nothing half drawn
	names := make([]string, len(dets))

	for i, d := range dets {
		name, err := classes.Name(d.ClassID)

		if err != nil {
			return yolostream.Frame{}, err
		}

		names[i] = name
	}

	if len(dets) == 0 {
		return f.Clone(), nil
	}

	img, err := f.Mat()

	if err != nil {
		return yolostream.Frame{}, err
	}

	defer img.Close()

	DetectionBoxes(&img, dets, names, style)

	out, err := yolostream.FrameFromMat(img, false)

	if err != nil {
		return yolostream.Frame{}, fmt.Errorf("error reading annotated Mat: %w", err)
	}

	return out, nil
}

// DetectionBoxes renders the bounding boxes around the objects detected on an
// RGB Mat.  names holds the class name of each detection
func DetectionBoxes(img *gocv.Mat, dets []yolostream.Detection, names []string,
	style Style) {

	font := style.Font
	lineThickness := style.LineThickness

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	for i, det := range dets {

		useClr := swapRB(style.color(det.ClassID))

		left := int(math.Round(float64(det.Box.X1)))
		top := int(math.Round(float64(det.Box.Y1)))
		right := int(math.Round(float64(det.Box.X2)))
		bottom := int(math.Round(float64(det.Box.Y2)))

		// draw rectangle around detected object
		gocv.Rectangle(img, image.Rect(left, top, right, bottom), useClr, lineThickness)

		// create text for label
		text := fmt.Sprintf("%s %.2f", names[i], det.Confidence)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		// calculate the alignment of text label
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = (left + right) / 2

		case Right:
			centerX = right - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = left + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		tabHeight := textSize.Y + font.TopPad + font.BottomPad

		// the tab sits on top of the box, unless that would push it off the
		// top of the frame in which case it hangs inside the box
		tabBottom := top

		if top-tabHeight < 0 {
			tabBottom = top + tabHeight
		}

		boxLabels = append(boxLabels, boxLabel{
			rect: image.Rect(centerX-textSize.X/2-font.LeftPad, tabBottom-tabHeight,
				centerX+textSize.X/2+font.RightPad, tabBottom),
			clr:     useClr,
			text:    text,
			textPos: image.Pt(centerX-textSize.X/2, tabBottom-font.BottomPad),
		})
	}

	// draw labels last so they are the top most layer and no box outline
	// crosses a label
	for _, box := range boxLabels {
		gocv.Rectangle(img, box.rect, box.clr, -1)

		gocv.PutTextWithParams(img, box.text, box.textPos,
			font.Face, font.Scale, swapRB(font.Color), font.Thickness,
			font.LineType, false)
	}
}
