package yolostream

import "fmt"

const (
	// DefaultInputSize is the square Model input size in pixels
	DefaultInputSize = 640
	// DefaultConfidenceThreshold is the minimum objectness score a candidate
	// must exceed to be kept
	DefaultConfidenceThreshold = 0.25
	// DefaultIoUThreshold is the Non-Maximum Suppression threshold defining
	// the maximum allowed Intersection over Union between two kept boxes
	DefaultIoUThreshold = 0.7
)

// Box is an axis aligned bounding box in corner format
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Width of the box, zero for inverted boxes
func (b Box) Width() float32 {
	return max(0, b.X2-b.X1)
}

// Height of the box, zero for inverted boxes
func (b Box) Height() float32 {
	return max(0, b.Y2-b.Y1)
}

// Area of the box
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// String returns the box corners formatted as a string
func (b Box) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f, %.1f)", b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is a single candidate object instance found in a frame
type Detection struct {
	// Box is the location of the object.  Its coordinate space depends on the
	// pipeline stage, letterboxed input space after decoding and original
	// frame space after rescaling
	Box Box
	// Confidence is the objectness score in the range [0,1]
	Confidence float32
	// ClassID is the index of the object class in the ClassTable
	ClassID int
}

// BoxResult is the structured per detection output handed to collaborators
// that want a box list instead of an annotated frame.  Box is in original
// frame pixel coordinates
type BoxResult struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float32 `json:"confidence"`
	Box        Box     `json:"box"`
}
