package postprocess

import (
	"fmt"
	"github.com/vidsight/go-yolostream"
)

const (
	// boxAttrs is the number of leading columns describing the box, being
	// center x, center y, width, height and objectness
	boxAttrs = 5
	// objIdx is the column holding the objectness confidence
	objIdx = 4
)

// candidates is a view over the Model output tensor that hides its layout
type candidates struct {
	data []float32
	// num is the number of candidates
	num int
	// cols is the number of attributes per candidate
	cols int
	// layout of data
	layout Layout
}

// at returns attribute c of candidate i
func (c *candidates) at(i, col int) float32 {

	if c.layout == LayoutCandidatesLast {
		return c.data[col*c.num+i]
	}

	return c.data[i*c.cols+col]
}

// newCandidates checks the tensor shape and returns a view over it.  Accepted
// shapes are (A, B) and (1, A, B)
func newCandidates(t yolostream.Tensor, layout Layout) (*candidates, error) {

	if err := t.Validate(); err != nil {
		return nil, err
	}

	var a, b int

	switch {
	case len(t.Shape) == 2:
		a, b = t.Shape[0], t.Shape[1]
	case len(t.Shape) == 3 && t.Shape[0] == 1:
		a, b = t.Shape[1], t.Shape[2]
	default:
		return nil, fmt.Errorf("%w: output tensor shape %s, expected (N, 5+C) or (1, N, 5+C)",
			yolostream.ErrInvalidInput, t.ShapeString())
	}

	c := &candidates{data: t.Data, num: a, cols: b, layout: layout}

	if layout == LayoutCandidatesLast {
		c.num, c.cols = b, a
	}

	if c.cols <= boxAttrs {
		return nil, fmt.Errorf("%w: output tensor shape %s has %d attributes per candidate, need at least %d",
			yolostream.ErrInvalidInput, t.ShapeString(), c.cols, boxAttrs+1)
	}

	return c, nil
}

// NumClasses returns the number of class score columns in the output tensor
func NumClasses(t yolostream.Tensor, layout Layout) (int, error) {

	c, err := newCandidates(t, layout)

	if err != nil {
		return 0, err
	}

	return c.cols - boxAttrs, nil
}

// Decode takes the raw Model output tensor and returns every candidate whose
// objectness confidence is above the threshold.  Boxes are converted from
// center/size to corner format and remain in letterboxed input pixel space.
// An empty, non nil slice is returned when nothing passes the threshold
func Decode(t yolostream.Tensor, p Params) ([]yolostream.Detection, error) {

	c, err := newCandidates(t, p.Layout)

	if err != nil {
		return nil, err
	}

	dets := make([]yolostream.Detection, 0)

	for i := 0; i < c.num; i++ {

		conf := c.at(i, objIdx)

		// written so NaN objectness is rejected too
		if !(conf > p.ConfidenceThreshold) {
			continue
		}

		// argmax over class scores, the first maximum wins ties
		maxClassID := 0
		maxClassProb := c.at(i, boxAttrs)

		for k := boxAttrs + 1; k < c.cols; k++ {
			prob := c.at(i, k)

			if prob > maxClassProb {
				maxClassID = k - boxAttrs
				maxClassProb = prob
			}
		}

		cx := c.at(i, 0)
		cy := c.at(i, 1)
		w := c.at(i, 2)
		h := c.at(i, 3)

		dets = append(dets, yolostream.Detection{
			Box: yolostream.Box{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Confidence: conf,
			ClassID:    maxClassID,
		})
	}

	return dets, nil
}
