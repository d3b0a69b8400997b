package postprocess

import (
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/preprocess"
)

// Rescale maps detections from letterboxed input space back onto the source
// frame by removing the padding and undoing the scale, then clamps every
// coordinate to the source frame bounds.  A new slice is returned, the input
// detections are left untouched
func Rescale(dets []yolostream.Detection,
	lb preprocess.LetterboxResult) []yolostream.Detection {

	out := make([]yolostream.Detection, len(dets))

	if lb.Scale <= 0 {
		// nothing sensible to map onto, collapse to the origin
		for i, d := range dets {
			d.Box = yolostream.Box{}
			out[i] = d
		}

		return out
	}

	padX := float32(lb.PadX)
	padY := float32(lb.PadY)
	w := float32(lb.SrcWidth)
	h := float32(lb.SrcHeight)

	for i, d := range dets {
		d.Box = yolostream.Box{
			X1: clamp((d.Box.X1-padX)/lb.Scale, 0, w),
			Y1: clamp((d.Box.Y1-padY)/lb.Scale, 0, h),
			X2: clamp((d.Box.X2-padX)/lb.Scale, 0, w),
			Y2: clamp((d.Box.Y2-padY)/lb.Scale, 0, h),
		}
		out[i] = d
	}

	return out
}

// Project is the inverse of Rescale, mapping a box in source frame space into
// letterboxed input space
func Project(b yolostream.Box, lb preprocess.LetterboxResult) yolostream.Box {

	padX := float32(lb.PadX)
	padY := float32(lb.PadY)

	return yolostream.Box{
		X1: b.X1*lb.Scale + padX,
		Y1: b.Y1*lb.Scale + padY,
		X2: b.X2*lb.Scale + padX,
		Y2: b.Y2*lb.Scale + padY,
	}
}
