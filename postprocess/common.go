package postprocess

import (
	"github.com/vidsight/go-yolostream"
	"sort"
)

// clamp restricts the value to be within the range min and max
func clamp(val, min, max float32) float32 {

	if val > min {

		if val < max {
			return val
		}

		return max
	}

	return min
}

// sortIndiceInverse returns the indices of dets ordered by confidence from
// highest to lowest.  Equal confidences keep their original order
func sortIndiceInverse(dets []yolostream.Detection) []int {

	indices := make([]int, len(dets))

	for i := range indices {
		indices[i] = i
	}

	sort.SliceStable(indices, func(a, b int) bool {
		return dets[indices[a]].Confidence > dets[indices[b]].Confidence
	})

	return indices
}

// IoU works out the Intersection over Union value of two boxes.  Boxes that
// don't overlap have an IoU of zero
func IoU(a, b yolostream.Box) float32 {

	w := max(0, min(a.X2, b.X2)-max(a.X1, b.X1))
	h := max(0, min(a.Y2, b.Y2)-max(a.Y1, b.Y1))
	intersection := w * h

	union := a.Area() + b.Area() - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// NMS implements a greedy Non-Maximum Suppression (NMS) algorithm.  The
// highest confidence detection is kept and every remaining detection with an
// IoU above threshold against it is dropped, repeating until none remain.
// All classes are treated identically.  Kept detections are returned in
// order of descending confidence
func NMS(dets []yolostream.Detection, threshold float32) []yolostream.Detection {
	return nms(dets, threshold, false)
}

// NMSPerClass is the same as NMS but only suppresses detections sharing the
// same class ID
func NMSPerClass(dets []yolostream.Detection, threshold float32) []yolostream.Detection {
	return nms(dets, threshold, true)
}

func nms(dets []yolostream.Detection, threshold float32,
	perClass bool) []yolostream.Detection {

	order := sortIndiceInverse(dets)
	removed := make([]bool, len(dets))
	keep := make([]yolostream.Detection, 0, len(dets))

	for i, n := range order {

		if removed[n] {
			continue
		}

		keep = append(keep, dets[n])

		for _, m := range order[i+1:] {

			if removed[m] {
				continue
			}

			if perClass && dets[m].ClassID != dets[n].ClassID {
				continue
			}

			if IoU(dets[n].Box, dets[m].Box) > threshold {
				removed[m] = true
			}
		}
	}

	return keep
}

// Suppress applies NMS according to the params and caps the result at
// MaxDetections
func Suppress(dets []yolostream.Detection, p Params) []yolostream.Detection {

	var keep []yolostream.Detection

	if p.PerClass {
		keep = NMSPerClass(dets, p.IoUThreshold)
	} else {
		keep = NMS(dets, p.IoUThreshold)
	}

	if p.MaxDetections > 0 && len(keep) > p.MaxDetections {
		keep = keep[:p.MaxDetections]
	}

	return keep
}
