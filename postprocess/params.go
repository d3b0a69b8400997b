package postprocess

import (
	"fmt"
	"github.com/vidsight/go-yolostream"
)

// Layout describes how candidates are arranged in the Model output tensor
type Layout int

const (
	// LayoutCandidatesFirst is a (N, 5+C) tensor, one row per candidate
	LayoutCandidatesFirst Layout = 0
	// LayoutCandidatesLast is a (5+C, N) tensor, one column per candidate,
	// as emitted by many ONNX exports
	LayoutCandidatesLast Layout = 1
)

// String returns a readable name of the layout
func (l Layout) String() string {
	switch l {
	case LayoutCandidatesFirst:
		return "candidates-first"
	case LayoutCandidatesLast:
		return "candidates-last"
	default:
		return fmt.Sprintf("layout(%d)", int(l))
	}
}

// ParseLayout converts a layout name into a Layout
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "candidates-first", "rows":
		return LayoutCandidatesFirst, nil
	case "candidates-last", "columns":
		return LayoutCandidatesLast, nil
	default:
		return 0, fmt.Errorf("%w: unknown tensor layout %q",
			yolostream.ErrInvalidInput, s)
	}
}

// Params defines the struct containing the parameters to use for decoding
// and suppression
type Params struct {
	// ConfidenceThreshold is the objectness score a candidate must exceed to
	// be kept
	ConfidenceThreshold float32
	// IoUThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept
	IoUThreshold float32
	// PerClass restricts suppression to boxes of the same class.  The default
	// suppresses across all classes
	PerClass bool
	// MaxDetections caps the number of detections kept after suppression,
	// zero means no limit
	MaxDetections int
	// Layout is the arrangement of the Model output tensor
	Layout Layout
}

// DefaultParams returns an instance of Params configured with default values:
// - Confidence Threshold: 0.25
// - IoU Threshold: 0.7
// - Cross class suppression
// - No detection limit
// - One row per candidate
func DefaultParams() Params {
	return Params{
		ConfidenceThreshold: yolostream.DefaultConfidenceThreshold,
		IoUThreshold:        yolostream.DefaultIoUThreshold,
	}
}

// Validate checks the parameters are in range
func (p Params) Validate() error {

	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence threshold %v not in [0,1]",
			yolostream.ErrInvalidInput, p.ConfidenceThreshold)
	}

	if p.IoUThreshold < 0 || p.IoUThreshold > 1 {
		return fmt.Errorf("%w: IoU threshold %v not in [0,1]",
			yolostream.ErrInvalidInput, p.IoUThreshold)
	}

	if p.MaxDetections < 0 {
		return fmt.Errorf("%w: max detections %d is negative",
			yolostream.ErrInvalidInput, p.MaxDetections)
	}

	if p.Layout != LayoutCandidatesFirst && p.Layout != LayoutCandidatesLast {
		return fmt.Errorf("%w: unknown tensor layout %s",
			yolostream.ErrInvalidInput, p.Layout)
	}

	return nil
}
