package pipeline

import (
	"context"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/internal/metrics"
	"github.com/vidsight/go-yolostream/postprocess"
	"github.com/vidsight/go-yolostream/preprocess"
	"github.com/vidsight/go-yolostream/runner"
	"strings"
	"time"
)

// Detector finds objects in a frame.  Returned detections are in the frame's
// own pixel coordinates
type Detector interface {
	Detect(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error)
}

// DetectorKind selects the Detector to build at startup
type DetectorKind string

const (
	// DetectorNone passes frames through untouched
	DetectorNone DetectorKind = "none"
	// DetectorYOLO runs a YOLO Model
	DetectorYOLO DetectorKind = "yolo"
)

// ParseDetectorKind converts a detector name into a DetectorKind
func ParseDetectorKind(s string) (DetectorKind, error) {

	k := DetectorKind(strings.ToLower(strings.TrimSpace(s)))

	switch k {
	case DetectorNone, DetectorYOLO:
		return k, nil
	}

	return "", fmt.Errorf("%w: unknown detector %q", yolostream.ErrInvalidInput, s)
}

// NoDetector finds nothing, frames pass through the pipeline unchanged
type NoDetector struct{}

// Detect returns an empty detection list
func (NoDetector) Detect(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return []yolostream.Detection{}, f.Validate()
}

// YOLO is a Detector running the full detection path on a frame, letterbox,
// encode, Model inference, decode, suppression and rescaling back onto the
// frame
type YOLO struct {
	runner  runner.Runner
	encoder *preprocess.Encoder
	params  postprocess.Params
	size    int
	metrics *metrics.Metrics
}

// NewYOLO returns a YOLO detector feeding size x size inputs to the runner.
// metrics may be nil
func NewYOLO(r runner.Runner, size int, params postprocess.Params,
	m *metrics.Metrics) (*YOLO, error) {

	if err := params.Validate(); err != nil {
		return nil, err
	}

	enc, err := preprocess.NewEncoder(size)

	if err != nil {
		return nil, err
	}

	return &YOLO{
		runner:  r,
		encoder: enc,
		params:  params,
		size:    size,
		metrics: m,
	}, nil
}

// observe records the time since start against the stage and returns now
func (y *YOLO) observe(stage string, start time.Time) time.Time {

	now := time.Now()

	if y.metrics != nil {
		y.metrics.ObserveStage(stage, now.Sub(start))
	}

	return now
}

// Detect runs the Model on the frame and returns the kept detections in
// frame coordinates, ordered by descending confidence
func (y *YOLO) Detect(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error) {

	start := time.Now()

	lb, err := preprocess.Letterbox(f, y.size)

	if err != nil {
		return nil, fmt.Errorf("letterbox failed: %w", err)
	}

	start = y.observe(metrics.StageLetterbox, start)

	input, err := y.encoder.Encode(lb)

	if err != nil {
		return nil, fmt.Errorf("encode failed: %w", err)
	}

	defer y.encoder.Release(input)

	start = y.observe(metrics.StageEncode, start)

	output, err := y.runner.Run(ctx, input)

	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	start = y.observe(metrics.StageInference, start)

	dets, err := postprocess.Decode(output, y.params)

	if err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	start = y.observe(metrics.StageDecode, start)

	dets = postprocess.Suppress(dets, y.params)

	start = y.observe(metrics.StageNMS, start)

	dets = postprocess.Rescale(dets, lb)

	y.observe(metrics.StageRescale, start)

	return dets, nil
}
