package pipeline

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/internal/metrics"
	"github.com/vidsight/go-yolostream/postprocess"
	"github.com/vidsight/go-yolostream/runner"
	"testing"
)

// detectorFunc adapts a function into a Detector
type detectorFunc func(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error)

func (d detectorFunc) Detect(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error) {
	return d(ctx, f)
}

func fixed(dets ...yolostream.Detection) Detector {
	return detectorFunc(func(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error) {
		return dets, nil
	})
}

var animals = yolostream.NewClassTable([]string{"cat", "dog", "bird"})

func TestProcessorBoth(t *testing.T) {

	frame := yolostream.NewFilledFrame(200, 100, 10, 10, 10)
	dets := []yolostream.Detection{
		{Box: yolostream.Box{X1: 20, Y1: 30, X2: 120, Y2: 90}, Confidence: 0.9, ClassID: 1},
		{Box: yolostream.Box{X1: 130, Y1: 40, X2: 190, Y2: 95}, Confidence: 0.6, ClassID: 2},
	}

	m := metrics.New()
	p, err := NewProcessor(fixed(dets...), animals, ProcessorOptions{Mode: OutputBoth}, m, nil)
	require.NoError(t, err)

	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)

	assert.NoError(t, out.Warning)
	assert.True(t, out.Annotated)
	assert.NotEqual(t, frame.Pix, out.Frame.Pix)
	assert.Equal(t, yolostream.NewFilledFrame(200, 100, 10, 10, 10).Pix, frame.Pix)

	require.Len(t, out.Boxes, 2)
	assert.Equal(t, yolostream.BoxResult{
		ClassID:    1,
		ClassName:  "dog",
		Confidence: 0.9,
		Box:        dets[0].Box,
	}, out.Boxes[0])
	assert.Equal(t, "bird", out.Boxes[1].ClassName)
	assert.Len(t, out.Detections, 2)
}

func TestProcessorModes(t *testing.T) {

	frame := yolostream.NewFilledFrame(64, 64, 0, 0, 0)
	det := yolostream.Detection{Box: yolostream.Box{X1: 5, Y1: 30, X2: 40, Y2: 60}, Confidence: 0.5, ClassID: 0}

	p, err := NewProcessor(fixed(det), animals, ProcessorOptions{Mode: OutputBoxes}, nil, nil)
	require.NoError(t, err)

	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)
	assert.False(t, out.Annotated)
	assert.Equal(t, frame.Pix, out.Frame.Pix)
	assert.Len(t, out.Boxes, 1)

	p, err = NewProcessor(fixed(det), animals, ProcessorOptions{Mode: OutputAnnotated}, nil, nil)
	require.NoError(t, err)

	out, err = p.Process(context.Background(), frame)
	require.NoError(t, err)
	assert.True(t, out.Annotated)
	assert.Nil(t, out.Boxes)
}

func TestProcessorNoDetections(t *testing.T) {

	frame := yolostream.NewFilledFrame(32, 32, 1, 2, 3)

	p, err := NewProcessor(NoDetector{}, animals, ProcessorOptions{Mode: OutputBoth}, nil, nil)
	require.NoError(t, err)

	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)

	assert.NoError(t, out.Warning)
	assert.False(t, out.Annotated)
	assert.Equal(t, frame, out.Frame)
	assert.NotNil(t, out.Boxes)
	assert.Empty(t, out.Boxes)
}

func TestProcessorClassOutOfRange(t *testing.T) {

	frame := yolostream.NewFilledFrame(32, 32, 1, 2, 3)
	dets := []yolostream.Detection{
		{Box: yolostream.Box{X1: 1, Y1: 1, X2: 10, Y2: 10}, Confidence: 0.9, ClassID: 0},
		{Box: yolostream.Box{X1: 5, Y1: 5, X2: 20, Y2: 20}, Confidence: 0.8, ClassID: 7},
	}

	p, err := NewProcessor(fixed(dets...), animals, ProcessorOptions{Mode: OutputBoth}, nil, nil)
	require.NoError(t, err)

	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)

	assert.True(t, errors.Is(out.Warning, yolostream.ErrClassIndexOutOfRange))
	assert.False(t, out.Annotated)
	assert.Equal(t, frame, out.Frame)
	assert.Empty(t, out.Boxes)
}

func TestProcessorLimit(t *testing.T) {

	frame := yolostream.NewFilledFrame(64, 64, 0, 0, 0)
	dets := []yolostream.Detection{
		{Box: yolostream.Box{X1: 1, Y1: 20, X2: 10, Y2: 30}, Confidence: 0.9, ClassID: 0},
		{Box: yolostream.Box{X1: 20, Y1: 20, X2: 40, Y2: 40}, Confidence: 0.8, ClassID: 1},
		{Box: yolostream.Box{X1: 40, Y1: 40, X2: 60, Y2: 60}, Confidence: 0.7, ClassID: 2},
	}

	p, err := NewProcessor(fixed(dets...), animals,
		ProcessorOptions{Mode: OutputBoxes, Limit: []string{"dog", " bird", ""}}, nil, nil)
	require.NoError(t, err)

	out, err := p.Process(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, out.Boxes, 2)
	assert.Equal(t, "dog", out.Boxes[0].ClassName)
	assert.Equal(t, "bird", out.Boxes[1].ClassName)

	_, err = NewProcessor(NoDetector{}, animals, ProcessorOptions{Limit: []string{"horse"}}, nil, nil)
	assert.True(t, errors.Is(err, yolostream.ErrInvalidInput))
}

func TestProcessorErrors(t *testing.T) {

	boom := errors.New("boom")
	failing := detectorFunc(func(ctx context.Context, f yolostream.Frame) ([]yolostream.Detection, error) {
		return nil, boom
	})

	p, err := NewProcessor(failing, nil, ProcessorOptions{}, nil, nil)
	require.NoError(t, err)

	_, err = p.Process(context.Background(), yolostream.NewFilledFrame(8, 8, 0, 0, 0))
	assert.ErrorIs(t, err, boom)

	_, err = p.Process(context.Background(), yolostream.Frame{})
	assert.ErrorIs(t, err, yolostream.ErrInvalidInput)
}

func TestParseModesAndKinds(t *testing.T) {

	m, err := ParseOutputMode("Both")
	require.NoError(t, err)
	assert.Equal(t, OutputBoth, m)
	assert.Equal(t, "both", m.String())

	m, err = ParseOutputMode("")
	require.NoError(t, err)
	assert.Equal(t, OutputAnnotated, m)

	_, err = ParseOutputMode("video")
	assert.ErrorIs(t, err, yolostream.ErrInvalidInput)

	k, err := ParseDetectorKind("YOLO")
	require.NoError(t, err)
	assert.Equal(t, DetectorYOLO, k)

	_, err = ParseDetectorKind("effdet")
	assert.ErrorIs(t, err, yolostream.ErrInvalidInput)
}

// candidateRow builds one row of a (N, 5+C) Model output
func candidateRow(cx, cy, w, h, obj float32, scores ...float32) []float32 {
	return append([]float32{cx, cy, w, h, obj}, scores...)
}

func TestYOLODetect(t *testing.T) {

	// 100x50 frame letterboxes into 640 with scale 6.4 and 160 rows of top
	// padding
	frame := yolostream.NewFilledFrame(100, 50, 200, 100, 50)

	var rows []float32
	rows = append(rows, candidateRow(320, 320, 440, 320, 0.9, 0.1, 0.8, 0.1)...)
	// overlapping lower confidence box of another class, suppressed
	rows = append(rows, candidateRow(322, 322, 440, 320, 0.7, 0.1, 0.1, 0.8)...)
	// below threshold
	rows = append(rows, candidateRow(50, 50, 10, 10, 0.2, 1, 0, 0)...)

	output, err := yolostream.NewTensor(rows, 1, 3, 8)
	require.NoError(t, err)

	var seenShape []int
	var padValue, redValue float32

	model := runner.Func(func(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error) {
		seenShape = append([]int(nil), in.Shape...)
		plane := 640 * 640
		// top left corner is padding, the centre is the frame
		padValue = in.Data[0]
		redValue = in.Data[2*plane+320*640+320]
		return output, nil
	})

	m := metrics.New()
	det, err := NewYOLO(model, 640, postprocess.DefaultParams(), m)
	require.NoError(t, err)

	dets, err := det.Detect(context.Background(), frame)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 640, 640}, seenShape)
	assert.InDelta(t, 114.0/255.0, padValue, 1e-6)
	assert.InDelta(t, 200.0/255.0, redValue, 1e-6)

	require.Len(t, dets, 1)
	assert.Equal(t, 1, dets[0].ClassID)
	assert.Equal(t, float32(0.9), dets[0].Confidence)
	assert.InDelta(t, 15.625, dets[0].Box.X1, 1e-3)
	assert.InDelta(t, 0, dets[0].Box.Y1, 1e-3)
	assert.InDelta(t, 84.375, dets[0].Box.X2, 1e-3)
	assert.InDelta(t, 50, dets[0].Box.Y2, 1e-3)
}

func TestYOLODetectRunnerError(t *testing.T) {

	boom := errors.New("npu on fire")
	model := runner.Func(func(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error) {
		return yolostream.Tensor{}, boom
	})

	det, err := NewYOLO(model, 64, postprocess.DefaultParams(), nil)
	require.NoError(t, err)

	_, err = det.Detect(context.Background(), yolostream.NewFilledFrame(32, 16, 0, 0, 0))
	assert.ErrorIs(t, err, boom)

	_, err = det.Detect(context.Background(), yolostream.Frame{})
	assert.ErrorIs(t, err, yolostream.ErrInvalidInput)

	bad := postprocess.DefaultParams()
	bad.IoUThreshold = 2
	_, err = NewYOLO(model, 64, bad, nil)
	assert.ErrorIs(t, err, yolostream.ErrInvalidInput)
}
