package pipeline

import (
	"context"
	"errors"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/internal/metrics"
	"github.com/vidsight/go-yolostream/render"
	"go.uber.org/zap"
	"strings"
	"time"
)

// OutputMode selects what the Processor produces for each frame
type OutputMode int

const (
	// OutputAnnotated produces the annotated frame only
	OutputAnnotated OutputMode = iota
	// OutputBoxes produces the structured box list only, the frame is passed
	// on unannotated
	OutputBoxes
	// OutputBoth produces the annotated frame and the box list
	OutputBoth
)

// String returns the name of the output mode
func (m OutputMode) String() string {
	switch m {
	case OutputAnnotated:
		return "annotated"
	case OutputBoxes:
		return "boxes"
	case OutputBoth:
		return "both"
	}

	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseOutputMode converts an output mode name into an OutputMode
func ParseOutputMode(s string) (OutputMode, error) {

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "annotated":
		return OutputAnnotated, nil
	case "boxes":
		return OutputBoxes, nil
	case "both":
		return OutputBoth, nil
	}

	return 0, fmt.Errorf("%w: unknown output mode %q", yolostream.ErrInvalidInput, s)
}

func (m OutputMode) annotate() bool {
	return m == OutputAnnotated || m == OutputBoth
}

func (m OutputMode) boxes() bool {
	return m == OutputBoxes || m == OutputBoth
}

// Output is the result of processing one frame
type Output struct {
	// Seq is the frame sequence number
	Seq uint64
	// Frame is the annotated frame, or the original frame when annotation
	// was not requested, nothing was detected or the annotation failed
	Frame yolostream.Frame
	// Annotated reports if Frame carries annotations
	Annotated bool
	// Boxes is the structured detection list in original frame coordinates,
	// set when the output mode asks for it
	Boxes []yolostream.BoxResult
	// Detections holds every kept detection
	Detections []yolostream.Detection
	// Warning is set when the frame could not be annotated, such as a class
	// ID missing from the ClassTable
	Warning error
	// Elapsed is the time taken to process the frame
	Elapsed time.Duration
}

// ProcessorOptions configures a Processor
type ProcessorOptions struct {
	// Mode selects the annotated frame, the box list or both
	Mode OutputMode
	// Limit restricts the output to the named classes, empty means all
	Limit []string
	// Style of the annotations
	Style render.Style
}

// Processor turns a frame into an Output by running the Detector and
// rendering the results.  It holds no per frame state and is safe for
// concurrent use
type Processor struct {
	detector Detector
	classes  *yolostream.ClassTable
	mode     OutputMode
	limit    map[int]bool
	style    render.Style
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// NewProcessor returns a Processor.  metrics and log may be nil
func NewProcessor(d Detector, classes *yolostream.ClassTable, opts ProcessorOptions,
	m *metrics.Metrics, log *zap.Logger) (*Processor, error) {

	if log == nil {
		log = zap.NewNop()
	}

	if classes == nil {
		classes = yolostream.DefaultClassTable()
	}

	p := &Processor{
		detector: d,
		classes:  classes,
		mode:     opts.Mode,
		style:    opts.Style,
		metrics:  m,
		log:      log,
	}

	if p.style.Font.Scale == 0 {
		p.style = render.DefaultStyle()
	}

	for _, name := range opts.Limit {

		name = strings.TrimSpace(name)

		if name == "" {
			continue
		}

		id := classes.Index(name)

		if id < 0 {
			return nil, fmt.Errorf("%w: limit class %q is not in the class table",
				yolostream.ErrInvalidInput, name)
		}

		if p.limit == nil {
			p.limit = make(map[int]bool)
		}

		p.limit[id] = true
	}

	return p, nil
}

// Process runs detection on the frame and builds its Output.  An error is
// returned when the frame is invalid or detection fails.  A class ID missing
// from the ClassTable is not an error, the frame is passed on unannotated
// with Output.Warning set
func (p *Processor) Process(ctx context.Context, f yolostream.Frame) (Output, error) {

	start := time.Now()

	if err := f.Validate(); err != nil {
		return Output{}, err
	}

	dets, err := p.detector.Detect(ctx, f)

	if err != nil {
		return Output{}, err
	}

	out := Output{Frame: f}

	// check every class ID before producing anything
	for _, d := range dets {
		if _, err := p.classes.Name(d.ClassID); err != nil {
			p.log.Debug("detection class not in class table",
				zap.Int("class", d.ClassID), zap.Error(err))
			out.Warning = err
			out.Elapsed = time.Since(start)
			return out, nil
		}
	}

	dets = p.filter(dets)
	out.Detections = dets

	if p.mode.boxes() {
		out.Boxes = p.boxResults(dets)
	}

	if p.metrics != nil {
		for _, d := range dets {
			name, _ := p.classes.Name(d.ClassID)
			p.metrics.AddDetection(name)
		}
	}

	if p.mode.annotate() && len(dets) > 0 {

		renderStart := time.Now()
		annotated, err := render.Annotate(f, dets, p.classes, p.style)

		if err != nil {
			if !errors.Is(err, yolostream.ErrClassIndexOutOfRange) {
				return Output{}, fmt.Errorf("annotate failed: %w", err)
			}

			out.Warning = err

		} else {
			out.Frame = annotated
			out.Annotated = true
		}

		if p.metrics != nil {
			p.metrics.ObserveStage(metrics.StageAnnotate, time.Since(renderStart))
		}
	}

	out.Elapsed = time.Since(start)

	p.log.Debug("frame processed",
		zap.Int("detections", len(dets)),
		zap.Duration("elapsed", out.Elapsed))

	return out, nil
}

// filter drops detections of classes outside the limit list
func (p *Processor) filter(dets []yolostream.Detection) []yolostream.Detection {

	if len(p.limit) == 0 {
		return dets
	}

	kept := make([]yolostream.Detection, 0, len(dets))

	for _, d := range dets {
		if p.limit[d.ClassID] {
			kept = append(kept, d)
		}
	}

	return kept
}

// boxResults converts detections into the structured box list
func (p *Processor) boxResults(dets []yolostream.Detection) []yolostream.BoxResult {

	res := make([]yolostream.BoxResult, len(dets))

	for i, d := range dets {
		name, _ := p.classes.Name(d.ClassID)

		res[i] = yolostream.BoxResult{
			ClassID:    d.ClassID,
			ClassName:  name,
			Confidence: d.Confidence,
			Box:        d.Box,
		}
	}

	return res
}

// Mode returns the output mode
func (p *Processor) Mode() OutputMode {
	return p.mode
}
