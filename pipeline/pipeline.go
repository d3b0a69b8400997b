// Package pipeline runs frames from a source through detection and hands the
// results to a sink.
package pipeline

import (
	"context"
	"errors"
	"github.com/vidsight/go-yolostream/internal/fps"
	"github.com/vidsight/go-yolostream/internal/metrics"
	"github.com/vidsight/go-yolostream/render"
	"github.com/vidsight/go-yolostream/source"
	"go.uber.org/zap"
	"io"
	"math"
	"sync"
	"time"
)

// DefaultTargetFPS is the rate frames are read from the source at
const DefaultTargetFPS = 30

// Sink receives the Output of every processed frame
type Sink interface {
	Show(ctx context.Context, out Output) error
}

// Options configures a Pipeline
type Options struct {
	// TargetFPS is the rate the source is read at, zero reads as fast as the
	// source delivers
	TargetFPS float64
	// StatusBar draws the frame number, FPS, object count and processing
	// time across the top of annotated frames
	StatusBar bool
}

// Pipeline reads frames from a Source on one goroutine and processes the
// most recent of them on another.  Frames arriving while the previous frame
// is still being processed replace each other, so processing never falls
// behind the source
type Pipeline struct {
	src     source.Source
	proc    *Processor
	sink    Sink
	opts    Options
	mailbox *Mailbox
	seq     *Sequencer
	fps     *fps.Tracker
	metrics *metrics.Metrics
	log     *zap.Logger
}

// New returns a Pipeline.  metrics and log may be nil
func New(src source.Source, proc *Processor, sink Sink, opts Options,
	m *metrics.Metrics, log *zap.Logger) *Pipeline {

	if log == nil {
		log = zap.NewNop()
	}

	if m == nil {
		m = metrics.New()
	}

	return &Pipeline{
		src:     src,
		proc:    proc,
		sink:    sink,
		opts:    opts,
		mailbox: NewMailbox(),
		seq:     NewSequencer(),
		fps:     fps.New(fps.DefaultWindow),
		metrics: m,
		log:     log,
	}
}

// Run processes frames until the source is exhausted or the context is
// cancelled.  A frame that fails is logged, counted and skipped
func (p *Pipeline) Run(ctx context.Context) error {

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer p.mailbox.Close()
		p.capture(ctx)
	}()

	p.log.Info("pipeline started", zap.Float64("target_fps", p.opts.TargetFPS))

	for {
		s, ok := p.mailbox.Take(ctx)

		if !ok {
			break
		}

		p.process(ctx, s)
	}

	cancel()
	wg.Wait()

	p.log.Info("pipeline stopped",
		zap.Uint64("frames", p.seq.Last()),
		zap.Uint64("dropped", p.mailbox.Dropped()),
		zap.Duration("frame_jitter", p.fps.Jitter()))

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// capture reads frames from the source at the target rate and publishes
// them to the mailbox
func (p *Pipeline) capture(ctx context.Context) {

	var tick <-chan time.Time

	if p.opts.TargetFPS > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / p.opts.TargetFPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return
		}

		f, err := p.src.Read(ctx)

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			p.log.Info("source exhausted")
			return
		case ctx.Err() != nil:
			return
		case errors.Is(err, source.ErrNoFrame):
			p.metrics.CaptureErrors.Inc()
			p.log.Debug("no frame from source", zap.Error(err))

			if tick == nil {
				time.Sleep(time.Millisecond)
			}

			continue
		default:
			p.metrics.CaptureErrors.Inc()
			p.log.Warn("error reading frame", zap.Error(err))

			if tick == nil {
				time.Sleep(time.Millisecond)
			}

			continue
		}

		p.metrics.FramesCaptured.Inc()

		dropped := p.mailbox.Put(Stamped{
			Seq:      p.seq.Next(),
			Captured: time.Now(),
			Frame:    f,
		})

		if dropped {
			p.metrics.FramesDropped.Inc()
		}
	}
}

// process runs one frame through the Processor and hands it to the sink
func (p *Pipeline) process(ctx context.Context, s Stamped) {

	out, err := p.proc.Process(ctx, s.Frame)

	if err != nil {
		p.metrics.FramesFailed.Inc()
		p.log.Warn("error processing frame", zap.Uint64("frame", s.Seq), zap.Error(err))
		return
	}

	out.Seq = s.Seq

	if out.Warning != nil {
		p.log.Warn("frame not annotated", zap.Uint64("frame", s.Seq), zap.Error(out.Warning))
	}

	p.fps.Tick()
	rate := p.fps.FPS()

	p.metrics.FramesProcessed.Inc()
	p.metrics.ObserveStage(metrics.StageTotal, time.Since(s.Captured))

	if !math.IsInf(rate, 0) {
		p.metrics.FPS.Set(rate)
	}

	if p.opts.StatusBar && p.proc.Mode().annotate() {

		status := render.Status{
			Frame:   s.Seq,
			FPS:     rate,
			Objects: len(out.Detections),
			Dropped: p.mailbox.Dropped(),
			Elapsed: out.Elapsed,
		}

		framed, err := render.StatusBar(out.Frame, status)

		if err != nil {
			p.log.Warn("error drawing status bar", zap.Uint64("frame", s.Seq), zap.Error(err))
		} else {
			out.Frame = framed
		}
	}

	if p.sink == nil {
		return
	}

	if err := p.sink.Show(ctx, out); err != nil {
		p.log.Warn("error showing frame", zap.Uint64("frame", s.Seq), zap.Error(err))
	}
}

// Dropped returns the number of frames replaced before being processed
func (p *Pipeline) Dropped() uint64 {
	return p.mailbox.Dropped()
}

// Metrics returns the collectors the pipeline reports to
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.metrics
}
