/*
yolostream runs YOLO object detection on a live video source and shows the
annotated frames in a window, streams them to a browser over HTTP or writes
the detected boxes as JSON lines.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/config"
	"github.com/vidsight/go-yolostream/display"
	"github.com/vidsight/go-yolostream/internal/logging"
	"github.com/vidsight/go-yolostream/internal/metrics"
	"github.com/vidsight/go-yolostream/pipeline"
	"github.com/vidsight/go-yolostream/render"
	"github.com/vidsight/go-yolostream/runner"
	"github.com/vidsight/go-yolostream/source"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
)

func init() {
	// OpenCV windows must be driven from the main OS thread
	runtime.LockOSThread()
}

// flags holds the command line settings, each overriding the config file
// when given
type flags struct {
	configFile *string
	model      *string
	library    *string
	detector   *string
	provider   *string
	labels     *string
	inputSize  *int
	layout     *string
	conf       *float64
	iou        *float64
	perClass   *bool
	poolSize   *int
	limit      *string
	srcType    *string
	device     *int
	gstreamer  *string
	video      *string
	loop       *bool
	fps        *float64
	mode       *string
	window     *bool
	httpAddr   *string
	json       *bool
	logLevel   *string
}

func parseFlags() flags {

	f := flags{
		configFile: flag.String("c", "", "YAML config file, flags override its values"),
		model:      flag.String("m", "", "ONNX YOLO model file"),
		library:    flag.String("lib", "", "ONNX Runtime shared library"),
		detector:   flag.String("d", "", "Detector to run [none|yolo]"),
		provider:   flag.String("p", "", "Execution provider [auto|cuda|coreml|cpu]"),
		labels:     flag.String("l", "", "Text file containing model labels, default is COCO 80"),
		inputSize:  flag.Int("i", 0, "Model input size in pixels"),
		layout:     flag.String("layout", "", "Model output layout [candidates-first|candidates-last]"),
		conf:       flag.Float64("conf", 0, "Confidence threshold"),
		iou:        flag.Float64("iou", 0, "NMS IoU threshold"),
		perClass:   flag.Bool("per-class", false, "Only suppress overlapping boxes of the same class"),
		poolSize:   flag.Int("s", 0, "Size of Model session pool"),
		limit:      flag.String("x", "", "Comma delimited list of labels (COCO) to restrict detection to"),
		srcType:    flag.String("t", "", "Source type [webcam|gstreamer|file]"),
		device:     flag.Int("dev", 0, "Webcam device index"),
		gstreamer:  flag.String("g", "", "GStreamer pipeline"),
		video:      flag.String("v", "", "Video file to run object detection on"),
		loop:       flag.Bool("loop", false, "Loop the video file"),
		fps:        flag.Float64("fps", 0, "Rate frames are read at"),
		mode:       flag.String("o", "", "Output mode [annotated|boxes|both]"),
		window:     flag.Bool("w", false, "Show frames in a window"),
		httpAddr:   flag.String("a", "", "HTTP Address to run server on, format address:port, 'off' to disable"),
		json:       flag.Bool("j", false, "Write detected boxes to stdout as JSON lines"),
		logLevel:   flag.String("log", "", "Log level [debug|info|warn|error]"),
	}

	flag.Parse()

	return f
}

// apply copies the flags given on the command line over the config
func (f flags) apply(cfg *config.Config) {

	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "m":
			cfg.Detector.Model = *f.model
		case "lib":
			cfg.Detector.Library = *f.library
		case "d":
			cfg.Detector.Kind = *f.detector
		case "p":
			cfg.Detector.Provider = *f.provider
		case "l":
			cfg.Detector.Labels = *f.labels
		case "i":
			cfg.Detector.InputSize = *f.inputSize
		case "layout":
			cfg.Detector.Layout = *f.layout
		case "conf":
			cfg.Detector.ConfidenceThreshold = float32(*f.conf)
		case "iou":
			cfg.Detector.IoUThreshold = float32(*f.iou)
		case "per-class":
			cfg.Detector.PerClass = *f.perClass
		case "s":
			cfg.Detector.PoolSize = *f.poolSize
		case "x":
			cfg.Detector.Limit = strings.Split(*f.limit, ",")
		case "t":
			cfg.Source.Type = *f.srcType
		case "dev":
			cfg.Source.Device = *f.device
		case "g":
			cfg.Source.Type = string(source.KindGStreamer)
			cfg.Source.Pipeline = *f.gstreamer
		case "v":
			cfg.Source.Type = string(source.KindFile)
			cfg.Source.Path = *f.video
		case "loop":
			cfg.Source.Loop = *f.loop
		case "fps":
			cfg.Source.FPS = *f.fps
		case "o":
			cfg.Output.Mode = *f.mode
		case "w":
			cfg.Output.Window = *f.window
		case "a":
			cfg.Output.HTTP = *f.httpAddr
			if cfg.Output.HTTP == "off" {
				cfg.Output.HTTP = ""
			}
		case "j":
			cfg.Output.JSON = *f.json
		case "log":
			cfg.LogLevel = *f.logLevel
		}
	})
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	f := parseFlags()

	cfg := config.Default()

	if *f.configFile != "" {
		var err error
		cfg, err = config.Load(*f.configFile)

		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
	}

	f.apply(&cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New("yolostream", cfg.LogLevel)

	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}

	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("yolostream failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run builds the pipeline described by the config and runs it until the
// source ends or the process is signalled
func run(cfg config.Config, logger *zap.Logger) (err error) {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classes := yolostream.DefaultClassTable()

	if cfg.Detector.Labels != "" {
		classes, err = yolostream.LoadClassTable(cfg.Detector.Labels)

		if err != nil {
			return fmt.Errorf("error loading labels: %w", err)
		}
	}

	m := metrics.New()

	det, closeDet, err := newDetector(cfg, m, logger)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, closeDet()) }()

	mode, _ := pipeline.ParseOutputMode(cfg.Output.Mode)

	proc, err := pipeline.NewProcessor(det, classes, pipeline.ProcessorOptions{
		Mode:  mode,
		Limit: cfg.Detector.Limit,
		Style: render.DefaultStyle(),
	}, m, logger.Named("processor"))

	if err != nil {
		return err
	}

	src, err := newSource(ctx, cfg, logger)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, src.Close()) }()

	sinks, err := newSinks(cfg, m, logger, stop)

	if err != nil {
		return err
	}

	defer func() { err = multierr.Append(err, sinks.Close()) }()

	p := pipeline.New(src, proc, sinks, pipeline.Options{
		TargetFPS: cfg.Source.FPS,
		StatusBar: cfg.Output.StatusBar,
	}, m, logger.Named("pipeline"))

	return p.Run(ctx)
}

// newDetector builds the configured Detector and returns a function
// releasing what it holds
func newDetector(cfg config.Config, m *metrics.Metrics,
	logger *zap.Logger) (pipeline.Detector, func() error, error) {

	kind, _ := pipeline.ParseDetectorKind(cfg.Detector.Kind)

	if kind == pipeline.DetectorNone {
		logger.Info("detection disabled, frames pass through")
		return pipeline.NoDetector{}, func() error { return nil }, nil
	}

	if err := runner.InitEnvironment(cfg.Detector.Library); err != nil {
		return nil, nil, err
	}

	provider, _ := runner.ParseProvider(cfg.Detector.Provider)

	pool, err := runner.NewPool(cfg.Detector.PoolSize, func(i int) (runner.Runner, error) {
		return runner.NewONNX(runner.ONNXOptions{
			ModelPath: cfg.Detector.Model,
			InputSize: cfg.Detector.InputSize,
			Provider:  provider,
			Threads:   cfg.Detector.Threads,
		}, logger.Named("onnx"))
	})

	if err != nil {
		return nil, nil, multierr.Append(err, runner.DestroyEnvironment())
	}

	closeAll := func() error {
		return multierr.Append(pool.Close(), runner.DestroyEnvironment())
	}

	params, _ := cfg.Params()

	det, err := pipeline.NewYOLO(pool, cfg.Detector.InputSize, params, m)

	if err != nil {
		return nil, nil, multierr.Append(err, closeAll())
	}

	return det, closeAll, nil
}

// newSource opens the configured frame source
func newSource(ctx context.Context, cfg config.Config,
	logger *zap.Logger) (source.Source, error) {

	opts, _ := cfg.SourceOptions()

	capture, err := source.Open(opts)

	if err != nil {
		return nil, err
	}

	logger.Info("source opened",
		zap.Stringer("source", opts),
		zap.Float64("device_fps", capture.FPS()))

	if !cfg.Source.Buffer || opts.Kind != source.KindFile {
		return capture, nil
	}

	buffered, err := source.Buffer(ctx, capture, opts.Loop)

	if err != nil {
		return nil, fmt.Errorf("error buffering video: %w", err)
	}

	logger.Info("video buffered", zap.Int("frames", buffered.Len()))

	return buffered, nil
}

// newSinks builds the configured output sinks.  quit is called when the
// user closes the window
func newSinks(cfg config.Config, m *metrics.Metrics, logger *zap.Logger,
	quit func()) (display.Multi, error) {

	var sinks display.Multi

	if cfg.Output.Window {
		win := display.NewWindow("yolostream")

		go func() {
			<-win.Quit()
			logger.Info("window closed")
			quit()
		}()

		sinks = append(sinks, win)
	}

	if cfg.Output.HTTP != "" {
		h := display.NewHTTP(display.HTTPOptions{
			Addr:    cfg.Output.HTTP,
			Quality: cfg.Output.JPEGQuality,
			Metrics: m.Handler(),
		}, logger.Named("http"))

		if err := h.Start(); err != nil {
			return nil, multierr.Append(err, sinks.Close())
		}

		sinks = append(sinks, h)
	}

	if cfg.Output.JSON {
		// the logger writes to stderr so stdout only carries records
		sinks = append(sinks, display.NewJSONLines(os.Stdout))
	}

	if len(sinks) == 0 {
		logger.Warn("no output configured, enable the window, HTTP or JSON output")
	}

	return sinks, nil
}
