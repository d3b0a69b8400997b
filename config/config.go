// Package config loads the settings of the yolostream program from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/internal/logging"
	"github.com/vidsight/go-yolostream/pipeline"
	"github.com/vidsight/go-yolostream/postprocess"
	"github.com/vidsight/go-yolostream/runner"
	"github.com/vidsight/go-yolostream/source"
	"gopkg.in/yaml.v3"
	"io"
	"os"
)

// Config holds every setting of the program
type Config struct {
	Detector DetectorConfig `yaml:"detector"`
	Source   SourceConfig   `yaml:"source"`
	Output   OutputConfig   `yaml:"output"`
	LogLevel string         `yaml:"log_level"`
}

// DetectorConfig configures detection
type DetectorConfig struct {
	// Kind is none or yolo
	Kind string `yaml:"kind"`
	// Model is the .onnx Model file
	Model string `yaml:"model"`
	// Library is the ONNX Runtime shared library, empty uses the system
	// default
	Library string `yaml:"library"`
	// Provider is auto, cuda, coreml or cpu
	Provider string `yaml:"provider"`
	// PoolSize is the number of Model sessions run concurrently
	PoolSize int `yaml:"pool_size"`
	// Threads per session, zero leaves the runtime default
	Threads int `yaml:"threads"`
	// InputSize is the square Model input side length
	InputSize int `yaml:"input_size"`
	// Layout of the Model output, candidates-first or candidates-last
	Layout              string  `yaml:"layout"`
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	IoUThreshold        float32 `yaml:"iou_threshold"`
	// PerClass restricts suppression to boxes of the same class
	PerClass      bool `yaml:"per_class"`
	MaxDetections int  `yaml:"max_detections"`
	// Labels is the class names file, empty uses the built in COCO list
	Labels string `yaml:"labels"`
	// Limit restricts output to the named classes
	Limit []string `yaml:"limit"`
}

// SourceConfig configures the frame source
type SourceConfig struct {
	// Type is webcam, gstreamer or file
	Type     string `yaml:"type"`
	Device   int    `yaml:"device"`
	Pipeline string `yaml:"pipeline"`
	Path     string `yaml:"path"`
	Loop     bool   `yaml:"loop"`
	// Buffer reads a video file into memory before starting
	Buffer bool `yaml:"buffer"`
	// FPS is the rate frames are read at
	FPS float64 `yaml:"fps"`
}

// OutputConfig configures what is produced and where it goes
type OutputConfig struct {
	// Mode is annotated, boxes or both
	Mode string `yaml:"mode"`
	// StatusBar draws processing statistics on annotated frames
	StatusBar bool `yaml:"status_bar"`
	// Window shows frames in a desktop window
	Window bool `yaml:"window"`
	// HTTP is the address to serve the stream on, empty disables it
	HTTP string `yaml:"http"`
	// JPEGQuality of streamed frames
	JPEGQuality int `yaml:"jpeg_quality"`
	// JSON writes box lists as JSON lines to stdout
	JSON bool `yaml:"json"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Detector: DetectorConfig{
			Kind:                string(pipeline.DetectorYOLO),
			Model:               "yolov5s.onnx",
			Provider:            string(runner.ProviderAuto),
			PoolSize:            1,
			InputSize:           yolostream.DefaultInputSize,
			Layout:              postprocess.LayoutCandidatesFirst.String(),
			ConfidenceThreshold: yolostream.DefaultConfidenceThreshold,
			IoUThreshold:        yolostream.DefaultIoUThreshold,
		},
		Source: SourceConfig{
			Type: string(source.KindWebcam),
			FPS:  pipeline.DefaultTargetFPS,
		},
		Output: OutputConfig{
			Mode:        pipeline.OutputAnnotated.String(),
			StatusBar:   true,
			HTTP:        "localhost:8080",
			JPEGQuality: 80,
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults
func Load(path string) (Config, error) {

	cfg := Default()

	data, err := os.ReadFile(path)

	if err != nil {
		return cfg, fmt.Errorf("error reading config: %w", err)
	}

	if err := Parse(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Parse decodes YAML into cfg, leaving fields absent from the document
// untouched.  Unknown keys are rejected
func Parse(data []byte, cfg *Config) error {

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	// an empty document leaves the config as it was
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error parsing config: %w", err)
	}

	return nil
}

// Params returns the decode and suppression parameters
func (c Config) Params() (postprocess.Params, error) {

	layout, err := postprocess.ParseLayout(c.Detector.Layout)

	if err != nil {
		return postprocess.Params{}, err
	}

	p := postprocess.Params{
		ConfidenceThreshold: c.Detector.ConfidenceThreshold,
		IoUThreshold:        c.Detector.IoUThreshold,
		PerClass:            c.Detector.PerClass,
		MaxDetections:       c.Detector.MaxDetections,
		Layout:              layout,
	}

	return p, p.Validate()
}

// SourceOptions returns the capture source options
func (c Config) SourceOptions() (source.Options, error) {

	kind, err := source.ParseKind(c.Source.Type)

	if err != nil {
		return source.Options{}, err
	}

	opts := source.Options{
		Kind:     kind,
		Device:   c.Source.Device,
		Pipeline: c.Source.Pipeline,
		Path:     c.Source.Path,
		Loop:     c.Source.Loop,
	}

	return opts, opts.Validate()
}

// Validate checks every setting
func (c Config) Validate() error {

	kind, err := pipeline.ParseDetectorKind(c.Detector.Kind)

	if err != nil {
		return err
	}

	if kind == pipeline.DetectorYOLO {

		if c.Detector.Model == "" {
			return fmt.Errorf("%w: yolo detector needs a model file", yolostream.ErrInvalidInput)
		}

		if c.Detector.PoolSize <= 0 {
			return fmt.Errorf("%w: pool size %d must be positive",
				yolostream.ErrInvalidInput, c.Detector.PoolSize)
		}

		if _, err := runner.ParseProvider(c.Detector.Provider); err != nil {
			return err
		}
	}

	if c.Detector.InputSize <= 0 {
		return fmt.Errorf("%w: input size %d must be positive",
			yolostream.ErrInvalidInput, c.Detector.InputSize)
	}

	if _, err := c.Params(); err != nil {
		return err
	}

	if _, err := c.SourceOptions(); err != nil {
		return err
	}

	if c.Source.FPS < 0 {
		return fmt.Errorf("%w: source fps %v is negative", yolostream.ErrInvalidInput, c.Source.FPS)
	}

	if _, err := pipeline.ParseOutputMode(c.Output.Mode); err != nil {
		return err
	}

	if c.Output.JPEGQuality < 0 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg quality %d not in 0..100",
			yolostream.ErrInvalidInput, c.Output.JPEGQuality)
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", yolostream.ErrInvalidInput, err)
	}

	return nil
}
