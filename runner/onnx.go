package runner

import (
	"context"
	"encoding/binary"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/x448/float16"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"strings"
	"sync"
)

// Provider is an ONNX Runtime execution provider
type Provider string

const (
	// ProviderAuto picks the best available provider, trying CUDA, then
	// CoreML, then the CPU
	ProviderAuto   Provider = "auto"
	ProviderCUDA   Provider = "cuda"
	ProviderCoreML Provider = "coreml"
	ProviderCPU    Provider = "cpu"
)

// ParseProvider converts a provider name into a Provider
func ParseProvider(s string) (Provider, error) {

	p := Provider(strings.ToLower(strings.TrimSpace(s)))

	switch p {
	case "":
		return ProviderAuto, nil
	case ProviderAuto, ProviderCUDA, ProviderCoreML, ProviderCPU:
		return p, nil
	}

	return "", fmt.Errorf("%w: unknown execution provider %q",
		yolostream.ErrInvalidInput, s)
}

// preference returns the providers to attempt in order
func (p Provider) preference() []Provider {

	switch p {
	case ProviderCUDA:
		return []Provider{ProviderCUDA, ProviderCPU}
	case ProviderCoreML:
		return []Provider{ProviderCoreML, ProviderCPU}
	case ProviderCPU:
		return []Provider{ProviderCPU}
	default:
		return []Provider{ProviderCUDA, ProviderCoreML, ProviderCPU}
	}
}

var envMu sync.Mutex

// InitEnvironment loads the ONNX Runtime shared library and initializes the
// runtime environment.  It must be called once before creating any ONNX
// runner, calling it again is a no-op
func InitEnvironment(libPath string) error {

	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("error initializing ONNX Runtime environment: %w", err)
	}

	return nil
}

// DestroyEnvironment releases the ONNX Runtime environment
func DestroyEnvironment() error {

	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}

	return ort.DestroyEnvironment()
}

// ONNXOptions configures an ONNX runner
type ONNXOptions struct {
	// ModelPath is the .onnx Model file
	ModelPath string
	// InputSize replaces dynamic spatial dimensions of the Model input
	InputSize int
	// Provider is the preferred execution provider
	Provider Provider
	// Threads sets the intra op thread count, zero leaves the runtime default
	Threads int
}

// ONNX is a Runner backed by an ONNX Runtime session.  The session and its
// bound tensors are reused for every call, so calls are serialized
type ONNX struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	provider Provider
	// input tensor bound to the session, one of these is set
	inF32 *ort.Tensor[float32]
	inF16 *ort.CustomDataTensor
	// output tensor bound to the session, one of these is set
	outF32 *ort.Tensor[float32]
	outF16 *ort.CustomDataTensor
	// inShape and outShape of the bound tensors
	inShape  []int
	outShape []int
	log      *zap.Logger
}

// NewONNX loads the Model and creates a session on the first execution
// provider that can be attached, falling back along the preference order
func NewONNX(opts ONNXOptions, log *zap.Logger) (*ONNX, error) {

	if log == nil {
		log = zap.NewNop()
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath)

	if err != nil {
		return nil, fmt.Errorf("error reading Model input/output info: %w", err)
	}

	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("%w: Model has %d inputs and %d outputs, expected one of each",
			yolostream.ErrInvalidInput, len(inputs), len(outputs))
	}

	r := &ONNX{log: log}

	r.inShape, err = resolveShape(inputs[0].Dimensions, opts.InputSize, true)

	if err != nil {
		return nil, fmt.Errorf("Model input %q: %w", inputs[0].Name, err)
	}

	r.outShape, err = resolveShape(outputs[0].Dimensions, opts.InputSize, false)

	if err != nil {
		return nil, fmt.Errorf("Model output %q: %w", outputs[0].Name, err)
	}

	if err := r.allocTensors(inputs[0].DataType, outputs[0].DataType); err != nil {
		r.destroyTensors()
		return nil, err
	}

	var lastErr error

	for _, p := range opts.Provider.preference() {

		session, err := r.newSession(opts, p, inputs[0].Name, outputs[0].Name)

		if err != nil {
			log.Warn("execution provider unavailable",
				zap.String("provider", string(p)), zap.Error(err))
			lastErr = err
			continue
		}

		r.session = session
		r.provider = p

		log.Info("ONNX session created",
			zap.String("model", opts.ModelPath),
			zap.String("provider", string(p)),
			zap.Ints("input", r.inShape),
			zap.Ints("output", r.outShape))

		return r, nil
	}

	r.destroyTensors()

	return nil, fmt.Errorf("error creating ONNX session: %w", lastErr)
}

// resolveShape converts the Model dimensions into a concrete shape.  The
// batch dimension is fixed at 1 and, for the input, dynamic spatial
// dimensions take the configured input size
func resolveShape(dims ort.Shape, size int, input bool) ([]int, error) {

	shape := make([]int, len(dims))

	for i, d := range dims {
		switch {
		case d > 0:
			shape[i] = int(d)
		case i == 0:
			shape[i] = 1
		case input && i >= 2 && size > 0:
			shape[i] = size
		default:
			return nil, fmt.Errorf("%w: dimension %d of %v is dynamic, export the Model with a static shape",
				yolostream.ErrInvalidInput, i, dims)
		}
	}

	return shape, nil
}

func toShape(s []int) ort.Shape {

	dims := make([]int64, len(s))

	for i, d := range s {
		dims[i] = int64(d)
	}

	return ort.NewShape(dims...)
}

// allocTensors creates the input and output tensors bound to the session
func (r *ONNX) allocTensors(inType, outType ort.TensorElementDataType) error {

	var err error

	inShape := toShape(r.inShape)
	outShape := toShape(r.outShape)

	switch inType {
	case ort.TensorElementDataTypeFloat:
		r.inF32, err = ort.NewEmptyTensor[float32](inShape)
	case ort.TensorElementDataTypeFloat16:
		r.inF16, err = ort.NewCustomDataTensor(inShape,
			make([]byte, inShape.FlattenedSize()*2), ort.TensorElementDataTypeFloat16)
	default:
		return fmt.Errorf("%w: unsupported Model input type %v",
			yolostream.ErrInvalidInput, inType)
	}

	if err != nil {
		return fmt.Errorf("error creating input tensor: %w", err)
	}

	switch outType {
	case ort.TensorElementDataTypeFloat:
		r.outF32, err = ort.NewEmptyTensor[float32](outShape)
	case ort.TensorElementDataTypeFloat16:
		r.outF16, err = ort.NewCustomDataTensor(outShape,
			make([]byte, outShape.FlattenedSize()*2), ort.TensorElementDataTypeFloat16)
	default:
		return fmt.Errorf("%w: unsupported Model output type %v",
			yolostream.ErrInvalidInput, outType)
	}

	if err != nil {
		return fmt.Errorf("error creating output tensor: %w", err)
	}

	return nil
}

// newSession creates a session with the given execution provider attached
func (r *ONNX) newSession(opts ONNXOptions, p Provider,
	inName, outName string) (*ort.AdvancedSession, error) {

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}

	defer options.Destroy()

	if opts.Threads > 0 {
		if err := options.SetIntraOpNumThreads(opts.Threads); err != nil {
			return nil, fmt.Errorf("error setting thread count: %w", err)
		}
	}

	switch p {
	case ProviderCUDA:
		cudaOpts, err := ort.NewCUDAProviderOptions()

		if err != nil {
			return nil, fmt.Errorf("error creating CUDA options: %w", err)
		}

		defer cudaOpts.Destroy()

		if err := options.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("error attaching CUDA provider: %w", err)
		}

	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return nil, fmt.Errorf("error attaching CoreML provider: %w", err)
		}
	}

	var in, out ort.ArbitraryTensor = r.inF32, r.outF32

	if r.inF16 != nil {
		in = r.inF16
	}

	if r.outF16 != nil {
		out = r.outF16
	}

	return ort.NewAdvancedSession(opts.ModelPath,
		[]string{inName}, []string{outName},
		[]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out},
		options)
}

// Provider returns the execution provider the session runs on
func (r *ONNX) Provider() Provider {
	return r.provider
}

// InputShape returns the shape of the Model input
func (r *ONNX) InputShape() []int {
	return append([]int(nil), r.inShape...)
}

// OutputShape returns the shape of the Model output
func (r *ONNX) OutputShape() []int {
	return append([]int(nil), r.outShape...)
}

// Run copies the input into the session, runs the Model and returns a copy
// of the output converted to float32
func (r *ONNX) Run(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error) {

	if err := ctx.Err(); err != nil {
		return yolostream.Tensor{}, err
	}

	if err := in.Validate(); err != nil {
		return yolostream.Tensor{}, err
	}

	want := yolostream.Tensor{Shape: r.inShape}

	if in.Elements() != want.Elements() {
		return yolostream.Tensor{}, fmt.Errorf("%w: input tensor %s does not match Model input %s",
			yolostream.ErrInvalidInput, in.ShapeString(), want.ShapeString())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return yolostream.Tensor{}, fmt.Errorf("ONNX runner is closed")
	}

	if r.inF32 != nil {
		copy(r.inF32.GetData(), in.Data)
	} else {
		buf := r.inF16.GetData()

		for i, v := range in.Data {
			binary.LittleEndian.PutUint16(buf[i*2:], float16.Fromfloat32(v).Bits())
		}
	}

	if err := r.session.Run(); err != nil {
		return yolostream.Tensor{}, fmt.Errorf("Model inference failed: %w", err)
	}

	if r.outF16 != nil {
		return yolostream.TensorFromFloat16(r.outF16.GetData(), r.outShape...)
	}

	data := make([]float32, len(r.outF32.GetData()))
	copy(data, r.outF32.GetData())

	return yolostream.NewTensor(data, append([]int(nil), r.outShape...)...)
}

// destroyTensors frees the tensors bound to the session
func (r *ONNX) destroyTensors() error {

	var errs []error

	if r.inF32 != nil {
		errs = append(errs, r.inF32.Destroy())
		r.inF32 = nil
	}

	if r.inF16 != nil {
		errs = append(errs, r.inF16.Destroy())
		r.inF16 = nil
	}

	if r.outF32 != nil {
		errs = append(errs, r.outF32.Destroy())
		r.outF32 = nil
	}

	if r.outF16 != nil {
		errs = append(errs, r.outF16.Destroy())
		r.outF16 = nil
	}

	return multierr.Combine(errs...)
}

// Close destroys the session and its tensors
func (r *ONNX) Close() error {

	r.mu.Lock()
	defer r.mu.Unlock()

	var err error

	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}

	return multierr.Append(err, r.destroyTensors())
}
