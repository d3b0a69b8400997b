// Package runner executes the detection Model on encoded input tensors.
package runner

import (
	"context"
	"github.com/vidsight/go-yolostream"
)

// Runner executes the Model on a (1, 3, size, size) input tensor and returns
// the raw output tensor.  Implementations are not required to be safe for
// concurrent use, wrap them in a Pool for that
type Runner interface {
	Run(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error)
	Close() error
}

// Func adapts an ordinary function into a Runner, used for replaying
// recorded Model outputs and in tests
type Func func(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error)

// Run calls f(ctx, in)
func (f Func) Run(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error) {
	return f(ctx, in)
}

// Close does nothing
func (f Func) Close() error {
	return nil
}

// Static returns a Runner that ignores its input and always returns a copy of
// the given output tensor
func Static(out yolostream.Tensor) Runner {
	return Func(func(ctx context.Context, in yolostream.Tensor) (yolostream.Tensor, error) {

		if err := ctx.Err(); err != nil {
			return yolostream.Tensor{}, err
		}

		data := make([]float32, len(out.Data))
		copy(data, out.Data)

		shape := make([]int, len(out.Shape))
		copy(shape, out.Shape)

		return yolostream.Tensor{Shape: shape, Data: data}, nil
	})
}
