package yolostream

import (
	"fmt"
	"strings"
)

// Tensor is a dense float32 tensor stored in row major order
type Tensor struct {
	// Shape lists the size of each dimension, outer most first
	Shape []int
	// Data holds the tensor values
	Data []float32
}

// NewTensor returns a Tensor wrapping data with the given shape.  The shape
// must describe exactly len(data) elements
func NewTensor(data []float32, shape ...int) (Tensor, error) {

	t := Tensor{Shape: shape, Data: data}

	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}

	return t, nil
}

// Elements returns the number of elements described by the shape
func (t Tensor) Elements() int {

	if len(t.Shape) == 0 {
		return 0
	}

	n := 1

	for _, d := range t.Shape {
		n *= d
	}

	return n
}

// Validate checks the shape has no negative dimensions and matches the
// length of Data
func (t Tensor) Validate() error {

	if len(t.Shape) == 0 {
		return fmt.Errorf("%w: tensor has no shape", ErrInvalidInput)
	}

	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("%w: tensor shape %s has negative dimension",
				ErrInvalidInput, t.ShapeString())
		}
	}

	if t.Elements() != len(t.Data) {
		return fmt.Errorf("%w: tensor shape %s needs %d elements, got %d",
			ErrInvalidInput, t.ShapeString(), t.Elements(), len(t.Data))
	}

	return nil
}

// Shape64 returns the shape as int64 values as used by inference engines
func (t Tensor) Shape64() []int64 {

	s := make([]int64, len(t.Shape))

	for i, d := range t.Shape {
		s[i] = int64(d)
	}

	return s
}

// ShapeString returns the shape formatted as (d0, d1, ...)
func (t Tensor) ShapeString() string {

	parts := make([]string, len(t.Shape))

	for i, d := range t.Shape {
		parts[i] = fmt.Sprintf("%d", d)
	}

	return "(" + strings.Join(parts, ", ") + ")"
}
