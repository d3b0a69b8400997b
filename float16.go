package yolostream

import (
	"encoding/binary"
	"fmt"
	"github.com/x448/float16"
)

var f16LookupTable [65536]float32

func init() {
	// precompute float16 lookup table for faster conversion to float32
	for i := range f16LookupTable {
		f16 := float16.Frombits(uint16(i))
		f16LookupTable[i] = f16.Float32()
	}
}

// TensorFromFloat16 converts a little endian IEEE 754 half precision buffer,
// as returned by Models exported with FP16 outputs, into a float32 Tensor
func TensorFromFloat16(buf []byte, shape ...int) (Tensor, error) {

	if len(buf)%2 != 0 {
		return Tensor{}, fmt.Errorf("%w: float16 buffer has odd length %d",
			ErrInvalidInput, len(buf))
	}

	data := make([]float32, len(buf)/2)

	for i := range data {
		data[i] = f16LookupTable[binary.LittleEndian.Uint16(buf[i*2:])]
	}

	return NewTensor(data, shape...)
}
