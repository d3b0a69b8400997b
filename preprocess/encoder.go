package preprocess

import (
	"fmt"
	"github.com/vidsight/go-yolostream"
)

// tensorPool is the name of the buffer pool tensors are drawn from
const tensorPool = "input"

// Encoder converts letterboxed frames into the normalized channel first
// float tensor a Model takes as input
type Encoder struct {
	// size is the side length of the square input
	size int
	// bufs recycles tensor backing buffers between frames
	bufs *yolostream.BufferPool[float32]
}

// NewEncoder returns an Encoder for size x size letterboxed frames
func NewEncoder(size int) (*Encoder, error) {

	if size <= 0 {
		return nil, fmt.Errorf("%w: encoder size %d must be positive",
			yolostream.ErrInvalidInput, size)
	}

	e := &Encoder{
		size: size,
		bufs: yolostream.NewBufferPool[float32](),
	}

	err := e.bufs.Create(tensorPool, yolostream.Channels*size*size)

	if err != nil {
		return nil, err
	}

	return e, nil
}

// Encode returns a (1, 3, size, size) tensor of the letterboxed frame.  Pixel
// values are divided by 255 and the channels are written in reverse of the
// stored RGB order, so plane 0 is blue, plane 1 green and plane 2 red.  The
// input frame is not modified.  Pass the tensor to Release once the Model has
// finished with it
func (e *Encoder) Encode(lb LetterboxResult) (yolostream.Tensor, error) {

	f := lb.Frame

	if err := f.Validate(); err != nil {
		return yolostream.Tensor{}, err
	}

	if f.Width != e.size || f.Height != e.size {
		return yolostream.Tensor{}, fmt.Errorf("%w: frame is %dx%d, encoder expects %dx%d",
			yolostream.ErrInvalidInput, f.Width, f.Height, e.size, e.size)
	}

	planeSize := e.size * e.size
	data := e.bufs.Get(tensorPool, yolostream.Channels*planeSize)

	blue := data[:planeSize]
	green := data[planeSize : 2*planeSize]
	red := data[2*planeSize:]

	for i := 0; i < planeSize; i++ {
		p := f.Pix[i*yolostream.Channels:]
		red[i] = float32(p[0]) / 255.0
		green[i] = float32(p[1]) / 255.0
		blue[i] = float32(p[2]) / 255.0
	}

	return yolostream.Tensor{
		Shape: []int{1, yolostream.Channels, e.size, e.size},
		Data:  data,
	}, nil
}

// Release hands the tensor's buffer back for reuse by a later frame.  The
// tensor must not be used after it has been released
func (e *Encoder) Release(t yolostream.Tensor) {

	if t.Data == nil {
		return
	}

	e.bufs.Put(tensorPool, t.Data)
}

// Size returns the side length of the square input the encoder expects
func (e *Encoder) Size() int {
	return e.size
}
