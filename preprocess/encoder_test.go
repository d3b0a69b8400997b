package preprocess

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidsight/go-yolostream"
	"testing"
)

func TestEncodeLayoutAndNormalization(t *testing.T) {

	enc, err := NewEncoder(2)
	require.NoError(t, err)

	// 2x2 frame with distinct channel values per pixel
	pix := []byte{
		255, 0, 51, 0, 255, 0,
		0, 0, 255, 102, 153, 204,
	}

	frame, err := yolostream.NewFrame(2, 2, pix)
	require.NoError(t, err)

	tensor, err := enc.Encode(LetterboxResult{Frame: frame, Scale: 1})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 2, 2}, tensor.Shape)
	require.NoError(t, tensor.Validate())

	// plane 0 is blue, plane 1 green, plane 2 red
	blue := tensor.Data[0:4]
	green := tensor.Data[4:8]
	red := tensor.Data[8:12]

	assert.InDeltaSlice(t, []float32{0.2, 0, 1, 0.8}, blue, 1e-6)
	assert.InDeltaSlice(t, []float32{0, 1, 0, 0.6}, green, 1e-6)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 0.4}, red, 1e-6)

	for _, v := range tensor.Data {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}

	// input untouched
	assert.Equal(t, byte(255), frame.Pix[0])
}

func TestEncodeReleaseReuse(t *testing.T) {

	enc, err := NewEncoder(4)
	require.NoError(t, err)

	white := LetterboxResult{Frame: yolostream.NewFilledFrame(4, 4, 255, 255, 255)}
	black := LetterboxResult{Frame: yolostream.NewFilledFrame(4, 4, 0, 0, 0)}

	first, err := enc.Encode(white)
	require.NoError(t, err)
	enc.Release(first)

	second, err := enc.Encode(black)
	require.NoError(t, err)

	for _, v := range second.Data {
		assert.Zero(t, v)
	}

	enc.Release(second)
	enc.Release(yolostream.Tensor{})
}

func TestEncodeWrongSize(t *testing.T) {

	enc, err := NewEncoder(8)
	require.NoError(t, err)

	_, err = enc.Encode(LetterboxResult{Frame: yolostream.NewFilledFrame(4, 4, 0, 0, 0)})
	assert.True(t, errors.Is(err, yolostream.ErrInvalidInput))

	_, err = NewEncoder(0)
	assert.True(t, errors.Is(err, yolostream.ErrInvalidInput))
}
