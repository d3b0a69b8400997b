package postprocess

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidsight/go-yolostream"
	"math/rand"
	"testing"
)

func det(x1, y1, x2, y2, conf float32, class int) yolostream.Detection {
	return yolostream.Detection{
		Box:        yolostream.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Confidence: conf,
		ClassID:    class,
	}
}

func TestIoU(t *testing.T) {

	tests := []struct {
		name string
		a, b yolostream.Box
		want float32
	}{
		{"identical", yolostream.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, yolostream.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, 1},
		{"nested", yolostream.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, yolostream.Box{X1: 1, Y1: 1, X2: 10, Y2: 10}, 0.81},
		{"half overlap", yolostream.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, yolostream.Box{X1: 5, Y1: 0, X2: 15, Y2: 10}, 50.0 / 150.0},
		{"disjoint", yolostream.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, yolostream.Box{X1: 20, Y1: 20, X2: 30, Y2: 30}, 0},
		{"touching", yolostream.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}, yolostream.Box{X1: 10, Y1: 0, X2: 20, Y2: 10}, 0},
		{"degenerate", yolostream.Box{}, yolostream.Box{}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, IoU(tc.a, tc.b), 1e-6)
			assert.InDelta(t, tc.want, IoU(tc.b, tc.a), 1e-6)
		})
	}
}

func TestNMSSuppressesOverlap(t *testing.T) {

	dets := []yolostream.Detection{
		det(1, 1, 10, 10, 0.8, 1),
		det(0, 0, 10, 10, 0.9, 0),
	}

	keep := NMS(dets, 0.5)

	require.Len(t, keep, 1)
	assert.Equal(t, dets[1], keep[0])

	// above the overlap the lower box survives
	keep = NMS(dets, 0.85)
	require.Len(t, keep, 2)
	assert.Equal(t, float32(0.9), keep[0].Confidence)
	assert.Equal(t, float32(0.8), keep[1].Confidence)
}

func TestNMSCrossClassVersusPerClass(t *testing.T) {

	dets := []yolostream.Detection{
		det(0, 0, 10, 10, 0.9, 0),
		det(0, 0, 10, 10, 0.8, 1),
		det(0, 0, 10, 10, 0.7, 0),
	}

	keep := NMS(dets, 0.5)
	require.Len(t, keep, 1)
	assert.Equal(t, 0, keep[0].ClassID)

	keep = NMSPerClass(dets, 0.5)
	require.Len(t, keep, 2)
	assert.Equal(t, 0, keep[0].ClassID)
	assert.Equal(t, 1, keep[1].ClassID)
}

func TestNMSTiesKeepInputOrder(t *testing.T) {

	dets := []yolostream.Detection{
		det(0, 0, 10, 10, 0.5, 3),
		det(0, 0, 10, 10, 0.5, 7),
	}

	keep := NMS(dets, 0.5)
	require.Len(t, keep, 1)
	assert.Equal(t, 3, keep[0].ClassID)
}

func TestNMSEmpty(t *testing.T) {

	keep := NMS(nil, 0.5)
	assert.NotNil(t, keep)
	assert.Empty(t, keep)
}

func TestNMSDoesNotMutateInput(t *testing.T) {

	dets := []yolostream.Detection{
		det(0, 0, 10, 10, 0.1, 0),
		det(50, 50, 60, 60, 0.9, 0),
	}

	orig := append([]yolostream.Detection(nil), dets...)
	NMS(dets, 0.5)

	assert.Equal(t, orig, dets)
}

func randomDetections(r *rand.Rand, n int) []yolostream.Detection {

	dets := make([]yolostream.Detection, n)

	for i := range dets {
		x := r.Float32() * 600
		y := r.Float32() * 600
		w := 5 + r.Float32()*80
		h := 5 + r.Float32()*80

		dets[i] = det(x, y, x+w, y+h, r.Float32(), r.Intn(5))
	}

	return dets
}

func TestNMSProperties(t *testing.T) {

	r := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {

		dets := randomDetections(r, 60)
		thr := 0.2 + r.Float32()*0.6

		keep := NMS(dets, thr)

		// every kept box overlaps every other kept box by at most the threshold
		for i := range keep {
			for j := i + 1; j < len(keep); j++ {
				assert.LessOrEqual(t, IoU(keep[i].Box, keep[j].Box), thr)
			}
		}

		// kept detections come out by descending confidence
		for i := 1; i < len(keep); i++ {
			assert.GreaterOrEqual(t, keep[i-1].Confidence, keep[i].Confidence)
		}

		// a second pass changes nothing
		assert.Equal(t, keep, NMS(keep, thr))

		// everything kept came from the input
		for _, k := range keep {
			assert.Contains(t, dets, k)
		}
	}
}

func TestSuppressMaxDetections(t *testing.T) {

	dets := []yolostream.Detection{
		det(0, 0, 10, 10, 0.3, 0),
		det(100, 100, 110, 110, 0.9, 0),
		det(200, 200, 210, 210, 0.6, 0),
	}

	p := DefaultParams()
	p.MaxDetections = 2

	keep := Suppress(dets, p)
	require.Len(t, keep, 2)
	assert.Equal(t, float32(0.9), keep[0].Confidence)
	assert.Equal(t, float32(0.6), keep[1].Confidence)

	p.MaxDetections = 0
	assert.Len(t, Suppress(dets, p), 3)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), clamp(-1, 0, 10))
	assert.Equal(t, float32(10), clamp(11, 0, 10))
	assert.Equal(t, float32(4.5), clamp(4.5, 0, 10))
}
