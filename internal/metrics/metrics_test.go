package metrics

import (
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCounters(t *testing.T) {

	m := New()

	m.FramesCaptured.Inc()
	m.FramesCaptured.Inc()
	m.FramesDropped.Inc()
	m.AddDetection("person")
	m.AddDetection("person")
	m.AddDetection("dog")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FramesCaptured))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FramesDropped))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Detections.WithLabelValues("person")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Detections.WithLabelValues("dog")))

	m.ObserveStage(StageNMS, 3*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageLatency))
}

func TestHandler(t *testing.T) {

	m := New()
	m.FramesProcessed.Add(5)
	m.FPS.Set(29.5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "yolostream_frames_processed_total 5"))
	assert.True(t, strings.Contains(string(body), "yolostream_fps 29.5"))
}
