package display

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/pipeline"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
	"image"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// DefaultJPEGQuality of streamed frames
	DefaultJPEGQuality = 80
	// maxSnapshotSide bounds the requested snapshot size
	maxSnapshotSide = 4096
)

// ErrNoFrame is returned when no frame has been shown yet
var ErrNoFrame = errors.New("no frame available yet")

// HTTPOptions configures the HTTP sink
type HTTPOptions struct {
	// Addr is the address to listen on, format address:port
	Addr string
	// Quality is the JPEG quality of streamed frames, zero uses
	// DefaultJPEGQuality
	Quality int
	// Metrics is served at /metrics when set
	Metrics http.Handler
}

// HTTP serves processed frames to browsers and clients.  Routes are
//
//	/stream      MJPEG stream of annotated frames
//	/snapshot    latest frame as a JPEG, optionally scaled with ?w=&h=
//	/detections  latest box list as JSON
//	/metrics     Prometheus metrics
type HTTP struct {
	opts   HTTPOptions
	router *mux.Router
	server *http.Server
	log    *zap.Logger
	// done is closed on Close to end streaming clients
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	latest pipeline.Output
	jpeg   []byte
	has    bool
	subs   map[chan struct{}]struct{}
}

// NewHTTP returns an HTTP sink, call Start to begin serving.  log may be nil
func NewHTTP(opts HTTPOptions, log *zap.Logger) *HTTP {

	if log == nil {
		log = zap.NewNop()
	}

	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultJPEGQuality
	}

	h := &HTTP{
		opts: opts,
		log:  log,
		done: make(chan struct{}),
		subs: make(map[chan struct{}]struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/stream", h.handleStream).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", h.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/detections", h.handleDetections).Methods(http.MethodGet)

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/stream", http.StatusFound)
	}).Methods(http.MethodGet)

	h.router = r
	h.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return h
}

// Handler returns the router serving all routes
func (h *HTTP) Handler() http.Handler {
	return h.router
}

// Start listening in the background.  Errors after a successful start are
// logged
func (h *HTTP) Start() error {

	if h.opts.Addr == "" {
		return fmt.Errorf("%w: HTTP sink needs a listen address", yolostream.ErrInvalidInput)
	}

	go func() {
		err := h.server.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("HTTP server failed", zap.Error(err))
		}
	}()

	h.log.Info("serving video stream",
		zap.String("url", fmt.Sprintf("http://%s/stream", h.opts.Addr)))

	return nil
}

// Show encodes the output frame and wakes every streaming client
func (h *HTTP) Show(ctx context.Context, out pipeline.Output) error {

	jpg, err := encodeJPEG(out.Frame, h.opts.Quality)

	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = out
	h.jpeg = jpg
	h.has = true

	for c := range h.subs {
		select {
		case c <- struct{}{}:
		default:
			// client still writing the previous frame, it picks up this one
			// when done
		}
	}

	return nil
}

// subscribe registers a streaming client
func (h *HTTP) subscribe() chan struct{} {

	c := make(chan struct{}, 1)

	h.mu.Lock()
	h.subs[c] = struct{}{}

	if h.has {
		c <- struct{}{}
	}

	h.mu.Unlock()

	return c
}

func (h *HTTP) unsubscribe(c chan struct{}) {
	h.mu.Lock()
	delete(h.subs, c)
	h.mu.Unlock()
}

// Clients returns the number of connected stream clients
func (h *HTTP) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// snapshot returns the latest output and its JPEG encoding
func (h *HTTP) snapshot() (pipeline.Output, []byte, error) {

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.has {
		return pipeline.Output{}, nil, ErrNoFrame
	}

	return h.latest, h.jpeg, nil
}

// handleStream is the HTTP handler used to stream video frames to the browser
func (h *HTTP) handleStream(w http.ResponseWriter, r *http.Request) {

	h.log.Info("new stream client", zap.String("remote", r.RemoteAddr))

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	c := h.subscribe()
	defer h.unsubscribe(c)

	flusher, _ := w.(http.Flusher)

	for {
		select {
		case <-r.Context().Done():
			h.log.Info("stream client disconnected", zap.String("remote", r.RemoteAddr))
			return

		case <-h.done:
			return

		case <-c:
			_, jpg, err := h.snapshot()

			if err != nil {
				continue
			}

			// write the image to the response writer
			_, err = fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpg))

			if err == nil {
				_, err = w.Write(jpg)
			}

			if err == nil {
				_, err = w.Write([]byte("\r\n"))
			}

			if err != nil {
				h.log.Debug("stream write failed", zap.Error(err))
				return
			}

			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// parseSide reads an optional positive image side length from the query
func parseSide(r *http.Request, key string) (int, error) {

	v := r.URL.Query().Get(key)

	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)

	if err != nil || n <= 0 || n > maxSnapshotSide {
		return 0, fmt.Errorf("%w: %s must be an integer in 1..%d",
			yolostream.ErrInvalidInput, key, maxSnapshotSide)
	}

	return n, nil
}

// handleSnapshot serves the latest frame as a JPEG.  When only one of w and
// h is given the other keeps the frame's aspect ratio
func (h *HTTP) handleSnapshot(w http.ResponseWriter, r *http.Request) {

	width, err := parseSide(r, "w")

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	height, err := parseSide(r, "h")

	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, jpg, err := h.snapshot()

	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if width > 0 || height > 0 {

		jpg, err = h.scaledJPEG(out.Frame, width, height)

		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(jpg)))
	w.Write(jpg)
}

// scaledJPEG resizes the frame to width x height and encodes it
func (h *HTTP) scaledJPEG(f yolostream.Frame, width, height int) ([]byte, error) {

	if width == 0 {
		width = max(1, f.Width*height/f.Height)
	}

	if height == 0 {
		height = max(1, f.Height*width/f.Width)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image(), image.Rect(0, 0, f.Width, f.Height), draw.Src, nil)

	scaled, err := yolostream.FrameFromImage(dst)

	if err != nil {
		return nil, err
	}

	return encodeJPEG(scaled, h.opts.Quality)
}

// handleDetections serves the latest box list as JSON
func (h *HTTP) handleDetections(w http.ResponseWriter, r *http.Request) {

	out, _, err := h.snapshot()

	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(newRecord(out)); err != nil {
		h.log.Debug("error writing detections", zap.Error(err))
	}
}

// Close shuts the server down, ending every stream
func (h *HTTP) Close() error {

	h.closeOnce.Do(func() { close(h.done) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}
