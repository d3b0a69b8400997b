package display

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/vidsight/go-yolostream"
	"github.com/vidsight/go-yolostream/pipeline"
	"io"
	"sync"
)

// Record is the structured per frame output
type Record struct {
	Seq     uint64                 `json:"seq"`
	Width   int                    `json:"width"`
	Height  int                    `json:"height"`
	Boxes   []yolostream.BoxResult `json:"boxes"`
	Warning string                 `json:"warning,omitempty"`
}

// newRecord builds the Record of an output
func newRecord(out pipeline.Output) Record {

	rec := Record{
		Seq:    out.Seq,
		Width:  out.Frame.Width,
		Height: out.Frame.Height,
		Boxes:  out.Boxes,
	}

	if rec.Boxes == nil {
		rec.Boxes = []yolostream.BoxResult{}
	}

	if out.Warning != nil {
		rec.Warning = out.Warning.Error()
	}

	return rec
}

// JSONLines writes the box list of every frame as one JSON object per line
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines returns a sink writing to w.  w stays owned by the caller,
// closing the sink does not close it
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Show writes the output's record
func (j *JSONLines) Show(ctx context.Context, out pipeline.Output) error {

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.enc.Encode(newRecord(out)); err != nil {
		return fmt.Errorf("error writing record: %w", err)
	}

	return nil
}

// Close the sink.  Records already written are left in the writer
func (j *JSONLines) Close() error {
	return nil
}
