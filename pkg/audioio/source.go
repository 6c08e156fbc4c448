package audioio

import (
	"context"
	"io"
	"time"
)

// Frame is one capture block: float32 samples in [-1, 1], interleaved when
// Channels > 1. The VAD consumes frames in this form.
type Frame struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration is the playing time of the frame.
func (f *Frame) Duration() time.Duration {
	return span(len(f.Samples), f.SampleRate, f.Channels)
}

// Source is a microphone. Frames arrive on Stream between Start and Stop; a
// source can be started again after Stop but not after Close.
type Source interface {
	Start(ctx context.Context) error
	Stop() error

	// Read returns the next frame, or io.EOF once stopped.
	Read(ctx context.Context) (Frame, error)

	// Stream is closed when the source stops.
	Stream() <-chan Frame

	Config() Config
	Name() string
	io.Closer
}

// SourceStats are capture counters.
type SourceStats struct {
	FramesRead  int64  `json:"frames_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // frames dropped with no reader
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats is a Source that reports counters.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}

func span(samples, rate, channels int) time.Duration {
	if rate <= 0 || channels <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(rate*channels)
}
