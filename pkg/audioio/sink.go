package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is PCM16 audio on its way to the speaker, interleaved when
// Channels > 1.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes encodes the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes decodes little-endian PCM16 into the chunk.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.Samples = BytesToSamples(data)
	c.SampleRate, c.Channels = sampleRate, channels
}

// Duration is the playing time of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	return span(len(c.Samples), c.SampleRate, c.Channels)
}

// Sink is a speaker. Write may block while the device buffer is full, which
// is what paces real-time playback.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush blocks until queued audio has played.
	Flush(ctx context.Context) error

	// Clear drops queued audio, for interrupting a clip.
	Clear() error

	Config() Config
	Name() string
	io.Closer
}

// SinkStats are playback counters.
type SinkStats struct {
	ChunksWritten   int64  `json:"chunks_written"`
	SamplesWritten  int64  `json:"samples_written"`
	Underruns       int64  `json:"underruns"`
	Running         bool   `json:"running"`
	Backend         string `json:"backend"`
	BufferedSamples int64  `json:"buffered_samples"`
}

// SinkWithStats is a Sink that reports counters.
type SinkWithStats interface {
	Sink
	Stats() SinkStats
}
