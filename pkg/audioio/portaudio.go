//go:build portaudio

package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

func init() {
	register(BackendPortAudio, driver{source: newPortAudioSource, sink: newPortAudioSink})
}

// PortAudioSource captures microphone audio through PortAudio's blocking API.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	stream   *portaudio.Stream
	streamCh chan Frame
	stopCh   chan struct{}
	done     chan struct{}

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &PortAudioSource{
		cfg:      cfg,
		logger:   logger.With("component", "audioio.portaudio"),
		streamCh: make(chan Frame, 16),
	}, nil
}

// openStream opens an input or output stream on the configured device.
func openStream(cfg Config, input bool, buf interface{}) (*portaudio.Stream, error) {
	frames := cfg.BufferSize()
	if cfg.Device == "" {
		if input {
			return portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), frames, buf)
		}
		return portaudio.OpenDefaultStream(0, cfg.Channels, float64(cfg.SampleRate), frames, buf)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, dev := range devices {
		if dev.Name != cfg.Device {
			continue
		}
		var p portaudio.StreamParameters
		if input {
			if dev.MaxInputChannels < cfg.Channels {
				continue
			}
			p = portaudio.LowLatencyParameters(dev, nil)
			p.Input.Channels = cfg.Channels
		} else {
			if dev.MaxOutputChannels < cfg.Channels {
				continue
			}
			p = portaudio.LowLatencyParameters(nil, dev)
			p.Output.Channels = cfg.Channels
		}
		p.SampleRate = float64(cfg.SampleRate)
		p.FramesPerBuffer = frames
		return portaudio.OpenStream(p, buf)
	}
	return nil, fmt.Errorf("%w: %q", ErrNoDevice, cfg.Device)
}

// Start opens the capture device and begins reading frames.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewDeviceError("portaudio", "start", errors.New("source closed"))
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return NewDeviceError("portaudio", "initialize", err)
	}

	buf := make([]float32, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := openStream(s.cfg, true, buf)
	if err != nil {
		portaudio.Terminate()
		return NewDeviceError("portaudio", "open input", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return NewDeviceError("portaudio", "start input", err)
	}

	s.stream = stream
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.streamCh = make(chan Frame, 16)

	go s.captureLoop(ctx, stream, buf, s.stopCh, s.streamCh, s.done)

	s.logger.Info("capture started",
		"device", s.cfg.Device,
		"sample_rate", s.cfg.SampleRate,
		"frames_per_buffer", s.cfg.BufferSize(),
	)
	return nil
}

func (s *PortAudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, buf []float32, stopCh chan struct{}, streamCh chan Frame, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				s.overruns.Add(1)
				continue
			}
			s.logger.Error("capture read failed", "error", err)
			return
		}

		frame := Frame{
			Samples:    append([]float32(nil), buf...),
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		}

		select {
		case streamCh <- frame:
			s.framesRead.Add(1)
			s.samplesRead.Add(int64(len(frame.Samples)))
		default:
			s.overruns.Add(1)
		}
	}
}

// Stop halts capture and releases the device stream.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	stream, done, streamCh := s.stream, s.done, s.streamCh
	s.stream = nil
	s.mu.Unlock()

	var firstErr error
	if err := stream.Stop(); err != nil {
		firstErr = NewDeviceError("portaudio", "stop input", err)
	}
	<-done
	if err := stream.Close(); err != nil && firstErr == nil {
		firstErr = NewDeviceError("portaudio", "close input", err)
	}
	portaudio.Terminate()
	close(streamCh)

	s.logger.Info("capture stopped")
	return firstErr
}

// Read reads the next frame.
func (s *PortAudioSource) Read(ctx context.Context) (Frame, error) {
	ch := s.Stream()
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case frame, ok := <-ch:
		if !ok {
			return Frame{}, io.EOF
		}
		return frame, nil
	}
}

// Stream returns the frame channel of the current capture run.
func (s *PortAudioSource) Stream() <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSource) Name() string { return "portaudio" }

// Close stops capture for good.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns source statistics.
func (s *PortAudioSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SourceStats{
		FramesRead:  s.framesRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "portaudio",
	}
}

// PortAudioSink plays PCM16 audio through PortAudio's blocking API.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stream  *portaudio.Stream
	buf     []int16

	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return &PortAudioSink{
		cfg:    cfg,
		logger: logger.With("component", "audioio.portaudio"),
	}, nil
}

// Start opens the playback device.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return NewDeviceError("portaudio", "start", errors.New("sink closed"))
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return NewDeviceError("portaudio", "initialize", err)
	}

	s.buf = make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := openStream(s.cfg, false, s.buf)
	if err != nil {
		portaudio.Terminate()
		return NewDeviceError("portaudio", "open output", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return NewDeviceError("portaudio", "start output", err)
	}

	s.stream = stream
	s.running = true
	return nil
}

// Write blocks until the chunk has been handed to the device.
func (s *PortAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return NewDeviceError("portaudio", "write", errors.New("sink not started"))
	}

	samples := chunk.Samples
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := copy(s.buf, samples)
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		samples = samples[n:]

		if err := s.stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				s.underruns.Add(1)
				continue
			}
			return NewDeviceError("portaudio", "write", err)
		}
	}

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(chunk.Samples)))
	return nil
}

// Flush is a no-op: Write already blocks until the device accepted the audio.
func (s *PortAudioSink) Flush(ctx context.Context) error { return ctx.Err() }

// Clear is a no-op for the blocking API.
func (s *PortAudioSink) Clear() error { return nil }

// Stop halts playback and releases the stream.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	var firstErr error
	if err := s.stream.Stop(); err != nil {
		firstErr = NewDeviceError("portaudio", "stop output", err)
	}
	if err := s.stream.Close(); err != nil && firstErr == nil {
		firstErr = NewDeviceError("portaudio", "close output", err)
	}
	s.stream = nil
	portaudio.Terminate()
	return firstErr
}

// Config returns the audio configuration.
func (s *PortAudioSink) Config() Config { return s.cfg }

// Name returns "portaudio".
func (s *PortAudioSink) Name() string { return "portaudio" }

// Close stops playback for good.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Stop()
}

// Stats returns sink statistics.
func (s *PortAudioSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return SinkStats{
		ChunksWritten:  s.chunksWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Underruns:      s.underruns.Load(),
		Running:        running,
		Backend:        "portaudio",
	}
}

var (
	_ SourceWithStats = (*PortAudioSource)(nil)
	_ SinkWithStats   = (*PortAudioSink)(nil)
)
