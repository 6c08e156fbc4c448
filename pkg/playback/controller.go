package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/audioio"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/wav"
)

// Analyzer is the part of the lipsync analyzer playback drives.
type Analyzer interface {
	Attach(tap lipsync.Tap) error
	Detach()
}

// Config tunes playback.
type Config struct {
	ChunkDuration time.Duration `yaml:"chunk_duration" json:"chunk_duration"`
	PlayheadSize  int           `yaml:"playhead_size" json:"playhead_size"` // samples kept for the analyzer
	Realtime      bool          `yaml:"realtime" json:"realtime"`           // pace writes at playback speed
}

// DefaultConfig returns the default playback settings.
func DefaultConfig() Config {
	return Config{
		ChunkDuration: 20 * time.Millisecond,
		PlayheadSize:  2048,
		Realtime:      true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ChunkDuration <= 0 {
		return fmt.Errorf("chunk_duration must be positive, got %v", c.ChunkDuration)
	}
	if c.PlayheadSize <= 0 {
		return fmt.Errorf("playhead_size must be positive, got %d", c.PlayheadSize)
	}
	return nil
}

// Stats reports playback counters.
type Stats struct {
	Played      int64  `json:"played"`
	Failed      int64  `json:"failed"`
	Interrupted int64  `json:"interrupted"`
	Playing     bool   `json:"playing"`
	Current     string `json:"current,omitempty"`
}

// Controller plays one clip at a time.
type Controller struct {
	cfg      Config
	sink     audioio.Sink
	clips    *ClipStore
	analyzer Analyzer
	logger   *slog.Logger

	// OnEnded fires exactly once per Play call, after the clip URL is revoked.
	// err is nil when the clip played to the end.
	OnEnded func(url string, err error)

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	stats   Stats
}

// NewController creates a controller writing to sink. analyzer may be nil.
func NewController(cfg Config, sink audioio.Sink, clips *ClipStore, analyzer Analyzer, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if sink == nil {
		return nil, errors.New("playback: nil sink")
	}
	if clips == nil {
		clips = NewClipStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:      cfg,
		sink:     sink,
		clips:    clips,
		analyzer: analyzer,
		logger:   logger.With("component", "playback"),
	}, nil
}

// Clips returns the store the controller plays from.
func (c *Controller) Clips() *ClipStore {
	return c.clips
}

// Play blocks until the clip at url has played, failed or been interrupted.
func (c *Controller) Play(ctx context.Context, url string) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.current != "" {
		c.mu.Unlock()
		c.finish(url, ErrBusy)
		return ErrBusy
	}
	c.current = url
	c.cancel = cancel
	c.stats.Playing = true
	c.stats.Current = url
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.current = ""
		c.cancel = nil
		c.stats.Playing = false
		c.stats.Current = ""
		switch {
		case err == nil:
			c.stats.Played++
		case errors.Is(err, context.Canceled):
			c.stats.Interrupted++
		default:
			c.stats.Failed++
		}
		c.mu.Unlock()
		c.finish(url, err)
	}()

	return c.play(ctx, url)
}

func (c *Controller) play(ctx context.Context, url string) error {
	data, ok := c.clips.Get(url)
	if !ok {
		return &PlaybackError{URL: url, Op: "load", Err: ErrClipNotFound}
	}

	h, samples, err := wav.Decode(data)
	if err != nil {
		return &PlaybackError{URL: url, Op: "decode", Err: err}
	}

	out := c.sink.Config()
	samples = audioio.DownmixToMono(samples, int(h.Channels))
	samples = audioio.Resample(samples, int(h.SampleRate), out.SampleRate)
	samples = spread(samples, out.Channels)

	if err := c.sink.Start(ctx); err != nil {
		return &PlaybackError{URL: url, Op: "start", Err: err}
	}

	head := NewPlayhead(out.SampleRate, c.cfg.PlayheadSize)
	if c.analyzer != nil {
		if err := c.analyzer.Attach(head); err != nil {
			c.logger.Warn("lipsync attach failed, playing without it", "url", url, "error", err)
		} else {
			defer c.analyzer.Detach()
		}
	}

	c.logger.Debug("playing clip", "url", url, "duration", h.Duration(), "samples", len(samples))

	step := int(c.cfg.ChunkDuration.Seconds()*float64(out.SampleRate)) * max(out.Channels, 1)
	if step <= 0 {
		step = len(samples)
	}

	var pace *time.Ticker
	if c.cfg.Realtime {
		pace = time.NewTicker(c.cfg.ChunkDuration)
		defer pace.Stop()
	}

	for off := 0; off < len(samples); off += step {
		end := min(off+step, len(samples))
		chunk := audioio.AudioChunk{
			Samples:    samples[off:end],
			SampleRate: out.SampleRate,
			Channels:   out.Channels,
		}
		if err := c.sink.Write(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				c.sink.Clear()
				return ctx.Err()
			}
			return &PlaybackError{URL: url, Op: "write", Err: err}
		}
		head.Push(chunk.Samples)

		if pace != nil {
			select {
			case <-ctx.Done():
				c.sink.Clear()
				return ctx.Err()
			case <-pace.C:
			}
		} else if ctx.Err() != nil {
			c.sink.Clear()
			return ctx.Err()
		}
	}

	if err := c.sink.Flush(ctx); err != nil {
		if ctx.Err() != nil {
			c.sink.Clear()
			return ctx.Err()
		}
		return &PlaybackError{URL: url, Op: "write", Err: err}
	}
	return nil
}

// finish revokes the URL and reports completion.
func (c *Controller) finish(url string, err error) {
	c.clips.Revoke(url)
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("playback failed", "url", url, "error", err)
	}
	if c.OnEnded != nil {
		c.OnEnded(url, err)
	}
}

// Stop interrupts the clip currently playing, if any.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Playing reports whether a clip is playing.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != ""
}

// Stats returns playback counters.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// spread duplicates mono samples across channels.
func spread(mono []int16, channels int) []int16 {
	if channels <= 1 {
		return mono
	}
	out := make([]int16, len(mono)*channels)
	for i, s := range mono {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = s
		}
	}
	return out
}
