package vad

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/audioio"
)

// Callbacks receive adapter events. They run on the adapter's goroutine (or
// the caller of Stop for the final OnSpeechEnd) and must not block.
type Callbacks struct {
	OnSpeechStart func()
	OnAudioChunk  func(pcm16le []byte)
	OnSpeechEnd   func()
}

// Stats reports adapter counters.
type Stats struct {
	Engine     string `json:"engine"`
	Active     bool   `json:"active"`
	Speaking   bool   `json:"speaking"`
	Utterances int64  `json:"utterances"`
	Chunks     int64  `json:"chunks"`
	Errors     int64  `json:"errors"`
}

// Adapter runs an Engine over a capture Source. Start and Stop toggle
// inference; the capture device is opened once and kept until Close.
type Adapter struct {
	cfg    Config
	source audioio.Source
	engine Engine
	cb     Callbacks
	logger *slog.Logger

	mu       sync.Mutex
	capture  bool
	active   bool
	closed   bool
	speaking bool
	voiced   int
	unvoiced int
	cancel   context.CancelFunc
	done     chan struct{}

	utterances atomic.Int64
	chunks     atomic.Int64
	errors     atomic.Int64
}

// NewAdapter creates an adapter. It does not touch the device until Start.
func NewAdapter(cfg Config, source audioio.Source, engine Engine, cb Callbacks, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		cfg:    cfg,
		source: source,
		engine: engine,
		cb:     cb,
		logger: logger.With("component", "vad"),
	}
}

// Start begins inference. The first call starts capture; later calls only
// resume inference. Device errors are returned as-is.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.capture {
		if !a.active {
			a.logger.Debug("inference resumed")
		}
		a.active = true
		return nil
	}

	if err := a.source.Start(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	a.capture = true
	a.active = true

	go a.run(loopCtx, a.source.Stream(), a.done)

	a.logger.Info("vad started", "engine", a.engine.Name(), "backend", a.source.Name())
	return nil
}

// Stop pauses inference and keeps capture open. An utterance in progress is
// closed with OnSpeechEnd.
func (a *Adapter) Stop() {
	a.mu.Lock()
	wasSpeaking := a.speaking
	a.active = false
	a.reset()
	a.mu.Unlock()

	if wasSpeaking && a.cb.OnSpeechEnd != nil {
		a.cb.OnSpeechEnd()
	}
}

// Close stops inference and releases the capture device. Safe to call twice.
func (a *Adapter) Close() error {
	a.Stop()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancel, done, capture := a.cancel, a.done, a.capture
	a.mu.Unlock()

	if !capture {
		return nil
	}
	cancel()
	err := a.source.Close()
	<-done
	return err
}

// Active reports whether inference is running.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Stats returns adapter counters.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Engine:     a.engine.Name(),
		Active:     a.active,
		Speaking:   a.speaking,
		Utterances: a.utterances.Load(),
		Chunks:     a.chunks.Load(),
		Errors:     a.errors.Load(),
	}
}

func (a *Adapter) run(ctx context.Context, frames <-chan audioio.Frame, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			a.process(frame)
		}
	}
}

// process classifies one frame and emits whatever events it causes.
func (a *Adapter) process(frame audioio.Frame) {
	mono := downmix(frame.Samples, frame.Channels)

	a.mu.Lock()
	if !a.active {
		a.mu.Unlock()
		return
	}

	speech, err := a.engine.IsSpeech(mono, frame.SampleRate)
	if err != nil {
		a.errors.Add(1)
		a.logger.Warn("engine error, treating frame as silence", "error", err)
		speech = false
	}

	var started, ended bool
	if speech {
		a.voiced++
		a.unvoiced = 0
	} else {
		a.unvoiced++
		a.voiced = 0
	}

	if !a.speaking && a.voiced >= a.cfg.StartFrames {
		a.speaking = true
		started = true
	} else if a.speaking && a.unvoiced >= a.cfg.EndFrames {
		a.speaking = false
		ended = true
		a.reset()
	}
	forward := a.speaking
	a.mu.Unlock()

	if started {
		a.utterances.Add(1)
		if a.cb.OnSpeechStart != nil {
			a.cb.OnSpeechStart()
		}
	}
	if forward {
		a.chunks.Add(1)
		if a.cb.OnAudioChunk != nil {
			a.cb.OnAudioChunk(Float32ToPCM16LE(mono))
		}
	}
	if ended && a.cb.OnSpeechEnd != nil {
		a.cb.OnSpeechEnd()
	}
}

// reset clears detection state. Caller holds mu.
func (a *Adapter) reset() {
	a.speaking = false
	a.voiced = 0
	a.unvoiced = 0
	a.engine.Reset()
}
