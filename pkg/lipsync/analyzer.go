// Package lipsync derives a mouth-shape signal from whatever audio is playing
// and drives an idle blink, for an avatar renderer that polls every frame.
package lipsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("lipsync: analyzer closed")

	// ErrNoTap is returned when attaching a nil tap.
	ErrNoTap = errors.New("lipsync: nil tap")

	// ErrBadTap is returned for a tap without a usable sample rate.
	ErrBadTap = errors.New("lipsync: tap has no sample rate")
)

// Tap exposes the audio currently playing.
type Tap interface {
	// SampleRate returns the rate of the samples Window returns.
	SampleRate() int

	// Window copies the most recently played samples into dst, oldest first,
	// and returns how many were available.
	Window(dst []float32) int
}

// Config tunes the analyzer.
type Config struct {
	FrameRate    int           `yaml:"frame_rate" json:"frame_rate"`       // analysis frames per second
	WindowSize   int           `yaml:"window_size" json:"window_size"`     // FFT size in samples
	Smoothing    float64       `yaml:"smoothing" json:"smoothing"`         // lerp factor toward the target per frame
	SilenceLevel float64       `yaml:"silence_level" json:"silence_level"` // RMS below this is silence
	LoudLevel    float64       `yaml:"loud_level" json:"loud_level"`       // RMS mapped to full weight
	BlinkMin     time.Duration `yaml:"blink_min" json:"blink_min"`
	BlinkMax     time.Duration `yaml:"blink_max" json:"blink_max"`
	BlinkHold    time.Duration `yaml:"blink_hold" json:"blink_hold"`
	Seed         uint64        `yaml:"seed" json:"seed"` // 0 picks a random seed
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{
		FrameRate:    60,
		WindowSize:   1024,
		Smoothing:    0.2,
		SilenceLevel: 0.01,
		LoudLevel:    0.25,
		BlinkMin:     2 * time.Second,
		BlinkMax:     7 * time.Second,
		BlinkHold:    200 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", c.FrameRate)
	}
	if c.WindowSize < 64 || c.WindowSize&(c.WindowSize-1) != 0 {
		return fmt.Errorf("window_size must be a power of two >= 64, got %d", c.WindowSize)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0, 1], got %v", c.Smoothing)
	}
	if c.BlinkMin <= 0 || c.BlinkMax < c.BlinkMin {
		return fmt.Errorf("blink interval [%v, %v] is invalid", c.BlinkMin, c.BlinkMax)
	}
	return nil
}

// Sample is what the renderer reads each frame.
type Sample struct {
	Viseme Viseme  `json:"viseme"`
	Weight float64 `json:"weight"`
	Blink  bool    `json:"blink"`
}

// Stats reports analyzer counters.
type Stats struct {
	Frames    int64 `json:"frames"`
	Attached  bool  `json:"attached"`
	Suspended bool  `json:"suspended"`
	Running   bool  `json:"running"`
}

// Analyzer is shared by every session of the process. The FFT plan and
// window are built once in New.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger

	fft    *fourier.FFT
	hann   []float64
	buf    []float32
	seq    []float64
	coeffs []complex128

	mu         sync.Mutex
	tap        Tap
	suspended  bool
	closed     bool
	task       *Task
	weights    [numVisemes]float64
	current    Sample
	rng        *rand.Rand
	nextBlink  time.Time
	blinkUntil time.Time
	frames     int64
}

// New builds an analyzer. It starts suspended: call Resume from a user gesture.
func New(cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	hann := make([]float64, cfg.WindowSize)
	for i := range hann {
		hann[i] = 1
	}
	window.Hann(hann)

	a := &Analyzer{
		cfg:       cfg,
		logger:    logger.With("component", "lipsync"),
		fft:       fourier.NewFFT(cfg.WindowSize),
		hann:      hann,
		buf:       make([]float32, cfg.WindowSize),
		seq:       make([]float64, cfg.WindowSize),
		coeffs:    make([]complex128, cfg.WindowSize/2+1),
		suspended: true,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	a.weights[Sil] = 1
	a.current = Sample{Viseme: Sil, Weight: 1}
	return a, nil
}

// Start runs the per-frame task. Calling Start on a running analyzer is a no-op.
func (a *Analyzer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.task != nil {
		return nil
	}
	interval := time.Second / time.Duration(a.cfg.FrameRate)
	a.task = Every(ctx, interval, a.tick)
	a.logger.Info("lipsync started", "frame_rate", a.cfg.FrameRate, "window", a.cfg.WindowSize)
	return nil
}

// Close stops the frame task and detaches any tap. Safe to call twice.
func (a *Analyzer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	task := a.task
	a.task = nil
	a.tap = nil
	a.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
	return nil
}

// Attach analyzes tap until Detach or the next Attach.
func (a *Analyzer) Attach(tap Tap) error {
	if tap == nil {
		return ErrNoTap
	}
	if tap.SampleRate() <= 0 {
		return ErrBadTap
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.tap = tap
	return nil
}

// Detach stops analyzing; the mouth relaxes toward silence.
func (a *Analyzer) Detach() {
	a.mu.Lock()
	a.tap = nil
	a.mu.Unlock()
}

// Resume enables analysis. Call only in response to a user gesture.
func (a *Analyzer) Resume() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.suspended {
		a.suspended = false
		a.logger.Info("lipsync resumed")
	}
	return nil
}

// Suspend disables analysis until the next Resume.
func (a *Analyzer) Suspend() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.suspended = true
}

// Current returns the latest sample.
func (a *Analyzer) Current() Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Blink reports whether the eyes are closed right now.
func (a *Analyzer) Blink() bool {
	return a.Current().Blink
}

// Stats returns analyzer counters.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		Frames:    a.frames,
		Attached:  a.tap != nil,
		Suspended: a.suspended,
		Running:   a.task != nil,
	}
}

// tick advances one animation frame.
func (a *Analyzer) tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frames++

	target, amount := Sil, 1.0
	if a.tap != nil && !a.suspended {
		target, amount = a.analyze(a.tap)
	}

	for v := range a.weights {
		goal := 0.0
		if Viseme(v) == target {
			goal = amount
		}
		a.weights[v] = clamp(lerp(a.weights[v], goal, a.cfg.Smoothing), 0, 1)
	}

	best := Sil
	for v := range a.weights {
		if a.weights[v] > a.weights[best] {
			best = Viseme(v)
		}
	}

	a.current = Sample{
		Viseme: best,
		Weight: a.weights[best],
		Blink:  a.blink(now),
	}
}

// analyze picks the target viseme and its weight from the tap's latest window.
// Caller holds mu.
func (a *Analyzer) analyze(tap Tap) (Viseme, float64) {
	n := tap.Window(a.buf)
	if n < len(a.buf)/4 {
		return Sil, 1
	}

	var sum float64
	for i := range a.seq {
		if i < n {
			a.seq[i] = float64(a.buf[i])
		} else {
			a.seq[i] = 0
		}
		sum += a.seq[i] * a.seq[i]
	}
	level := math.Sqrt(sum / float64(n))
	if level < a.cfg.SilenceLevel {
		return Sil, 1
	}

	for i := range a.seq {
		a.seq[i] *= a.hann[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	rate := float64(tap.SampleRate())
	var profile [numBands]float64
	var total float64
	for i, c := range a.coeffs {
		hz := float64(i) * rate / float64(a.cfg.WindowSize)
		band := bandOf(hz)
		if band < 0 {
			continue
		}
		p := real(c)*real(c) + imag(c)*imag(c)
		profile[band] += p
		total += p
	}
	if total == 0 {
		return Sil, 1
	}
	for b := range profile {
		profile[b] /= total
	}

	amount := clamp((level-a.cfg.SilenceLevel)/(a.cfg.LoudLevel-a.cfg.SilenceLevel), 0.2, 1)
	return closest(profile), amount
}

// blink updates the blink schedule. Caller holds mu.
func (a *Analyzer) blink(now time.Time) bool {
	if a.nextBlink.IsZero() {
		a.nextBlink = now.Add(a.blinkInterval())
	}
	if !now.Before(a.nextBlink) {
		a.blinkUntil = now.Add(a.cfg.BlinkHold)
		a.nextBlink = now.Add(a.blinkInterval())
	}
	return now.Before(a.blinkUntil)
}

func (a *Analyzer) blinkInterval() time.Duration {
	span := a.cfg.BlinkMax - a.cfg.BlinkMin
	if span <= 0 {
		return a.cfg.BlinkMin
	}
	return a.cfg.BlinkMin + time.Duration(a.rng.Int64N(int64(span)))
}

func bandOf(hz float64) int {
	if hz < bandEdges[0] {
		return -1
	}
	for b := 0; b < numBands; b++ {
		if hz < bandEdges[b+1] {
			return b
		}
	}
	return -1
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
