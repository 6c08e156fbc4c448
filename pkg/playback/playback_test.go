package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/audioio"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/wav"
)

type fakeAnalyzer struct {
	mu        sync.Mutex
	attachErr error
	taps      []lipsync.Tap
	detached  int
}

func (f *fakeAnalyzer) Attach(tap lipsync.Tap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attachErr != nil {
		return f.attachErr
	}
	f.taps = append(f.taps, tap)
	return nil
}

func (f *fakeAnalyzer) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached++
}

type ended struct {
	url string
	err error
}

type endRecorder struct {
	mu     sync.Mutex
	events []ended
}

func (r *endRecorder) record(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ended{url, err})
}

func (r *endRecorder) all() []ended {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ended(nil), r.events...)
}

func tone(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((i % 40) * 500)
	}
	return out
}

func newTestController(t *testing.T, an Analyzer) (*Controller, *audioio.MockSink, *endRecorder) {
	t.Helper()
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	cfg := DefaultConfig()
	cfg.Realtime = false
	c, err := NewController(cfg, sink, NewClipStore(), an, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	rec := &endRecorder{}
	c.OnEnded = rec.record
	return c, sink, rec
}

func TestClipStore(t *testing.T) {
	s := NewClipStore()
	a := s.Create([]byte("a"))
	b := s.Create([]byte("b"))
	if a == b {
		t.Fatal("URLs must be unique")
	}
	if ID(a) == a || URL(ID(a)) != a {
		t.Errorf("id round trip failed for %s", a)
	}
	if data, ok := s.Get(a); !ok || string(data) != "a" {
		t.Errorf("Get(a) = %q, %v", data, ok)
	}

	if !s.Revoke(a) {
		t.Error("first revoke should report a live URL")
	}
	if s.Revoke(a) {
		t.Error("second revoke should be a no-op")
	}
	if _, ok := s.Get(a); ok {
		t.Error("revoked URL still resolves")
	}
	if n := s.RevokeAll(); n != 1 || s.Len() != 0 {
		t.Errorf("RevokeAll = %d, Len = %d", n, s.Len())
	}
}

func TestPlayhead_Window(t *testing.T) {
	p := NewPlayhead(16000, 4)
	dst := make([]float32, 8)
	if n := p.Window(dst); n != 0 {
		t.Fatalf("empty playhead returned %d samples", n)
	}

	p.Push([]int16{16384, -16384})
	if n := p.Window(dst); n != 2 || dst[0] != 0.5 || dst[1] != -0.5 {
		t.Errorf("got %d %v", n, dst[:2])
	}

	// Wraps and keeps the newest samples, oldest first.
	p.Push([]int16{0, 8192, 16384, -8192})
	n := p.Window(dst)
	want := []float32{0, 0.25, 0.5, -0.25}
	if n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestController_Play(t *testing.T) {
	an := &fakeAnalyzer{}
	c, sink, rec := newTestController(t, an)

	samples := tone(16000)
	url := c.Clips().Create(wav.Encode(samples, 16000, 1))

	if err := c.Play(context.Background(), url); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if got := sink.Written(); len(got) != len(samples) {
		t.Errorf("wrote %d samples, want %d", len(got), len(samples))
	}
	if st := sink.Stats(); st.ChunksWritten != 50 {
		t.Errorf("chunks = %d, want 50 chunks of 20ms", st.ChunksWritten)
	}

	events := rec.all()
	if len(events) != 1 || events[0].url != url || events[0].err != nil {
		t.Fatalf("completions = %+v", events)
	}
	if _, ok := c.Clips().Get(url); ok {
		t.Error("URL not revoked after playback")
	}
	if len(an.taps) != 1 || an.detached != 1 {
		t.Errorf("attach/detach = %d/%d", len(an.taps), an.detached)
	}
	if an.taps[0].SampleRate() != 16000 {
		t.Errorf("tap rate = %d", an.taps[0].SampleRate())
	}
	if st := c.Stats(); st.Played != 1 || st.Playing {
		t.Errorf("stats = %+v", st)
	}
}

func TestController_ConvertsFormat(t *testing.T) {
	c, sink, _ := newTestController(t, nil)

	// Stereo 32 kHz becomes mono 16 kHz.
	stereo := make([]int16, 3200*2)
	url := c.Clips().Create(wav.Encode(stereo, 32000, 2))
	if err := c.Play(context.Background(), url); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := len(sink.Written()); got != 1600 {
		t.Errorf("wrote %d samples, want 1600", got)
	}
}

func TestController_AttachFailureStillPlays(t *testing.T) {
	an := &fakeAnalyzer{attachErr: errors.New("no audio context")}
	c, sink, rec := newTestController(t, an)

	url := c.Clips().Create(wav.Encode(tone(800), 16000, 1))
	if err := c.Play(context.Background(), url); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(sink.Written()) != 800 {
		t.Error("clip was not played")
	}
	if an.detached != 0 {
		t.Error("detach without a successful attach")
	}
	if len(rec.all()) != 1 {
		t.Error("expected one completion")
	}
}

func TestController_Failures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(c *Controller, sink *audioio.MockSink) string
		op     string
		target error
	}{
		{
			name:   "unknown url",
			setup:  func(c *Controller, _ *audioio.MockSink) string { return "clip:missing" },
			op:     "load",
			target: ErrClipNotFound,
		},
		{
			name: "not a wav",
			setup: func(c *Controller, _ *audioio.MockSink) string {
				return c.Clips().Create([]byte("definitely not a wav file, just some text bytes"))
			},
			op:     "decode",
			target: wav.ErrNotWAV,
		},
		{
			name: "sink rejects",
			setup: func(c *Controller, sink *audioio.MockSink) string {
				sink.FailWrites(audioio.ErrBackendUnavailable)
				return c.Clips().Create(wav.Encode(tone(800), 16000, 1))
			},
			op:     "write",
			target: audioio.ErrBackendUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sink, rec := newTestController(t, nil)
			url := tt.setup(c, sink)

			err := c.Play(context.Background(), url)
			var pe *PlaybackError
			if !errors.As(err, &pe) {
				t.Fatalf("expected PlaybackError, got %v", err)
			}
			if pe.Op != tt.op || !errors.Is(err, tt.target) {
				t.Errorf("got op %q err %v", pe.Op, err)
			}

			events := rec.all()
			if len(events) != 1 || events[0].err == nil {
				t.Errorf("completions = %+v", events)
			}
			if c.Clips().Len() != 0 {
				t.Error("failed clip URL not revoked")
			}
			if st := c.Stats(); st.Failed != 1 {
				t.Errorf("failed = %d", st.Failed)
			}
		})
	}
}

func TestController_Stop(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	c, err := NewController(DefaultConfig(), sink, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewController failed: %v", err)
	}
	rec := &endRecorder{}
	c.OnEnded = rec.record

	// Ten seconds of audio at real-time pace.
	url := c.Clips().Create(wav.Encode(tone(160000), 16000, 1))
	done := make(chan error, 1)
	go func() { done <- c.Play(context.Background(), url) }()

	deadline := time.Now().Add(time.Second)
	for !c.Playing() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Play returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop")
	}

	if len(rec.all()) != 1 {
		t.Errorf("completions = %d, want 1", len(rec.all()))
	}
	if st := c.Stats(); st.Interrupted != 1 || st.Playing {
		t.Errorf("stats = %+v", st)
	}
	if len(sink.Written()) >= 160000 {
		t.Error("whole clip written despite Stop")
	}
	c.Stop()
}

func TestController_Busy(t *testing.T) {
	sink := audioio.NewMockSink(audioio.DefaultConfig(), nil)
	c, _ := NewController(DefaultConfig(), sink, nil, nil, nil)
	rec := &endRecorder{}
	c.OnEnded = rec.record

	first := c.Clips().Create(wav.Encode(tone(160000), 16000, 1))
	go c.Play(context.Background(), first)
	deadline := time.Now().Add(time.Second)
	for !c.Playing() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	second := c.Clips().Create(wav.Encode(tone(800), 16000, 1))
	if err := c.Play(context.Background(), second); !errors.Is(err, ErrBusy) {
		t.Errorf("second Play: got %v, want ErrBusy", err)
	}
	if _, ok := c.Clips().Get(second); ok {
		t.Error("rejected clip URL not revoked")
	}
	c.Stop()
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.ChunkDuration = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero chunk duration")
	}
}
