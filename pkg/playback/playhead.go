package playback

import "sync"

// Playhead keeps the most recently played samples. It implements lipsync.Tap.
type Playhead struct {
	rate int

	mu   sync.Mutex
	ring []float32
	pos  int
	n    int
}

// NewPlayhead returns a playhead holding up to capacity samples at rate Hz.
func NewPlayhead(rate, capacity int) *Playhead {
	return &Playhead{rate: rate, ring: make([]float32, capacity)}
}

// SampleRate returns the rate of the played audio.
func (p *Playhead) SampleRate() int { return p.rate }

// Push records samples as played.
func (p *Playhead) Push(samples []int16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range samples {
		p.ring[p.pos] = float32(s) / 32768
		p.pos = (p.pos + 1) % len(p.ring)
		if p.n < len(p.ring) {
			p.n++
		}
	}
}

// Window copies the latest samples into dst, oldest first.
func (p *Playhead) Window(dst []float32) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(dst)
	if n > p.n {
		n = p.n
	}
	start := (p.pos - n + len(p.ring)) % len(p.ring)
	for i := 0; i < n; i++ {
		dst[i] = p.ring[(start+i)%len(p.ring)]
	}
	return n
}
