package mockinterviewer

import (
	"math"
	"time"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/wav"
)

// synthesize renders d of a voiced tone, amplitude-modulated at a syllable
// rate so the avatar's mouth has something to follow.
func synthesize(d time.Duration, rate int, hz float64) []int16 {
	n := int(d.Seconds() * float64(rate))
	out := make([]int16, n)
	for i := range out {
		t := float64(i) / float64(rate)
		env := 0.5 + 0.5*math.Sin(2*math.Pi*4*t)
		v := 0.6*math.Sin(2*math.Pi*hz*t) + 0.25*math.Sin(2*math.Pi*3*hz*t)
		out[i] = int16(0.4 * env * v * 32767)
	}
	return out
}

// split cuts samples into n WAV fragments of near-equal length.
func split(samples []int16, n, rate int) [][]byte {
	if n > len(samples) {
		n = max(len(samples), 1)
	}
	frags := make([][]byte, 0, n)
	size := (len(samples) + n - 1) / n
	for off := 0; off < len(samples) || len(frags) == 0; off += size {
		end := min(off+size, len(samples))
		frags = append(frags, wav.Encode(samples[off:end], rate, 1))
	}
	return frags
}
