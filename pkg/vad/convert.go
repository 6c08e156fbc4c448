package vad

import "math"

// Float32ToInt16 converts a normalized sample to PCM16: round(clamp(x,-1,1) * 32767).
func Float32ToInt16(x float32) int16 {
	v := float64(x)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * 32767))
}

// Float32ToPCM16LE converts a frame of normalized samples to little-endian PCM16 bytes.
func Float32ToPCM16LE(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, x := range frame {
		s := Float32ToInt16(x)
		out[i*2] = byte(s)
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

// rms returns the root-mean-square level of a frame.
func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// downmix averages interleaved channels into a mono frame.
func downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	mono := make([]float32, len(samples)/channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
