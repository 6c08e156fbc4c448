package audioio

import "encoding/binary"

// Resample converts mono PCM16 between sample rates by linear
// interpolation. Good enough for speech; it does not low-pass before
// decimating.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	out := make([]int16, len(samples)*toRate/fromRate)
	last := len(samples) - 1
	for i := range out {
		// Source position i*from/to as an index and a remainder over toRate.
		num := i * fromRate
		idx, rem := num/toRate, num%toRate
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		a, b := int(samples[idx]), int(samples[idx+1])
		out[i] = int16(a + (b-a)*rem/toRate)
	}
	return out
}

// DownmixToMono averages interleaved channels.
func DownmixToMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		sum := 0
		for _, s := range samples[i*channels : (i+1)*channels] {
			sum += int(s)
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

// BytesToSamples decodes little-endian PCM16, ignoring a trailing odd byte.
func BytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

// SamplesToBytes encodes samples as little-endian PCM16.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		data = binary.LittleEndian.AppendUint16(data, uint16(s))
	}
	return data
}
