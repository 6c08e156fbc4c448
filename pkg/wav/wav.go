// Package wav reads and writes canonical 44-byte-header PCM WAV buffers and
// stitches a response's WAV fragments into one playable clip.
package wav

import (
	"encoding/binary"
	"time"
)

// HeaderSize is the size of a canonical PCM WAV header.
const HeaderSize = 44

// Offsets of the size fields patched during reassembly.
const (
	riffSizeOffset = 4
	dataSizeOffset = 40
)

// Header describes a canonical PCM WAV header.
type Header struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	RIFFSize      uint32
	DataSize      uint32
}

// Duration returns the playing time of DataSize bytes.
func (h Header) Duration() time.Duration {
	frameBytes := h.Channels * h.BitsPerSample / 8
	if frameBytes == 0 || h.SampleRate == 0 {
		return 0
	}
	frames := int64(h.DataSize) / int64(frameBytes)
	return time.Duration(frames) * time.Second / time.Duration(h.SampleRate)
}

// ParseHeader reads the 44-byte header at the start of data.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, &DecodeError{Index: -1, Len: len(data), Err: ErrShortFragment}
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return Header{}, &DecodeError{Index: -1, Len: len(data), Err: ErrNotWAV}
	}

	le := binary.LittleEndian
	return Header{
		RIFFSize:      le.Uint32(data[4:8]),
		AudioFormat:   le.Uint16(data[20:22]),
		Channels:      int(le.Uint16(data[22:24])),
		SampleRate:    int(le.Uint32(data[24:28])),
		BitsPerSample: int(le.Uint16(data[34:36])),
		DataSize:      le.Uint32(data[40:44]),
	}, nil
}

// Encode wraps PCM16 samples in a canonical WAV header.
func Encode(samples []int16, sampleRate, channels int) []byte {
	dataLen := len(samples) * 2
	out := make([]byte, HeaderSize+dataLen)
	le := binary.LittleEndian

	copy(out[0:4], "RIFF")
	le.PutUint32(out[4:8], uint32(36+dataLen))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	le.PutUint32(out[16:20], 16)
	le.PutUint16(out[20:22], 1) // PCM
	le.PutUint16(out[22:24], uint16(channels))
	le.PutUint32(out[24:28], uint32(sampleRate))
	le.PutUint32(out[28:32], uint32(sampleRate*channels*2))
	le.PutUint16(out[32:34], uint16(channels*2))
	le.PutUint16(out[34:36], 16)

	copy(out[36:40], "data")
	le.PutUint32(out[40:44], uint32(dataLen))

	for i, s := range samples {
		le.PutUint16(out[HeaderSize+i*2:], uint16(s))
	}
	return out
}

// Decode parses a PCM16 WAV buffer into its header and samples. A data size
// field larger than the buffer is clamped to what is present.
func Decode(data []byte) (Header, []int16, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if h.AudioFormat != 1 || h.BitsPerSample != 16 || h.Channels < 1 || h.SampleRate <= 0 {
		return Header{}, nil, &DecodeError{Index: -1, Len: len(data), Err: ErrUnsupportedFormat}
	}

	payload := data[HeaderSize:]
	if int(h.DataSize) < len(payload) {
		payload = payload[:h.DataSize]
	}
	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	h.DataSize = uint32(len(samples) * 2)
	return h, samples, nil
}
