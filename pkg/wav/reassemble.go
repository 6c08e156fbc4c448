package wav

import (
	"context"
	"encoding/binary"
	"sync"
)

// Reassemble concatenates the WAV fragments of one response into one clip.
// The first fragment's header is kept and its size fields are patched:
// data size = total payload, RIFF size = 36 + data size. Every fragment after
// the first contributes its bytes after the header.
//
// No fragments yields nil. A single fragment is returned unchanged. A fragment
// shorter than the header fails with a *DecodeError and nothing is patched.
func Reassemble(fragments [][]byte) ([]byte, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	total := 0
	for i, f := range fragments {
		if len(f) < HeaderSize {
			return nil, &DecodeError{Index: i, Len: len(f), Err: ErrShortFragment}
		}
		total += len(f) - HeaderSize
	}

	if len(fragments) == 1 {
		return fragments[0], nil
	}

	out := make([]byte, HeaderSize+total)
	copy(out, fragments[0][:HeaderSize])
	off := HeaderSize
	for _, f := range fragments {
		off += copy(out[off:], f[HeaderSize:])
	}

	binary.LittleEndian.PutUint32(out[dataSizeOffset:], uint32(total))
	binary.LittleEndian.PutUint32(out[riffSizeOffset:], uint32(36+total))
	return out, nil
}

// Reassembler buffers the fragments of one response batch in arrival order.
// It is safe for concurrent use.
type Reassembler struct {
	mu        sync.Mutex
	fragments [][]byte
	bytes     int
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Enqueue appends a fragment. The slice is retained; callers must not reuse it.
func (r *Reassembler) Enqueue(fragment []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments = append(r.fragments, fragment)
	r.bytes += len(fragment)
}

// Len returns the number of buffered fragments.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fragments)
}

// Bytes returns the number of buffered bytes.
func (r *Reassembler) Bytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bytes
}

// Flush takes every buffered fragment and reassembles them. The buffer is
// emptied even when reassembly fails, so a bad batch is dropped whole.
func (r *Reassembler) Flush(ctx context.Context) ([]byte, int, error) {
	r.mu.Lock()
	batch := r.fragments
	r.fragments = nil
	r.bytes = 0
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, len(batch), err
	}
	clip, err := Reassemble(batch)
	return clip, len(batch), err
}

// Reset discards buffered fragments.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fragments = nil
	r.bytes = 0
}
