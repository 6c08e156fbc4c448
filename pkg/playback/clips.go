// Package playback plays reassembled interviewer clips through an audio sink
// and exposes the live playhead to the lipsync analyzer.
package playback

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// URLPrefix prefixes every clip object URL.
const URLPrefix = "clip:"

// ClipStore hands out transient object URLs for clips, the way a browser
// issues blob URLs. A URL is valid until revoked.
type ClipStore struct {
	mu    sync.Mutex
	clips map[string][]byte
}

// NewClipStore returns an empty store.
func NewClipStore() *ClipStore {
	return &ClipStore{clips: make(map[string][]byte)}
}

// Create stores data and returns its URL.
func (s *ClipStore) Create(data []byte) string {
	url := URLPrefix + uuid.NewString()
	s.mu.Lock()
	s.clips[url] = data
	s.mu.Unlock()
	return url
}

// Get returns the clip behind url.
func (s *ClipStore) Get(url string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.clips[url]
	return data, ok
}

// Revoke invalidates url. It reports whether the URL was live; revoking twice
// is harmless.
func (s *ClipStore) Revoke(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.clips[url]
	delete(s.clips, url)
	return ok
}

// RevokeAll invalidates every URL and returns how many were live.
func (s *ClipStore) RevokeAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.clips)
	s.clips = make(map[string][]byte)
	return n
}

// Len returns the number of live URLs.
func (s *ClipStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

// ID strips the URL prefix, giving the id used in HTTP routes.
func ID(url string) string {
	return strings.TrimPrefix(url, URLPrefix)
}

// URL rebuilds a clip URL from its id.
func URL(id string) string {
	return URLPrefix + id
}
