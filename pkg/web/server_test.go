package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/playback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/turn"
)

type fakeAvatar struct {
	mu      sync.Mutex
	sample  lipsync.Sample
	resumed int
	err     error
}

func (a *fakeAvatar) Current() lipsync.Sample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sample
}

func (a *fakeAvatar) Resume() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resumed++
	return a.err
}

type fakeSession struct {
	mu         sync.Mutex
	finished   int
	terminated int
}

func (f *fakeSession) Stats() turn.Stats {
	return turn.Stats{State: turn.Listening, Status: "Listening…", Turns: 2, ForcedEnds: 1}
}

func (f *fakeSession) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
}

func (f *fakeSession) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
}

func newTestServer(t *testing.T, avatar Avatar) (*Server, *playback.ClipStore) {
	t.Helper()
	clips := playback.NewClipStore()
	s, err := NewServer(DefaultConfig(), avatar, clips, nil)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s, clips
}

func do(t *testing.T, s *Server, method, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(method, path, nil))
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, body
}

func TestServer_Avatar(t *testing.T) {
	avatar := &fakeAvatar{sample: lipsync.Sample{Viseme: lipsync.AA, Weight: 0.7, Blink: true}}
	s, _ := newTestServer(t, avatar)

	resp, body := do(t, s, http.MethodGet, "/api/avatar")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var got protocol.AvatarData
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := protocol.AvatarData{Viseme: int(lipsync.AA), Morph: "viseme_aa", Weight: 0.7, Blink: true}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// Without an analyzer the mouth is at rest.
	s2, _ := newTestServer(t, nil)
	_, body = do(t, s2, http.MethodGet, "/api/avatar")
	json.Unmarshal(body, &got)
	if got.Morph != "viseme_sil" || got.Weight != 1 {
		t.Errorf("no analyzer: %+v", got)
	}
}

func TestServer_Status(t *testing.T) {
	s, _ := newTestServer(t, nil)

	_, body := do(t, s, http.MethodGet, "/api/status")
	var st protocol.StatusData
	json.Unmarshal(body, &st)
	if st.State != "idle" {
		t.Errorf("idle status = %+v", st)
	}

	s.SetSession(&fakeSession{})
	_, body = do(t, s, http.MethodGet, "/api/status")
	json.Unmarshal(body, &st)
	want := protocol.StatusData{Status: "Listening…", State: "listening", Turns: 2, ForcedEnds: 1}
	if st != want {
		t.Errorf("got %+v, want %+v", st, want)
	}

	s.PublishStatus(turn.Stats{State: turn.Ended, Status: "Interview ended."})
	_, body = do(t, s, http.MethodGet, "/api/status")
	json.Unmarshal(body, &st)
	if st.State != "ended" || st.Status != "Interview ended." {
		t.Errorf("after publish: %+v", st)
	}
}

func TestServer_StatusPush(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.statusHub.Run(ctx)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go s.App().Listener(ln)
	t.Cleanup(func() { s.App().Shutdown() })

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/status", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	read := func() protocol.Message {
		t.Helper()
		var msg protocol.Message
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	first := read()
	var st protocol.StatusData
	if first.Type != protocol.TypeStatus || first.ParseData(&st) != nil || st.State != "idle" {
		t.Errorf("first frame = %s %s", first.Type, first.Data)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.statusHub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.PublishNotice(turn.Notice{Level: turn.LevelInfo, Message: "Feedback is on its way."})

	next := read()
	var n protocol.NotifyData
	if next.Type != protocol.TypeNotify || next.ParseData(&n) != nil || n.Message != "Feedback is on its way." {
		t.Errorf("second frame = %s %s", next.Type, next.Data)
	}

	_, body := do(t, s, http.MethodGet, "/api/health")
	var health struct {
		StatusClients int `json:"status_clients"`
	}
	json.Unmarshal(body, &health)
	if health.StatusClients != 1 {
		t.Errorf("health = %s", body)
	}
}

func TestServer_Notices(t *testing.T) {
	s, _ := newTestServer(t, nil)
	_, body := do(t, s, http.MethodGet, "/api/notices")
	if string(body) != "[]" {
		t.Errorf("empty notices = %s", body)
	}

	for i := 0; i < maxNotices+5; i++ {
		s.PublishNotice(turn.Notice{Level: turn.LevelInfo, Message: "n"})
	}
	s.PublishNotice(turn.Notice{Level: turn.LevelError, Message: "feedback failed"})

	_, body = do(t, s, http.MethodGet, "/api/notices")
	var got []protocol.NotifyData
	json.Unmarshal(body, &got)
	if len(got) != maxNotices {
		t.Fatalf("kept %d notices, want %d", len(got), maxNotices)
	}
	if last := got[len(got)-1]; last.Level != "error" || last.Message != "feedback failed" {
		t.Errorf("last notice = %+v", last)
	}
}

func TestServer_Gesture(t *testing.T) {
	avatar := &fakeAvatar{}
	s, _ := newTestServer(t, avatar)
	if resp, _ := do(t, s, http.MethodPost, "/api/gesture"); resp.StatusCode != http.StatusOK {
		t.Errorf("status %d", resp.StatusCode)
	}
	if avatar.resumed != 1 {
		t.Errorf("resumed %d times", avatar.resumed)
	}

	avatar.err = lipsync.ErrClosed
	if resp, _ := do(t, s, http.MethodPost, "/api/gesture"); resp.StatusCode != http.StatusConflict {
		t.Errorf("closed analyzer: status %d", resp.StatusCode)
	}

	s2, _ := newTestServer(t, nil)
	if resp, _ := do(t, s2, http.MethodPost, "/api/gesture"); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no analyzer: status %d", resp.StatusCode)
	}
}

func TestServer_SessionControls(t *testing.T) {
	s, _ := newTestServer(t, nil)
	if resp, _ := do(t, s, http.MethodPost, "/api/finish"); resp.StatusCode != http.StatusConflict {
		t.Errorf("finish without session: status %d", resp.StatusCode)
	}

	sess := &fakeSession{}
	s.SetSession(sess)
	if resp, _ := do(t, s, http.MethodPost, "/api/finish"); resp.StatusCode != http.StatusAccepted {
		t.Errorf("finish: status %d", resp.StatusCode)
	}
	if resp, _ := do(t, s, http.MethodPost, "/api/end"); resp.StatusCode != http.StatusAccepted {
		t.Errorf("end: status %d", resp.StatusCode)
	}
	if sess.finished != 1 || sess.terminated != 1 {
		t.Errorf("finish/terminate = %d/%d", sess.finished, sess.terminated)
	}

	s.SetSession(nil)
	if resp, _ := do(t, s, http.MethodPost, "/api/end"); resp.StatusCode != http.StatusConflict {
		t.Errorf("end after detach: status %d", resp.StatusCode)
	}
}

func TestServer_Clips(t *testing.T) {
	s, clips := newTestServer(t, nil)
	url := clips.Create([]byte("RIFF-clip"))

	resp, body := do(t, s, http.MethodGet, "/clips/"+playback.ID(url))
	if resp.StatusCode != http.StatusOK || string(body) != "RIFF-clip" {
		t.Fatalf("status %d body %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("content type %q", ct)
	}

	clips.Revoke(url)
	if resp, _ := do(t, s, http.MethodGet, "/clips/"+playback.ID(url)); resp.StatusCode != http.StatusNotFound {
		t.Errorf("revoked clip: status %d", resp.StatusCode)
	}
}

func TestServer_WebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, path := range []string{"/ws/status", "/ws/avatar"} {
		if resp, _ := do(t, s, http.MethodGet, path); resp.StatusCode != http.StatusUpgradeRequired {
			t.Errorf("%s: status %d", path, resp.StatusCode)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg.Addr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty addr")
	}
}
