package turn

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

// machine applies events and keeps every action produced.
type machine struct {
	s    Snapshot
	acts []Action
}

func newMachine() *machine {
	return &machine{s: Initial()}
}

func (m *machine) apply(evs ...Event) []Action {
	var out []Action
	for _, ev := range evs {
		var acts []Action
		m.s, acts = Transition(m.s, ev)
		out = append(out, acts...)
	}
	m.acts = append(m.acts, out...)
	return out
}

// listening drives a fresh machine into a user turn with n frames sent.
func listening(n int) *machine {
	m := newMachine()
	m.apply(SocketOpened{}, SpeechStart{})
	for i := 0; i < n; i++ {
		m.apply(AudioFrame{PCM: []byte{0, 0}})
	}
	return m
}

func ends(acts []Action) []protocol.UserAudioEnd {
	var out []protocol.UserAudioEnd
	for _, a := range acts {
		if e, ok := a.(SendEnd); ok {
			out = append(out, e.Msg)
		}
	}
	return out
}

func count[T Action](acts []Action) int {
	n := 0
	for _, a := range acts {
		if _, ok := a.(T); ok {
			n++
		}
	}
	return n
}

func names(evs []Event) string {
	var b strings.Builder
	for i, ev := range evs {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%T", ev)
	}
	return b.String()
}

func TestTransition_Connect(t *testing.T) {
	m := newMachine()
	if m.s.Status != "Connecting…" {
		t.Errorf("initial status = %q", m.s.Status)
	}
	acts := m.apply(SocketOpened{})
	if m.s.State != Ready || count[StartVAD](acts) != 1 {
		t.Fatalf("state %s, actions %v", m.s.State, acts)
	}

	// A reconnect does not restart VAD.
	acts = m.apply(SocketReconnecting{Attempt: 1}, SocketOpened{})
	if count[StartVAD](acts) != 0 || m.s.State != Ready {
		t.Errorf("reconnect: state %s, actions %v", m.s.State, acts)
	}
}

func TestTransition_NaturalEnd(t *testing.T) {
	m := listening(5)
	if m.s.State != Listening || m.s.Frames != 5 {
		t.Fatalf("state %s frames %d", m.s.State, m.s.Frames)
	}
	if n := count[SendPCM](m.acts); n != 5 {
		t.Errorf("sent %d frames, want 5", n)
	}

	acts := m.apply(SpeechEnd{})
	got := ends(acts)
	if len(got) != 1 || got[0].Forced || got[0].Final {
		t.Fatalf("ends = %+v, want one unforced end", got)
	}
	if m.s.State != Thinking || count[StopVAD](acts) != 1 || count[CancelSilence](acts) != 1 {
		t.Errorf("state %s, actions %v", m.s.State, acts)
	}
	if m.s.ForcedEnds != 0 || m.s.EndsSent != 1 {
		t.Errorf("counters: %+v", m.s)
	}
}

func TestTransition_SilenceNet(t *testing.T) {
	m := listening(3)
	acts := m.apply(SilenceTimeout{Gen: m.s.SilenceGen})
	got := ends(acts)
	if len(got) != 1 || !got[0].Forced {
		t.Fatalf("ends = %+v, want one forced end", got)
	}
	if m.s.ForcedEnds != 1 || m.s.State != Thinking {
		t.Errorf("forced ends %d, state %s", m.s.ForcedEnds, m.s.State)
	}

	// The VAD's own speech end arriving late is absorbed.
	if got := ends(m.apply(SpeechEnd{})); len(got) != 0 {
		t.Errorf("late speech end sent %+v", got)
	}
}

func TestTransition_StaleSilenceTimer(t *testing.T) {
	m := listening(3)
	if acts := m.apply(SilenceTimeout{Gen: m.s.SilenceGen - 1}); len(acts) != 0 {
		t.Errorf("stale timer produced %v", acts)
	}
	if m.s.State != Listening {
		t.Errorf("state = %s", m.s.State)
	}

	// Ready without frames: the net is never armed.
	r := newMachine()
	r.apply(SocketOpened{})
	if acts := r.apply(SilenceTimeout{Gen: 0}); len(ends(acts)) != 0 {
		t.Error("silence net fired before any audio")
	}
}

func TestTransition_OneEndPerTurn(t *testing.T) {
	triggers := func(gen uint64) []Event {
		return []Event{SpeechEnd{}, SilenceTimeout{Gen: gen}, Finish{}, Terminate{}}
	}

	// Every order of the end triggers sends exactly one end.
	var perms func(evs []Event) [][]Event
	perms = func(evs []Event) [][]Event {
		if len(evs) <= 1 {
			return [][]Event{evs}
		}
		var out [][]Event
		for i := range evs {
			rest := append(append([]Event{}, evs[:i]...), evs[i+1:]...)
			for _, p := range perms(rest) {
				out = append(out, append([]Event{evs[i]}, p...))
			}
		}
		return out
	}

	for _, order := range perms(triggers(0)) {
		m := listening(4)
		gen := m.s.SilenceGen
		for i, ev := range order {
			if st, ok := ev.(SilenceTimeout); ok {
				st.Gen = gen
				order[i] = st
			}
		}
		m.apply(order...)
		if got := ends(m.acts); len(got) != 1 {
			t.Errorf("order %s: %d ends sent, want 1", names(order), len(got))
		}
		if m.s.EndsSent != 1 {
			t.Errorf("order %s: EndsSent = %d", names(order), m.s.EndsSent)
		}
	}
}

func TestTransition_Finish(t *testing.T) {
	m := listening(2)
	got := ends(m.apply(Finish{}))
	if len(got) != 1 || !got[0].Forced {
		t.Fatalf("ends = %+v", got)
	}
	if m.s.ForcedEnds != 0 {
		t.Error("explicit finish counted as a silence forced end")
	}
	if len(ends(m.apply(Finish{}))) != 0 {
		t.Error("second finish sent another end")
	}
}

func TestTransition_ReplyBatching(t *testing.T) {
	m := listening(5)
	m.apply(SpeechEnd{})

	var acts []Action
	for i := 0; i < 3; i++ {
		acts = append(acts, m.apply(Fragment{Data: []byte{byte(i)}})...)
	}
	if count[Buffer](acts) != 3 || count[ArmSettle](acts) != 3 || m.s.Pending != 3 {
		t.Fatalf("buffering: pending %d, actions %v", m.s.Pending, acts)
	}

	// Only the newest settle timer counts.
	if acts := m.apply(SettleTimeout{Gen: m.s.SettleGen - 1}); count[Reassemble](acts) != 0 {
		t.Error("stale settle timer flushed the batch")
	}
	if acts := m.apply(SettleTimeout{Gen: m.s.SettleGen}); count[Reassemble](acts) != 1 {
		t.Fatal("batch not flushed after settle")
	}
	if m.s.Pending != 0 || !m.s.Reassembling {
		t.Errorf("after flush: %+v", m.s)
	}

	acts = m.apply(ClipReady{URL: "clip:1", Fragments: 3})
	if m.s.State != ServerSpeaking || count[Play](acts) != 1 {
		t.Fatalf("clip ready: state %s, actions %v", m.s.State, acts)
	}

	// A fragment during playback waits for the next batch.
	m.apply(Fragment{Data: []byte{9}})
	if acts := m.apply(SettleTimeout{Gen: m.s.SettleGen}); count[Reassemble](acts) != 0 {
		t.Error("flushed while playing")
	}
	acts = m.apply(PlaybackEnded{URL: "clip:1"})
	if count[Reassemble](acts) != 1 || count[StartVAD](acts) != 0 || m.s.State != ServerSpeaking {
		t.Fatalf("queued batch: state %s, actions %v", m.s.State, acts)
	}

	m.apply(ClipReady{URL: "clip:2", Fragments: 1})
	acts = m.apply(PlaybackEnded{URL: "clip:2"})
	if m.s.State != Listening || count[StartVAD](acts) != 1 {
		t.Fatalf("after reply: state %s, actions %v", m.s.State, acts)
	}
	if m.s.Turn != 2 || m.s.EndSent || m.s.Replies != 2 {
		t.Errorf("next turn: %+v", m.s)
	}

	// The new turn can end again.
	m.apply(SpeechStart{}, AudioFrame{PCM: []byte{1, 1}})
	if got := ends(m.apply(SpeechEnd{})); len(got) != 1 {
		t.Errorf("second turn ends = %+v", got)
	}
}

func TestTransition_Greeting(t *testing.T) {
	m := newMachine()
	m.apply(SocketOpened{}, Fragment{Data: []byte{1}})
	m.apply(SettleTimeout{Gen: m.s.SettleGen})
	acts := m.apply(ClipReady{URL: "clip:hello"})
	if m.s.State != ServerSpeaking || count[StopVAD](acts) != 1 {
		t.Fatalf("greeting: state %s, actions %v", m.s.State, acts)
	}
	if len(ends(acts)) != 0 {
		t.Error("greeting ended a turn that never started")
	}

	m.apply(PlaybackEnded{URL: "clip:hello"})
	if m.s.State != Listening || m.s.Turn != 1 {
		t.Errorf("after greeting: state %s turn %d", m.s.State, m.s.Turn)
	}
}

func TestTransition_Failures(t *testing.T) {
	t.Run("decode failure returns to listening", func(t *testing.T) {
		m := listening(1)
		m.apply(SpeechEnd{}, Fragment{Data: []byte{1}})
		m.apply(SettleTimeout{Gen: m.s.SettleGen})
		acts := m.apply(DecodeFailed{Err: errors.New("short fragment")})
		if m.s.State != Listening || count[StartVAD](acts) != 1 || count[Notify](acts) != 1 {
			t.Errorf("state %s, actions %v", m.s.State, acts)
		}
	})

	t.Run("playback failure returns to listening", func(t *testing.T) {
		m := listening(1)
		m.apply(SpeechEnd{}, ClipReady{URL: "clip:x"})
		acts := m.apply(PlaybackEnded{URL: "clip:x", Err: errors.New("sink rejected")})
		if m.s.State != Listening || count[StartVAD](acts) != 1 || count[Notify](acts) != 1 {
			t.Errorf("state %s, actions %v", m.s.State, acts)
		}
		if m.s.Replies != 0 {
			t.Error("failed playback counted as a reply")
		}
	})

	t.Run("device failure", func(t *testing.T) {
		m := newMachine()
		m.apply(SocketOpened{})
		m.apply(DeviceFailed{Err: errors.New("permission denied")})
		if m.s.State != Listening || m.s.Status != "Microphone unavailable. Check permissions and refresh." {
			t.Errorf("state %s status %q", m.s.State, m.s.Status)
		}
	})

	t.Run("lost end reopens the turn", func(t *testing.T) {
		m := listening(2)
		m.apply(SpeechEnd{})
		acts := m.apply(SendFailed{Err: errors.New("not open")})
		if m.s.State != Listening || m.s.EndSent || count[StartVAD](acts) != 1 {
			t.Fatalf("state %s, actions %v", m.s.State, acts)
		}
		if got := ends(m.apply(Finish{})); len(got) != 1 {
			t.Errorf("retry ends = %+v", got)
		}
	})
}

func TestTransition_Reconnect(t *testing.T) {
	m := listening(1)
	m.apply(SocketReconnecting{Attempt: 2})
	if m.s.Status != "Connection lost. Reconnecting (attempt 2)…" || m.s.State != Listening {
		t.Errorf("reconnecting: state %s status %q", m.s.State, m.s.Status)
	}
	m.apply(SocketOpened{})
	if m.s.Status != "Listening…" {
		t.Errorf("after reconnect: %q", m.s.Status)
	}

	acts := m.apply(SocketFailed{Err: errors.New("gave up")})
	if m.s.State != Ended || m.s.Status != "Connection lost. Please refresh." {
		t.Errorf("failed: state %s status %q", m.s.State, m.s.Status)
	}
	if count[Teardown](acts) != 1 || count[TriggerFeedback](acts) != 0 || len(ends(acts)) != 0 {
		t.Errorf("failed actions %v", acts)
	}
}

func TestTransition_ReconnectWhileThinking(t *testing.T) {
	m := listening(3)
	m.apply(SpeechEnd{}, SocketReconnecting{Attempt: 1})
	if m.s.State != Thinking {
		t.Fatalf("state %s, want thinking", m.s.State)
	}

	// The reply was lost with the old connection; the user answers again.
	acts := m.apply(SocketOpened{})
	if m.s.State != Listening || m.s.EndSent || m.s.Turn != 2 {
		t.Fatalf("after reconnect: state %s end sent %v turn %d", m.s.State, m.s.EndSent, m.s.Turn)
	}
	if count[StartVAD](acts) != 1 || count[Notify](acts) != 1 {
		t.Errorf("after reconnect actions %v", acts)
	}

	m.apply(SpeechStart{}, AudioFrame{PCM: []byte{0, 0}})
	if got := ends(m.apply(Finish{})); len(got) != 1 || !got[0].Forced {
		t.Errorf("ends after recovery = %+v", got)
	}

	t.Run("reply already arriving", func(t *testing.T) {
		m := listening(3)
		m.apply(SpeechEnd{}, Fragment{Data: []byte("RIFF")}, SocketReconnecting{Attempt: 1})
		if acts := m.apply(SocketOpened{}); m.s.State != Thinking || count[StartVAD](acts) != 0 {
			t.Errorf("state %s actions %v", m.s.State, acts)
		}
	})

	t.Run("first connect while thinking is not a recovery", func(t *testing.T) {
		m := listening(3)
		m.apply(SpeechEnd{})
		if acts := m.apply(SocketOpened{}); m.s.State != Thinking || len(acts) != 0 {
			t.Errorf("state %s actions %v", m.s.State, acts)
		}
	})
}

func TestTransition_ServerClosed(t *testing.T) {
	m := listening(3)
	acts := m.apply(SocketClosed{Reason: "interview over"})
	if m.s.State != Ended || m.s.Failed || m.s.Status != "Interview ended." {
		t.Fatalf("state %s failed %v status %q", m.s.State, m.s.Failed, m.s.Status)
	}
	if count[Teardown](acts) != 1 || count[TriggerFeedback](acts) != 1 || len(ends(acts)) != 0 {
		t.Errorf("actions %v", acts)
	}
}

func TestTransition_Terminate(t *testing.T) {
	m := listening(3)
	acts := m.apply(Terminate{})
	got := ends(acts)
	if len(got) != 1 || !got[0].Final {
		t.Fatalf("ends = %+v, want one final end", got)
	}
	if m.s.State != Ended || count[Teardown](acts) != 1 || count[TriggerFeedback](acts) != 1 {
		t.Fatalf("state %s, actions %v", m.s.State, acts)
	}

	// Ended absorbs everything.
	for _, ev := range []Event{Terminate{}, SpeechEnd{}, Finish{}, PlaybackEnded{URL: "clip:x"}, SocketFailed{}, Fragment{}} {
		if acts := m.apply(ev); len(acts) != 0 {
			t.Errorf("%T after end produced %v", ev, acts)
		}
	}
	if acts := m.apply(ClipReady{URL: "clip:late"}); len(acts) != 1 || acts[0] != (Revoke{URL: "clip:late"}) {
		t.Errorf("late clip: %v", acts)
	}
}

func TestTransition_TerminateWhileThinking(t *testing.T) {
	m := listening(3)
	m.apply(SpeechEnd{})
	acts := m.apply(Terminate{})
	if len(ends(acts)) != 0 {
		t.Error("terminate re-sent the end of a closed turn")
	}

	// Playback ending after termination never restarts VAD.
	if acts := m.apply(PlaybackEnded{URL: "clip:x"}); count[StartVAD](acts) != 0 {
		t.Error("VAD restarted after termination")
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{
		Initializing: "initializing", Ready: "ready", Listening: "listening",
		Thinking: "thinking", ServerSpeaking: "server_speaking", Ended: "ended", State(42): "unknown",
	} {
		if s.String() != want {
			t.Errorf("%d: got %s, want %s", s, s, want)
		}
	}
}
