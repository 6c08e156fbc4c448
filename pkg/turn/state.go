// Package turn runs one interview session: it decides when the user's turn
// is over, when the interviewer's reply plays and when the session ends.
//
// All state lives in a Snapshot and changes only through Transition. The
// Controller feeds it events from VAD, the socket, timers and playback, one
// at a time, and executes the actions it returns.
package turn

import "fmt"

// State is the phase of the session.
type State int

const (
	Initializing State = iota
	Ready
	Listening
	Thinking
	ServerSpeaking
	Ended
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Listening:
		return "listening"
	case Thinking:
		return "thinking"
	case ServerSpeaking:
		return "server_speaking"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the complete session state.
type Snapshot struct {
	State  State
	Status string

	Turn     int  // 1-based id of the current user turn
	EndSent  bool // USER_AUDIO_END already sent for Turn
	Speaking bool
	Frames   int // PCM frames sent during Turn

	Pending      int // fragments buffered for the next batch
	Reassembling bool
	Playing      bool

	Reconnecting bool
	Attempt      int
	Failed       bool
	MicFailed    bool

	SilenceGen uint64
	SettleGen  uint64

	EndsSent   int
	ForcedEnds int
	Replies    int
}

// Initial returns the snapshot of a session that is still connecting.
func Initial() Snapshot {
	s := Snapshot{State: Initializing, Turn: 1}
	s.Status = statusLine(s)
	return s
}

// Active reports whether the session is still running.
func (s Snapshot) Active() bool {
	return s.State != Ended
}

// open reports whether the user's turn can still be ended.
func (s Snapshot) open() bool {
	return (s.State == Ready || s.State == Listening) && !s.EndSent
}

func statusLine(s Snapshot) string {
	switch {
	case s.State == Ended && s.Failed:
		return "Connection lost. Please refresh."
	case s.State == Ended:
		return "Interview ended."
	case s.Reconnecting:
		return fmt.Sprintf("Connection lost. Reconnecting (attempt %d)…", s.Attempt)
	case s.MicFailed && (s.State == Ready || s.State == Listening):
		return "Microphone unavailable. Check permissions and refresh."
	}

	switch s.State {
	case Initializing:
		return "Connecting…"
	case Ready:
		return "Connected. Start speaking when you're ready."
	case Listening:
		return "Listening…"
	case Thinking:
		return "Thinking…"
	case ServerSpeaking:
		return "Interviewer speaking…"
	}
	return ""
}
