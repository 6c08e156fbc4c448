package turn

import (
	"fmt"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

// Transition applies ev to s. It is the only place session state changes and
// the only place USER_AUDIO_END is produced: a turn's end is sent at most
// once, whichever of speech end, silence, Finish or Terminate comes first.
func Transition(s Snapshot, ev Event) (Snapshot, []Action) {
	if s.State == Ended {
		// Reassembly can finish after teardown; its clip must not leak.
		if c, ok := ev.(ClipReady); ok {
			return s, []Action{Revoke{URL: c.URL}}
		}
		return s, nil
	}

	var acts []Action
	switch e := ev.(type) {
	case SocketOpened:
		recovered := s.Reconnecting
		s.Reconnecting = false
		s.Attempt = 0
		switch {
		case s.State == Initializing:
			s.State = Ready
			acts = append(acts, StartVAD{})
		case recovered && s.State == Thinking && s.Pending == 0 && !s.Reassembling && !s.Playing:
			// The reply went down with the old connection.
			s, acts = listen(s, acts)
			acts = append(acts, Notify{Level: LevelWarn, Message: "Connection was interrupted. Please repeat your answer."})
		}

	case SocketReconnecting:
		s.Reconnecting = true
		s.Attempt = e.Attempt

	case SocketFailed:
		s.Failed = true
		s, acts = end(s, acts)
		acts = append(acts, Notify{Level: LevelError, Message: "Connection lost. Please refresh."})

	case SocketClosed:
		s, acts = end(s, acts)
		acts = append(acts, TriggerFeedback{}, Notify{Level: LevelInfo, Message: "The interviewer ended the session."})

	case SpeechStart:
		if s.open() {
			s.State = Listening
			s.Speaking = true
			s.MicFailed = false
		}

	case AudioFrame:
		if s.open() {
			s.State = Listening
			s.Frames++
			s.SilenceGen++
			acts = append(acts, SendPCM{PCM: e.PCM}, ArmSilence{Gen: s.SilenceGen})
		}

	case SpeechEnd:
		s.Speaking = false
		if s.open() {
			s, acts = endTurn(s, acts, false)
		}

	case SilenceTimeout:
		if e.Gen == s.SilenceGen && s.State == Listening && !s.EndSent && !s.Playing {
			s.ForcedEnds++
			s, acts = endTurn(s, acts, true)
		}

	case Finish:
		if s.open() {
			s, acts = endTurn(s, acts, true)
		}

	case Terminate:
		if s.open() {
			s.EndSent = true
			s.EndsSent++
			acts = append(acts, SendEnd{Msg: protocol.UserAudioEnd{Final: true}})
		}
		s, acts = end(s, acts)
		acts = append(acts, TriggerFeedback{})

	case Fragment:
		s.Pending++
		s.SettleGen++
		acts = append(acts, Buffer{Data: e.Data}, ArmSettle{Gen: s.SettleGen})

	case SettleTimeout:
		if e.Gen == s.SettleGen {
			s, acts = flush(s, acts)
		}

	case ClipReady:
		s.Reassembling = false
		s.Playing = true
		if s.State == Ready || s.State == Listening {
			// The interviewer talks first; the open turn restarts afterwards.
			s.Speaking = false
			acts = append(acts, StopVAD{}, CancelSilence{})
		}
		s.State = ServerSpeaking
		acts = append(acts, Play{URL: e.URL})

	case DecodeFailed:
		s.Reassembling = false
		acts = append(acts, Notify{Level: LevelWarn, Message: "Could not decode the interviewer's reply."})
		switch {
		case s.Pending > 0:
			s, acts = flush(s, acts)
		case s.State == Thinking || s.State == ServerSpeaking && !s.Playing:
			s, acts = listen(s, acts)
		}

	case PlaybackEnded:
		s.Playing = false
		if e.Err != nil {
			acts = append(acts, Notify{Level: LevelWarn, Message: fmt.Sprintf("Playback failed: %v", e.Err)})
		} else {
			s.Replies++
		}
		if s.Pending > 0 {
			s, acts = flush(s, acts)
		} else if s.State == ServerSpeaking {
			s, acts = listen(s, acts)
		}

	case DeviceFailed:
		s.MicFailed = true
		if s.State == Ready {
			s.State = Listening
		}
		acts = append(acts, Notify{Level: LevelError, Message: fmt.Sprintf("Microphone unavailable: %v", e.Err)})

	case SendFailed:
		acts = append(acts, Notify{Level: LevelWarn, Message: "Your answer did not reach the interviewer. Please repeat it."})
		if s.State == Thinking && s.Pending == 0 && !s.Reassembling {
			s.State = Listening
			s.EndSent = false
			s.Frames = 0
			acts = append(acts, StartVAD{})
		}
	}

	s.Status = statusLine(s)
	return s, acts
}

// endTurn sends the turn's single USER_AUDIO_END and waits for the reply.
func endTurn(s Snapshot, acts []Action, forced bool) (Snapshot, []Action) {
	s.EndSent = true
	s.EndsSent++
	s.Speaking = false
	s.State = Thinking
	return s, append(acts,
		SendEnd{Msg: protocol.UserAudioEnd{Forced: forced}},
		StopVAD{},
		CancelSilence{},
	)
}

// listen opens the next user turn.
func listen(s Snapshot, acts []Action) (Snapshot, []Action) {
	if s.EndSent || s.Frames > 0 {
		s.Turn++
	}
	s.State = Listening
	s.EndSent = false
	s.Frames = 0
	s.Speaking = false
	return s, append(acts, StartVAD{})
}

// flush starts reassembly of the pending batch unless one is already in flight
// or a clip is playing; those paths flush again when they finish.
func flush(s Snapshot, acts []Action) (Snapshot, []Action) {
	if s.Pending == 0 || s.Reassembling || s.Playing {
		return s, acts
	}
	s.Pending = 0
	s.Reassembling = true
	return s, append(acts, Reassemble{})
}

func end(s Snapshot, acts []Action) (Snapshot, []Action) {
	s.State = Ended
	s.Speaking = false
	s.Playing = false
	s.Reassembling = false
	s.Pending = 0
	s.Reconnecting = false
	return s, append(acts, Teardown{})
}
