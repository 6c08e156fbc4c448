package turn

import (
	"time"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

// Event is an input to Transition.
type Event interface{ isEvent() }

type (
	// SocketOpened fires on the first connect and on every reconnect.
	SocketOpened struct{}

	// SocketReconnecting fires before each reconnect attempt.
	SocketReconnecting struct {
		Attempt int
		Delay   time.Duration
	}

	// SocketFailed fires once the socket gives up.
	SocketFailed struct{ Err error }

	// SocketClosed fires when the backend closes the session normally.
	SocketClosed struct{ Reason string }

	SpeechStart struct{}
	SpeechEnd   struct{}

	// AudioFrame carries one PCM16LE frame captured during speech.
	AudioFrame struct{ PCM []byte }

	// SilenceTimeout fires when the silence timer armed with Gen expires.
	SilenceTimeout struct{ Gen uint64 }

	// Finish is the user saying they are done answering.
	Finish struct{}

	// Terminate ends the session.
	Terminate struct{}

	// Fragment is one inbound WAV fragment.
	Fragment struct{ Data []byte }

	// SettleTimeout fires when no fragment arrived for the settle window
	// after the fragment that armed Gen.
	SettleTimeout struct{ Gen uint64 }

	// ClipReady reports a reassembled batch, stored under URL.
	ClipReady struct {
		URL       string
		Fragments int
	}

	// DecodeFailed reports a batch that could not be reassembled.
	DecodeFailed struct{ Err error }

	// PlaybackEnded reports the end of a clip. Err is nil when it played out.
	PlaybackEnded struct {
		URL string
		Err error
	}

	// DeviceFailed reports that capture could not start.
	DeviceFailed struct{ Err error }

	// SendFailed reports that USER_AUDIO_END never left the client.
	SendFailed struct{ Err error }
)

func (SocketOpened) isEvent()       {}
func (SocketReconnecting) isEvent() {}
func (SocketFailed) isEvent()       {}
func (SocketClosed) isEvent()       {}
func (SpeechStart) isEvent()        {}
func (SpeechEnd) isEvent()          {}
func (AudioFrame) isEvent()         {}
func (SilenceTimeout) isEvent()     {}
func (Finish) isEvent()             {}
func (Terminate) isEvent()          {}
func (Fragment) isEvent()           {}
func (SettleTimeout) isEvent()      {}
func (ClipReady) isEvent()          {}
func (DecodeFailed) isEvent()       {}
func (PlaybackEnded) isEvent()      {}
func (DeviceFailed) isEvent()       {}
func (SendFailed) isEvent()         {}

// Action is an effect Transition asks the Controller to perform.
type Action interface{ isAction() }

type (
	StartVAD struct{}
	StopVAD  struct{}

	SendPCM struct{ PCM []byte }
	SendEnd struct{ Msg protocol.UserAudioEnd }

	ArmSilence    struct{ Gen uint64 }
	CancelSilence struct{}

	// Buffer appends a fragment to the batch being collected.
	Buffer struct{ Data []byte }

	ArmSettle struct{ Gen uint64 }

	// Reassemble hands the collected batch off for reassembly and starts a
	// new one.
	Reassemble struct{}

	Play   struct{ URL string }
	Revoke struct{ URL string }

	// Teardown releases everything the session owns.
	Teardown struct{}

	TriggerFeedback struct{}

	Notify struct {
		Level   Level
		Message string
	}
)

func (StartVAD) isAction()        {}
func (StopVAD) isAction()         {}
func (SendPCM) isAction()         {}
func (SendEnd) isAction()         {}
func (ArmSilence) isAction()      {}
func (CancelSilence) isAction()   {}
func (Buffer) isAction()          {}
func (ArmSettle) isAction()       {}
func (Reassemble) isAction()      {}
func (Play) isAction()            {}
func (Revoke) isAction()          {}
func (Teardown) isAction()        {}
func (TriggerFeedback) isAction() {}
func (Notify) isAction()          {}

// Level grades a user notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)
