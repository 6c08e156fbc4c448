package vad

import "fmt"

// Engine classifies a single mono frame as speech or not. Engines may keep
// state between frames; Reset clears it.
type Engine interface {
	IsSpeech(frame []float32, sampleRate int) (bool, error)
	Reset()
	Name() string
}

// RMSEngine is a pure-Go energy detector. It uses two thresholds so the
// decision does not flicker around a single level.
type RMSEngine struct {
	speechThreshold  float64
	silenceThreshold float64
	inSpeech         bool
}

// NewRMSEngine returns an RMSEngine. A level at or above speech starts speech;
// once speaking, the level has to drop below silence to stop.
func NewRMSEngine(speech, silence float64) *RMSEngine {
	if silence > speech {
		silence = speech
	}
	return &RMSEngine{speechThreshold: speech, silenceThreshold: silence}
}

// IsSpeech implements Engine.
func (e *RMSEngine) IsSpeech(frame []float32, sampleRate int) (bool, error) {
	level := rms(frame)
	if e.inSpeech {
		e.inSpeech = level >= e.silenceThreshold
	} else {
		e.inSpeech = level >= e.speechThreshold
	}
	return e.inSpeech, nil
}

// Reset implements Engine.
func (e *RMSEngine) Reset() { e.inSpeech = false }

// Name implements Engine.
func (e *RMSEngine) Name() string { return "rms" }

// NewEngine builds the engine named in cfg. "auto" prefers WebRTC when it
// was compiled in.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Engine {
	case EngineRMS:
		return NewRMSEngine(cfg.SpeechThreshold, cfg.SilenceThreshold), nil
	case EngineWebRTC:
		return NewWebRTCEngine(cfg.Mode)
	case "", EngineAuto:
		if webrtcAvailable {
			return NewWebRTCEngine(cfg.Mode)
		}
		return NewRMSEngine(cfg.SpeechThreshold, cfg.SilenceThreshold), nil
	default:
		return nil, fmt.Errorf("vad: unknown engine %q", cfg.Engine)
	}
}
