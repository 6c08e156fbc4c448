// Package config loads settings for the interview client and the mock backend.
// Values come from defaults, then an optional YAML file, then the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/audioio"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/mockinterviewer"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/playback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/transport"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/turn"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/vad"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/web"
)

// Environment variables read by ApplyEnv.
const (
	EnvHost        = "INTERVIEWLY_HOST"
	EnvSecure      = "INTERVIEWLY_SECURE"
	EnvSessionID   = "INTERVIEWLY_SESSION_ID"
	EnvFeedbackURL = "INTERVIEWLY_FEEDBACK_URL"
	EnvAddr        = "INTERVIEWLY_ADDR"
	EnvBackend     = "AUDIO_BACKEND"
	EnvLogLevel    = "LOG_LEVEL"
)

// Config is the full client configuration.
type Config struct {
	SessionID   string `yaml:"session_id" json:"session_id"`
	FeedbackURL string `yaml:"feedback_url" json:"feedback_url"` // base URL of the feedback API
	LogLevel    string `yaml:"log_level" json:"log_level"`

	// Linger keeps the renderer surface up after the session ends so the final
	// status and feedback notice reach it.
	Linger time.Duration `yaml:"linger" json:"linger"`

	Audio     audioio.Config         `yaml:"audio" json:"audio"`
	VAD       vad.Config             `yaml:"vad" json:"vad"`
	Transport transport.Config       `yaml:"transport" json:"transport"`
	Playback  playback.Config        `yaml:"playback" json:"playback"`
	Lipsync   lipsync.Config         `yaml:"lipsync" json:"lipsync"`
	Turn      turn.Config            `yaml:"turn" json:"turn"`
	Web       web.Config             `yaml:"web" json:"web"`
	Mock      mockinterviewer.Config `yaml:"mock" json:"mock"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		FeedbackURL: "http://localhost:8000",
		LogLevel:    "info",
		Linger:      3 * time.Second,
		Audio:       audioio.DefaultConfig(),
		VAD:         vad.DefaultConfig(),
		Transport:   transport.DefaultConfig(),
		Playback:    playback.DefaultConfig(),
		Lipsync:     lipsync.DefaultConfig(),
		Turn:        turn.DefaultConfig(),
		Web:         web.DefaultConfig(),
		Mock:        mockinterviewer.DefaultConfig(),
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are skipped; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	c.Transport.Host = Env(EnvHost, c.Transport.Host)
	c.SessionID = Env(EnvSessionID, c.SessionID)
	c.FeedbackURL = Env(EnvFeedbackURL, c.FeedbackURL)
	c.Web.Addr = Env(EnvAddr, c.Web.Addr)
	c.LogLevel = Env(EnvLogLevel, c.LogLevel)
	if b := os.Getenv(EnvBackend); b != "" {
		c.Audio.Backend = audioio.Backend(b)
	}
	if v := os.Getenv(EnvSecure); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSecure, err)
		}
		c.Transport.Secure = secure
	}
	return nil
}

// Validate checks every component configuration.
func (c *Config) Validate() error {
	if c.FeedbackURL == "" {
		return errors.New("feedback_url is required")
	}
	if c.Linger < 0 {
		return fmt.Errorf("linger must not be negative, got %v", c.Linger)
	}
	checks := []struct {
		name string
		fn   func() error
	}{
		{"audio", c.Audio.Validate},
		{"vad", c.VAD.Validate},
		{"transport", c.Transport.Validate},
		{"playback", c.Playback.Validate},
		{"lipsync", c.Lipsync.Validate},
		{"turn", c.Turn.Validate},
		{"web", c.Web.Validate},
		{"mock", c.Mock.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s: %w", check.name, err)
		}
	}
	return nil
}

// Env returns the value of key, or def when it is unset or empty.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
