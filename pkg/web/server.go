// Package web serves the avatar renderer: pull endpoints for the current
// viseme and status, push channels over websockets, the session controls
// and the clip object URLs the renderer plays.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/hub"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/playback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/turn"
)

// maxNotices bounds the notification history.
const maxNotices = 50

// Avatar is the lipsync analyzer as seen by the renderer.
type Avatar interface {
	Current() lipsync.Sample
	Resume() error
}

// Session is the running interview.
type Session interface {
	Stats() turn.Stats
	Finish()
	Terminate()
}

// Config configures the server.
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	StaticDir    string        `yaml:"static_dir" json:"static_dir"` // renderer assets; empty disables
	AvatarPeriod time.Duration `yaml:"avatar_period" json:"avatar_period"`
	AllowOrigins string        `yaml:"allow_origins" json:"allow_origins"`
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8080",
		AvatarPeriod: time.Second / 30,
		AllowOrigins: "*",
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.AvatarPeriod <= 0 {
		return fmt.Errorf("avatar_period must be positive, got %v", c.AvatarPeriod)
	}
	return nil
}

// Server is the renderer-facing HTTP server.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger

	avatar Avatar
	clips  *playback.ClipStore

	mu      sync.RWMutex
	session Session
	status  protocol.StatusData
	notices []protocol.NotifyData

	statusHub *hub.Hub
	avatarHub *hub.Hub
}

// NewServer builds the server. avatar and clips may be nil.
func NewServer(cfg Config, avatar Avatar, clips *playback.ClipStore, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clips == nil {
		clips = playback.NewClipStore()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.With("component", "web"),
		avatar:    avatar,
		clips:     clips,
		status:    protocol.StatusData{Status: "No interview running.", State: "idle"},
		statusHub: hub.New("status", logger),
		avatarHub: hub.New("avatar", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Interviewly",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))

	api := app.Group("/api")
	api.Get("/avatar", s.handleAvatar)
	api.Get("/status", s.handleStatus)
	api.Get("/notices", s.handleNotices)
	api.Get("/health", s.handleHealth)
	api.Post("/gesture", s.handleGesture)
	api.Post("/finish", s.handleFinish)
	api.Post("/end", s.handleEnd)

	app.Get("/clips/:id", s.handleClip)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/avatar", websocket.New(s.handleAvatarWS))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// SetSession attaches the interview the controls act on. nil detaches it.
func (s *Server) SetSession(sess Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	if sess != nil {
		s.PublishStatus(sess.Stats())
	}
}

// PublishStatus records the session status and pushes it to subscribers.
// It fits turn.Controller.OnStatus.
func (s *Server) PublishStatus(st turn.Stats) {
	data := protocol.StatusData{
		Status:     st.Status,
		State:      st.State.String(),
		Turns:      st.Turns,
		ForcedEnds: st.ForcedEnds,
	}
	s.mu.Lock()
	s.status = data
	s.mu.Unlock()
	s.push(s.statusHub, protocol.TypeStatus, data)
}

// Status returns the last published status.
func (s *Server) Status() protocol.StatusData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// PublishNotice records a notification and pushes it to status subscribers.
// It fits turn.Controller.OnNotify.
func (s *Server) PublishNotice(n turn.Notice) {
	data := protocol.NotifyData{Level: string(n.Level), Message: n.Message}
	s.mu.Lock()
	s.notices = append(s.notices, data)
	if len(s.notices) > maxNotices {
		s.notices = s.notices[len(s.notices)-maxNotices:]
	}
	s.mu.Unlock()
	s.push(s.statusHub, protocol.TypeNotify, data)
}

func (s *Server) push(h *hub.Hub, typ protocol.MessageType, data any) {
	frame, err := encode(typ, data)
	if err != nil {
		s.logger.Warn("encode push message", "type", typ, "error", err)
		return
	}
	h.Broadcast(frame)
}

// encode wraps data in the push envelope.
func encode(typ protocol.MessageType, data any) ([]byte, error) {
	msg, err := protocol.NewMessage(typ, data)
	if err != nil {
		return nil, err
	}
	return msg.Bytes()
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.avatarHub.Run(ctx)

	if s.avatar != nil {
		task := lipsync.Every(ctx, s.cfg.AvatarPeriod, func(time.Time) {
			if s.avatarHub.ClientCount() > 0 {
				s.push(s.avatarHub, protocol.TypeAvatar, avatarData(s.avatar.Current()))
			}
		})
		defer task.Cancel()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("renderer surface listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
		return nil
	}
}

func avatarData(sample lipsync.Sample) protocol.AvatarData {
	return protocol.AvatarData{
		Viseme: int(sample.Viseme),
		Morph:  sample.Viseme.Morph(),
		Weight: sample.Weight,
		Blink:  sample.Blink,
	}
}
