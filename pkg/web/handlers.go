package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/hub"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/playback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

// handleAvatar returns the current viseme and blink flag.
func (s *Server) handleAvatar(c *fiber.Ctx) error {
	sample := lipsync.Sample{Viseme: lipsync.Sil, Weight: 1}
	if s.avatar != nil {
		sample = s.avatar.Current()
	}
	return c.JSON(avatarData(sample))
}

// handleStatus returns the status line and turn counters.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleHealth reports push channel load.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"status_clients": s.statusHub.ClientCount(),
		"avatar_clients": s.avatarHub.ClientCount(),
		"dropped":        s.statusHub.Dropped() + s.avatarHub.Dropped(),
	})
}

func (s *Server) handleNotices(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.notices == nil {
		return c.JSON([]protocol.NotifyData{})
	}
	return c.JSON(s.notices)
}

// handleGesture resumes the analyzer. Browsers only allow this from a user
// gesture, so the renderer calls it on the first click.
func (s *Server) handleGesture(c *fiber.Ctx) error {
	if s.avatar == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "lipsync not configured"})
	}
	if err := s.avatar.Resume(); err != nil {
		if errors.Is(err, lipsync.ErrClosed) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"resumed": true})
}

func (s *Server) handleFinish(c *fiber.Ctx) error {
	sess := s.currentSession()
	if sess == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no interview running"})
	}
	sess.Finish()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"action": "finish"})
}

func (s *Server) handleEnd(c *fiber.Ctx) error {
	sess := s.currentSession()
	if sess == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no interview running"})
	}
	sess.Terminate()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"action": "end"})
}

// handleClip serves a live clip URL. Revoked clips are gone.
func (s *Server) handleClip(c *fiber.Ctx) error {
	data, ok := s.clips.Get(playback.URL(c.Params("id")))
	if !ok {
		return fiber.ErrNotFound
	}
	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}

func (s *Server) currentSession() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// handleStatusWS pushes status and notifications, starting with the current status.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	var initial [][]byte
	if frame, err := encode(protocol.TypeStatus, s.Status()); err == nil {
		initial = append(initial, frame)
	}
	hub.NewClient(s.statusHub, conn, initial...).Run()
}

// handleAvatarWS pushes avatar samples at the avatar period.
func (s *Server) handleAvatarWS(conn *websocket.Conn) {
	hub.NewClient(s.avatarHub, conn).Run()
}
