package mockinterviewer

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/feedback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

// Session is one connected interview.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu        sync.Mutex
	turnBytes int
	turns     int
	lastSeen  time.Time
}

// send serializes writes on the connection.
func (s *Session) send(msgType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(msgType, data)
}

// Stats contains server counters.
type Stats struct {
	Sessions     int    `json:"sessions"`
	Connections  uint64 `json:"connections"`
	FramesIn     uint64 `json:"frames_in"`
	BytesIn      uint64 `json:"bytes_in"`
	EndsIn       uint64 `json:"ends_in"`
	FragmentsOut uint64 `json:"fragments_out"`
	Feedback     uint64 `json:"feedback"`
}

// SessionInfo describes a connected session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
	Turns     int       `json:"turns"`
}

// Server is the mock backend.
type Server struct {
	cfg    Config
	logger *slog.Logger

	// OnEnd observes every USER_AUDIO_END, with the PCM bytes of that turn.
	OnEnd func(sessionID string, end protocol.UserAudioEnd, pcmBytes int)

	mu       sync.RWMutex
	sessions map[string]*Session
	feedback map[string]int

	connections  atomic.Uint64
	framesIn     atomic.Uint64
	bytesIn      atomic.Uint64
	endsIn       atomic.Uint64
	fragmentsOut atomic.Uint64
	feedbackN    atomic.Uint64
}

// NewServer creates a mock backend.
func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger.With("component", "mockinterviewer"),
		sessions: make(map[string]*Session),
		feedback: make(map[string]int),
	}, nil
}

// RegisterRoutes mounts the session socket and the feedback endpoint.
func (s *Server) RegisterRoutes(app *fiber.App) {
	app.Use("/interview_call/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/interview_call/ws/:sessionId", websocket.New(s.handleSession))
	app.Post("/interview_call/:sessionId/live_feedback", s.handleFeedback)
}

// RegisterAPIRoutes mounts inspection routes.
func (s *Server) RegisterAPIRoutes(api fiber.Router) {
	api.Get("/sessions", func(c *fiber.Ctx) error {
		infos := s.Sessions()
		return c.JSON(fiber.Map{"sessions": infos, "count": len(infos)})
	})
	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})
}

func (s *Server) handleSession(c *websocket.Conn) {
	id := c.Params("sessionId")
	sess := &Session{ID: id, Conn: c, Connected: time.Now(), lastSeen: time.Now()}

	s.mu.Lock()
	if old, ok := s.sessions[id]; ok {
		old.Conn.Close()
	}
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.connections.Add(1)
	s.logger.Info("session connected", "session", id, "sessions", count)

	defer func() {
		s.mu.Lock()
		if s.sessions[id] == sess {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		s.logger.Info("session disconnected", "session", id)
	}()

	if s.cfg.Greeting {
		s.reply(sess, s.cfg.MinReply)
	}

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			return
		}

		sess.mu.Lock()
		sess.lastSeen = time.Now()
		sess.mu.Unlock()

		switch msgType {
		case websocket.BinaryMessage:
			s.framesIn.Add(1)
			s.bytesIn.Add(uint64(len(data)))
			sess.mu.Lock()
			sess.turnBytes += len(data)
			sess.mu.Unlock()

		case websocket.TextMessage:
			ctrl, err := protocol.Decode(data)
			if err != nil {
				s.logger.Warn("bad control frame", "session", id, "error", err)
				continue
			}
			end, ok := ctrl.(protocol.UserAudioEnd)
			if !ok {
				continue
			}
			s.endsIn.Add(1)

			sess.mu.Lock()
			heard := sess.turnBytes
			sess.turnBytes = 0
			sess.turns++
			sess.mu.Unlock()

			s.logger.Info("user audio end", "session", id, "bytes", heard, "forced", end.Forced, "final", end.Final)
			if s.OnEnd != nil {
				s.OnEnd(id, end, heard)
			}
			if !end.Final {
				s.reply(sess, s.cfg.replyLength(heard))
			}
		}
	}
}

// reply sends a synthesized answer of length d as WAV fragments.
func (s *Server) reply(sess *Session, d time.Duration) {
	samples := synthesize(d, s.cfg.SampleRate, s.cfg.ToneHz)
	for i, frag := range split(samples, s.cfg.Fragments, s.cfg.SampleRate) {
		if i > 0 && s.cfg.FragmentGap > 0 {
			time.Sleep(s.cfg.FragmentGap)
		}
		if err := sess.send(websocket.BinaryMessage, frag); err != nil {
			s.logger.Warn("send fragment", "session", sess.ID, "error", err)
			return
		}
		s.fragmentsOut.Add(1)
	}
}

// handleFeedback answers success on the first request per session and
// exists afterwards.
func (s *Server) handleFeedback(c *fiber.Ctx) error {
	id := c.Params("sessionId")
	s.feedbackN.Add(1)

	s.mu.Lock()
	s.feedback[id]++
	n := s.feedback[id]
	s.mu.Unlock()

	status := feedback.StatusSuccess
	if n > 1 {
		status = feedback.StatusExists
	}
	s.logger.Info("feedback requested", "session", id, "status", status)
	return c.JSON(feedback.Result{Status: status})
}

// Sessions lists connected sessions.
func (s *Server) Sessions() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.mu.Lock()
		infos = append(infos, SessionInfo{
			ID:        sess.ID,
			Connected: sess.Connected,
			LastSeen:  sess.lastSeen,
			Turns:     sess.turns,
		})
		sess.mu.Unlock()
	}
	return infos
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats returns server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Sessions:     s.SessionCount(),
		Connections:  s.connections.Load(),
		FramesIn:     s.framesIn.Load(),
		BytesIn:      s.bytesIn.Load(),
		EndsIn:       s.endsIn.Load(),
		FragmentsOut: s.fragmentsOut.Load(),
		Feedback:     s.feedbackN.Load(),
	}
}
