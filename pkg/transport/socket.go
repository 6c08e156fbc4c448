package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

// State is the connection state of a Socket.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats reports socket counters.
type Stats struct {
	State      string `json:"state"`
	FramesSent int64  `json:"frames_sent"`
	BytesSent  int64  `json:"bytes_sent"`
	Controls   int64  `json:"controls_sent"`
	Dropped    int64  `json:"dropped"`
	Fragments  int64  `json:"fragments"`
	Reconnects int    `json:"reconnects"`
}

// Socket is the WebSocket of one interview session. It reconnects on its own
// after an unexpected close, at most MaxReconnects times per session. A normal
// close from the server ends the session without reconnecting.
//
// Callbacks run on the socket's goroutine and must not block or call Close.
type Socket struct {
	cfg       Config
	sessionID string
	url       string
	logger    *slog.Logger
	dialer    *websocket.Dialer

	OnOpen         func()
	OnFragment     func(wav []byte)
	OnServerEvent  func(ev protocol.ServerEvent)
	OnReconnecting func(attempt int, delay time.Duration)
	OnFailed       func(err error)
	OnClosed       func(reason string)

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	reconnects int
	closeCh    chan struct{}
	done       chan struct{}

	writeMu sync.Mutex

	framesSent atomic.Int64
	bytesSent  atomic.Int64
	controls   atomic.Int64
	dropped    atomic.Int64
	fragments  atomic.Int64
}

// NewSocket creates a socket for sessionID. Nothing is dialed until Connect.
func NewSocket(cfg Config, sessionID string, logger *slog.Logger) *Socket {
	if logger == nil {
		logger = slog.Default()
	}
	return &Socket{
		cfg:       cfg,
		sessionID: sessionID,
		url:       URL(cfg.Host, sessionID, cfg.Secure),
		logger:    logger.With("component", "transport", "session", sessionID),
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		closeCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// URL returns the endpoint this socket dials.
func (s *Socket) URL() string { return s.url }

// Connect starts the connection manager. It returns immediately; OnOpen
// fires once the handshake completes, OnFailed if the bound is exhausted.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
	case StateClosing, StateClosed, StateFailed:
		return ErrClosed
	default:
		return nil
	}
	s.state = StateConnecting
	go s.run(ctx)
	return nil
}

// State returns the current state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the connection manager has exited.
func (s *Socket) Done() <-chan struct{} { return s.done }

// SendPCM sends one binary audio frame. When the socket is not open the frame
// is dropped and a *TransportError returned.
func (s *Socket) SendPCM(pcm []byte) error {
	if err := s.write("send_pcm", websocket.BinaryMessage, pcm); err != nil {
		return err
	}
	s.framesSent.Add(1)
	s.bytesSent.Add(int64(len(pcm)))
	return nil
}

// SendControl sends one JSON control frame.
func (s *Socket) SendControl(c protocol.Control) error {
	data, err := protocol.Encode(c)
	if err != nil {
		return &TransportError{Op: "send_control", State: s.State(), Err: err}
	}
	if err := s.write("send_control", websocket.TextMessage, data); err != nil {
		return err
	}
	s.controls.Add(1)
	s.logger.Debug("control sent", "payload", string(data))
	return nil
}

func (s *Socket) write(op string, msgType int, data []byte) error {
	s.mu.Lock()
	state, conn := s.state, s.conn
	s.mu.Unlock()

	if state != StateOpen || conn == nil {
		s.dropped.Add(1)
		err := &TransportError{Op: op, State: state, Err: ErrNotOpen}
		s.logger.Warn("frame dropped", "op", op, "state", state.String())
		return err
	}

	s.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(s.writeTimeout()))
	err := conn.WriteMessage(msgType, data)
	s.writeMu.Unlock()

	if err != nil {
		s.dropped.Add(1)
		s.logger.Warn("write failed, dropping connection", "op", op, "error", err)
		// The read loop sees the close and drives the reconnect.
		conn.Close()
		return &TransportError{Op: op, State: state, Err: err}
	}
	return nil
}

// Close closes the socket for good and suppresses reconnects. It does not
// wait for the connection manager; see Done. Safe to call more than once.
func (s *Socket) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateClosing, StateClosed, StateFailed:
		s.mu.Unlock()
		return nil
	}
	started := s.state != StateIdle
	s.state = StateClosing
	conn := s.conn
	s.conn = nil
	close(s.closeCh)
	s.mu.Unlock()

	if !started {
		close(s.done)
	}
	if conn != nil {
		s.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		conn.Close()
	}

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.logger.Info("socket closed")
	return nil
}

// Stats returns socket counters.
func (s *Socket) Stats() Stats {
	s.mu.Lock()
	state, reconnects := s.state, s.reconnects
	s.mu.Unlock()
	return Stats{
		State:      state.String(),
		FramesSent: s.framesSent.Load(),
		BytesSent:  s.bytesSent.Load(),
		Controls:   s.controls.Load(),
		Dropped:    s.dropped.Load(),
		Fragments:  s.fragments.Load(),
		Reconnects: reconnects,
	}
}

func (s *Socket) writeTimeout() time.Duration {
	if s.cfg.WriteTimeout > 0 {
		return s.cfg.WriteTimeout
	}
	return 5 * time.Second
}

func (s *Socket) closing() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// run dials, reads until the connection drops, and backs off between
// attempts until Close, ctx cancellation or the reconnect bound.
func (s *Socket) run(ctx context.Context) {
	defer close(s.done)

	for attempt := 0; ; {
		err := s.session(ctx)
		if s.closing() {
			return
		}
		if ctx.Err() != nil {
			s.Close()
			return
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			s.closedByServer(err)
			return
		}

		if attempt >= s.cfg.MaxReconnects {
			s.fail(fmt.Errorf("%w after %d attempts: %v", ErrReconnectsExhausted, attempt, err))
			return
		}

		delay := backoff(s.cfg.ReconnectBaseDelay, attempt)
		attempt++

		s.mu.Lock()
		if s.closing() {
			s.mu.Unlock()
			return
		}
		s.reconnects = attempt
		s.state = StateConnecting
		s.mu.Unlock()

		s.logger.Warn("connection lost, reconnecting", "attempt", attempt, "max", s.cfg.MaxReconnects, "delay", delay, "error", err)
		if s.OnReconnecting != nil {
			s.OnReconnecting(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-s.closeCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			s.Close()
			return
		}
	}
}

// session dials once and reads until the connection ends.
func (s *Socket) session(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	s.mu.Lock()
	if s.closing() {
		s.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.state = StateOpen
	s.mu.Unlock()

	s.logger.Info("socket open", "url", s.url)
	if s.OnOpen != nil {
		s.OnOpen()
	}

	stop := make(chan struct{})
	go s.keepalive(conn, stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()
	defer close(stop)

	err = s.readLoop(conn)

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()
	conn.Close()
	return err
}

func (s *Socket) readLoop(conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closing() {
				s.logger.Error("websocket read error", "error", err)
			}
			return err
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.fragments.Add(1)
			if s.OnFragment != nil {
				s.OnFragment(data)
			}
		case websocket.TextMessage:
			ev, err := protocol.DecodeServerEvent(data)
			if err != nil {
				s.logger.Warn("ignoring malformed server message", "error", err)
				continue
			}
			s.logger.Info("server event", "type", ev.Type, "message", ev.Message)
			if s.OnServerEvent != nil {
				s.OnServerEvent(ev)
			}
		}
	}
}

// keepalive pings the server until stop is closed.
func (s *Socket) keepalive(conn *websocket.Conn, stop chan struct{}) {
	if s.cfg.KeepaliveInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout())); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.Warn("keepalive ping failed", "error", err)
				}
				return
			}
		}
	}
}

func (s *Socket) fail(err error) {
	s.mu.Lock()
	if s.closing() {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()

	s.logger.Error("socket failed", "error", err)
	if s.OnFailed != nil {
		s.OnFailed(err)
	}
}

// closedByServer settles the socket after the server closed it with 1000.
func (s *Socket) closedByServer(err error) {
	var reason string
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		reason = ce.Text
	}

	s.mu.Lock()
	if s.closing() {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Info("server closed the session", "reason", reason)
	if s.OnClosed != nil {
		s.OnClosed(reason)
	}
}
