package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/feedback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/playback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/transport"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/vad"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/wav"
)

// ErrAlreadyRunning is returned by a second Run.
var ErrAlreadyRunning = errors.New("turn: controller already running")

// Socket is the session connection to the backend.
type Socket interface {
	Connect(ctx context.Context) error
	SendPCM(pcm []byte) error
	SendControl(c protocol.Control) error
	Close() error
}

// VAD is the speech detector feeding the controller.
type VAD interface {
	Start(ctx context.Context) error
	Stop()
	Close() error
}

// Player plays clips from the session's clip store.
type Player interface {
	Play(ctx context.Context, url string) error
	Stop()
}

// Lipsync is the shared analyzer; the session only detaches it on teardown.
type Lipsync interface {
	Detach()
}

// Feedback requests feedback generation when the interview ends.
type Feedback interface {
	Trigger(ctx context.Context, sessionID string) (*feedback.Result, error)
}

// Deps are the collaborators a session owns. Lipsync and Feedback are optional.
type Deps struct {
	Socket   Socket
	VAD      VAD
	Player   Player
	Clips    *playback.ClipStore
	Lipsync  Lipsync
	Feedback Feedback
}

// Config tunes turn taking.
type Config struct {
	SilenceTimeout  time.Duration `yaml:"silence_timeout" json:"silence_timeout"`
	SettleWindow    time.Duration `yaml:"settle_window" json:"settle_window"`
	FeedbackTimeout time.Duration `yaml:"feedback_timeout" json:"feedback_timeout"`
}

// DefaultConfig returns the default timings.
func DefaultConfig() Config {
	return Config{
		SilenceTimeout:  2 * time.Second,
		SettleWindow:    250 * time.Millisecond,
		FeedbackTimeout: 15 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SilenceTimeout <= 0 {
		return fmt.Errorf("silence_timeout must be positive, got %v", c.SilenceTimeout)
	}
	if c.SettleWindow <= 0 {
		return fmt.Errorf("settle_window must be positive, got %v", c.SettleWindow)
	}
	if c.FeedbackTimeout <= 0 {
		return fmt.Errorf("feedback_timeout must be positive, got %v", c.FeedbackTimeout)
	}
	return nil
}

// Stats summarizes the session.
type Stats struct {
	SessionID  string `json:"session_id"`
	State      State  `json:"state"`
	Status     string `json:"status"`
	Turns      int    `json:"turns"`
	EndsSent   int    `json:"ends_sent"`
	ForcedEnds int    `json:"forced_ends"`
	Replies    int    `json:"replies"`
}

// Notice is a user-facing notification.
type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Controller runs one session. Every event is applied on the Run goroutine.
type Controller struct {
	cfg       Config
	sessionID string
	deps      Deps
	logger    *slog.Logger

	// OnStatus fires on the Run goroutine whenever the status line or state
	// changes.
	OnStatus func(Stats)

	// OnNotify fires for notifications, including the feedback outcome.
	OnNotify func(Notice)

	mu      sync.Mutex
	snap    Snapshot
	queue   []Event
	running bool
	stopped bool
	wake    chan struct{}
	done    chan struct{}

	// Owned by the Run goroutine.
	ctx      context.Context
	cancel   context.CancelFunc
	workers  errgroup.Group
	batch    *wav.Reassembler
	silence  *time.Timer
	settle   *time.Timer
	teardown sync.Once
}

// NewController creates a controller for sessionID.
func NewController(cfg Config, sessionID string, deps Deps, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if deps.Socket == nil || deps.Player == nil {
		return nil, errors.New("turn: socket and player are required")
	}
	if deps.Clips == nil {
		deps.Clips = playback.NewClipStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:       cfg,
		sessionID: sessionID,
		deps:      deps,
		logger:    logger.With("component", "turn", "session", sessionID),
		snap:      Initial(),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		batch:     wav.NewReassembler(),
	}, nil
}

// SetVAD installs the speech detector. The detector is usually built from
// VADCallbacks, so it comes after the controller. Call before Run.
func (c *Controller) SetVAD(v VAD) {
	c.deps.VAD = v
}

// VADCallbacks returns callbacks that feed VAD output into the session.
func (c *Controller) VADCallbacks() vad.Callbacks {
	return vad.Callbacks{
		OnSpeechStart: func() { c.post(SpeechStart{}) },
		OnAudioChunk:  func(pcm []byte) { c.post(AudioFrame{PCM: pcm}) },
		OnSpeechEnd:   func() { c.post(SpeechEnd{}) },
	}
}

// BindSocket routes the socket's callbacks into the session.
func (c *Controller) BindSocket(s *transport.Socket) {
	s.OnOpen = func() { c.post(SocketOpened{}) }
	s.OnFragment = func(data []byte) { c.post(Fragment{Data: data}) }
	s.OnReconnecting = func(attempt int, delay time.Duration) {
		c.post(SocketReconnecting{Attempt: attempt, Delay: delay})
	}
	s.OnFailed = func(err error) { c.post(SocketFailed{Err: err}) }
	s.OnClosed = func(reason string) { c.post(SocketClosed{Reason: reason}) }
	s.OnServerEvent = func(ev protocol.ServerEvent) {
		c.logger.Info("server event", "type", ev.Type, "message", ev.Message)
	}
}

// Finish ends the user's turn on request.
func (c *Controller) Finish() { c.post(Finish{}) }

// Terminate ends the session. Calling it more than once is harmless.
func (c *Controller) Terminate() { c.post(Terminate{}) }

// Post queues an event. It never blocks; events after the session ended are
// dropped.
func (c *Controller) Post(ev Event) { c.post(ev) }

func (c *Controller) post(ev Event) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, ev)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Stats returns session counters.
func (c *Controller) Stats() Stats {
	return c.stats(c.Snapshot())
}

func (c *Controller) stats(s Snapshot) Stats {
	return Stats{
		SessionID:  c.sessionID,
		State:      s.State,
		Status:     s.Status,
		Turns:      s.Turn,
		EndsSent:   s.EndsSent,
		ForcedEnds: s.ForcedEnds,
		Replies:    s.Replies,
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Run connects the socket and processes events until the session ends.
// Cancelling ctx terminates the session.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()
	defer close(c.done)

	if c.deps.VAD == nil {
		return errors.New("turn: no VAD installed")
	}

	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))
	defer c.cancel()

	c.logger.Info("session starting")
	c.notifyStatus(c.Snapshot())
	if err := c.deps.Socket.Connect(c.ctx); err != nil {
		c.post(SocketFailed{Err: err})
	}

	for c.Snapshot().Active() {
		select {
		case <-ctx.Done():
			c.apply(Terminate{})
		case <-c.wake:
			c.drain()
		}
	}

	c.mu.Lock()
	c.stopped = true
	c.queue = nil
	c.mu.Unlock()

	c.workers.Wait()
	// A reassembly that raced teardown may have stored a clip after shutdown.
	if n := c.deps.Clips.RevokeAll(); n > 0 {
		c.logger.Debug("revoked late clips", "count", n)
	}
	c.logger.Info("session ended", "turns", c.Snapshot().Turn, "ends_sent", c.Snapshot().EndsSent)
	return ctx.Err()
}

func (c *Controller) drain() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		ev := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.apply(ev)
	}
}

// apply runs one event through Transition and executes the actions.
func (c *Controller) apply(ev Event) {
	c.mu.Lock()
	prev := c.snap
	next, acts := Transition(prev, ev)
	c.snap = next
	c.mu.Unlock()

	if next.State != prev.State {
		c.logger.Debug("state change", "from", prev.State, "to", next.State, "event", fmt.Sprintf("%T", ev))
	}
	for _, a := range acts {
		c.execute(a)
	}
	if next.Status != prev.Status || next.State != prev.State {
		c.notifyStatus(next)
	}
}

func (c *Controller) execute(a Action) {
	switch a := a.(type) {
	case StartVAD:
		if err := c.deps.VAD.Start(c.ctx); err != nil {
			c.logger.Warn("vad start failed", "error", err)
			c.post(DeviceFailed{Err: err})
		}

	case StopVAD:
		c.deps.VAD.Stop()

	case SendPCM:
		if err := c.deps.Socket.SendPCM(a.PCM); err != nil {
			c.logger.Debug("pcm frame dropped", "error", err)
		}

	case SendEnd:
		c.logger.Info("user audio end", "forced", a.Msg.Forced, "final", a.Msg.Final)
		if err := c.deps.Socket.SendControl(a.Msg); err != nil {
			c.logger.Warn("user audio end not sent", "error", err)
			if !a.Msg.Final {
				c.post(SendFailed{Err: err})
			}
		}

	case ArmSilence:
		stopTimer(c.silence)
		gen := a.Gen
		c.silence = time.AfterFunc(c.cfg.SilenceTimeout, func() { c.post(SilenceTimeout{Gen: gen}) })

	case CancelSilence:
		stopTimer(c.silence)
		c.silence = nil

	case Buffer:
		c.batch.Enqueue(a.Data)

	case ArmSettle:
		stopTimer(c.settle)
		gen := a.Gen
		c.settle = time.AfterFunc(c.cfg.SettleWindow, func() { c.post(SettleTimeout{Gen: gen}) })

	case Reassemble:
		batch := c.batch
		c.batch = wav.NewReassembler()
		c.workers.Go(func() error {
			clip, n, err := batch.Flush(c.ctx)
			if err != nil {
				c.logger.Warn("reassembly failed", "fragments", n, "error", err)
				c.post(DecodeFailed{Err: err})
				return nil
			}
			url := c.deps.Clips.Create(clip)
			c.logger.Debug("reply reassembled", "fragments", n, "bytes", len(clip), "url", url)
			c.post(ClipReady{URL: url, Fragments: n})
			return nil
		})

	case Play:
		url := a.URL
		c.workers.Go(func() error {
			err := c.deps.Player.Play(c.ctx, url)
			c.post(PlaybackEnded{URL: url, Err: err})
			return nil
		})

	case Revoke:
		c.deps.Clips.Revoke(a.URL)

	case Teardown:
		c.shutdown()

	case TriggerFeedback:
		if c.deps.Feedback == nil {
			return
		}
		c.workers.Go(func() error {
			c.requestFeedback()
			return nil
		})

	case Notify:
		c.notify(Notice{Level: a.Level, Message: a.Message})
	}
}

// shutdown releases the session. It runs once no matter how often it is asked.
func (c *Controller) shutdown() {
	c.teardown.Do(func() {
		stopTimer(c.silence)
		stopTimer(c.settle)
		c.silence, c.settle = nil, nil

		// Close before cancel so the backend gets a normal close frame.
		if err := c.deps.Socket.Close(); err != nil {
			c.logger.Warn("socket close failed", "error", err)
		}
		c.cancel()
		c.deps.Player.Stop()
		c.deps.VAD.Stop()
		if err := c.deps.VAD.Close(); err != nil {
			c.logger.Warn("vad close failed", "error", err)
		}
		if c.deps.Lipsync != nil {
			c.deps.Lipsync.Detach()
		}
		c.batch.Reset()
		if n := c.deps.Clips.RevokeAll(); n > 0 {
			c.logger.Debug("revoked pending clips", "count", n)
		}
	})
}

func (c *Controller) requestFeedback() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FeedbackTimeout)
	defer cancel()

	res, err := c.deps.Feedback.Trigger(ctx, c.sessionID)
	if err != nil {
		c.logger.Error("feedback request failed", "error", err)
		c.notify(Notice{Level: LevelError, Message: "Could not request interview feedback. Please try again later."})
		return
	}
	c.notify(Notice{Level: LevelInfo, Message: res.Notification()})
}

func (c *Controller) notifyStatus(s Snapshot) {
	if c.OnStatus != nil {
		c.OnStatus(c.stats(s))
	}
}

func (c *Controller) notify(n Notice) {
	if c.OnNotify != nil {
		c.OnNotify(n)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
