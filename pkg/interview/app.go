// Package interview assembles the voice interview client from its parts:
// capture and VAD, the session socket, reply playback with lipsync, the turn
// controller and the renderer surface.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/config"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/httpc"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/audioio"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/feedback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/lipsync"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/playback"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/transport"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/turn"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/vad"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/web"
)

// ErrNoSession is returned by New when no session id is configured.
var ErrNoSession = errors.New("interview: session id is required")

// Option customizes an App.
type Option func(*App)

// WithSource replaces the capture device.
func WithSource(src audioio.Source) Option {
	return func(a *App) { a.source = src }
}

// WithSink replaces the playback device.
func WithSink(sink audioio.Sink) Option {
	return func(a *App) { a.sink = sink }
}

// App owns every component of one interview and their lifecycle.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	source audioio.Source
	sink   audioio.Sink

	clips    *playback.ClipStore
	analyzer *lipsync.Analyzer
	player   *playback.Controller
	socket   *transport.Socket
	detector *vad.Adapter
	session  *turn.Controller
	web      *web.Server
}

// New validates cfg and returns an uninitialized App.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if cfg.SessionID == "" {
		return nil, ErrNoSession
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Init builds the components and wires their callbacks together.
func (a *App) Init() error {
	var err error
	if a.source == nil {
		if a.source, err = audioio.NewSource(a.cfg.Audio, a.logger); err != nil {
			return fmt.Errorf("audio source: %w", err)
		}
	}
	if a.sink == nil {
		if a.sink, err = audioio.NewSink(a.cfg.Audio, a.logger); err != nil {
			return fmt.Errorf("audio sink: %w", err)
		}
	}

	if a.analyzer, err = lipsync.New(a.cfg.Lipsync, a.logger); err != nil {
		return fmt.Errorf("lipsync: %w", err)
	}
	a.clips = playback.NewClipStore()
	if a.player, err = playback.NewController(a.cfg.Playback, a.sink, a.clips, a.analyzer, a.logger); err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	a.socket = transport.NewSocket(a.cfg.Transport, a.cfg.SessionID, a.logger)
	fb := feedback.NewClient(a.cfg.FeedbackURL, httpc.NewClient(a.cfg.Turn.FeedbackTimeout), a.logger)

	a.session, err = turn.NewController(a.cfg.Turn, a.cfg.SessionID, turn.Deps{
		Socket:   a.socket,
		Player:   a.player,
		Clips:    a.clips,
		Lipsync:  a.analyzer,
		Feedback: fb,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}
	a.session.BindSocket(a.socket)

	engine, err := vad.NewEngine(a.cfg.VAD)
	if err != nil {
		return fmt.Errorf("vad: %w", err)
	}
	a.detector = vad.NewAdapter(a.cfg.VAD, a.source, engine, a.session.VADCallbacks(), a.logger)
	a.session.SetVAD(a.detector)

	if a.web, err = web.NewServer(a.cfg.Web, a.analyzer, a.clips, a.logger); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	a.web.SetSession(a.session)
	a.session.OnStatus = a.web.PublishStatus
	a.session.OnNotify = func(n turn.Notice) {
		a.logger.Info("notice", "level", n.Level, "message", n.Message)
		a.web.PublishNotice(n)
	}

	a.logger.Info("interview ready",
		"session", a.cfg.SessionID,
		"url", a.socket.URL(),
		"vad", engine.Name(),
		"renderer", a.cfg.Web.Addr,
	)
	return nil
}

// Run drives the session until it ends or ctx is cancelled, then keeps the
// renderer up for the configured linger.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return errors.New("interview: Init not called")
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := a.analyzer.Start(gctx); err != nil {
		return fmt.Errorf("lipsync: %w", err)
	}

	webCtx, stopWeb := context.WithCancel(gctx)
	defer stopWeb()

	g.Go(func() error {
		return a.web.Run(webCtx)
	})
	g.Go(func() error {
		defer stopWeb()
		err := a.session.Run(gctx)
		if a.cfg.Linger > 0 && gctx.Err() == nil {
			select {
			case <-time.After(a.cfg.Linger):
			case <-gctx.Done():
			}
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return g.Wait()
}

// Shutdown releases the devices. The session tears itself down when it ends;
// Shutdown covers the case where Run never started.
func (a *App) Shutdown() {
	if a.session != nil {
		a.session.Terminate()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.socket != nil {
		a.socket.Close()
	}
	if a.analyzer != nil {
		a.analyzer.Close()
	}
	if a.sink != nil {
		a.sink.Close()
	}
}

// Session returns the running session.
func (a *App) Session() *turn.Controller { return a.session }

// Web returns the renderer surface.
func (a *App) Web() *web.Server { return a.web }

// Player returns the playback controller.
func (a *App) Player() *playback.Controller { return a.player }
