// mock-interviewer: local stand-in for the interview backend.
// Accepts session sockets, replies to every answer with a synthesized voice
// and serves the live feedback endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlog "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/config"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/log"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/mockinterviewer"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/protocol"
)

var (
	configPath = flag.String("config", "", "YAML config file (the mock section is used)")
	port       = flag.Int("port", 8000, "HTTP server port")
	greeting   = flag.Bool("greeting", false, "Speak first when a session connects")
	fragments  = flag.Int("fragments", 0, "WAV fragments per reply (0 keeps the config value)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	if envPort := os.Getenv("PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", port)
	}

	level := "info"
	if *debug {
		level = "debug"
	}
	log.Init(level)
	logger := log.Component("mock-interviewer")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	mcfg := cfg.Mock
	if *greeting {
		mcfg.Greeting = true
	}
	if *fragments > 0 {
		mcfg.Fragments = *fragments
	}

	srv, err := mockinterviewer.NewServer(mcfg, log.L())
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	srv.OnEnd = func(id string, end protocol.UserAudioEnd, pcmBytes int) {
		logger.Debug("answer received", "session", id, "bytes", pcmBytes, "forced", end.Forced, "final", end.Final)
	}

	app := fiber.New(fiber.Config{
		AppName:               "mock-interviewer",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	if *debug {
		app.Use(fiberlog.New())
	}

	srv.RegisterRoutes(app)
	srv.RegisterAPIRoutes(app.Group("/api"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sessions": srv.SessionCount()})
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		st := srv.Stats()
		return c.SendString(fmt.Sprintf(`# HELP mock_interviewer_sessions Connected session count
# TYPE mock_interviewer_sessions gauge
mock_interviewer_sessions %d

# HELP mock_interviewer_frames_received Total PCM frames received
# TYPE mock_interviewer_frames_received counter
mock_interviewer_frames_received %d

# HELP mock_interviewer_ends_received Total USER_AUDIO_END messages received
# TYPE mock_interviewer_ends_received counter
mock_interviewer_ends_received %d

# HELP mock_interviewer_fragments_sent Total reply fragments sent
# TYPE mock_interviewer_fragments_sent counter
mock_interviewer_fragments_sent %d
`, st.Sessions, st.FramesIn, st.EndsIn, st.FragmentsOut))
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", *port)
		logger.Info("listening", "addr", addr,
			"socket", fmt.Sprintf("ws://localhost:%d/interview_call/ws/{sessionId}", *port),
			"feedback", fmt.Sprintf("http://localhost:%d/interview_call/{sessionId}/live_feedback", *port),
		)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
