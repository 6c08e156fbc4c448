// interviewly: voice interview client.
// Captures the microphone, streams answers to the interview backend, plays the
// interviewer's replies and drives the avatar renderer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/config"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/internal/log"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/audioio"
	"github.com/RadwanJunior/Interviewly-Intelligent-Job-Interview-Preparation-System-sub001/pkg/interview"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("interviewly")

	app, err := interview.New(cfg, log.L())
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if err := app.Init(); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("interview starting", "session", cfg.SessionID, "renderer", "http://localhost"+cfg.Web.Addr)
	if err := app.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
		os.Exit(1)
	}
	logger.Info("goodbye")
}

// parseFlags loads .env and the config file, then applies flags on top.
func parseFlags() (config.Config, error) {
	configPath := flag.String("config", "", "YAML config file")
	session := flag.String("session", "", "Interview session id (overrides INTERVIEWLY_SESSION_ID; random when unset)")
	host := flag.String("host", "", "Backend host[:port] (overrides INTERVIEWLY_HOST)")
	secure := flag.Bool("secure", false, "Use wss:// for the session socket")
	addr := flag.String("addr", "", "Renderer listen address (overrides INTERVIEWLY_ADDR)")
	backend := flag.String("backend", "", fmt.Sprintf("Audio backend %v", audioio.AvailableBackends()))
	static := flag.String("static", "", "Directory with the renderer's static assets")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}

	if *session != "" {
		cfg.SessionID = *session
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if *host != "" {
		cfg.Transport.Host = *host
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "secure" {
			cfg.Transport.Secure = *secure
		}
	})
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *backend != "" {
		cfg.Audio.Backend = audioio.Backend(*backend)
	}
	if *static != "" {
		cfg.Web.StaticDir = *static
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}
