package audioio

import (
	"fmt"
	"log/slog"
	"sort"
)

// driver opens the capture and playback devices of one backend.
type driver struct {
	source func(Config, *slog.Logger) (Source, error)
	sink   func(Config, *slog.Logger) (Sink, error)
}

// drivers holds the backends compiled into this binary. Optional backends
// add themselves from init.
var drivers = map[Backend]driver{
	BackendMock: {
		source: func(cfg Config, logger *slog.Logger) (Source, error) { return NewMockSource(cfg, logger), nil },
		sink:   func(cfg Config, logger *slog.Logger) (Sink, error) { return NewMockSink(cfg, logger), nil },
	},
}

func register(b Backend, d driver) {
	drivers[b] = d
}

// NewSource opens the microphone of the configured backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	d, backend, logger, err := lookup(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opening capture",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"frame", cfg.BufferDuration,
	)
	return d.source(cfg, logger)
}

// NewSink opens the speaker of the configured backend.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	d, backend, logger, err := lookup(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("opening playback", "backend", backend, "sample_rate", cfg.SampleRate, "channels", cfg.Channels)
	return d.sink(cfg, logger)
}

func lookup(cfg Config, logger *slog.Logger) (driver, Backend, *slog.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return driver{}, "", nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	backend := resolveBackend(cfg.Backend)
	d, ok := drivers[backend]
	if !ok {
		return driver{}, backend, nil, NewDeviceError(string(backend), "open", ErrBackendUnavailable)
	}
	return d, backend, logger, nil
}

// resolveBackend maps auto to real hardware when it was compiled in.
func resolveBackend(b Backend) Backend {
	if b != "" && b != BackendAuto {
		return b
	}
	if _, ok := drivers[BackendPortAudio]; ok {
		return BackendPortAudio
	}
	return BackendMock
}

// AvailableBackends lists the compiled-in backends, mock first.
func AvailableBackends() []Backend {
	backends := make([]Backend, 0, len(drivers))
	for b := range drivers {
		if b != BackendMock {
			backends = append(backends, b)
		}
	}
	sort.Slice(backends, func(i, j int) bool { return backends[i] < backends[j] })
	return append([]Backend{BackendMock}, backends...)
}
