package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/basecamp/internal/cache"
	"github.com/Iron-Ham/basecamp/internal/config"
	"github.com/Iron-Ham/basecamp/internal/dispatch"
	"github.com/Iron-Ham/basecamp/internal/engine"
	"github.com/Iron-Ham/basecamp/internal/errors"
	"github.com/Iron-Ham/basecamp/internal/event"
	"github.com/Iron-Ham/basecamp/internal/intent"
	"github.com/Iron-Ham/basecamp/internal/llm"
	"github.com/Iron-Ham/basecamp/internal/location"
	"github.com/Iron-Ham/basecamp/internal/logging"
	"github.com/Iron-Ham/basecamp/internal/metrics"
	"github.com/Iron-Ham/basecamp/internal/ratelimit"
	"github.com/Iron-Ham/basecamp/internal/review"
	"github.com/Iron-Ham/basecamp/internal/specialist"
	"github.com/Iron-Ham/basecamp/internal/specialist/agents"
	"github.com/Iron-Ham/basecamp/internal/store"
	"github.com/Iron-Ham/basecamp/internal/synth"
	"github.com/Iron-Ham/basecamp/internal/tools"
)

// LogDirName is the directory under the data directory holding debug.log.
const LogDirName = "logs"

// app is everything a command needs to run plans, built from the loaded
// configuration.
type app struct {
	cfg     *config.Config
	dir     string
	logger  *logging.Logger
	bus     *event.Bus
	metrics *metrics.Metrics
	store   store.Store
	engine  *engine.Engine
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.NewConfigError("config", "invalid configuration", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	dir := filepath.Join(cfg.Store.ResolvedDir(), LogDirName)
	logger, err := logging.NewLoggerWithRotation(dir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

// newApp wires the engine from the current configuration.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus(logger)
	m := metrics.New()
	m.Subscribe(bus)

	var results *cache.Cache
	if cfg.Cache.Enabled {
		results = cache.FromConfig(cfg.Cache)
	}
	limiter := ratelimit.FromConfig(cfg.RateLimit, logger, bus)
	toolClient := tools.New(cache.NewCaller(results, limiter, logger, bus), tools.Options{Logger: logger})

	var model llm.Client
	provider, err := llm.NewOpenAI(cfg.LLM, logger)
	switch {
	case err == nil:
		model = provider
	case errors.Is(err, errors.ErrMissingAPIKey):
		logger.Warn("no llm api key configured, using heuristic analysis and assembled plans")
	default:
		_ = logger.Close()
		return nil, err
	}

	locations := location.Arizona()
	registry, err := agents.NewRegistry(agents.Deps{
		LLM:       model,
		Tools:     toolClient,
		Locations: locations,
		Logger:    logger,
	})
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	table := specialist.NewTable(locations.Agents())
	runner := specialist.RunnerFromConfig(registry, cfg.Dispatch, logger, bus)

	st, err := store.Open(cfg.Store)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	eng := engine.New(engine.Options{
		Analyzer: intent.New(intent.Options{
			LLM:       model,
			Locations: locations,
			Table:     table,
			Logger:    logger,
		}),
		Dispatcher: dispatch.FromConfig(cfg.Dispatch, runner, table, logger, bus),
		Gate:       review.FromConfig(cfg.Review, logger, bus),
		Synthesizer: synth.New(synth.Options{
			LLM:     model,
			Timeout: cfg.LLM.Timeout(),
			Logger:  logger,
		}),
		Store:   st,
		Archive: cfg.Store.Archive,
		Logger:  logger,
		Bus:     bus,
	})

	return &app{
		cfg:     cfg,
		dir:     cfg.Store.ResolvedDir(),
		logger:  logger,
		bus:     bus,
		metrics: m,
		store:   st,
		engine:  eng,
	}, nil
}

// Close stops the engine and releases the store and the log.
func (a *app) Close() error {
	err := a.engine.Close()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	if cerr := a.logger.Close(); err == nil {
		err = cerr
	}
	return err
}
