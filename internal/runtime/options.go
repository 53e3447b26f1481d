package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/infrasketch/sketchd/internal/assistant"
	"github.com/infrasketch/sketchd/internal/config"
	"github.com/infrasketch/sketchd/internal/events"
	"github.com/infrasketch/sketchd/internal/events/direct"
	natsevents "github.com/infrasketch/sketchd/internal/events/nats"
	"github.com/infrasketch/sketchd/internal/render"
	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/internal/storage/memory"
	"github.com/infrasketch/sketchd/internal/storage/postgres"
	"github.com/infrasketch/sketchd/internal/storage/sqlite"
)

// Option configures a Service before assembly.
type Option func(*Service) error

// WithConfig supplies an already-loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		s.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from the given YAML file. A
// missing file falls back to environment variables and defaults.
func WithConfigFile(path string) Option {
	return func(s *Service) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithMemoryStorage keeps sessions in process memory (default). All
// state is lost on restart.
func WithMemoryStorage() Option {
	return func(s *Service) error {
		s.store = memory.New()
		return nil
	}
}

// WithSQLiteStorage persists sessions to a SQLite file. Suits
// single-instance deployments.
func WithSQLiteStorage(path string) Option {
	return func(s *Service) error {
		store, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("open sqlite storage: %w", err)
		}
		s.store = store
		return nil
	}
}

// WithPostgresStorage persists sessions to PostgreSQL. Required when
// running more than one instance against shared state.
func WithPostgresStorage(dsn string) Option {
	return func(s *Service) error {
		ctx, cancel := context.WithTimeout(context.Background(), adapterDialTimeout)
		defer cancel()
		store, err := postgres.New(ctx, dsn)
		if err != nil {
			return fmt.Errorf("connect postgres storage: %w", err)
		}
		s.store = store
		return nil
	}
}

// WithDirectEvents delivers events synchronously to in-process
// subscribers (default).
func WithDirectEvents() Option {
	return func(s *Service) error {
		logger := s.logger
		if logger == nil {
			logger = slog.Default()
		}
		s.publisher = direct.NewPublisher(logger)
		return nil
	}
}

// WithNATSEvents publishes events to a NATS subject per session,
// letting other processes follow live session activity.
func WithNATSEvents(url, subjectPrefix string) Option {
	return func(s *Service) error {
		publisher, err := natsevents.NewPublisher(url, subjectPrefix)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		s.publisher = publisher
		return nil
	}
}

// WithStore sets a custom session store.
func WithStore(store storage.Store) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithAssistant sets a custom assistant provider.
func WithAssistant(provider assistant.Provider) Option {
	return func(s *Service) error {
		s.provider = provider
		return nil
	}
}

// WithRenderer sets a custom document renderer.
func WithRenderer(renderer render.Renderer) Option {
	return func(s *Service) error {
		s.renderer = renderer
		return nil
	}
}

// WithPublisher sets a custom event publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) error {
		s.publisher = publisher
		return nil
	}
}
