// Package runtime assembles a complete sketchd service from
// configuration: storage, assistant, renderer, event publisher, the
// studio and generation services, and the HTTP server. It can be
// embedded in larger applications or run standalone from cmd/sketchd.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/infrasketch/sketchd/internal/api"
	"github.com/infrasketch/sketchd/internal/assistant"
	"github.com/infrasketch/sketchd/internal/config"
	"github.com/infrasketch/sketchd/internal/events"
	"github.com/infrasketch/sketchd/internal/events/direct"
	natsevents "github.com/infrasketch/sketchd/internal/events/nats"
	"github.com/infrasketch/sketchd/internal/generate"
	"github.com/infrasketch/sketchd/internal/render"
	"github.com/infrasketch/sketchd/internal/server"
	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/internal/storage/memory"
	"github.com/infrasketch/sketchd/internal/storage/postgres"
	"github.com/infrasketch/sketchd/internal/storage/sqlite"
	"github.com/infrasketch/sketchd/internal/studio"
)

const adapterDialTimeout = 10 * time.Second

// Service is the assembled sketchd application. Dependencies not set
// through options are built from configuration in New.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	store     storage.Store
	provider  assistant.Provider
	renderer  render.Renderer
	publisher events.Publisher

	studio   *studio.Service
	generate *generate.Manager
	server   *server.Server

	mu      sync.Mutex
	started bool
}

// New builds a Service. The default assembly reads config.yaml (or
// SKETCH_ environment variables), keeps sessions in memory, publishes
// events in-process, and talks to an OpenAI-compatible assistant.
func New(opts ...Option) (*Service, error) {
	s := &Service{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if s.store == nil {
		store, err := buildStore(s.cfg.Storage)
		if err != nil {
			return nil, err
		}
		s.store = store
	}
	if s.publisher == nil {
		publisher, err := buildPublisher(s.cfg.Events, s.logger)
		if err != nil {
			return nil, err
		}
		s.publisher = publisher
	}
	if s.provider == nil {
		if s.cfg.Assistant.APIKey == "" {
			s.logger.Warn("no assistant api key configured, upstream calls will fail")
		}
		s.provider = assistant.NewClient(s.cfg.Assistant.APIKey,
			assistant.WithBaseURL(s.cfg.Assistant.BaseURL),
			assistant.WithModel(s.cfg.Assistant.Model),
			assistant.WithTokenBudget(s.cfg.Assistant.TokenBudget),
			assistant.WithHTTPClient(&http.Client{Timeout: config.Duration(s.cfg.Assistant.Timeout, time.Minute)}),
			assistant.WithLogger(s.logger),
		)
	}
	if s.renderer == nil {
		s.renderer = render.NewClient(s.cfg.Renderer.BaseURL,
			render.WithHTTPClient(&http.Client{Timeout: config.Duration(s.cfg.Renderer.Timeout, 30*time.Second)}),
			render.WithLogger(s.logger),
		)
	}

	s.studio = studio.NewService(s.store, s.provider, s.renderer, s.publisher, s.logger, s.cfg.Assistant.Model)
	s.generate = generate.NewManager(s.store, s.provider, s.publisher, s.studio.Locks(),
		s.logger, s.cfg.Assistant.Model, config.Duration(s.cfg.Generate.Timeout, 0))

	handler := api.NewHandler(s.studio, s.generate, s.logger)
	s.server = server.New(s.cfg.Server, handler.Routes(), s.logger)

	return s, nil
}

func buildStore(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return store, nil
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), adapterDialTimeout)
		defer cancel()
		store, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func buildPublisher(cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, error) {
	switch cfg.Type {
	case "", "direct":
		return direct.NewPublisher(logger), nil
	case "nats":
		publisher, err := natsevents.NewPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		return publisher, nil
	default:
		return nil, fmt.Errorf("unknown events type %q", cfg.Type)
	}
}

// Handler returns the full HTTP handler, for tests and embedders that
// serve it on their own listener.
func (s *Service) Handler() http.Handler {
	return s.server.Handler()
}

// Studio exposes the session service for embedders.
func (s *Service) Studio() *studio.Service {
	return s.studio
}

// Start begins serving HTTP in the background. It returns immediately;
// listener failures are logged.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("service already started")
	}
	s.started = true

	go func() {
		if err := s.server.Start(); err != nil {
			s.logger.Error("server failed", slog.String("error", err.Error()))
		}
	}()

	s.logger.Info("sketchd started",
		slog.String("addr", s.cfg.Server.Addr()),
		slog.String("storage", storageName(s.cfg.Storage.Type)),
		slog.String("events", eventsName(s.cfg.Events.Type)))
	return nil
}

// Shutdown stops the listener, waits for in-flight generation jobs
// until ctx expires, and closes the publisher and store.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down")

	var firstErr error
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		firstErr = err
	}

	done := make(chan struct{})
	go func() {
		s.generate.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("shutdown deadline reached with generation jobs still running")
	}

	if err := s.publisher.Close(); err != nil {
		s.logger.Error("close publisher failed", slog.String("error", err.Error()))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("close storage failed", slog.String("error", err.Error()))
	}

	s.logger.Info("shutdown complete")
	return firstErr
}

func storageName(t string) string {
	if t == "" {
		return "memory"
	}
	return t
}

func eventsName(t string) string {
	if t == "" {
		return "direct"
	}
	return t
}
