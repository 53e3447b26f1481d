// Package studio is the session/diagram service. Every diagram invariant
// the API promises is enforced here: handlers decode and encode, studio
// decides.
package studio

import (
	"context"
	"errors"
	"log/slog"

	"github.com/infrasketch/sketchd/internal/assistant"
	"github.com/infrasketch/sketchd/internal/events"
	"github.com/infrasketch/sketchd/internal/pkg/keylock"
	"github.com/infrasketch/sketchd/internal/render"
	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// Service owns session state transitions. Mutations serialize per session
// through a key lock; reads share it.
type Service struct {
	store        storage.Store
	provider     assistant.Provider
	renderer     render.Renderer
	publisher    events.Publisher
	locks        *keylock.KeyLock
	logger       *slog.Logger
	defaultModel string
}

// NewService wires the service. defaultModel is used for sessions created
// without an explicit model (blank canvases).
func NewService(store storage.Store, provider assistant.Provider, renderer render.Renderer, publisher events.Publisher, logger *slog.Logger, defaultModel string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		provider:     provider,
		renderer:     renderer,
		publisher:    publisher,
		locks:        keylock.NewKeyLock(),
		logger:       logger,
		defaultModel: defaultModel,
	}
}

// Locks exposes the per-session lock so the generation manager can share
// the same serialization domain.
func (s *Service) Locks() *keylock.KeyLock {
	return s.locks
}

// Store exposes the backing store for components assembled alongside the
// service (generation manager, handlers that only read).
func (s *Service) Store() storage.Store {
	return s.store
}

// CreateBlank creates an editable session with an empty diagram. There is
// nothing to generate, so it starts completed.
func (s *Service) CreateBlank(ctx context.Context) (*session.Session, error) {
	sess := session.New(s.defaultModel)
	sess.Status = session.StatusCompleted
	sess.Diagram = diagram.New()

	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, session.ErrServer("create session: %v", err)
	}

	s.publish(ctx, events.New(events.TypeSessionCreated, sess.ID, map[string]any{"blank": true}))
	return sess, nil
}

// Get returns the full session, durable transcript included.
func (s *Service) Get(ctx context.Context, id string) (*session.Session, error) {
	release := s.locks.RLock(id)
	defer release()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, id)
	}
	return sess, nil
}

// List returns summaries of every session, most recently updated first.
func (s *Service) List(ctx context.Context) ([]session.Summary, error) {
	summaries, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, session.ErrServer("list sessions: %v", err)
	}
	return summaries, nil
}

// Delete removes a session and its transcript.
func (s *Service) Delete(ctx context.Context, id string) error {
	release := s.locks.Lock(id)
	defer release()

	if err := s.store.DeleteSession(ctx, id); err != nil {
		return mapStoreErr(err, id)
	}

	s.publish(ctx, events.New(events.TypeSessionDeleted, id, nil))
	return nil
}

// Rename sets a user-chosen name and clears the generated-name flag so a
// later regeneration will not overwrite it.
func (s *Service) Rename(ctx context.Context, id, name string) (*session.Session, error) {
	if name == "" {
		return nil, session.ErrInvalidRequest("name must not be empty")
	}

	release := s.locks.Lock(id)
	defer release()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, id)
	}

	sess.Name = name
	sess.NameGenerated = false
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, mapStoreErr(err, id)
	}
	return sess, nil
}

// publish delivers an event, logging instead of failing the operation
// that produced it.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed",
			slog.String("type", string(event.Type)),
			slog.String("session_id", event.SessionID),
			slog.String("error", err.Error()))
	}
}

func mapStoreErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return session.ErrNotFound("session %s not found", id)
	}
	return session.ErrServer("storage: %v", err)
}
