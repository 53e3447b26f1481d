// Package generate runs the two long-running AI workflows: initial
// diagram generation and design-document generation. Both share one
// shape: create or flip state to an in-progress status, run a detached
// job against the assistant, persist the terminal result. Clients
// observe progress through the status endpoints; nothing is pushed.
package generate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/infrasketch/sketchd/internal/assistant"
	"github.com/infrasketch/sketchd/internal/events"
	"github.com/infrasketch/sketchd/internal/pkg/keylock"
	"github.com/infrasketch/sketchd/internal/storage"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

const (
	defaultJobTimeout = 2 * time.Minute

	// persistTimeout bounds the storage writes that land a job's result.
	// Separate from the job timeout so a slow assistant call cannot eat
	// the budget needed to record its own failure.
	persistTimeout = 10 * time.Second
)

// Manager owns the asynchronous generation jobs. It shares the studio
// service's per-session lock so job completion serializes against user
// edits, and tracks jobs in a WaitGroup so shutdown and tests can wait
// for stragglers.
type Manager struct {
	store        storage.Store
	provider     assistant.Provider
	publisher    events.Publisher
	locks        *keylock.KeyLock
	logger       *slog.Logger
	defaultModel string
	timeout      time.Duration

	jobs sync.WaitGroup
}

// NewManager wires the manager. locks must be the same lock table the
// studio service mutates through; timeout bounds each job's assistant
// call (zero means the default).
func NewManager(store storage.Store, provider assistant.Provider, publisher events.Publisher, locks *keylock.KeyLock, logger *slog.Logger, defaultModel string, timeout time.Duration) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	return &Manager{
		store:        store,
		provider:     provider,
		publisher:    publisher,
		locks:        locks,
		logger:       logger,
		defaultModel: defaultModel,
		timeout:      timeout,
	}
}

// Generate creates a session in the generating state and starts the
// diagram job. The session id returns immediately; the diagram arrives
// through DiagramStatus polling.
func (m *Manager) Generate(ctx context.Context, prompt, model string) (*session.Session, error) {
	if prompt == "" {
		return nil, session.ErrInvalidRequest("prompt must not be empty")
	}
	if model == "" {
		model = m.defaultModel
	}

	sess := session.New(model)
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, session.ErrServer("create session: %v", err)
	}
	m.publish(ctx, events.New(events.TypeSessionCreated, sess.ID, map[string]any{"prompt_chars": len(prompt)}))

	m.jobs.Add(1)
	go m.runDiagramJob(sess.ID, prompt, model)

	return sess, nil
}

// DiagramStatus reports one generation poll. Completed responses carry
// the diagram, the generated name, the durable transcript, and the
// elapsed duration; failed responses carry the error string.
func (m *Manager) DiagramStatus(ctx context.Context, sessionID string) (*session.DiagramStatusResponse, error) {
	release := m.locks.RLock(sessionID)
	defer release()

	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, mapStoreErr(err, sessionID)
	}

	resp := &session.DiagramStatusResponse{Status: sess.Status}
	switch sess.Status {
	case session.StatusCompleted:
		resp.Diagram = sess.Diagram
		resp.Messages = sess.Messages
		resp.Name = sess.Name
		resp.DurationSeconds = sess.DurationSeconds
	case session.StatusFailed:
		resp.Error = sess.GenerationError
	}
	return resp, nil
}

// GenerateDesignDoc starts the design-document job for an existing
// session. A second start while one is running is a conflict; the
// session must have a completed diagram to document.
func (m *Manager) GenerateDesignDoc(ctx context.Context, sessionID string) error {
	release := m.locks.Lock(sessionID)
	defer release()

	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return mapStoreErr(err, sessionID)
	}
	if sess.DesignDocStatus == session.DesignDocGenerating {
		return session.ErrConflict("design document generation already in progress")
	}
	if sess.Status != session.StatusCompleted || sess.Diagram == nil {
		return session.ErrInvalidRequest("session %s has no completed diagram to document", sessionID)
	}

	sess.DesignDocStatus = session.DesignDocGenerating
	sess.DesignDocError = ""
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return mapStoreErr(err, sessionID)
	}

	m.jobs.Add(1)
	go m.runDesignDocJob(sess.ID, sess.Model, sess.Name, sess.Diagram.Clone())

	return nil
}

// DesignDocStatus reports one design-doc poll.
func (m *Manager) DesignDocStatus(ctx context.Context, sessionID string) (*session.DesignDocStatusResponse, error) {
	release := m.locks.RLock(sessionID)
	defer release()

	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, mapStoreErr(err, sessionID)
	}

	resp := &session.DesignDocStatusResponse{Status: sess.DesignDocStatus}
	switch sess.DesignDocStatus {
	case session.DesignDocCompleted:
		resp.DesignDoc = sess.DesignDoc
		resp.DurationSeconds = sess.DesignDocDuration
	case session.DesignDocFailed:
		resp.Error = sess.DesignDocError
	}
	return resp, nil
}

// Wait blocks until every in-flight job has landed its result. Jobs are
// bounded by the configured timeout, so Wait is too.
func (m *Manager) Wait() {
	m.jobs.Wait()
}

// runDiagramJob runs one diagram generation to its terminal state. The
// assistant call happens outside the session lock; only the final
// persist holds it.
func (m *Manager) runDiagramJob(sessionID, prompt, model string) {
	defer m.jobs.Done()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
	result, err := m.provider.GenerateDiagram(callCtx, prompt, model)
	cancel()

	if err == nil {
		if result == nil || result.Diagram == nil {
			err = session.ErrUpstream("assistant returned no diagram")
		} else if verr := result.Diagram.Validate(); verr != nil {
			err = session.ErrUpstream("assistant returned an invalid diagram: %v", verr)
		}
	}
	elapsed := time.Since(start).Seconds()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	release := m.locks.Lock(sessionID)
	defer release()

	sess, gerr := m.store.GetSession(ctx, sessionID)
	if gerr != nil {
		// Deleted mid-generation; nowhere to land the result.
		if !errors.Is(gerr, storage.ErrNotFound) {
			m.logger.Error("generation result lost",
				slog.String("session_id", sessionID),
				slog.String("error", gerr.Error()))
		}
		return
	}

	if err != nil {
		sess.Status = session.StatusFailed
		sess.GenerationError = err.Error()
		sess.DurationSeconds = elapsed
		if uerr := m.store.UpdateSession(ctx, sess); uerr != nil {
			m.logger.Error("persist failed generation",
				slog.String("session_id", sessionID),
				slog.String("error", uerr.Error()))
			return
		}
		m.logger.Warn("diagram generation failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
			slog.Float64("elapsed_seconds", elapsed))
		m.publish(ctx, events.New(events.TypeGenerationFailed, sessionID, map[string]any{"error": err.Error()}))
		return
	}

	d := result.Diagram.Clone()
	d.Version = 1
	sess.Diagram = d
	sess.Status = session.StatusCompleted
	sess.DurationSeconds = elapsed
	if result.Name != "" {
		sess.Name = result.Name
		sess.NameGenerated = true
	}
	if uerr := m.store.UpdateSession(ctx, sess); uerr != nil {
		m.logger.Error("persist completed generation",
			slog.String("session_id", sessionID),
			slog.String("error", uerr.Error()))
		return
	}
	if result.Summary != "" {
		msg := session.NewMessage(session.RoleAssistant, result.Summary)
		if aerr := m.store.AddMessage(ctx, sessionID, msg); aerr != nil {
			m.logger.Warn("persist generation summary",
				slog.String("session_id", sessionID),
				slog.String("error", aerr.Error()))
		}
	}

	m.logger.Info("diagram generated",
		slog.String("session_id", sessionID),
		slog.Int("nodes", len(d.Nodes)),
		slog.Int("edges", len(d.Edges)),
		slog.Float64("elapsed_seconds", elapsed))
	m.publish(ctx, events.New(events.TypeGenerationCompleted, sessionID, map[string]any{
		"nodes":            len(d.Nodes),
		"edges":            len(d.Edges),
		"duration_seconds": elapsed,
	}))
}

// runDesignDocJob runs one design-document generation to its terminal
// state against a diagram snapshot taken at start time.
func (m *Manager) runDesignDocJob(sessionID, model, name string, snapshot *diagram.Diagram) {
	defer m.jobs.Done()
	start := time.Now()

	callCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
	doc, err := m.provider.GenerateDesignDoc(callCtx, model, name, snapshot)
	cancel()

	if err == nil && doc == "" {
		err = session.ErrUpstream("assistant returned an empty document")
	}
	elapsed := time.Since(start).Seconds()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	release := m.locks.Lock(sessionID)
	defer release()

	sess, gerr := m.store.GetSession(ctx, sessionID)
	if gerr != nil {
		if !errors.Is(gerr, storage.ErrNotFound) {
			m.logger.Error("design doc result lost",
				slog.String("session_id", sessionID),
				slog.String("error", gerr.Error()))
		}
		return
	}

	if err != nil {
		sess.DesignDocStatus = session.DesignDocFailed
		sess.DesignDocError = err.Error()
		sess.DesignDocDuration = elapsed
		if uerr := m.store.UpdateSession(ctx, sess); uerr != nil {
			m.logger.Error("persist failed design doc",
				slog.String("session_id", sessionID),
				slog.String("error", uerr.Error()))
			return
		}
		m.publish(ctx, events.New(events.TypeDesignDocFailed, sessionID, map[string]any{"error": err.Error()}))
		return
	}

	sess.DesignDoc = doc
	sess.DesignDocStatus = session.DesignDocCompleted
	sess.DesignDocDuration = elapsed
	if uerr := m.store.UpdateSession(ctx, sess); uerr != nil {
		m.logger.Error("persist completed design doc",
			slog.String("session_id", sessionID),
			slog.String("error", uerr.Error()))
		return
	}

	m.logger.Info("design doc generated",
		slog.String("session_id", sessionID),
		slog.Int("chars", len(doc)),
		slog.Float64("elapsed_seconds", elapsed))
	m.publish(ctx, events.New(events.TypeDesignDocCompleted, sessionID, map[string]any{"duration_seconds": elapsed}))
}

func (m *Manager) publish(ctx context.Context, event events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("event publish failed",
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
