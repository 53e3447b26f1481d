package studio

import (
	"context"

	"github.com/infrasketch/sketchd/internal/assistant"
	"github.com/infrasketch/sketchd/internal/events"
	"github.com/infrasketch/sketchd/pkg/diagram"
	"github.com/infrasketch/sketchd/pkg/session"
)

// GenerateDescription asks the assistant to describe one node and
// persists the result on it. The session lock is held across the
// assistant call so the description lands on the diagram it was written
// for.
func (s *Service) GenerateDescription(ctx context.Context, sessionID, nodeID string, pin int64) (string, *diagram.Diagram, error) {
	var description string
	d, err := s.mutateSession(ctx, sessionID, pin, "generate_description", func(sess *session.Session) error {
		n := sess.Diagram.NodeByID(nodeID)
		if n == nil {
			return session.ErrNotFound("node %s not found", nodeID)
		}

		desc, err := s.provider.DescribeNode(ctx, sess.Model, sess.Diagram, nodeID)
		if err != nil {
			return err
		}

		n.Description = desc
		description = desc
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return description, d, nil
}

// Chat runs one conversational turn. The user message is persisted before
// the assistant call so it survives an assistant failure; when the reply
// carries a diagram it replaces the session's diagram wholesale.
func (s *Service) Chat(ctx context.Context, req session.ChatRequest) (*session.ChatResponse, error) {
	if req.SessionID == "" {
		return nil, session.ErrInvalidRequest("session_id must not be empty")
	}
	if req.Message == "" {
		return nil, session.ErrInvalidRequest("message must not be empty")
	}

	release := s.locks.Lock(req.SessionID)
	defer release()

	sess, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, mapStoreErr(err, req.SessionID)
	}

	userMsg := session.NewMessage(session.RoleUser, req.Message)
	if err := s.store.AddMessage(ctx, sess.ID, userMsg); err != nil {
		return nil, mapStoreErr(err, sess.ID)
	}
	sess.Messages = append(sess.Messages, userMsg)

	result, err := s.provider.Chat(ctx, assistant.ChatRequest{
		Model:         sess.Model,
		Messages:      sess.Messages,
		Diagram:       sess.Diagram,
		FocusedNodeID: req.FocusedNodeID,
	})
	if err != nil {
		// The user message stays; the client renders the failure inline.
		return nil, err
	}

	var updated *diagram.Diagram
	if result.Diagram != nil {
		if verr := result.Diagram.Validate(); verr != nil {
			return nil, session.ErrUpstream("assistant returned an invalid diagram: %v", verr)
		}
		updated = result.Diagram.Clone()
		if sess.Diagram != nil {
			updated.Version = sess.Diagram.Version + 1
		} else {
			updated.Version = 1
		}
		sess.Diagram = updated
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			return nil, mapStoreErr(err, sess.ID)
		}
	}

	reply := session.NewMessage(session.RoleAssistant, result.Reply)
	if err := s.store.AddMessage(ctx, sess.ID, reply); err != nil {
		return nil, mapStoreErr(err, sess.ID)
	}

	if updated != nil {
		s.publish(ctx, events.New(events.TypeDiagramUpdated, sess.ID, map[string]any{
			"operation": "chat",
			"version":   updated.Version,
		}))
	}

	return &session.ChatResponse{
		Response: result.Reply,
		Diagram:  updated,
	}, nil
}
