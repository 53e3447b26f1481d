package studio

import (
	"context"

	"github.com/infrasketch/sketchd/internal/render"
	"github.com/infrasketch/sketchd/pkg/session"
)

// UpdateDesignDoc replaces the design document with hand-edited content.
func (s *Service) UpdateDesignDoc(ctx context.Context, id, content string) (*session.Session, error) {
	if content == "" {
		return nil, session.ErrInvalidRequest("content must not be empty")
	}

	release := s.locks.Lock(id)
	defer release()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, id)
	}
	if sess.DesignDocStatus == session.DesignDocGenerating {
		return nil, session.ErrConflict("design document generation in progress")
	}

	sess.DesignDoc = content
	sess.DesignDocStatus = session.DesignDocCompleted
	sess.DesignDocError = ""
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, mapStoreErr(err, id)
	}
	return sess, nil
}

// ExportDesignDoc renders the completed design document to PDF through
// the renderer service.
func (s *Service) ExportDesignDoc(ctx context.Context, id string) (*render.Result, error) {
	release := s.locks.RLock(id)
	defer release()

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err, id)
	}
	if !sess.HasDesignDoc() {
		return nil, session.ErrInvalidRequest("session %s has no completed design document", id)
	}

	return s.renderer.RenderPDF(ctx, sess.Name, sess.DesignDoc)
}
