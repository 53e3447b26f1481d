package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/infrasketch/sketchd/pkg/session"
)

func (h *Handler) handleCreateBlank(w http.ResponseWriter, r *http.Request) {
	sess, err := h.studio.CreateBlank(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.CreateBlankResponse{SessionID: sess.ID, Diagram: sess.Diagram})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.studio.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.studio.List(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	var req session.RenameRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	sess, err := h.studio.Rename(r.Context(), chi.URLParam(r, "sessionID"), req.Name)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.SuccessResponse{Success: true, Name: sess.Name})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.studio.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.SuccessResponse{Success: true, Message: "session deleted"})
}
