package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/infrasketch/sketchd/pkg/session"
)

func (h *Handler) handleAddNode(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req session.AddNodeRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.AddNode(r.Context(), chi.URLParam(r, "sessionID"), req.Node, pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleUpdateNode(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req session.UpdateNodeRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.UpdateNode(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "nodeID"), req.Patch, pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDeleteNode(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.DeleteNode(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "nodeID"), pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleAddEdge(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req session.AddEdgeRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.AddEdge(r.Context(), chi.URLParam(r, "sessionID"), req.Edge, pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.DeleteEdge(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "edgeID"), pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req session.CreateGroupRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, groupID, err := h.studio.CreateGroup(r.Context(), chi.URLParam(r, "sessionID"), req.ChildNodeIDs, pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.CreateGroupResponse{Diagram: d, GroupID: groupID})
}

func (h *Handler) handleUngroup(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.Ungroup(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "groupID"), pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleToggleCollapse(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	d, err := h.studio.ToggleCollapse(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "groupID"), pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, d)
}

func (h *Handler) handleGenerateDescription(w http.ResponseWriter, r *http.Request) {
	pin, err := versionPin(r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	desc, d, err := h.studio.GenerateDescription(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "nodeID"), pin)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.DescriptionResponse{Description: desc, Diagram: d})
}
