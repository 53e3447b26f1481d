package api

import (
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/infrasketch/sketchd/pkg/session"
)

func (h *Handler) handleGenerateDesignDoc(w http.ResponseWriter, r *http.Request) {
	if err := h.generate.GenerateDesignDoc(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.DesignDocGenerateResponse{
		Status:  "started",
		Message: "design document generation started",
	})
}

func (h *Handler) handleDesignDocStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.generate.DesignDocStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateDesignDoc(w http.ResponseWriter, r *http.Request) {
	var req session.UpdateDesignDocRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	if _, err := h.studio.UpdateDesignDoc(r.Context(), chi.URLParam(r, "sessionID"), req.Content); err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.SuccessResponse{Success: true})
}

func (h *Handler) handleExportDesignDoc(w http.ResponseWriter, r *http.Request) {
	result, err := h.studio.ExportDesignDoc(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, session.ExportResponse{
		PDF: session.PDFPayload{
			Content:  base64.StdEncoding.EncodeToString(result.Content),
			Filename: result.Filename,
		},
	})
}
