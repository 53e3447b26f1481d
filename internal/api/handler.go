// Package api mounts the sketchd HTTP surface: session lifecycle,
// diagram mutations, chat, and the async generation endpoints. Handlers
// decode the pkg/session wire types, delegate to the studio service and
// the generate manager, and render every failure as the APIError
// envelope.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/infrasketch/sketchd/internal/generate"
	"github.com/infrasketch/sketchd/internal/server"
	"github.com/infrasketch/sketchd/internal/studio"
	"github.com/infrasketch/sketchd/pkg/session"
)

// Handler serves the API routes.
type Handler struct {
	studio   *studio.Service
	generate *generate.Manager
	logger   *slog.Logger
}

// NewHandler creates the API handler.
func NewHandler(studioSvc *studio.Service, generateMgr *generate.Manager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		studio:   studioSvc,
		generate: generateMgr,
		logger:   logger,
	}
}

// Routes mounts every endpoint on a fresh router. The server mounts the
// result under its configured base path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", h.handleHealth)
	r.Post("/generate", h.handleGenerate)
	r.Post("/chat", h.handleChat)
	r.Get("/user/sessions", h.handleListSessions)
	r.Post("/session/create-blank", h.handleCreateBlank)

	r.Route("/session/{sessionID}", func(r chi.Router) {
		r.Use(tagSession)
		r.Get("/", h.handleGetSession)
		r.Delete("/", h.handleDeleteSession)
		r.Patch("/name", h.handleRename)
		r.Get("/diagram/status", h.handleDiagramStatus)

		r.Post("/nodes", h.handleAddNode)
		r.Route("/nodes/{nodeID}", func(r chi.Router) {
			r.Patch("/", h.handleUpdateNode)
			r.Delete("/", h.handleDeleteNode)
			r.Post("/generate-description", h.handleGenerateDescription)
		})

		r.Post("/edges", h.handleAddEdge)
		r.Delete("/edges/{edgeID}", h.handleDeleteEdge)

		r.Post("/groups", h.handleCreateGroup)
		r.Delete("/groups/{groupID}", h.handleUngroup)
		r.Patch("/groups/{groupID}/collapse", h.handleToggleCollapse)

		r.Post("/design-doc/generate", h.handleGenerateDesignDoc)
		r.Get("/design-doc/status", h.handleDesignDocStatus)
		r.Patch("/design-doc", h.handleUpdateDesignDoc)
		r.Post("/design-doc/export", h.handleExportDesignDoc)
	})

	return r
}

// tagSession copies the session id route parameter onto the request
// log line.
func tagSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.AddLogField(r.Context(), "session_id", chi.URLParam(r, "sessionID"))
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req session.GenerateRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	sess, err := h.generate.Generate(r.Context(), req.Prompt, req.Model)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	server.AddLogField(r.Context(), "session_id", sess.ID)
	h.writeJSON(w, http.StatusOK, session.GenerateResponse{SessionID: sess.ID, Status: sess.Status})
}

func (h *Handler) handleDiagramStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := h.generate.DiagramStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req session.ChatRequest
	if err := decode(r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	server.AddLogField(r.Context(), "session_id", req.SessionID)

	resp, err := h.studio.Chat(r.Context(), req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("write response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var apiErr *session.APIError
	if !errors.As(err, &apiErr) {
		apiErr = session.ErrServer("internal error")
	}
	if apiErr.Kind == session.KindInternal {
		h.logger.Error("request failed", slog.String("error", err.Error()))
	}
	h.writeJSON(w, apiErr.HTTPStatus(), errorResponse{
		Error: errorBody{Type: string(apiErr.Kind), Message: apiErr.Message},
	})
}

// decode parses a JSON request body, mapping failures onto the
// invalid_request kind.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return session.ErrInvalidRequest("invalid request body: %v", err)
	}
	return nil
}

// versionPin parses the optional diagram version header. An absent
// header is pin 0, which keeps last-write-wins semantics.
func versionPin(r *http.Request) (int64, error) {
	raw := r.Header.Get(session.DiagramVersionHeader)
	if raw == "" {
		return 0, nil
	}
	pin, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pin < 1 {
		return 0, session.ErrInvalidRequest("malformed %s header %q", session.DiagramVersionHeader, raw)
	}
	return pin, nil
}
