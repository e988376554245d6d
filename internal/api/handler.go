package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/interview"
	"github.com/parleyhq/parley/internal/store"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	manager *interview.Manager
	archive *store.Store // optional
	logger  *zap.Logger
}

// NewHandler creates a new API handler. archive may be nil; history
// endpoints then report unavailable.
func NewHandler(manager *interview.Manager, archive *store.Store, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, archive: archive, logger: logger}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Post("/sessions", h.startSession)
		r.Get("/sessions/{id}", h.getSession)
		r.Post("/sessions/{id}/messages", h.sendMessage)
		r.Post("/sessions/{id}/end", h.endSession)
		r.Get("/sessions/{id}/end/stream", h.endSessionStream)
		r.Get("/history", h.listHistory)
		r.Get("/history/{id}/report", h.getReport)
	})
	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// userID reads the caller identity. Upstream auth middleware owns
// verification; this layer only enforces session ownership.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "X-User-ID header is required"})
		return
	}

	var req struct {
		TargetPosition string `json:"target_position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetPosition == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_position is required"})
		return
	}

	res, err := h.manager.StartSession(r.Context(), uid, req.TargetPosition)
	if err != nil {
		h.logger.Error("start session failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not start session"})
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.GetSession(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	res, err := h.manager.SendMessage(r.Context(), chi.URLParam(r, "id"), userID(r), req.Message)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	report, err := h.manager.EndSession(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// endSessionStream ends the session while streaming the recommendation
// agent's progress as Server-Sent Events. The stream carries one
// "data: <JSON event>\n\n" frame per event and closes after the terminal
// agent_complete frame; the full report is then available from the history
// endpoints.
func (h *Handler) endSessionStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	emit := agent.NewEmitter("recommender")
	events := emit.Subscribe(64)

	type endResult struct {
		report *interview.SessionReport
		err    error
	}
	done := make(chan endResult, 1)
	go func() {
		report, err := h.manager.EndSessionStream(r.Context(), chi.URLParam(r, "id"), userID(r), emit)
		done <- endResult{report, err}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			break
		}
		flusher.Flush()
	}

	res := <-done
	if res.err != nil {
		h.logger.Warn("streamed session end failed",
			zap.String("session", chi.URLParam(r, "id")), zap.Error(res.err))
	}
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history storage not configured"})
		return
	}
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "X-User-ID header is required"})
		return
	}
	sessions, err := h.archive.ListUserSessions(r.Context(), uid, 20)
	if err != nil {
		h.logger.Error("list history failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list history"})
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history storage not configured"})
		return
	}
	report, err := h.archive.GetReport(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "report not found"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, interview.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "session belongs to another user"})
	case errors.Is(err, interview.ErrSessionEnded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session already ended"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
