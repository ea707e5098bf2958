package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/offline/internal/formatter"
	"github.com/desertthunder/offline/internal/models"
	"github.com/desertthunder/offline/internal/tasks"
)

// Engine is the part of [tasks.Coordinator] the control API drives.
type Engine interface {
	Status() (tasks.Status, error)
	Refresh()
	RequestSync()
}

// PassLister lists recorded passes; [repositories.PassRepository] satisfies it.
type PassLister interface {
	List(criteria map[string]any) ([]*models.Pass, error)
}

const defaultHistoryLimit = 20

// ControlHandler serves the local control API:
//
//	GET  /status   desired state against the disk
//	GET  /history  recent passes (?loop=&status=&limit=)
//	POST /refresh  re-fetch favorites, playlists and pending albums
//	POST /sync     schedule a track pass
type ControlHandler struct {
	engine Engine
	passes PassLister
	logger *log.Logger
	routes *http.ServeMux
}

// NewControlHandler creates a handler over engine. passes may be nil, which disables /history.
func NewControlHandler(engine Engine, passes PassLister, logger *log.Logger) *ControlHandler {
	if logger == nil {
		logger = log.Default()
	}
	h := &ControlHandler{engine: engine, passes: passes, logger: logger, routes: http.NewServeMux()}
	h.routes.HandleFunc("GET /status", h.status)
	h.routes.HandleFunc("GET /history", h.history)
	h.routes.HandleFunc("POST /refresh", h.refresh)
	h.routes.HandleFunc("POST /sync", h.sync)
	return h
}

// Routes returns the paths served.
func (h *ControlHandler) Routes() []string {
	return []string{"/status", "/history", "/refresh", "/sync"}
}

func (h *ControlHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.routes.ServeHTTP(w, req)
}

func (h *ControlHandler) status(w http.ResponseWriter, _ *http.Request) {
	st, err := h.engine.Status()
	if err != nil {
		h.logger.Warn("status failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := formatter.MarshalStatus(st)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *ControlHandler) history(w http.ResponseWriter, req *http.Request) {
	if h.passes == nil {
		writeError(w, http.StatusNotFound, "pass history is not recorded")
		return
	}

	q := req.URL.Query()
	limit := defaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	passes, err := h.passes.List(map[string]any{"loop": q.Get("loop"), "status": q.Get("status"), "limit": limit})
	if err != nil {
		h.logger.Warn("history failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, formatter.HistoryJSON(passes))
}

func (h *ControlHandler) refresh(w http.ResponseWriter, _ *http.Request) {
	h.engine.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

func (h *ControlHandler) sync(w http.ResponseWriter, _ *http.Request) {
	h.engine.RequestSync()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync scheduled"})
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"error": message, "code": code})
}
